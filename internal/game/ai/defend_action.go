package ai

import (
	"math"
	"time"
)

// Health thresholds, in percent of maximum health, that push a fighting brain
// toward StateNearDeath and StateDying.
const (
	NearDeathHealthPercent = 25
	DyingHealthPercent     = 10
)

// DefendAction turns combat events into aggro and state changes, and retargets
// the brain onto the most hated enemy when its current target is gone.
//
// Events handled:
//   - take_damage credits the attacker with the damage dealt; a controlled
//     attacker passes a quarter of it to its master;
//   - owner_attack credits whoever attacked the body's master;
//   - enemy_healed credits a healer already on the table with twice the heal;
//   - combat_start, take_damage and owner_attack escalate to StateFighting;
//   - health_change escalates to StateNearDeath or StateDying on thresholds;
//   - combat_end drops the sender as the current target.
type DefendAction struct {
	BaseAction
	brain *Brain
}

// NewDefendAction creates a defend action bound to brain.
//
// Precondition: brain must not be nil.
func NewDefendAction(brain *Brain, duration time.Duration) *DefendAction {
	if brain == nil {
		panic("ai.NewDefendAction: brain must not be nil")
	}
	return &DefendAction{BaseAction: NewBaseAction("defend", duration), brain: brain}
}

// Analyze scores average when the most hated enemy is not the current target.
func (d *DefendAction) Analyze() (Score, error) {
	body := d.brain.Body()
	if !available(body) || !body.IsAlive() {
		return ScoreMin, nil
	}
	foe, ok := d.brain.Aggro().MostHated(d.brain.Limits().MaxAggroDistance)
	if !ok || foe.ID() == d.brain.Target() {
		return ScoreMin, nil
	}
	return ScoreAverage, nil
}

// Execute targets the most hated enemy.
func (d *DefendAction) Execute() error {
	if foe, ok := d.brain.Aggro().MostHated(d.brain.Limits().MaxAggroDistance); ok {
		d.brain.SetTarget(foe.ID())
	}
	return nil
}

// Notify reacts to combat events; everything else is ignored.
func (d *DefendAction) Notify(ev Event) {
	switch ev.Name {
	case EventTakeDamage:
		if args, ok := ev.Args.(DamageArgs); ok {
			d.onDamage(ev.Sender, args.Total())
		}
	case EventOwnerAttack:
		attacker, ok := d.brain.World().Lookup(ev.Sender)
		if !ok {
			return
		}
		amount := int64(1)
		if args, ok := ev.Args.(DamageArgs); ok {
			amount = max(1, args.Total())
		}
		d.brain.Aggro().Add(attacker, amount)
		d.engage(attacker.ID())
	case EventEnemyHealed:
		args, ok := ev.Args.(HealArgs)
		if !ok || args.Amount <= 0 {
			return
		}
		if _, hated := d.brain.Aggro().Get(ev.Sender); !hated {
			return
		}
		if healer, ok := d.brain.World().Lookup(ev.Sender); ok {
			d.brain.Aggro().Add(healer, saturatingMul(args.Amount, 2))
		}
	case EventCombatStart:
		if _, ok := d.brain.World().Lookup(ev.Sender); ok {
			d.engage(ev.Sender)
		}
	case EventHealthChange:
		args, ok := ev.Args.(HealthArgs)
		if !ok {
			return
		}
		switch {
		case args.Percent <= DyingHealthPercent:
			_ = d.brain.Escalate(StateDying)
		case args.Percent <= NearDeathHealthPercent:
			_ = d.brain.Escalate(StateNearDeath)
		}
	case EventCombatEnd:
		if ev.Sender != "" && d.brain.Target() == ev.Sender {
			d.brain.SetTarget("")
		}
	}
}

func (d *DefendAction) onDamage(sender Handle, amount int64) {
	attacker, ok := d.brain.World().Lookup(sender)
	if !ok {
		return
	}
	amount = max(1, amount)
	table := d.brain.Aggro()
	if attacker.Kind() == KindNPC {
		if master := attacker.Owner(); available(master) {
			table.Add(master, max(1, amount/4))
			amount = max(1, amount-amount/4)
		}
	}
	table.Add(attacker, amount)
	d.engage(attacker.ID())
}

// engage escalates to fighting and targets h unless a target is already set.
func (d *DefendAction) engage(h Handle) {
	if err := d.brain.Escalate(StateFighting); err != nil {
		return
	}
	if d.brain.Target() == "" {
		d.brain.SetTarget(h)
	}
}

func saturatingAdd(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return p
}

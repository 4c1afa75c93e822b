package world

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// ErrAttackRefused is returned when the realm rules forbid an attack.
var ErrAttackRefused = errors.New("attack not allowed")

// Damage applies dmg from attacker to victim and emits the resulting events:
// combat_start to each side entering combat, take_damage and health_change to
// the victim, owner_attack to the victim's pet and, when the victim dies,
// combat_end to everyone who fought it.
//
// Precondition: dmg.Amount and dmg.Critical must be >= 0.
// Postcondition: Returns the health actually removed, or an error when either
// entity is unknown or the attack is refused.
func (m *Manager) Damage(attacker, victim ai.Handle, dmg ai.DamageArgs) (int64, error) {
	if dmg.Amount < 0 || dmg.Critical < 0 {
		return 0, fmt.Errorf("world.Manager.Damage: damage must not be negative")
	}
	a, ok := m.Entity(attacker)
	if !ok {
		return 0, fmt.Errorf("world.Manager.Damage: unknown attacker %q", attacker)
	}
	v, ok := m.Entity(victim)
	if !ok {
		return 0, fmt.Errorf("world.Manager.Damage: unknown victim %q", victim)
	}
	if !m.IsAllowedToAttack(a, v, true) {
		return 0, fmt.Errorf("world.Manager.Damage %q -> %q: %w", attacker, victim, ErrAttackRefused)
	}

	var events []envelope
	if !a.setInCombat(true) {
		events = append(events, envelope{receiver: attacker, ev: ai.Event{Name: ai.EventCombatStart, Sender: victim}})
	}
	if !v.setInCombat(true) {
		events = append(events, envelope{receiver: victim, ev: ai.Event{Name: ai.EventCombatStart, Sender: attacker}})
	}

	applied, percent, died := v.adjustHealth(-dmg.Total())
	events = append(events,
		envelope{receiver: victim, ev: ai.Event{Name: ai.EventTakeDamage, Sender: attacker, Args: dmg}},
		envelope{receiver: victim, ev: ai.Event{Name: ai.EventHealthChange, Sender: victim, Args: ai.HealthArgs{Percent: percent}}},
	)
	if pet := v.Pet(); pet != nil && pet.ID() != attacker {
		events = append(events, envelope{receiver: pet.ID(), ev: ai.Event{Name: ai.EventOwnerAttack, Sender: attacker, Args: dmg}})
	}

	m.mu.Lock()
	set, ok := m.attackers[victim]
	if !ok {
		set = make(map[ai.Handle]struct{})
		m.attackers[victim] = set
	}
	set[attacker] = struct{}{}
	if died {
		for foe := range set {
			events = append(events, envelope{receiver: foe, ev: ai.Event{Name: ai.EventCombatEnd, Sender: victim}})
		}
		delete(m.attackers, victim)
	}
	sink := m.sink
	m.mu.Unlock()

	if died {
		v.setInCombat(false)
	}
	deliver(sink, events)
	return -applied, nil
}

// Heal restores up to amount health to target. Everyone currently fighting
// target is told who healed it.
//
// Precondition: amount must be >= 0.
// Postcondition: Returns the health actually restored; a dead target gains nothing.
func (m *Manager) Heal(healer, target ai.Handle, amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("world.Manager.Heal: amount must not be negative")
	}
	if _, ok := m.Entity(healer); !ok {
		return 0, fmt.Errorf("world.Manager.Heal: unknown healer %q", healer)
	}
	t, ok := m.Entity(target)
	if !ok {
		return 0, fmt.Errorf("world.Manager.Heal: unknown target %q", target)
	}

	applied, percent, _ := t.adjustHealth(amount)
	if applied == 0 {
		return 0, nil
	}
	events := []envelope{{receiver: target, ev: ai.Event{Name: ai.EventHealthChange, Sender: healer, Args: ai.HealthArgs{Percent: percent}}}}

	m.mu.RLock()
	foes := make([]ai.Handle, 0, len(m.attackers[target]))
	for foe := range m.attackers[target] {
		foes = append(foes, foe)
	}
	sink := m.sink
	m.mu.RUnlock()
	sortHandles(foes)

	for _, foe := range foes {
		events = append(events, envelope{receiver: foe, ev: ai.Event{
			Name:   ai.EventEnemyHealed,
			Sender: healer,
			Args:   ai.HealArgs{Target: target, Amount: applied},
		}})
	}
	deliver(sink, events)
	return applied, nil
}

// Revive brings a dead entity back at full health and out of combat.
//
// Postcondition: Returns false when h is unknown or already alive.
func (m *Manager) Revive(h ai.Handle) bool {
	e, ok := m.Entity(h)
	if !ok || e.IsAlive() {
		return false
	}
	e.SetAlive(true)
	e.setInCombat(false)
	return true
}

// Attackers returns everyone who damaged h in its current fight, ordered by handle.
func (m *Manager) Attackers(h ai.Handle) []ai.Handle {
	m.mu.RLock()
	out := make([]ai.Handle, 0, len(m.attackers[h]))
	for foe := range m.attackers[h] {
		out = append(out, foe)
	}
	m.mu.RUnlock()
	sortHandles(out)
	return out
}

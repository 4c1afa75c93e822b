package main

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
	"github.com/cory-johannsen/npcbrain/internal/game/npc"
	"github.com/cory-johannsen/npcbrain/internal/game/world"
)

// meleeRange is how close two entities must be to trade blows.
const meleeRange = 50.0

// healBelowPercent is the health under which a group member gets healed.
const healBelowPercent = 50

// skirmish runs one round of simulated combat: NPCs hit their brain's target,
// players hit back at whoever attacked them, grouped players heal each other,
// dead players are revived and dead NPCs are replaced by a fresh spawn.
type skirmish struct {
	ctx       context.Context
	world     *world.Manager
	spawner   *npc.Spawner
	templates map[string]*npc.Template
	rng       *rand.Rand
	logger    *zap.Logger
}

func newSkirmish(ctx context.Context, w *world.Manager, s *npc.Spawner, templates []*npc.Template, rng *rand.Rand, logger *zap.Logger) *skirmish {
	byID := make(map[string]*npc.Template, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	return &skirmish{ctx: ctx, world: w, spawner: s, templates: byID, rng: rng, logger: logger}
}

func (k *skirmish) round() {
	for _, inst := range k.spawner.Instances() {
		if !inst.Entity.IsAlive() {
			k.respawn(inst)
			continue
		}
		k.strike(inst.Entity, inst.Brain.Target())
	}
	for _, p := range k.world.Players() {
		if !p.IsAlive() {
			k.world.Revive(p.ID())
			continue
		}
		if foes := k.world.Attackers(p.ID()); len(foes) > 0 {
			k.strike(p, foes[0])
		}
		k.healGroup(p)
	}
}

func (k *skirmish) strike(attacker *world.Entity, target ai.Handle) {
	if target == "" {
		return
	}
	victim, ok := k.world.Entity(target)
	if !ok || !victim.IsAlive() {
		return
	}
	if attacker.Position().DistanceTo(victim.Position()) > meleeRange {
		return
	}
	dmg := ai.DamageArgs{Amount: 1 + k.rng.Int64N(int64(attacker.Level())*2)}
	if k.rng.IntN(10) == 0 {
		dmg.Critical = dmg.Amount / 2
	}
	if _, err := k.world.Damage(attacker.ID(), target, dmg); err != nil {
		k.logger.Debug("attack refused",
			zap.String("attacker", string(attacker.ID())),
			zap.String("victim", string(target)),
			zap.Error(err),
		)
	}
}

func (k *skirmish) healGroup(p *world.Entity) {
	if p.HealthPercent() >= healBelowPercent {
		return
	}
	g := p.Group()
	if g == nil {
		return
	}
	for _, m := range g.Members() {
		if m.ID() == p.ID() || !m.IsAlive() {
			continue
		}
		if _, err := k.world.Heal(m.ID(), p.ID(), int64(m.Level())*2); err == nil {
			return
		}
	}
}

func (k *skirmish) respawn(inst *npc.Instance) {
	k.spawner.Despawn(inst.ID)
	tmpl, ok := k.templates[inst.TemplateID]
	if !ok {
		return
	}
	pos := tmpl.Spawn.Point()
	if tmpl.Spread > 0 {
		off := world.RandomPoint(k.rng, tmpl.Spread)
		pos.X += off.X
		pos.Y += off.Y
	}
	if _, err := k.spawner.Spawn(k.ctx, tmpl, pos); err != nil {
		k.logger.Warn("respawn failed", zap.String("template", tmpl.ID), zap.Error(err))
	}
}

package npc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
	"github.com/cory-johannsen/npcbrain/internal/game/world"
	"github.com/cory-johannsen/npcbrain/internal/gameserver"
)

// Scheduler ticks registered brains.
type Scheduler interface {
	Register(id ai.Handle, t gameserver.Thinker)
	Unregister(id ai.Handle)
}

// SpawnMetrics extends the brain metrics with a live brain count.
type SpawnMetrics interface {
	ai.Metrics
	BrainSpawned()
	BrainDespawned()
}

// Deps collects the collaborators of a Spawner.
type Deps struct {
	World    *world.Manager
	Profiles *ai.Registry
	Ticks    Scheduler
	Logger   *zap.Logger
	Limits   ai.Limits
	// Factions resolves template faction IDs. May be nil when no template names one.
	Factions map[string]*world.Faction
	// Scripts backs script actions. May be nil when no profile uses them.
	Scripts ai.ScriptCaller
	ZoneID  string
	// Metrics may be nil.
	Metrics SpawnMetrics
}

// ErrUnknownProfile is returned when a template names an unregistered profile.
var ErrUnknownProfile = errors.New("unknown brain profile")

// ErrUnknownFaction is returned when a template names an unknown faction.
var ErrUnknownFaction = errors.New("unknown faction")

// Spawner places NPC instances into the world and owns their brains.
// All methods are safe for concurrent use.
type Spawner struct {
	deps Deps

	mu        sync.RWMutex
	instances map[ai.Handle]*Instance
}

// NewSpawner creates a Spawner.
//
// Precondition: World, Profiles, Ticks and Logger must be non-nil; Limits must validate.
// Postcondition: Returns a Spawner with no instances. World arrival events are
// routed to the addressed brain.
func NewSpawner(d Deps) *Spawner {
	if d.World == nil || d.Profiles == nil || d.Ticks == nil || d.Logger == nil {
		panic("npc.NewSpawner: World, Profiles, Ticks and Logger must not be nil")
	}
	if err := d.Limits.Validate(); err != nil {
		panic("npc.NewSpawner: " + err.Error())
	}
	s := &Spawner{
		deps:      d,
		instances: make(map[ai.Handle]*Instance),
	}
	d.World.SetEventSink(s.Deliver)
	return s
}

// Spawn creates one instance of tmpl at pos, builds its brain from the
// template's profile and starts it.
//
// Precondition: tmpl must be non-nil and valid.
// Postcondition: On success the entity is in the world and its brain is
// started and ticking. On error nothing remains in the world.
func (s *Spawner) Spawn(ctx context.Context, tmpl *Template, pos ai.Point) (*Instance, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("npc.Spawner.Spawn: tmpl must not be nil")
	}
	realm, err := ParseRealm(tmpl.Realm)
	if err != nil {
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w", tmpl.ID, err)
	}
	var faction *world.Faction
	if tmpl.Faction != "" {
		f, ok := s.deps.Factions[tmpl.Faction]
		if !ok {
			return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w: %q", tmpl.ID, ErrUnknownFaction, tmpl.Faction)
		}
		faction = f
	}
	profile, ok := s.deps.Profiles.ProfileFor(tmpl.Profile)
	if !ok {
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w: %q", tmpl.ID, ErrUnknownProfile, tmpl.Profile)
	}

	id := ai.Handle(uuid.NewString())
	body, err := world.NewEntity(id, tmpl.Name, ai.KindNPC, tmpl.Level, pos)
	if err != nil {
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w", tmpl.ID, err)
	}
	body.SetRealm(realm)
	body.SetFaction(faction)
	if err := s.deps.World.Add(body); err != nil {
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w", tmpl.ID, err)
	}

	logger := s.deps.Logger.With(zap.String("template", tmpl.ID))
	brain := ai.NewBrain(body, s.deps.World, s.deps.Limits, logger)
	brain.SetAggroLevel(tmpl.AggroLevel)
	brain.SetAggroRange(tmpl.AggroRange)
	if s.deps.Metrics != nil {
		brain.SetMetrics(s.deps.Metrics)
	}
	buildDeps := ai.BuildDeps{
		Mover:   s.deps.World.MoverFor(id),
		Scripts: s.deps.Scripts,
		ZoneID:  s.deps.ZoneID,
	}
	if err := profile.Apply(brain, buildDeps); err != nil {
		s.deps.World.Remove(id)
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w", tmpl.ID, err)
	}
	if err := brain.Start(ctx); err != nil {
		s.deps.World.Remove(id)
		return nil, fmt.Errorf("npc.Spawner.Spawn %q: %w", tmpl.ID, err)
	}

	inst := &Instance{
		ID:         id,
		TemplateID: tmpl.ID,
		ProfileID:  profile.ID,
		Entity:     body,
		Brain:      brain,
		SpawnedAt:  time.Now(),
	}
	s.mu.Lock()
	s.instances[id] = inst
	s.mu.Unlock()

	s.deps.Ticks.Register(id, brain)
	if s.deps.Metrics != nil {
		s.deps.Metrics.BrainSpawned()
	}
	logger.Debug("npc spawned",
		zap.String("npc", string(id)),
		zap.String("profile", profile.ID),
		zap.Float64("x", pos.X),
		zap.Float64("y", pos.Y),
	)
	return inst, nil
}

// SpawnAll places tmpl.Instances() copies of every template, scattered
// within Spread of the template's spawn point.
//
// Precondition: rng must not be nil.
// Postcondition: Returns every spawned instance; on error, instances spawned
// by this call are despawned again.
func (s *Spawner) SpawnAll(ctx context.Context, templates []*Template, rng *rand.Rand) ([]*Instance, error) {
	var spawned []*Instance
	for _, tmpl := range templates {
		for range tmpl.Instances() {
			pos := tmpl.Spawn.Point()
			if tmpl.Spread > 0 {
				off := world.RandomPoint(rng, tmpl.Spread)
				pos.X += off.X
				pos.Y += off.Y
			}
			inst, err := s.Spawn(ctx, tmpl, pos)
			if err != nil {
				for _, done := range spawned {
					s.Despawn(done.ID)
				}
				return nil, err
			}
			spawned = append(spawned, inst)
		}
	}
	return spawned, nil
}

// Despawn stops the brain of id and removes its body from the world.
//
// Postcondition: Returns false if id is not a live instance.
func (s *Spawner) Despawn(id ai.Handle) bool {
	s.mu.Lock()
	inst, ok := s.instances[id]
	delete(s.instances, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.deps.Ticks.Unregister(id)
	inst.Brain.Stop()
	s.deps.World.Remove(id)
	if s.deps.Metrics != nil {
		s.deps.Metrics.BrainDespawned()
	}
	return true
}

// DespawnAll despawns every live instance.
func (s *Spawner) DespawnAll() {
	for _, inst := range s.Instances() {
		s.Despawn(inst.ID)
	}
}

// Get returns the instance with the given ID.
func (s *Spawner) Get(id ai.Handle) (*Instance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	return inst, ok
}

// Instances returns a snapshot of all live instances ordered by ID.
func (s *Spawner) Instances() []*Instance {
	s.mu.RLock()
	out := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live instances.
func (s *Spawner) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// Deliver forwards ev to the brain of receiver. Events for unknown receivers
// are dropped.
func (s *Spawner) Deliver(receiver ai.Handle, ev ai.Event) {
	inst, ok := s.Get(receiver)
	if !ok {
		return
	}
	inst.Brain.Notify(ev)
}

package world

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// EventSink receives world events addressed to one entity's brain.
type EventSink func(receiver ai.Handle, ev ai.Event)

// follow is an active follow order of one entity toward another.
type follow struct {
	target  ai.Handle
	minDist float64
	maxDist float64
	arrived bool
}

// Manager is the registry of live entities and the rules they interact by.
//
// Manager implements ai.World and is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	entities map[ai.Handle]*Entity
	follows  map[ai.Handle]*follow
	// attackers maps a victim to everyone who damaged it in the current fight.
	attackers map[ai.Handle]map[ai.Handle]struct{}
	sink      EventSink
}

// envelope is an event waiting to be delivered once the lock is released.
type envelope struct {
	receiver ai.Handle
	ev       ai.Event
}

// NewManager creates an empty world.
//
// Postcondition: Returns a non-nil Manager with no entities.
func NewManager() *Manager {
	return &Manager{
		entities:  make(map[ai.Handle]*Entity),
		follows:   make(map[ai.Handle]*follow),
		attackers: make(map[ai.Handle]map[ai.Handle]struct{}),
	}
}

// SetEventSink installs the receiver of world events. nil discards events.
func (m *Manager) SetEventSink(sink EventSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// Add places e in the world and marks it active.
//
// Precondition: e must not be nil.
// Postcondition: Returns an error if an entity with the same handle exists.
func (m *Manager) Add(e *Entity) error {
	if e == nil {
		return fmt.Errorf("world.Manager.Add: entity must not be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[e.ID()]; ok {
		return fmt.Errorf("world.Manager.Add: duplicate entity %q", e.ID())
	}
	m.entities[e.ID()] = e
	e.setActive(true)
	return nil
}

// Remove takes the entity out of the world. Follow orders by or toward it are
// cancelled and it leaves every fight.
//
// Postcondition: Lookup(h) reports false; the removed entity is inactive.
func (m *Manager) Remove(h ai.Handle) bool {
	m.mu.Lock()
	e, ok := m.entities[h]
	if ok {
		delete(m.entities, h)
		delete(m.follows, h)
		for follower, f := range m.follows {
			if f.target == h {
				delete(m.follows, follower)
			}
		}
		delete(m.attackers, h)
		for _, set := range m.attackers {
			delete(set, h)
		}
	}
	m.mu.Unlock()
	if ok {
		e.setActive(false)
	}
	return ok
}

// Entity returns the concrete entity for h.
func (m *Manager) Entity(h ai.Handle) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[h]
	return e, ok
}

// Lookup resolves h to a live entity.
func (m *Manager) Lookup(h ai.Handle) (ai.Living, bool) {
	e, ok := m.Entity(h)
	if !ok {
		return nil, false
	}
	return e, true
}

// Len returns the number of entities in the world.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Players returns every player entity ordered by handle.
func (m *Manager) Players() []*Entity {
	return m.collect(func(e *Entity) bool { return e.Kind() == ai.KindPlayer })
}

// PlayersInRadius returns the players within radius of center, ordered by handle.
func (m *Manager) PlayersInRadius(center ai.Point, radius float64) []ai.Living {
	return m.inRadius(ai.KindPlayer, center, radius)
}

// NPCsInRadius returns the NPCs within radius of center, ordered by handle.
func (m *Manager) NPCsInRadius(center ai.Point, radius float64) []ai.Living {
	return m.inRadius(ai.KindNPC, center, radius)
}

func (m *Manager) inRadius(kind ai.Kind, center ai.Point, radius float64) []ai.Living {
	found := m.collect(func(e *Entity) bool {
		return e.Kind() == kind && e.Position().DistanceTo(center) <= radius
	})
	out := make([]ai.Living, len(found))
	for i, e := range found {
		out[i] = e
	}
	return out
}

func (m *Manager) collect(keep func(*Entity) bool) []*Entity {
	m.mu.RLock()
	var out []*Entity
	for _, e := range m.entities {
		if keep(e) {
			out = append(out, e)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func sortHandles(hs []ai.Handle) {
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
}

// IsAllowedToAttack applies the realm rules.
//
// Attacks are refused when either side is missing, inactive or dead, when the
// two are the same entity, or when one controls the other. With checkRealm,
// two entities of the same non-none realm may not fight.
func (m *Manager) IsAllowedToAttack(attacker, defender ai.Living, checkRealm bool) bool {
	if attacker == nil || defender == nil {
		return false
	}
	if !attacker.IsActive() || !defender.IsActive() {
		return false
	}
	if !attacker.IsAlive() || !defender.IsAlive() {
		return false
	}
	if attacker.ID() == defender.ID() {
		return false
	}
	if o := defender.Owner(); o != nil && o.ID() == attacker.ID() {
		return false
	}
	if o := attacker.Owner(); o != nil && o.ID() == defender.ID() {
		return false
	}
	if checkRealm {
		ar, dr := attacker.Realm(), defender.Realm()
		if ar != ai.RealmNone && ar == dr {
			return false
		}
	}
	return true
}

// MoverFor returns the ai.Mover that steers the entity h.
func (m *Manager) MoverFor(h ai.Handle) ai.Mover {
	return &entityMover{world: m, id: h}
}

// Following reports the target h is currently following.
func (m *Manager) Following(h ai.Handle) (ai.Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.follows[h]
	if !ok {
		return "", false
	}
	return f.target, true
}

type entityMover struct {
	world *Manager
	id    ai.Handle
}

func (em *entityMover) Follow(target ai.Living, minDist, maxDist float64) {
	if target == nil {
		return
	}
	em.world.mu.Lock()
	em.world.follows[em.id] = &follow{target: target.ID(), minDist: minDist, maxDist: maxDist}
	em.world.mu.Unlock()
}

func (em *entityMover) StopFollowing() {
	em.world.mu.Lock()
	delete(em.world.follows, em.id)
	em.world.mu.Unlock()
}

// StepFollowers advances every follower up to speed units toward its target,
// stopping at minDist. A follower entering maxDist of its target receives an
// arrival event once per approach.
//
// Precondition: speed must be > 0.
// Postcondition: Orders whose follower or target left the world are dropped.
func (m *Manager) StepFollowers(speed float64) {
	var arrivals []envelope

	m.mu.Lock()
	for id, f := range m.follows {
		follower, ok := m.entities[id]
		target, tok := m.entities[f.target]
		if !ok || !tok {
			delete(m.follows, id)
			continue
		}
		from, to := follower.Position(), target.Position()
		dist := from.DistanceTo(to)
		if dist > f.maxDist {
			f.arrived = false
		}
		if dist > f.minDist {
			move := math.Min(speed, dist-f.minDist)
			ratio := move / dist
			follower.SetPosition(ai.Point{
				X: from.X + (to.X-from.X)*ratio,
				Y: from.Y + (to.Y-from.Y)*ratio,
				Z: from.Z + (to.Z-from.Z)*ratio,
			})
			dist -= move
		}
		if dist <= f.maxDist && !f.arrived {
			f.arrived = true
			arrivals = append(arrivals, envelope{receiver: id, ev: ai.Event{Name: ai.EventArrived, Sender: f.target}})
		}
	}
	sink := m.sink
	m.mu.Unlock()

	deliver(sink, arrivals)
}

func deliver(sink EventSink, events []envelope) {
	if sink == nil {
		return
	}
	for _, e := range events {
		sink(e.receiver, e.ev)
	}
}

// Wander moves every living player by a random offset of up to step units,
// keeping it within radius of the origin.
//
// Precondition: rng must not be nil; step and radius must be > 0.
func (m *Manager) Wander(rng *rand.Rand, step, radius float64) {
	for _, p := range m.Players() {
		if !p.IsAlive() {
			continue
		}
		angle := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * step
		pos := p.Position()
		next := ai.Point{X: pos.X + math.Cos(angle)*dist, Y: pos.Y + math.Sin(angle)*dist, Z: pos.Z}
		if r := math.Hypot(next.X, next.Y); r > radius {
			next.X *= radius / r
			next.Y *= radius / r
		}
		p.SetPosition(next)
	}
}

// RandomPoint returns a point on the ground plane within radius of the origin.
func RandomPoint(rng *rand.Rand, radius float64) ai.Point {
	angle := rng.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(rng.Float64())
	return ai.Point{X: math.Cos(angle) * r, Y: math.Sin(angle) * r}
}

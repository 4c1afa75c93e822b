// Package world provides the in-memory game world NPC brains observe: entities,
// factions, groups, spatial queries, realm rules and follow movement.
package world

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// greyConSteps is how many con steps below an observer a target must be to con grey.
const greyConSteps = 3

// HealthPerLevel is the maximum health an entity gains per level.
const HealthPerLevel = 20

// conStep returns the level span of one con step for an observer of level.
func conStep(level int) int {
	if level < 10 {
		return 1
	}
	return 1 + level/10
}

// ConLevel returns the number of whole con steps other is above (positive)
// or below (negative) an observer of level self.
func ConLevel(self, other int) int {
	return (other - self) / conStep(self)
}

// Entity is a player or NPC present in the world.
//
// Invariant: all accessors are safe for concurrent use.
type Entity struct {
	id   ai.Handle
	name string
	kind ai.Kind

	mu            sync.RWMutex
	pos           ai.Point
	level         int
	realm         ai.Realm
	faction       *Faction
	group         *Group
	owner         *Entity
	pet           *Entity
	alive         bool
	active        bool
	health        int64
	maxHealth     int64
	confused      bool
	incapacitated bool
	sitting       bool
	inCombat      bool
	stealthed     bool
	protectLevel  int
	protections   []ai.Protection
}

// NewEntity creates a live entity. It becomes active once added to a Manager.
//
// Precondition: id and name must be non-empty; level must be >= 1.
// Postcondition: Returns a non-nil Entity or an error.
func NewEntity(id ai.Handle, name string, kind ai.Kind, level int, pos ai.Point) (*Entity, error) {
	if id == "" {
		return nil, fmt.Errorf("world.NewEntity: id must not be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("world.NewEntity %q: name must not be empty", id)
	}
	if level < 1 {
		return nil, fmt.Errorf("world.NewEntity %q: level must be >= 1, got %d", id, level)
	}
	return &Entity{
		id:        id,
		name:      name,
		kind:      kind,
		level:     level,
		pos:       pos,
		alive:     true,
		health:    int64(level) * HealthPerLevel,
		maxHealth: int64(level) * HealthPerLevel,
	}, nil
}

func (e *Entity) ID() ai.Handle { return e.id }
func (e *Entity) Name() string  { return e.name }
func (e *Entity) Kind() ai.Kind { return e.kind }

func (e *Entity) Position() ai.Point {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pos
}

// SetPosition moves the entity.
func (e *Entity) SetPosition(p ai.Point) {
	e.mu.Lock()
	e.pos = p
	e.mu.Unlock()
}

func (e *Entity) IsAlive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alive
}

// SetAlive kills or revives the entity. Reviving restores full health.
func (e *Entity) SetAlive(alive bool) {
	e.mu.Lock()
	e.alive = alive
	if alive && e.health <= 0 {
		e.health = e.maxHealth
	}
	e.mu.Unlock()
}

// Health returns the current and maximum health.
func (e *Entity) Health() (current, maximum int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health, e.maxHealth
}

// HealthPercent returns the remaining health in [0, 100].
func (e *Entity) HealthPercent() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return healthPercent(e.health, e.maxHealth)
}

func healthPercent(current, maximum int64) int {
	if maximum <= 0 || current <= 0 {
		return 0
	}
	return int(current * 100 / maximum)
}

// adjustHealth adds delta to a living entity's health, clamped to
// [0, maxHealth]. Reaching zero kills it.
//
// Postcondition: Returns the applied change and the resulting percent;
// a dead entity is left unchanged.
func (e *Entity) adjustHealth(delta int64) (applied int64, percent int, died bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return 0, healthPercent(e.health, e.maxHealth), false
	}
	next := e.health + delta
	switch {
	case delta > 0 && next < e.health:
		next = e.maxHealth
	case delta < 0 && next > e.health:
		next = 0
	case next < 0:
		next = 0
	case next > e.maxHealth:
		next = e.maxHealth
	}
	applied = next - e.health
	e.health = next
	if next == 0 {
		e.alive = false
		died = true
	}
	return applied, healthPercent(e.health, e.maxHealth), died
}

func (e *Entity) setInCombat(v bool) (was bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	was = e.inCombat
	e.inCombat = v
	return was
}

func (e *Entity) IsActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.active
}

func (e *Entity) setActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
}

func (e *Entity) Level() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.level
}

// SetLevel changes the entity's level and rescales its maximum health.
//
// Precondition: level must be >= 1.
func (e *Entity) SetLevel(level int) {
	if level < 1 {
		level = 1
	}
	e.mu.Lock()
	e.level = level
	e.maxHealth = int64(level) * HealthPerLevel
	e.health = min(e.health, e.maxHealth)
	e.mu.Unlock()
}

// IsGreyConTo reports whether other sits at least three con steps below e.
func (e *Entity) IsGreyConTo(other ai.Living) bool {
	if other == nil {
		return false
	}
	return ConLevel(e.Level(), other.Level()) <= -greyConSteps
}

func (e *Entity) Realm() ai.Realm {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.realm
}

// SetRealm changes the entity's allegiance.
func (e *Entity) SetRealm(r ai.Realm) {
	e.mu.Lock()
	e.realm = r
	e.mu.Unlock()
}

func (e *Entity) Faction() ai.Faction {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.faction == nil {
		return nil
	}
	return e.faction
}

// SetFaction assigns f; nil clears the faction.
func (e *Entity) SetFaction(f *Faction) {
	e.mu.Lock()
	e.faction = f
	e.mu.Unlock()
}

func (e *Entity) Group() ai.Group {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.group == nil {
		return nil
	}
	return e.group
}

func (e *Entity) setGroup(g *Group) {
	e.mu.Lock()
	e.group = g
	e.mu.Unlock()
}

func (e *Entity) Owner() ai.Living {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.owner == nil {
		return nil
	}
	return e.owner
}

func (e *Entity) Pet() ai.Living {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.pet == nil {
		return nil
	}
	return e.pet
}

// SetOwner makes e the controlled pet of owner. A nil owner releases e from
// its current master.
//
// Postcondition: e.Owner() is owner and owner.Pet() is e.
func (e *Entity) SetOwner(owner *Entity) {
	e.mu.Lock()
	prev := e.owner
	e.owner = owner
	e.mu.Unlock()

	if prev != nil && prev != owner {
		prev.mu.Lock()
		if prev.pet == e {
			prev.pet = nil
		}
		prev.mu.Unlock()
	}
	if owner != nil {
		owner.mu.Lock()
		owner.pet = e
		owner.mu.Unlock()
	}
}

func (e *Entity) IsConfused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.confused
}

func (e *Entity) IsIncapacitated() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.incapacitated
}

func (e *Entity) IsSitting() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sitting
}

func (e *Entity) InCombat() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.inCombat
}

func (e *Entity) IsStealthed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stealthed
}

// Flags is a bulk update of the entity's status flags.
type Flags struct {
	Confused      bool
	Incapacitated bool
	Sitting       bool
	InCombat      bool
	Stealthed     bool
}

// SetFlags replaces every status flag at once.
func (e *Entity) SetFlags(f Flags) {
	e.mu.Lock()
	e.confused = f.Confused
	e.incapacitated = f.Incapacitated
	e.sitting = f.Sitting
	e.inCombat = f.InCombat
	e.stealthed = f.Stealthed
	e.mu.Unlock()
}

func (e *Entity) ProtectLevel() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.protectLevel
}

// SetProtectLevel sets the level of the entity's protect ability.
func (e *Entity) SetProtectLevel(level int) {
	if level < 0 {
		level = 0
	}
	e.mu.Lock()
	e.protectLevel = level
	e.mu.Unlock()
}

// Protections returns a copy of the protect effects shielding e.
func (e *Entity) Protections() []ai.Protection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ai.Protection, len(e.protections))
	copy(out, e.protections)
	return out
}

// Protect places a protect effect from source onto e. A second effect from the
// same source is ignored.
//
// Precondition: source must not be nil and must not be e.
func (e *Entity) Protect(source *Entity) error {
	if source == nil || source == e {
		return fmt.Errorf("world.Entity.Protect %q: invalid protector", e.id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.protections {
		if p.Source.ID() == source.id {
			return nil
		}
	}
	e.protections = append(e.protections, ai.Protection{Source: source, Target: e.id})
	return nil
}

// Unprotect removes the protect effect placed by source, if any.
func (e *Entity) Unprotect(source ai.Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.protections[:0]
	for _, p := range e.protections {
		if p.Source.ID() != source {
			kept = append(kept, p)
		}
	}
	e.protections = kept
}

// Faction is an NPC faction with per-player standings and enemy factions.
//
// Invariant: every aggro value is kept within [0, 100].
type Faction struct {
	id string

	mu          sync.RWMutex
	playerAggro int
	standings   map[ai.Handle]int
	enemies     map[string]struct{}
}

// NewFaction creates a faction whose default hostility toward players is playerAggro.
//
// Precondition: id must be non-empty.
func NewFaction(id string, playerAggro int) *Faction {
	if id == "" {
		panic("world.NewFaction: id must not be empty")
	}
	return &Faction{
		id:          id,
		playerAggro: clampAggro(playerAggro),
		standings:   make(map[ai.Handle]int),
		enemies:     make(map[string]struct{}),
	}
}

func (f *Faction) ID() string { return f.id }

// AggroToPlayer returns the player's individual standing, falling back to the
// faction default.
func (f *Faction) AggroToPlayer(player ai.Living) int {
	if player == nil {
		return ai.MinAggroLevel
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if v, ok := f.standings[player.ID()]; ok {
		return v
	}
	return f.playerAggro
}

// SetStanding overrides the faction's hostility toward one player.
func (f *Faction) SetStanding(player ai.Handle, aggro int) {
	f.mu.Lock()
	f.standings[player] = clampAggro(aggro)
	f.mu.Unlock()
}

// AddEnemy registers other as hostile. Enmity is one-directional.
func (f *Faction) AddEnemy(other *Faction) {
	if other == nil || other == f {
		return
	}
	f.mu.Lock()
	f.enemies[other.id] = struct{}{}
	f.mu.Unlock()
}

func (f *Faction) IsEnemy(other ai.Faction) bool {
	if other == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.enemies[other.ID()]
	return ok
}

func clampAggro(v int) int {
	return min(max(v, ai.MinAggroLevel), ai.MaxAggroLevel)
}

// Group is a player party.
type Group struct {
	mu      sync.RWMutex
	members []*Entity
}

// NewGroup forms a group from members, moving each out of any previous group.
func NewGroup(members ...*Entity) *Group {
	g := &Group{}
	for _, m := range members {
		g.Add(m)
	}
	return g
}

// Add joins e to g.
func (g *Group) Add(e *Entity) {
	if e == nil {
		return
	}
	if prev, ok := e.Group().(*Group); ok && prev != g {
		prev.Remove(e)
	}
	g.mu.Lock()
	for _, m := range g.members {
		if m == e {
			g.mu.Unlock()
			return
		}
	}
	g.members = append(g.members, e)
	g.mu.Unlock()
	e.setGroup(g)
}

// Remove takes e out of g.
func (g *Group) Remove(e *Entity) {
	g.mu.Lock()
	for i, m := range g.members {
		if m == e {
			g.members = append(g.members[:i], g.members[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
	e.mu.Lock()
	if e.group == g {
		e.group = nil
	}
	e.mu.Unlock()
}

func (g *Group) Members() []ai.Living {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ai.Living, len(g.members))
	for i, m := range g.members {
		out[i] = m
	}
	return out
}

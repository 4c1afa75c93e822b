package ai

import "math"

// Handle is the stable identity of a world entity. Brains never hold entity
// pointers across cycles; they hold handles and resolve them through World.
type Handle string

// Point is a position in world space.
type Point struct {
	X, Y, Z float64
}

// DistanceTo returns the euclidean distance between p and o.
func (p Point) DistanceTo(o Point) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Kind distinguishes players from non-player characters.
type Kind int

const (
	KindNPC Kind = iota
	KindPlayer
)

// String returns "npc" or "player".
func (k Kind) String() string {
	if k == KindPlayer {
		return "player"
	}
	return "npc"
}

// Realm is the allegiance of an entity. RealmNone marks unaffiliated creatures.
type Realm int

const (
	RealmNone Realm = iota
	RealmAlbion
	RealmMidgard
	RealmHibernia
)

// Faction is the read-only view of an NPC faction.
type Faction interface {
	// ID uniquely identifies the faction.
	ID() string
	// AggroToPlayer returns the faction's hostility toward player in [0, 100].
	AggroToPlayer(player Living) int
	// IsEnemy reports whether other is registered as an enemy faction.
	IsEnemy(other Faction) bool
}

// Group is a player party.
type Group interface {
	// Members returns every player in the group, including the caller.
	Members() []Living
}

// Protection is an active protect effect: Source shields Target from aggro.
type Protection struct {
	Source Living
	Target Handle
}

// Living is the narrow accessor the brain needs for any entity in the world.
//
// Implementations must be safe for concurrent reads.
type Living interface {
	ID() Handle
	Name() string
	Kind() Kind
	Position() Point
	IsAlive() bool
	// IsActive reports whether the entity is still present in the world.
	IsActive() bool
	Level() int
	// IsGreyConTo reports whether other is too weak to be worth engaging for this entity.
	IsGreyConTo(other Living) bool
	Realm() Realm
	// Faction returns nil when the entity has no faction.
	Faction() Faction
	// Group returns nil when the entity is not grouped.
	Group() Group
	// Owner returns the controlling master of a pet, or nil.
	Owner() Living
	// Pet returns the controlled pet of this entity, or nil.
	Pet() Living
	IsConfused() bool
	IsIncapacitated() bool
	IsSitting() bool
	InCombat() bool
	IsStealthed() bool
	// ProtectLevel returns the level of the protect ability, 0 when untrained.
	ProtectLevel() int
	// Protections returns the protect effects currently shielding this entity.
	Protections() []Protection
}

// World is the spatial and rules view of the surrounding game.
type World interface {
	// Lookup resolves h to a live entity. It returns false when the entity was
	// removed from the world.
	Lookup(h Handle) (Living, bool)
	PlayersInRadius(center Point, radius float64) []Living
	NPCsInRadius(center Point, radius float64) []Living
	IsAllowedToAttack(attacker, defender Living, checkRealm bool) bool
}

// Mover drives the owning entity's movement.
type Mover interface {
	Follow(target Living, minDist, maxDist float64)
	StopFollowing()
}

// EventName identifies a world event delivered to brains.
type EventName string

const (
	EventArrived      EventName = "arrived_at_target"
	EventTakeDamage   EventName = "take_damage"
	EventCombatStart  EventName = "combat_start"
	EventCombatEnd    EventName = "combat_end"
	EventHealthChange EventName = "health_change"
	EventOwnerAttack  EventName = "owner_attack"
	EventEnemyHealed  EventName = "enemy_healed"
)

// Event is a notification fanned out to every Action of a brain.
type Event struct {
	Name   EventName
	Sender Handle
	Args   any
}

// DamageArgs accompanies EventTakeDamage and EventOwnerAttack. Sender is the attacker.
type DamageArgs struct {
	Amount   int64
	Critical int64
}

// Total returns the damage dealt, critical part included.
func (d DamageArgs) Total() int64 { return saturatingAdd(d.Amount, d.Critical) }

// HealthArgs accompanies EventHealthChange.
type HealthArgs struct {
	// Percent is the receiver's remaining health in [0, 100].
	Percent int
}

// HealArgs accompanies EventEnemyHealed. Sender is the healer.
type HealArgs struct {
	Target Handle
	Amount int64
}

// available reports whether l is non-nil and still active in the world.
func available(l Living) bool {
	return l != nil && l.IsActive()
}

// withinRadius reports whether a and b are at most radius apart.
func withinRadius(a, b Living, radius float64) bool {
	return a.Position().DistanceTo(b.Position()) <= radius
}

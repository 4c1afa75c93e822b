package ai

const (
	// MinAggroLevel means never aggressive.
	MinAggroLevel = 0
	// MaxAggroLevel means always aggressive.
	MaxAggroLevel = 100
)

func clampAggroLevel(v int) int {
	switch {
	case v < MinAggroLevel:
		return MinAggroLevel
	case v > MaxAggroLevel:
		return MaxAggroLevel
	default:
		return v
	}
}

// AggroLevelToTarget returns how likely owner is to attack target on sight,
// in [0, 100]. aggroLevel is owner's configured base aggression.
//
// The result is 0 when target is inactive, not attackable, a realm-less
// unfactioned NPC, or when owner cons grey to target (or to target's master).
// Otherwise it is aggroLevel plus the faction term, clamped:
//   - player target: owner faction's aggro toward the player;
//   - controlled NPC: aggro toward its player master, or 100 when the master
//     is an NPC of an enemy faction;
//   - other NPC: 100 when its faction is an enemy of owner's faction.
func AggroLevelToTarget(owner, target Living, world World, aggroLevel int) int {
	if !available(target) {
		return MinAggroLevel
	}
	if !world.IsAllowedToAttack(owner, target, true) {
		return MinAggroLevel
	}
	if target.Kind() == KindNPC {
		if master := target.Owner(); master != nil && owner.IsGreyConTo(master) {
			return MinAggroLevel
		}
	}
	if owner.IsGreyConTo(target) {
		return MinAggroLevel
	}
	if target.Kind() == KindNPC && target.Realm() == RealmNone && target.Faction() == nil {
		return MinAggroLevel
	}

	return clampAggroLevel(clampAggroLevel(aggroLevel) + factionAggro(owner.Faction(), target))
}

func factionAggro(f Faction, target Living) int {
	if f == nil {
		return MinAggroLevel
	}
	if target.Kind() == KindPlayer {
		return f.AggroToPlayer(target)
	}
	if master := target.Owner(); master != nil {
		switch {
		case master.Kind() == KindPlayer:
			return f.AggroToPlayer(master)
		case master.Faction() != nil && f.IsEnemy(master.Faction()):
			return MaxAggroLevel
		}
		return MinAggroLevel
	}
	if tf := target.Faction(); tf != nil && f.IsEnemy(tf) {
		return MaxAggroLevel
	}
	return MinAggroLevel
}

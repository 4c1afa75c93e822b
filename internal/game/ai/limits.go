package ai

import (
	"fmt"
	"time"
)

// Limits bounds the work and memory of one brain.
type Limits struct {
	// ThinkInterval is the period of the external tick driving Think.
	ThinkInterval time.Duration
	// MaxQueueSize bounds the action queue and the size of one batch.
	MaxQueueSize int
	// MaxAggroListSize bounds the aggro table after cleanup.
	MaxAggroListSize int
	// MaxAggroListDistance evicts aggro entries farther than this from the owner.
	MaxAggroListDistance float64
	// MaxAggroDistance caps the scan range and target selection range.
	MaxAggroDistance float64
	// MaxPetAggroDistance caps target selection for controlled NPCs.
	MaxPetAggroDistance float64
	// MinAggroAmount is the floor entry given to group members and their pets.
	MinAggroAmount int64
	// ProtectRange is the maximum protector distance for protect mitigation.
	ProtectRange float64
	// MaxProtectLevel clamps the protect ability tier.
	MaxProtectLevel int
}

// DefaultLimits returns the limits used when no configuration overrides them.
func DefaultLimits() Limits {
	return Limits{
		ThinkInterval:        1500 * time.Millisecond,
		MaxQueueSize:         20,
		MaxAggroListSize:     100,
		MaxAggroListDistance: 6000,
		MaxAggroDistance:     3600,
		MaxPetAggroDistance:  512,
		MinAggroAmount:       1,
		ProtectRange:         1000,
		MaxProtectLevel:      4,
	}
}

// BatchBudget is the most playback time one think cycle may commit.
func (l Limits) BatchBudget() time.Duration {
	return 2 * l.ThinkInterval
}

// Validate checks every limit.
//
// Postcondition: Returns nil iff all limits are usable by a Brain.
func (l Limits) Validate() error {
	switch {
	case l.ThinkInterval <= 0:
		return fmt.Errorf("ai.Limits: think interval must be > 0, got %s", l.ThinkInterval)
	case l.MaxQueueSize < 1:
		return fmt.Errorf("ai.Limits: max queue size must be >= 1, got %d", l.MaxQueueSize)
	case l.MaxAggroListSize < 1:
		return fmt.Errorf("ai.Limits: max aggro list size must be >= 1, got %d", l.MaxAggroListSize)
	case l.MaxAggroListDistance <= 0:
		return fmt.Errorf("ai.Limits: max aggro list distance must be > 0, got %g", l.MaxAggroListDistance)
	case l.MaxAggroDistance < 0 || l.MaxPetAggroDistance < 0 || l.ProtectRange < 0:
		return fmt.Errorf("ai.Limits: distances must not be negative")
	case l.MinAggroAmount < 0:
		return fmt.Errorf("ai.Limits: min aggro amount must be >= 0, got %d", l.MinAggroAmount)
	case l.MaxProtectLevel < 0:
		return fmt.Errorf("ai.Limits: max protect level must be >= 0, got %d", l.MaxProtectLevel)
	}
	return nil
}

package ai

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// ScanAggroAction looks for hostile players and NPCs around the body, adds
// them to the aggro table and picks the most hated one as the current target.
// Selecting a target while idle moves the brain to StateIncoming.
type ScanAggroAction struct {
	BaseAction
	brain *Brain
}

// NewScanAggroAction creates a scan action bound to brain.
//
// Precondition: brain must not be nil.
func NewScanAggroAction(brain *Brain, duration time.Duration) *ScanAggroAction {
	if brain == nil {
		panic("ai.NewScanAggroAction: brain must not be nil")
	}
	return &ScanAggroAction{BaseAction: NewBaseAction("scan_aggro", duration), brain: brain}
}

// Analyze scores high while idle and low otherwise; it never runs for a dead
// body or one with neither aggression nor faction.
func (s *ScanAggroAction) Analyze() (Score, error) {
	body := s.brain.Body()
	if !available(body) || !body.IsAlive() {
		return ScoreMin, nil
	}
	if s.brain.AggroRange() <= 0 {
		return ScoreMin, nil
	}
	if s.brain.AggroLevel() <= MinAggroLevel && body.Faction() == nil {
		return ScoreMin, nil
	}
	if s.brain.State() == StateIdle {
		return ScoreHigh, nil
	}
	return ScoreLow, nil
}

// Execute scans players then NPCs within the aggro range.
func (s *ScanAggroAction) Execute() error {
	b := s.brain
	body := b.Body()
	radius := b.AggroRange()
	if radius <= 0 || !available(body) {
		return nil
	}
	table := b.Aggro()
	world := b.World()

	added := 0
	for _, p := range world.PlayersInRadius(body.Position(), radius) {
		if !s.candidate(p) {
			continue
		}
		if b.CalculateAggroLevelToTarget(p) > 0 {
			table.Add(p, int64(p.Level())<<1)
			added++
		}
	}
	for _, n := range world.NPCsInRadius(body.Position(), radius) {
		if n.ID() == body.ID() || !s.candidate(n) {
			continue
		}
		if b.CalculateAggroLevelToTarget(n) > 0 {
			table.Add(n, int64(n.Level()+1)<<1)
			added++
		}
	}

	maxDist := b.Limits().MaxAggroDistance
	if body.Owner() != nil {
		maxDist = b.Limits().MaxPetAggroDistance
	}
	target, ok := table.MostHated(maxDist)
	if !ok {
		return nil
	}
	b.SetTarget(target.ID())
	if b.State() == StateIdle {
		if err := b.SetState(StateIncoming); err != nil && !errors.Is(err, ErrInvalidTransition) {
			return err
		}
	}
	b.Logger().Debug("scan selected target",
		zap.String("target", string(target.ID())),
		zap.Int("added", added),
	)
	return nil
}

// candidate filters out targets already tracked or not worth scanning.
func (s *ScanAggroAction) candidate(l Living) bool {
	if !available(l) || !l.IsAlive() || l.IsStealthed() {
		return false
	}
	_, tracked := s.brain.Aggro().Get(l.ID())
	return !tracked
}

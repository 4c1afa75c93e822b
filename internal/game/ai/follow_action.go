package ai

import (
	"sync"
	"time"
)

// FollowOwnerAction keeps a controlled NPC close to its master.
type FollowOwnerAction struct {
	BaseAction
	brain   *Brain
	mover   Mover
	minDist float64
	maxDist float64

	mu        sync.Mutex
	following bool
}

// NewFollowOwnerAction creates a follow action.
//
// Precondition: brain and mover must not be nil; 0 <= minDist <= maxDist.
func NewFollowOwnerAction(brain *Brain, mover Mover, minDist, maxDist float64, duration time.Duration) *FollowOwnerAction {
	if brain == nil || mover == nil {
		panic("ai.NewFollowOwnerAction: brain and mover must not be nil")
	}
	if minDist < 0 || maxDist < minDist {
		panic("ai.NewFollowOwnerAction: require 0 <= minDist <= maxDist")
	}
	return &FollowOwnerAction{
		BaseAction: NewBaseAction("follow_owner", duration),
		brain:      brain,
		mover:      mover,
		minDist:    minDist,
		maxDist:    maxDist,
	}
}

// Analyze scores average when the owner is live and out of range.
func (f *FollowOwnerAction) Analyze() (Score, error) {
	body := f.brain.Body()
	owner := body.Owner()
	if !available(owner) || !body.IsAlive() {
		return ScoreMin, nil
	}
	if f.Following() || withinRadius(body, owner, f.maxDist) {
		return ScoreMin, nil
	}
	return ScoreAverage, nil
}

// Execute starts following the owner.
func (f *FollowOwnerAction) Execute() error {
	owner := f.brain.Body().Owner()
	if !available(owner) {
		return nil
	}
	f.mover.Follow(owner, f.minDist, f.maxDist)
	f.mu.Lock()
	f.following = true
	f.mu.Unlock()
	return nil
}

// Following reports whether a follow is in progress.
func (f *FollowOwnerAction) Following() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following
}

// Notify stops following once the body arrived at its owner.
func (f *FollowOwnerAction) Notify(ev Event) {
	if ev.Name != EventArrived {
		return
	}
	owner := f.brain.Body().Owner()
	if owner == nil || ev.Sender != owner.ID() {
		return
	}
	f.mu.Lock()
	was := f.following
	f.following = false
	f.mu.Unlock()
	if was {
		f.mover.StopFollowing()
	}
}

package ai

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Score ranks candidate actions; higher runs first.
type Score int64

const (
	// ScoreMin excludes an action from scheduling.
	ScoreMin Score = math.MinInt64
	// ScoreMax always sorts ahead of every ordinary score.
	ScoreMax Score = math.MaxInt64
	// ScoreLow, ScoreAverage and ScoreHigh are conventional ordinary levels.
	ScoreLow     Score = math.MinInt64 >> 1
	ScoreAverage Score = 0
	ScoreHigh    Score = math.MaxInt64 >> 1
)

// Action is one schedulable unit of NPC behavior.
//
// An Action is created once per brain and may be registered in several state
// catalogs of that brain. It is never shared between brains.
type Action interface {
	// Name identifies the action within its brain.
	Name() string
	// Analyze scores the action against the current world. An error excludes it.
	Analyze() (Score, error)
	// Execute performs the action. It must bound its own running time.
	Execute() error
	// Break cancels a scheduled run of the action.
	Break()
	// Breaking reports whether Break was called since the action was last scheduled.
	Breaking() bool
	// Duration is how long the brain waits after this action before the next one.
	Duration() time.Duration
	// Notify delivers a world event. Unknown events must be ignored.
	Notify(ev Event)
}

// BaseAction implements the bookkeeping half of Action. Concrete actions
// embed it and supply Analyze and Execute.
type BaseAction struct {
	name     string
	duration time.Duration
	breaking atomic.Bool
}

// NewBaseAction returns a BaseAction with the given name and pacing duration.
//
// Precondition: name must be non-empty.
// Postcondition: negative durations are stored as zero.
func NewBaseAction(name string, duration time.Duration) BaseAction {
	if duration < 0 {
		duration = 0
	}
	return BaseAction{name: name, duration: duration}
}

// Name returns the action name.
func (b *BaseAction) Name() string { return b.name }

// Duration returns the pacing duration.
func (b *BaseAction) Duration() time.Duration { return b.duration }

// Break flags the action so that a pending playback skips it.
func (b *BaseAction) Break() { b.breaking.Store(true) }

// Breaking reports whether Break was called.
func (b *BaseAction) Breaking() bool { return b.breaking.Load() }

// rearm clears the breaking flag; the brain calls it when the action is enqueued.
func (b *BaseAction) rearm() { b.breaking.Store(false) }

// Notify ignores every event.
func (b *BaseAction) Notify(Event) {}

type rearmer interface{ rearm() }

// safeAnalyze calls a.Analyze, converting panics and errors to ScoreMin.
func safeAnalyze(a Action) (score Score, err error) {
	defer func() {
		if r := recover(); r != nil {
			score, err = ScoreMin, fmt.Errorf("analyze %q panicked: %v", a.Name(), r)
		}
	}()
	score, err = a.Analyze()
	if err != nil {
		return ScoreMin, err
	}
	return score, nil
}

// safeExecute calls a.Execute, converting panics to errors.
func safeExecute(a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("execute %q panicked: %v", a.Name(), r)
		}
	}()
	return a.Execute()
}

// durationOf returns a's duration clamped at zero.
func durationOf(a Action) time.Duration {
	if d := a.Duration(); d > 0 {
		return d
	}
	return 0
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by operations on a brain that reached StateStopping.
var ErrStopped = errors.New("brain is stopped")

// Brain is the decision loop of one NPC.
//
// Think is driven by an external tick. Selected actions are played back one
// at a time by a goroutine owned by the brain, each followed by a pause of
// its Duration. One mutex guards the state, catalogs, aggro table, queue and
// the thinking/playing flags.
//
// Invariant: at most one think cycle and one playback goroutine run at a time.
type Brain struct {
	mu      sync.Mutex
	body    Living
	world   World
	limits  Limits
	logger  *zap.Logger
	metrics Metrics

	tracker  StateTracker
	catalogs map[BehaviorState]*ActionCatalog
	actions  []Action
	known    map[Action]struct{}
	aggro    *AggroTable
	queue    *ActionQueue

	aggroLevel int
	aggroRange float64

	thinking bool
	playing  bool
	started  bool
	stopped  atomic.Bool
	wake     chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewBrain creates an idle, unstarted brain for body.
//
// Precondition: body and world must not be nil; limits must validate.
// Postcondition: every non-terminal state has an empty catalog; a nil logger
// is replaced with a no-op logger.
func NewBrain(body Living, world World, limits Limits, logger *zap.Logger) *Brain {
	if body == nil {
		panic("ai.NewBrain: body must not be nil")
	}
	if world == nil {
		panic("ai.NewBrain: world must not be nil")
	}
	if err := limits.Validate(); err != nil {
		panic("ai.NewBrain: " + err.Error())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Brain{
		body:     body,
		world:    world,
		limits:   limits,
		logger:   logger.With(zap.String("npc", string(body.ID()))),
		metrics:  NopMetrics{},
		catalogs: make(map[BehaviorState]*ActionCatalog, len(activeStates)),
		known:    make(map[Action]struct{}),
		queue:    NewActionQueue(limits.MaxQueueSize),
		wake:     make(chan struct{}, 1),
	}
	for _, s := range activeStates {
		b.catalogs[s] = NewActionCatalog()
	}
	b.aggro = NewAggroTable(body, world, limits, &b.mu)
	return b
}

// SetMetrics replaces the metrics sink. nil restores NopMetrics.
func (b *Brain) SetMetrics(m Metrics) {
	if m == nil {
		m = NopMetrics{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = m
}

// Body returns the entity this brain controls.
func (b *Brain) Body() Living { return b.body }

// World returns the world the brain queries.
func (b *Brain) World() World { return b.world }

// Limits returns the brain's limits.
func (b *Brain) Limits() Limits { return b.limits }

// Logger returns the brain's logger, already tagged with the npc handle.
func (b *Brain) Logger() *zap.Logger { return b.logger }

// Aggro returns the brain's aggro table. It shares the brain's mutex, so it
// must not be used while holding any lock the brain itself takes.
func (b *Brain) Aggro() *AggroTable { return b.aggro }

// Register adds a to the catalog of every given state.
//
// Precondition: a must be a comparable (pointer) value.
// Postcondition: Returns an error for StateStopping or after Stop.
func (b *Brain) Register(a Action, states ...BehaviorState) error {
	if a == nil {
		return errors.New("ai.Brain.Register: action must not be nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker.State() == StateStopping {
		return ErrStopped
	}
	for _, s := range states {
		c, ok := b.catalogs[s]
		if !ok {
			return fmt.Errorf("ai.Brain.Register: state %s has no catalog", s)
		}
		c.Register(a)
	}
	if _, ok := b.known[a]; !ok {
		b.known[a] = struct{}{}
		b.actions = append(b.actions, a)
	}
	return nil
}

// Catalog returns a copy of the entries registered under state.
func (b *Brain) Catalog(state BehaviorState) []CatalogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.catalogs[state]; ok {
		return c.Entries()
	}
	return nil
}

// State returns the current behavior state.
func (b *Brain) State() BehaviorState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracker.State()
}

// SetState transitions to s. Transitioning to StateStopping is equivalent to Stop.
//
// Postcondition: Returns an error wrapping ErrInvalidTransition for illegal edges.
func (b *Brain) SetState(s BehaviorState) error {
	if s == StateStopping {
		b.Stop()
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.tracker.State()
	if err := b.tracker.Transition(s); err != nil {
		return err
	}
	if from != s {
		b.logger.Debug("brain state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", s),
		)
	}
	return nil
}

// Escalate walks the state graph forward until the brain reaches to, one
// legal edge at a time. A brain already at or past to is left alone.
//
// Precondition: to must not be StateStopping; use Stop.
// Postcondition: Returns ErrStopped once the brain is stopping.
func (b *Brain) Escalate(to BehaviorState) error {
	if to == StateStopping {
		return errors.New("ai.Brain.Escalate: use Stop to reach stopping")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	from := b.tracker.State()
	if from == StateStopping {
		return ErrStopped
	}
	if from >= to {
		return nil
	}
	for s := from + 1; s <= to; s++ {
		if err := b.tracker.Transition(s); err != nil {
			return err
		}
	}
	b.logger.Debug("brain state escalated",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return nil
}

// Target returns the current hostile target handle.
func (b *Brain) Target() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracker.Target()
}

// SetTarget replaces the current hostile target.
func (b *Brain) SetTarget(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tracker.State() == StateStopping {
		return
	}
	b.tracker.SetTarget(h)
}

// AggroLevel returns the configured base aggression in [0, 100].
func (b *Brain) AggroLevel() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aggroLevel
}

// SetAggroLevel sets the base aggression, clamped to [0, 100].
func (b *Brain) SetAggroLevel(v int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aggroLevel = clampAggroLevel(v)
}

// AggroRange returns the scan radius.
func (b *Brain) AggroRange() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aggroRange
}

// SetAggroRange sets the scan radius, clamped to [0, MaxAggroDistance].
func (b *Brain) SetAggroRange(r float64) {
	if r < 0 {
		r = 0
	}
	if r > b.limits.MaxAggroDistance {
		r = b.limits.MaxAggroDistance
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aggroRange = r
}

// CalculateAggroLevelToTarget returns the chance in [0, 100] that the body
// attacks target on sight.
func (b *Brain) CalculateAggroLevelToTarget(target Living) int {
	return AggroLevelToTarget(b.body, target, b.world, b.AggroLevel())
}

// IsThinking reports whether a think cycle is in flight.
func (b *Brain) IsThinking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.thinking
}

// IsPlaying reports whether a playback batch is in progress.
func (b *Brain) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

// QueueLen returns the number of actions awaiting playback.
func (b *Brain) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.Len()
}

// PlayRemainingTime returns the summed durations of queued actions while
// playing, zero otherwise.
func (b *Brain) PlayRemainingTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.playing {
		return 0
	}
	return b.queue.RemainingTime()
}

// Think runs one decision cycle: table and queue maintenance, rescoring of
// the current state's catalog, selection of the best actions and handoff to
// playback.
//
// It silently does nothing when stopped, when another cycle is in flight, or
// when playback still has more than ThinkInterval of queued work.
func (b *Brain) Think() {
	b.mu.Lock()
	switch {
	case b.tracker.State() == StateStopping:
		b.metrics.ThinkSkipped(SkipStopped)
		b.mu.Unlock()
		return
	case b.thinking:
		b.metrics.ThinkSkipped(SkipReentrant)
		b.mu.Unlock()
		return
	case b.playing && b.queue.RemainingTime() > b.limits.ThinkInterval:
		b.metrics.ThinkSkipped(SkipBusyPlaying)
		b.mu.Unlock()
		return
	}
	b.thinking = true
	state := b.tracker.State()
	catalog := b.catalogs[state]
	candidates := catalog.Actions()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.thinking = false
		b.mu.Unlock()
	}()

	if n := b.aggro.Cleanup(b.limits.MaxAggroListSize, b.limits.MaxAggroListDistance); n > 0 {
		b.metricsSink().AggroEvicted(n)
	}

	// Analyze runs unlocked: actions may read the aggro table or change state.
	scores := make(map[Action]Score, len(candidates))
	for _, a := range candidates {
		s, err := safeAnalyze(a)
		if err != nil {
			b.logger.Warn("action analyze failed",
				zap.String("action", a.Name()),
				zap.Error(err),
			)
			b.metricsSink().ActionFault(a.Name(), "analyze")
		}
		scores[a] = s
	}

	b.mu.Lock()
	if b.tracker.State() == StateStopping {
		b.mu.Unlock()
		return
	}
	if dropped := b.queue.Trim(b.limits.MaxQueueSize); len(dropped) > 0 {
		b.logger.Debug("dropped overflowing actions", zap.Int("count", len(dropped)))
	}
	catalog.SetScores(scores)
	scheduled := b.enqueueLocked(catalog.Best(b.limits.MaxQueueSize))
	kick := b.started && !b.playing && b.queue.Len() > 0
	if kick {
		b.playing = true
	}
	b.metrics.ThinkCompleted(state, scheduled)
	b.mu.Unlock()

	b.logger.Debug("think cycle complete",
		zap.Stringer("state", state),
		zap.Int("scheduled", scheduled),
	)
	if kick {
		b.signal()
	}
}

// enqueueLocked appends selected actions in order while the batch duration
// stays within the budget. Caller holds mu.
func (b *Brain) enqueueLocked(selected []Action) int {
	budget := b.limits.BatchBudget()
	var total time.Duration
	n := 0
	for _, a := range selected {
		d := durationOf(a)
		if total+d > budget {
			break
		}
		total += d
		if r, ok := a.(rearmer); ok {
			r.rearm()
		}
		b.queue.Push(a)
		n++
	}
	return n
}

func (b *Brain) metricsSink() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

func (b *Brain) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Start launches the playback goroutine. It stops when ctx is cancelled or
// Stop is called.
//
// Postcondition: Returns ErrStopped after Stop; a second Start is a no-op
// while the goroutine runs. After ctx is cancelled the brain may be started
// again and keeps its queue.
func (b *Brain) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.tracker.State() == StateStopping {
		b.mu.Unlock()
		return ErrStopped
	}
	if b.started {
		b.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.started = true
	b.done = make(chan struct{})
	done := b.done
	kick := !b.playing && b.queue.Len() > 0
	if kick {
		b.playing = true
	}
	b.mu.Unlock()

	go b.run(ctx, done)
	if kick {
		b.signal()
	}
	b.logger.Info("brain started")
	return nil
}

// Done returns a channel closed when the playback goroutine exits, or nil if
// the brain was never started.
func (b *Brain) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// run is the playback goroutine; it alone owns the pacing timer.
func (b *Brain) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			if b.done == done {
				b.playing = false
				b.started = false
				b.cancel = nil
			}
			b.mu.Unlock()
			return
		case <-b.wake:
		case <-timer.C:
		}
		if next, ok := b.playNext(); ok {
			timer.Reset(next)
		}
	}
}

// playNext dequeues and runs the head action.
//
// Postcondition: Returns (duration, true) when an action was consumed and the
// timer must be re-armed; (0, false) ends the batch and clears playing.
func (b *Brain) playNext() (time.Duration, bool) {
	b.mu.Lock()
	if b.tracker.State() == StateStopping {
		b.playing = false
		b.mu.Unlock()
		return 0, false
	}
	a, ok := b.queue.Pop()
	if !ok {
		b.playing = false
		b.mu.Unlock()
		return 0, false
	}
	metrics := b.metrics
	b.mu.Unlock()

	if a.Breaking() || b.stopped.Load() {
		metrics.ActionBroken(a.Name())
		b.logger.Debug("skipped breaking action", zap.String("action", a.Name()))
		return durationOf(a), true
	}
	if err := safeExecute(a); err != nil {
		b.logger.Warn("action execute failed",
			zap.String("action", a.Name()),
			zap.Error(err),
		)
		metrics.ActionFault(a.Name(), "execute")
	}
	metrics.ActionExecuted(a.Name())
	return durationOf(a), true
}

// Stop moves the brain to StateStopping, breaks every queued action in queue
// order, halts playback and closes the aggro table. Stop does not wait for
// playback: an Execute that is running, or whose action was popped just
// before Stop, may still run once after Stop returns. Wait on Done to observe
// the end of playback. Aggro credited by such a late Execute is discarded.
//
// Postcondition: Returns false when the brain was already stopped.
func (b *Brain) Stop() bool {
	b.mu.Lock()
	if b.tracker.State() == StateStopping {
		b.mu.Unlock()
		return false
	}
	b.stopped.Store(true)
	_ = b.tracker.Transition(StateStopping)
	pending := b.queue.Drain()
	b.aggro.closeLocked()
	b.playing = false
	cancel := b.cancel
	metrics := b.metrics
	b.mu.Unlock()

	for _, a := range pending {
		a.Break()
		metrics.ActionBroken(a.Name())
	}
	if cancel != nil {
		cancel()
	}
	b.logger.Info("brain stopped", zap.Int("broken_actions", len(pending)))
	return true
}

// Notify delivers ev to every registered action exactly once. A panicking
// action is logged and skipped.
func (b *Brain) Notify(ev Event) {
	b.mu.Lock()
	if b.tracker.State() == StateStopping {
		b.mu.Unlock()
		return
	}
	actions := make([]Action, len(b.actions))
	copy(actions, b.actions)
	b.mu.Unlock()

	for _, a := range actions {
		b.notifyOne(a, ev)
	}
}

func (b *Brain) notifyOne(a Action, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("action notify panicked",
				zap.String("action", a.Name()),
				zap.String("event", string(ev.Name)),
				zap.Any("panic", r),
			)
		}
	}()
	a.Notify(ev)
}

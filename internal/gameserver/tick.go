// Package gameserver drives the simulation clock: world callbacks and every
// registered NPC brain are ticked on one shared interval.
package gameserver

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// Thinker is anything that runs one decision cycle per tick.
type Thinker interface {
	Think()
}

// TickManager runs a periodic tick. Each tick first invokes every named
// callback, then calls Think on every registered brain.
//
// Invariant: all callbacks and brains are invoked at most once per tick interval.
type TickManager struct {
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	ticks  map[string]func()
	brains map[ai.Handle]Thinker

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0; logger must be non-nil.
func NewTickManager(interval time.Duration, logger *zap.Logger) *TickManager {
	if interval <= 0 {
		panic("gameserver.NewTickManager: interval must be > 0")
	}
	if logger == nil {
		panic("gameserver.NewTickManager: logger must not be nil")
	}
	return &TickManager{
		interval: interval,
		logger:   logger,
		ticks:    make(map[string]func()),
		brains:   make(map[ai.Handle]Thinker),
		stopCh:   make(chan struct{}),
	}
}

// RegisterTick registers a callback under name. Replaces any existing callback.
func (z *TickManager) RegisterTick(name string, fn func()) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.ticks[name] = fn
}

// UnregisterTick removes the callback registered under name.
func (z *TickManager) UnregisterTick(name string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.ticks, name)
}

// Register adds the brain of entity id. Replaces any existing brain.
func (z *TickManager) Register(id ai.Handle, t Thinker) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.brains[id] = t
}

// Unregister removes the brain of entity id.
func (z *TickManager) Unregister(id ai.Handle) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.brains, id)
}

// Len returns the number of registered brains.
func (z *TickManager) Len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.brains)
}

// Start runs the tick loop until ctx is cancelled or Stop is called.
//
// Postcondition: Returns ctx.Err() on cancellation and nil after Stop.
func (z *TickManager) Start(ctx context.Context) error {
	ticker := time.NewTicker(z.interval)
	defer ticker.Stop()
	z.logger.Info("tick loop started", zap.Duration("interval", z.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-z.stopCh:
			return nil
		case <-ticker.C:
			z.tick()
		}
	}
}

// Stop ends the tick loop. Safe to call more than once.
func (z *TickManager) Stop() {
	z.stopOnce.Do(func() { close(z.stopCh) })
}

func (z *TickManager) tick() {
	z.mu.Lock()
	names := make([]string, 0, len(z.ticks))
	for name := range z.ticks {
		names = append(names, name)
	}
	sort.Strings(names)
	callbacks := make([]func(), len(names))
	for i, name := range names {
		callbacks[i] = z.ticks[name]
	}
	thinkers := make([]Thinker, 0, len(z.brains))
	for _, t := range z.brains {
		thinkers = append(thinkers, t)
	}
	z.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	for _, t := range thinkers {
		t.Think()
	}
}

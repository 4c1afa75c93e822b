package gameserver_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/npcbrain/internal/gameserver"
)

type countingThinker struct{ n atomic.Int64 }

func (c *countingThinker) Think() { c.n.Add(1) }

func startTicks(t *testing.T, tm *gameserver.TickManager, ctx context.Context) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- tm.Start(ctx) }()
	return errCh
}

func TestNewTickManager_Panics(t *testing.T) {
	assert.Panics(t, func() { gameserver.NewTickManager(0, zaptest.NewLogger(t)) })
	assert.Panics(t, func() { gameserver.NewTickManager(time.Second, nil) })
}

func TestTickManager_StartReturnsOnCancel(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := startTicks(t, tm, ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestTickManager_StopReturnsNil(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	errCh := startTicks(t, tm, context.Background())
	tm.Stop()
	tm.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestTickManager_BrainsThinkEachTick(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	a, b := &countingThinker{}, &countingThinker{}
	tm.Register("a", a)
	tm.Register("b", b)
	assert.Equal(t, 2, tm.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startTicks(t, tm, ctx)

	require.Eventually(t, func() bool {
		return a.n.Load() >= 3 && b.n.Load() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestTickManager_CallbacksRunBeforeBrains(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	var mu sync.Mutex
	var order []string
	tm.RegisterTick("world", func() {
		mu.Lock()
		order = append(order, "world")
		mu.Unlock()
	})
	tm.Register("npc", thinkFunc(func() {
		mu.Lock()
		order = append(order, "npc")
		mu.Unlock()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startTicks(t, tm, ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 2
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"world", "npc"}, order[:2])
	mu.Unlock()
}

type thinkFunc func()

func (f thinkFunc) Think() { f() }

func TestTickManager_UnregisterStopsBrain(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	th := &countingThinker{}
	tm.Register("a", th)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startTicks(t, tm, ctx)

	require.Eventually(t, func() bool { return th.n.Load() >= 1 }, time.Second, 5*time.Millisecond)
	tm.Unregister("a")
	assert.Equal(t, 0, tm.Len())
	after := th.n.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, th.n.Load(), after+1)
}

func TestTickManager_UnregisterTickStopsCallback(t *testing.T) {
	tm := gameserver.NewTickManager(10*time.Millisecond, zaptest.NewLogger(t))
	var count atomic.Int64
	tm.RegisterTick("z1", func() { count.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startTicks(t, tm, ctx)

	require.Eventually(t, func() bool { return count.Load() >= 1 }, time.Second, 5*time.Millisecond)
	tm.UnregisterTick("z1")
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, count.Load(), after+1)
}

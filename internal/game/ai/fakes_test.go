package ai_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// fakeLiving is a mutable test entity.
type fakeLiving struct {
	mu          sync.RWMutex
	id          ai.Handle
	kind        ai.Kind
	pos         ai.Point
	alive       bool
	active      bool
	level       int
	realm       ai.Realm
	faction     ai.Faction
	group       ai.Group
	owner       ai.Living
	pet         ai.Living
	confused    bool
	incap       bool
	sitting     bool
	inCombat    bool
	stealthed   bool
	protect     int
	protections []ai.Protection
	greyTo      map[ai.Handle]bool
}

func newLiving(id string, kind ai.Kind, x float64) *fakeLiving {
	return &fakeLiving{
		id:     ai.Handle(id),
		kind:   kind,
		pos:    ai.Point{X: x},
		alive:  true,
		active: true,
		level:  10,
		realm:  ai.RealmAlbion,
		greyTo: make(map[ai.Handle]bool),
	}
}

func npcAt(id string, x float64) *fakeLiving    { return newLiving(id, ai.KindNPC, x) }
func playerAt(id string, x float64) *fakeLiving { return newLiving(id, ai.KindPlayer, x) }

func (f *fakeLiving) ID() ai.Handle { return f.id }
func (f *fakeLiving) Name() string  { return string(f.id) }
func (f *fakeLiving) Kind() ai.Kind { return f.kind }

func (f *fakeLiving) Position() ai.Point {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pos
}

func (f *fakeLiving) IsAlive() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.alive
}

func (f *fakeLiving) IsActive() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

func (f *fakeLiving) Level() int { return f.level }

func (f *fakeLiving) IsGreyConTo(other ai.Living) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.greyTo[other.ID()]
}

func (f *fakeLiving) Realm() ai.Realm            { return f.realm }
func (f *fakeLiving) Faction() ai.Faction        { return f.faction }
func (f *fakeLiving) Group() ai.Group            { return f.group }
func (f *fakeLiving) Owner() ai.Living           { return f.owner }
func (f *fakeLiving) Pet() ai.Living             { return f.pet }
func (f *fakeLiving) IsConfused() bool           { return f.confused }
func (f *fakeLiving) IsIncapacitated() bool      { return f.incap }
func (f *fakeLiving) IsSitting() bool            { return f.sitting }
func (f *fakeLiving) InCombat() bool             { return f.inCombat }
func (f *fakeLiving) IsStealthed() bool          { return f.stealthed }
func (f *fakeLiving) ProtectLevel() int          { return f.protect }
func (f *fakeLiving) Protections() []ai.Protection { return f.protections }

func (f *fakeLiving) moveTo(x float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = ai.Point{X: x}
}

func (f *fakeLiving) deactivate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
}

// fakeWorld resolves handles and answers radius queries from a fixed set.
type fakeWorld struct {
	mu      sync.RWMutex
	byID    map[ai.Handle]*fakeLiving
	order   []ai.Handle
	deny    map[ai.Handle]bool
	removed map[ai.Handle]bool
}

func newWorld(ls ...*fakeLiving) *fakeWorld {
	w := &fakeWorld{
		byID:    make(map[ai.Handle]*fakeLiving),
		deny:    make(map[ai.Handle]bool),
		removed: make(map[ai.Handle]bool),
	}
	for _, l := range ls {
		w.add(l)
	}
	return w
}

func (w *fakeWorld) add(l *fakeLiving) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byID[l.id] = l
	w.order = append(w.order, l.id)
}

func (w *fakeWorld) remove(h ai.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed[h] = true
}

func (w *fakeWorld) Lookup(h ai.Handle) (ai.Living, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	l, ok := w.byID[h]
	if !ok || w.removed[h] {
		return nil, false
	}
	return l, true
}

func (w *fakeWorld) inRadius(kind ai.Kind, center ai.Point, radius float64) []ai.Living {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []ai.Living
	for _, h := range w.order {
		l := w.byID[h]
		if w.removed[h] || l.kind != kind || !l.IsAlive() {
			continue
		}
		if l.Position().DistanceTo(center) <= radius {
			out = append(out, l)
		}
	}
	return out
}

func (w *fakeWorld) PlayersInRadius(c ai.Point, r float64) []ai.Living {
	return w.inRadius(ai.KindPlayer, c, r)
}

func (w *fakeWorld) NPCsInRadius(c ai.Point, r float64) []ai.Living {
	return w.inRadius(ai.KindNPC, c, r)
}

func (w *fakeWorld) IsAllowedToAttack(_, defender ai.Living, _ bool) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.deny[defender.ID()]
}

type fakeFaction struct {
	id      string
	toward  int
	enemies map[string]bool
}

func (f *fakeFaction) ID() string                     { return f.id }
func (f *fakeFaction) AggroToPlayer(ai.Living) int    { return f.toward }
func (f *fakeFaction) IsEnemy(other ai.Faction) bool { return f.enemies[other.ID()] }

type fakeGroup struct{ members []ai.Living }

func (g *fakeGroup) Members() []ai.Living { return g.members }

type fakeMover struct {
	follows atomic.Int32
	stops   atomic.Int32
}

func (m *fakeMover) Follow(ai.Living, float64, float64) { m.follows.Add(1) }
func (m *fakeMover) StopFollowing()                     { m.stops.Add(1) }

// stubAction is a scriptable Action that records calls.
type stubAction struct {
	ai.BaseAction
	score    atomic.Int64
	fail     atomic.Bool
	panics   atomic.Bool
	analyzed atomic.Int32
	executed atomic.Int32
	broken   atomic.Int32
	events   atomic.Int32
	onExec   func()
}

func newStub(name string, score ai.Score, d time.Duration) *stubAction {
	p := &stubAction{BaseAction: ai.NewBaseAction(name, d)}
	p.score.Store(int64(score))
	return p
}

func (p *stubAction) Analyze() (ai.Score, error) {
	p.analyzed.Add(1)
	if p.panics.Load() {
		panic("stub analyze")
	}
	if p.fail.Load() {
		return 0, errors.New("stub analyze failed")
	}
	return ai.Score(p.score.Load()), nil
}

func (p *stubAction) Execute() error {
	p.executed.Add(1)
	if p.onExec != nil {
		p.onExec()
	}
	return nil
}

func (p *stubAction) Break() {
	p.broken.Add(1)
	p.BaseAction.Break()
}

func (p *stubAction) Notify(ai.Event) { p.events.Add(1) }

// testLimits keeps think intervals long so tests control pacing.
func testLimits() ai.Limits {
	l := ai.DefaultLimits()
	l.ThinkInterval = 1500 * time.Millisecond
	return l
}

package ai

import (
	"math"
	"sort"
	"sync"
)

// AggroEntry is one row of an AggroTable snapshot.
type AggroEntry struct {
	Target Handle
	Score  int64
}

type aggroRow struct {
	score int64
	seq   uint64
}

// AggroTable maps hostile candidates to aggression scores for one owner.
//
// Targets are held by Handle and resolved through World on every access, so
// the table never keeps a removed entity alive; unresolvable or inactive
// targets are treated as absent and dropped.
//
// All methods are safe for concurrent use. The locker may be shared with the
// owning Brain so that one mutex guards the whole brain state.
type AggroTable struct {
	mu     sync.Locker
	owner  Living
	world  World
	limits Limits
	rows   map[Handle]*aggroRow
	seq    uint64
	closed bool
}

// NewAggroTable creates an empty table for owner.
//
// Precondition: owner and world must not be nil.
// Postcondition: a nil mu gives the table a private mutex.
func NewAggroTable(owner Living, world World, limits Limits, mu sync.Locker) *AggroTable {
	if owner == nil {
		panic("ai.NewAggroTable: owner must not be nil")
	}
	if world == nil {
		panic("ai.NewAggroTable: world must not be nil")
	}
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &AggroTable{
		mu:     mu,
		owner:  owner,
		world:  world,
		limits: limits,
		rows:   make(map[Handle]*aggroRow),
	}
}

// Add credits amount aggression to target. Negative amounts lower the score.
//
// Rules, in order:
//   - inactive targets, and confused or dead owners, change nothing;
//   - a controlled NPC also credits its live master with amount>>1;
//   - a grouped player hit with amount > 0 gives every other member, and each
//     member's pet, a floor entry of MinAggroAmount when absent;
//   - each capable protector shielding target absorbs
//     floor(0.10 * tier * amount), which is credited to the protector;
//   - the remainder is credited to target.
//
// Add does nothing once the owning brain has stopped.
func (t *AggroTable) Add(target Living, amount int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || !available(target) {
		return
	}
	if t.owner.IsConfused() || !t.owner.IsAlive() {
		return
	}

	switch {
	case target.Kind() == KindNPC && target.Owner() != nil:
		if master := target.Owner(); available(master) {
			t.credit(master.ID(), amount>>1)
		}
	case target.Kind() == KindPlayer && amount > 0:
		t.floorGroup(target)
	}

	if amount > 0 {
		amount = t.mitigate(target, amount)
	}
	t.credit(target.ID(), amount)
}

func (t *AggroTable) floorGroup(player Living) {
	g := player.Group()
	if g == nil {
		return
	}
	for _, member := range g.Members() {
		if !available(member) || member.ID() == player.ID() {
			continue
		}
		t.floor(member.ID())
		if pet := member.Pet(); available(pet) {
			t.floor(pet.ID())
		}
	}
}

func (t *AggroTable) mitigate(target Living, amount int64) int64 {
	for _, p := range target.Protections() {
		if amount <= 0 {
			break
		}
		if p.Target != target.ID() {
			continue
		}
		src := p.Source
		if !available(src) || src.IsIncapacitated() || src.IsSitting() || !src.InCombat() {
			continue
		}
		if !withinRadius(target, src, t.limits.ProtectRange) {
			continue
		}
		tier := src.ProtectLevel()
		if tier > t.limits.MaxProtectLevel {
			tier = t.limits.MaxProtectLevel
		}
		absorbed := int64(math.Floor(0.10 * float64(tier) * float64(amount)))
		if absorbed <= 0 {
			continue
		}
		if absorbed > amount {
			absorbed = amount
		}
		amount -= absorbed
		t.credit(src.ID(), absorbed)
	}
	return amount
}

func (t *AggroTable) credit(h Handle, amount int64) {
	if row, ok := t.rows[h]; ok {
		row.score = saturatingAdd(row.score, amount)
		return
	}
	t.seq++
	t.rows[h] = &aggroRow{score: amount, seq: t.seq}
}

func (t *AggroTable) floor(h Handle) {
	if _, ok := t.rows[h]; ok {
		return
	}
	t.credit(h, t.limits.MinAggroAmount)
}

// resolve returns the live entity for h, dropping the row when it is gone.
// Caller holds mu.
func (t *AggroTable) resolve(h Handle) (Living, bool) {
	l, ok := t.world.Lookup(h)
	if !ok || !available(l) {
		delete(t.rows, h)
		return nil, false
	}
	return l, true
}

// Get returns the score of target.
//
// Postcondition: Returns (0, false) when target has no entry or is no longer active.
func (t *AggroTable) Get(target Handle) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[target]
	if !ok {
		return 0, false
	}
	if _, live := t.resolve(target); !live {
		return 0, false
	}
	return row.score, true
}

// Remove deletes target's entry.
//
// Postcondition: Returns false when there was no entry; this is not an error.
func (t *AggroTable) Remove(target Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[target]; !ok {
		return false
	}
	delete(t.rows, target)
	return true
}

// Clear removes every entry.
func (t *AggroTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[Handle]*aggroRow)
}

// closeLocked empties the table and makes every later Add a no-op.
// Caller holds mu.
func (t *AggroTable) closeLocked() {
	t.closed = true
	t.rows = make(map[Handle]*aggroRow)
}

// Len returns the number of entries, stale ones included.
func (t *AggroTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// HaveAggro reports whether any live target has an entry.
func (t *AggroTable) HaveAggro() bool {
	return len(t.Snapshot()) > 0
}

// Snapshot returns an independent copy of the live entries in insertion order.
func (t *AggroTable) Snapshot() []AggroEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]AggroEntry, 0, len(t.rows))
	for _, h := range t.ordered(false) {
		if _, live := t.resolve(h); !live {
			continue
		}
		out = append(out, AggroEntry{Target: h, Score: t.rows[h].score})
	}
	return out
}

// ordered returns the handles sorted by insertion order, or by ascending
// score then insertion order when byScore is set. Caller holds mu.
func (t *AggroTable) ordered(byScore bool) []Handle {
	hs := make([]Handle, 0, len(t.rows))
	for h := range t.rows {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool {
		a, b := t.rows[hs[i]], t.rows[hs[j]]
		if byScore && a.score != b.score {
			return a.score < b.score
		}
		return a.seq < b.seq
	})
	return hs
}

// Cleanup bounds the table. Stale targets are dropped first; if more than
// maxSize entries remain the lowest scores are evicted (ties: oldest first);
// then every target farther than maxDistance from the owner is evicted.
//
// Postcondition: Len() <= maxSize and every remaining target is within
// maxDistance. Returns the number of evicted entries.
func (t *AggroTable) Cleanup(maxSize int, maxDistance float64) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := len(t.rows)
	for h := range t.rows {
		t.resolve(h)
	}

	if maxSize < 0 {
		maxSize = 0
	}
	if over := len(t.rows) - maxSize; over > 0 {
		for _, h := range t.ordered(true)[:over] {
			delete(t.rows, h)
		}
	}

	for h := range t.rows {
		l, ok := t.world.Lookup(h)
		if !ok || !withinRadius(t.owner, l, maxDistance) {
			delete(t.rows, h)
		}
	}
	return before - len(t.rows)
}

// MostHated returns the preferred target: the live, visible entry with the
// highest score weighted by min(500/distance, 1), within maxDistance.
// Dead or vanished entries are dropped on the way.
func (t *AggroTable) MostHated(maxDistance float64) (Living, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		best     Living
		bestAggr float64
	)
	for _, h := range t.ordered(false) {
		l, live := t.resolve(h)
		if !live {
			continue
		}
		if !l.IsAlive() {
			delete(t.rows, h)
			continue
		}
		if l.IsStealthed() {
			continue
		}
		amount := t.rows[h].score
		if amount <= 0 {
			continue
		}
		dist := t.owner.Position().DistanceTo(l.Position())
		if dist > maxDistance {
			continue
		}
		weight := 1.0
		if dist > 0 {
			weight = math.Min(500/dist, 1)
		}
		if aggr := float64(amount) * weight; aggr > bestAggr {
			best, bestAggr = l, aggr
		}
	}
	return best, best != nil
}

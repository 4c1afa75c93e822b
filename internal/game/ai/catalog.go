package ai

import "sort"

// CatalogEntry pairs an action with the score computed in the last think cycle.
type CatalogEntry struct {
	Action    Action
	LastScore Score
}

// ActionCatalog is the insertion-ordered set of actions available in one
// behavior state.
//
// Invariant: each action appears at most once; order is registration order.
type ActionCatalog struct {
	entries []CatalogEntry
	index   map[Action]int
}

// NewActionCatalog returns an empty catalog.
func NewActionCatalog() *ActionCatalog {
	return &ActionCatalog{index: make(map[Action]int)}
}

// Register appends a with LastScore ScoreMin.
//
// Postcondition: Returns false and leaves the catalog unchanged when a is
// already registered.
func (c *ActionCatalog) Register(a Action) bool {
	if _, dup := c.index[a]; dup {
		return false
	}
	c.index[a] = len(c.entries)
	c.entries = append(c.entries, CatalogEntry{Action: a, LastScore: ScoreMin})
	return true
}

// Len returns the number of registered actions.
func (c *ActionCatalog) Len() int { return len(c.entries) }

// Contains reports whether a is registered.
func (c *ActionCatalog) Contains(a Action) bool {
	_, ok := c.index[a]
	return ok
}

// Score returns the last computed score of a, or (ScoreMin, false).
func (c *ActionCatalog) Score(a Action) (Score, bool) {
	i, ok := c.index[a]
	if !ok {
		return ScoreMin, false
	}
	return c.entries[i].LastScore, true
}

// Entries returns a copy of the entries in registration order.
func (c *ActionCatalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Actions returns the registered actions in registration order.
func (c *ActionCatalog) Actions() []Action {
	out := make([]Action, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Action
	}
	return out
}

// SetScores overwrites LastScore for every action present in scores.
func (c *ActionCatalog) SetScores(scores map[Action]Score) {
	for a, s := range scores {
		if i, ok := c.index[a]; ok {
			c.entries[i].LastScore = s
		}
	}
}

// Best returns at most max actions scoring strictly above ScoreMin, highest
// first. Equal scores keep registration order.
//
// Postcondition: Returns a non-nil slice.
func (c *ActionCatalog) Best(max int) []Action {
	ranked := make([]CatalogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.LastScore > ScoreMin {
			ranked = append(ranked, e)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].LastScore > ranked[j].LastScore
	})
	if max >= 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	out := make([]Action, len(ranked))
	for i, e := range ranked {
		out[i] = e.Action
	}
	return out
}

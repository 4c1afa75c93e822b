// Package npc provides NPC template definitions and spawns brain-driven NPCs
// into the world.
package npc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// Position is a spawn point in YAML form.
type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// Point converts p to a world point.
func (p Position) Point() ai.Point { return ai.Point{X: p.X, Y: p.Y, Z: p.Z} }

// Template defines a reusable NPC archetype loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       int    `yaml:"level"`
	// Realm is one of "albion", "midgard", "hibernia"; empty means unaffiliated.
	Realm   string `yaml:"realm"`
	Faction string `yaml:"faction"`
	// AggroLevel is the base aggression in [0, 100].
	AggroLevel int `yaml:"aggro_level"`
	// AggroRange is the scan radius; 0 means the NPC never scans.
	AggroRange float64 `yaml:"aggro_range"`
	// Profile names the brain profile; empty selects the default profile.
	Profile string `yaml:"profile"`
	// Count is how many instances SpawnAll places; 0 is treated as 1.
	Count int      `yaml:"count"`
	Spawn Position `yaml:"spawn"`
	// Spread scatters instances uniformly within this radius of Spawn.
	Spread float64 `yaml:"spread"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty, Level >= 1,
// AggroLevel is within [0, 100], AggroRange, Count and Spread are
// non-negative and Realm is known; returns an error on the first violation otherwise.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("npc template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("npc template %q: name must not be empty", t.ID)
	}
	if t.Level < 1 {
		return fmt.Errorf("npc template %q: level must be >= 1", t.ID)
	}
	if t.AggroLevel < ai.MinAggroLevel || t.AggroLevel > ai.MaxAggroLevel {
		return fmt.Errorf("npc template %q: aggro_level must be within [0, 100], got %d", t.ID, t.AggroLevel)
	}
	if t.AggroRange < 0 {
		return fmt.Errorf("npc template %q: aggro_range must be >= 0", t.ID)
	}
	if t.Count < 0 {
		return fmt.Errorf("npc template %q: count must be >= 0", t.ID)
	}
	if t.Spread < 0 {
		return fmt.Errorf("npc template %q: spread must be >= 0", t.ID)
	}
	if _, err := ParseRealm(t.Realm); err != nil {
		return fmt.Errorf("npc template %q: %w", t.ID, err)
	}
	return nil
}

// Instances returns how many copies SpawnAll places.
func (t *Template) Instances() int {
	return max(t.Count, 1)
}

// ParseRealm maps a realm name to its value. The empty string is RealmNone.
func ParseRealm(name string) (ai.Realm, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return ai.RealmNone, nil
	case "albion":
		return ai.RealmAlbion, nil
	case "midgard":
		return ai.RealmMidgard, nil
	case "hibernia":
		return ai.RealmHibernia, nil
	default:
		return ai.RealmNone, fmt.Errorf("unknown realm %q", name)
	}
}

// LoadTemplateFromBytes parses a single NPC template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure or duplicate ID; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading npc dir %q: %w", dir, err)
	}

	seen := make(map[string]string)
	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if prev, dup := seen[tmpl.ID]; dup {
			return nil, fmt.Errorf("loading %q: template id %q already defined in %q", path, tmpl.ID, prev)
		}
		seen[tmpl.ID] = path
		templates = append(templates, tmpl)
	}
	return templates, nil
}

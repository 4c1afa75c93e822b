package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlFactionFile is the top-level YAML structure for faction files.
type yamlFactionFile struct {
	Factions []yamlFaction `yaml:"factions"`
}

// yamlFaction is the YAML representation of a faction.
type yamlFaction struct {
	ID          string   `yaml:"id"`
	PlayerAggro int      `yaml:"player_aggro"`
	Enemies     []string `yaml:"enemies"`
}

// LoadFactionsFromFile reads and validates a faction YAML file.
//
// Precondition: path must point to a valid YAML faction file.
// Postcondition: Returns the factions keyed by ID or a non-nil error.
func LoadFactionsFromFile(path string) (map[string]*Faction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading faction file %s: %w", path, err)
	}
	return LoadFactionsFromBytes(data)
}

// LoadFactionsFromBytes parses factions and links their enemy lists.
//
// Precondition: data must be valid YAML conforming to the faction schema.
// Postcondition: Returns an error on an empty or duplicate ID, a player_aggro
// outside [0, 100], or an enemy reference to an unknown faction.
func LoadFactionsFromBytes(data []byte) (map[string]*Faction, error) {
	var file yamlFactionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing faction YAML: %w", err)
	}

	factions := make(map[string]*Faction, len(file.Factions))
	for _, yf := range file.Factions {
		if yf.ID == "" {
			return nil, fmt.Errorf("validating factions: id must not be empty")
		}
		if _, dup := factions[yf.ID]; dup {
			return nil, fmt.Errorf("validating factions: duplicate faction ID %q", yf.ID)
		}
		if yf.PlayerAggro < 0 || yf.PlayerAggro > 100 {
			return nil, fmt.Errorf("validating faction %q: player_aggro must be within [0, 100], got %d", yf.ID, yf.PlayerAggro)
		}
		factions[yf.ID] = NewFaction(yf.ID, yf.PlayerAggro)
	}
	for _, yf := range file.Factions {
		for _, enemy := range yf.Enemies {
			other, ok := factions[enemy]
			if !ok {
				return nil, fmt.Errorf("validating faction %q: unknown enemy %q", yf.ID, enemy)
			}
			factions[yf.ID].AddEnemy(other)
		}
	}
	return factions, nil
}

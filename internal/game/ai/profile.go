package ai

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Action kinds understood by profiles.
const (
	KindScan   = "scan"
	KindFollow = "follow"
	KindScript = "script"
	KindDefend = "defend"
)

// ActionSpec describes one action of a profile.
//
// Precondition: Kind is one of scan, follow, script, defend; States is non-empty.
type ActionSpec struct {
	Kind        string   `yaml:"kind"`
	Name        string   `yaml:"name"`   // required for script actions
	Hook        string   `yaml:"hook"`   // Lua hook prefix for script actions
	States      []string `yaml:"states"` // behavior state names
	Duration    string   `yaml:"duration"`
	MinDistance float64  `yaml:"min_distance"`
	MaxDistance float64  `yaml:"max_distance"`
}

// Profile is a named set of actions to register into a brain.
//
// Invariant: action names are unique within a profile.
type Profile struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description"`
	Actions     []*ActionSpec `yaml:"actions"`
}

// DefaultProfileID names the built-in profile.
const DefaultProfileID = "default"

// DefaultProfile registers a scan and a defend action in every non-terminal state.
func DefaultProfile() *Profile {
	all := []string{"idle", "incoming", "fighting", "near_death", "dying"}
	return &Profile{
		ID:          DefaultProfileID,
		Description: "scan for hostiles and fight back in every state",
		Actions: []*ActionSpec{
			{Kind: KindScan, States: all},
			{Kind: KindDefend, States: all},
		},
	}
}

func (a *ActionSpec) actionName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Kind
}

func (a *ActionSpec) duration() (time.Duration, error) {
	if a.Duration == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Duration)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", a.Duration)
	}
	return d, nil
}

func (a *ActionSpec) states() ([]BehaviorState, error) {
	out := make([]BehaviorState, 0, len(a.States))
	for _, name := range a.States {
		s, err := ParseBehaviorState(name)
		if err != nil {
			return nil, err
		}
		if s == StateStopping {
			return nil, errors.New("stopping state cannot hold actions")
		}
		out = append(out, s)
	}
	return out, nil
}

// Validate checks required fields and cross-field constraints.
//
// Postcondition: nil return guarantees a non-empty ID, at least one action,
// known kinds, parseable states and durations, and unique action names.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return errors.New("ai.Profile: ID must not be empty")
	}
	if len(p.Actions) == 0 {
		return fmt.Errorf("ai.Profile %q: must have at least one action", p.ID)
	}
	names := make(map[string]struct{}, len(p.Actions))
	for _, a := range p.Actions {
		switch a.Kind {
		case KindScan, KindDefend:
		case KindFollow:
			if a.MinDistance < 0 || a.MaxDistance < a.MinDistance {
				return fmt.Errorf("ai.Profile %q: follow requires 0 <= min_distance <= max_distance", p.ID)
			}
		case KindScript:
			if a.Name == "" || a.Hook == "" {
				return fmt.Errorf("ai.Profile %q: script action requires name and hook", p.ID)
			}
		default:
			return fmt.Errorf("ai.Profile %q: unknown action kind %q", p.ID, a.Kind)
		}
		name := a.actionName()
		if _, dup := names[name]; dup {
			return fmt.Errorf("ai.Profile %q: duplicate action name %q", p.ID, name)
		}
		names[name] = struct{}{}
		if len(a.States) == 0 {
			return fmt.Errorf("ai.Profile %q action %q: states must not be empty", p.ID, name)
		}
		if _, err := a.states(); err != nil {
			return fmt.Errorf("ai.Profile %q action %q: %w", p.ID, name, err)
		}
		if _, err := a.duration(); err != nil {
			return fmt.Errorf("ai.Profile %q action %q: %w", p.ID, name, err)
		}
	}
	return nil
}

// BuildDeps carries the collaborators some action kinds need.
type BuildDeps struct {
	Mover   Mover        // required by follow actions
	Scripts ScriptCaller // required by script actions
	ZoneID  string
}

// Apply constructs the profile's actions for brain and registers them.
//
// Precondition: p must have passed Validate.
// Postcondition: Returns an error, with nothing registered, when a required
// dependency is missing.
func (p *Profile) Apply(brain *Brain, deps BuildDeps) error {
	type pending struct {
		action Action
		states []BehaviorState
	}
	built := make([]pending, 0, len(p.Actions))
	for _, spec := range p.Actions {
		d, err := spec.duration()
		if err != nil {
			return fmt.Errorf("ai.Profile.Apply %q: %w", p.ID, err)
		}
		states, err := spec.states()
		if err != nil {
			return fmt.Errorf("ai.Profile.Apply %q: %w", p.ID, err)
		}
		var a Action
		switch spec.Kind {
		case KindScan:
			a = NewScanAggroAction(brain, d)
		case KindDefend:
			a = NewDefendAction(brain, d)
		case KindFollow:
			if deps.Mover == nil {
				return fmt.Errorf("ai.Profile.Apply %q: follow action needs a mover", p.ID)
			}
			a = NewFollowOwnerAction(brain, deps.Mover, spec.MinDistance, spec.MaxDistance, d)
		case KindScript:
			if deps.Scripts == nil {
				return fmt.Errorf("ai.Profile.Apply %q: script action %q needs a script caller", p.ID, spec.Name)
			}
			a = NewScriptedAction(brain, deps.Scripts, deps.ZoneID, spec.Name, spec.Hook, d)
		default:
			return fmt.Errorf("ai.Profile.Apply %q: %w: %q", p.ID, ErrUnknownAction, spec.Kind)
		}
		built = append(built, pending{action: a, states: states})
	}
	for _, b := range built {
		if err := brain.Register(b.action, b.states...); err != nil {
			return fmt.Errorf("ai.Profile.Apply %q: %w", p.ID, err)
		}
	}
	return nil
}

// ErrUnknownAction is returned for action kinds no constructor exists for.
var ErrUnknownAction = errors.New("unknown action kind")

// yamlProfileFile wraps the YAML top-level key.
type yamlProfileFile struct {
	Profile *Profile `yaml:"profile"`
}

// LoadProfileFromBytes parses and validates one profile document.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	var f yamlProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ai.LoadProfileFromBytes: %w", err)
	}
	if f.Profile == nil {
		return nil, errors.New("ai.LoadProfileFromBytes: missing top-level 'profile' key")
	}
	if err := f.Profile.Validate(); err != nil {
		return nil, err
	}
	return f.Profile, nil
}

// LoadProfiles reads all *.yaml files from dir and returns parsed profiles.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns error if any YAML file fails to parse or validate.
func LoadProfiles(dir string) ([]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ai.LoadProfiles: reading %q: %w", dir, err)
	}
	var profiles []*Profile
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("ai.LoadProfiles: reading %s: %w", e.Name(), err)
		}
		p, err := LoadProfileFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("ai.LoadProfiles: %s: %w", e.Name(), err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

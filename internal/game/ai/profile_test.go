package ai_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

const guardProfileYAML = `profile:
  id: guard
  description: watches the gate and calls for help
  actions:
    - kind: scan
      states: [idle, incoming, fighting]
      duration: 500ms
    - kind: script
      name: shout
      hook: guard_shout
      states: [fighting]
      duration: 1s
`

func TestProfile_Validate_RejectsEmpty(t *testing.T) {
	p := &ai.Profile{}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for empty Profile")
	}
}

func TestProfile_Validate_DefaultProfileIsValid(t *testing.T) {
	if err := ai.DefaultProfile().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProfile_Validate_Rejections(t *testing.T) {
	cases := map[string]*ai.ActionSpec{
		"unknown kind":      {Kind: "dance", States: []string{"idle"}},
		"no states":         {Kind: ai.KindScan},
		"stopping state":    {Kind: ai.KindScan, States: []string{"stopping"}},
		"bad state":         {Kind: ai.KindScan, States: []string{"asleep"}},
		"bad duration":      {Kind: ai.KindScan, States: []string{"idle"}, Duration: "soon"},
		"negative duration": {Kind: ai.KindScan, States: []string{"idle"}, Duration: "-1s"},
		"script no hook":    {Kind: ai.KindScript, Name: "x", States: []string{"idle"}},
		"follow inverted":   {Kind: ai.KindFollow, States: []string{"idle"}, MinDistance: 300, MaxDistance: 100},
	}
	for name, spec := range cases {
		t.Run(name, func(t *testing.T) {
			p := &ai.Profile{ID: "p", Actions: []*ai.ActionSpec{spec}}
			assert.Error(t, p.Validate())
		})
	}
}

func TestProfile_Validate_RejectsDuplicateNames(t *testing.T) {
	p := &ai.Profile{ID: "p", Actions: []*ai.ActionSpec{
		{Kind: ai.KindScan, States: []string{"idle"}},
		{Kind: ai.KindScan, States: []string{"fighting"}},
	}}
	assert.Error(t, p.Validate())
}

func TestLoadProfileFromBytes(t *testing.T) {
	p, err := ai.LoadProfileFromBytes([]byte(guardProfileYAML))
	require.NoError(t, err)
	assert.Equal(t, "guard", p.ID)
	require.Len(t, p.Actions, 2)
	assert.Equal(t, []string{"idle", "incoming", "fighting"}, p.Actions[0].States)
	assert.Equal(t, "guard_shout", p.Actions[1].Hook)

	_, err = ai.LoadProfileFromBytes([]byte("id: orphan\n"))
	assert.Error(t, err, "missing top-level key")
}

func TestLoadProfiles_ReadsYAMLFilesOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guard.yaml"), []byte(guardProfileYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644))

	profiles, err := ai.LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "guard", profiles[0].ID)
}

func TestLoadProfiles_InvalidFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("profile:\n  id: bad\n"), 0o644))

	_, err := ai.LoadProfiles(dir)
	assert.Error(t, err)
}

func TestProfile_ApplyRegistersActionsPerState(t *testing.T) {
	b, _, _, _ := newTestBrain(t)
	p, err := ai.LoadProfileFromBytes([]byte(guardProfileYAML))
	require.NoError(t, err)

	require.NoError(t, p.Apply(b, ai.BuildDeps{Scripts: &fakeScripts{}, ZoneID: "gate"}))

	assert.Len(t, b.Catalog(ai.StateIdle), 1)
	assert.Len(t, b.Catalog(ai.StateIncoming), 1)
	fighting := b.Catalog(ai.StateFighting)
	require.Len(t, fighting, 2)
	assert.Equal(t, "scan_aggro", fighting[0].Action.Name())
	assert.Equal(t, "shout", fighting[1].Action.Name())
	assert.Empty(t, b.Catalog(ai.StateDying))
}

func TestProfile_ApplyWithoutDepsRegistersNothing(t *testing.T) {
	b, _, _, _ := newTestBrain(t)
	p, err := ai.LoadProfileFromBytes([]byte(guardProfileYAML))
	require.NoError(t, err)

	err = p.Apply(b, ai.BuildDeps{})

	assert.Error(t, err)
	assert.Empty(t, b.Catalog(ai.StateIdle))
}

func TestProfile_ApplyUnknownKind(t *testing.T) {
	b, _, _, _ := newTestBrain(t)
	p := &ai.Profile{ID: "odd", Actions: []*ai.ActionSpec{{Kind: "teleport", States: []string{"idle"}}}}

	err := p.Apply(b, ai.BuildDeps{})
	assert.True(t, errors.Is(err, ai.ErrUnknownAction))
}

func TestProperty_Profile_ValidStatesAlwaysValidate(t *testing.T) {
	names := []string{"idle", "incoming", "fighting", "near_death", "dying"}
	rapid.Check(t, func(rt *rapid.T) {
		states := rapid.SliceOfNDistinct(rapid.SampledFrom(names), 1, len(names), rapid.ID[string]).Draw(rt, "states")
		p := &ai.Profile{ID: "p", Actions: []*ai.ActionSpec{{Kind: ai.KindScan, States: states}}}
		if err := p.Validate(); err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
	})
}

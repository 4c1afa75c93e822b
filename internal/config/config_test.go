package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

func validConfig() Config {
	l := ai.DefaultLimits()
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Brain: BrainConfig{
			ThinkInterval:        l.ThinkInterval,
			MaxQueueSize:         l.MaxQueueSize,
			MaxAggroListSize:     l.MaxAggroListSize,
			MaxAggroListDistance: l.MaxAggroListDistance,
			MaxAggroDistance:     l.MaxAggroDistance,
			MaxPetAggroDistance:  l.MaxPetAggroDistance,
			MinAggroAmount:       l.MinAggroAmount,
			ProtectRange:         l.ProtectRange,
			MaxProtectLevel:      l.MaxProtectLevel,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9102",
		},
		Content: ContentConfig{
			NPCsDir:     "content/npcs",
			ProfilesDir: "content/profiles",
			ScriptsDir:  "content/scripts",
		},
		Sim: SimConfig{
			ZoneID:       "forest",
			Players:      4,
			PlayerLevel:  10,
			WorldRadius:  2000,
			MoveInterval: 500 * time.Millisecond,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestBrainLimitsMatchDefaults(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, ai.DefaultLimits(), cfg.Brain.Limits())
}

func TestDefaultsValidate(t *testing.T) {
	cfg, err := LoadFromViper(Defaults())
	require.NoError(t, err)
	assert.Equal(t, ai.DefaultLimits(), cfg.Brain.Limits())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "content/factions.yaml", cfg.Content.FactionsFile)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
brain:
  think_interval: 2s
  max_queue_size: 8
metrics:
  enabled: true
  addr: 0.0.0.0:9200
content:
  npcs_dir: /srv/npcs
  watch: true
sim:
  players: 12
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Brain.ThinkInterval)
	assert.Equal(t, 8, cfg.Brain.MaxQueueSize)
	assert.Equal(t, 100, cfg.Brain.MaxAggroListSize, "unset keys keep their defaults")
	assert.Equal(t, "0.0.0.0:9200", cfg.Metrics.Addr)
	assert.Equal(t, "/srv/npcs", cfg.Content.NPCsDir)
	assert.True(t, cfg.Content.Watch)
	assert.Equal(t, 12, cfg.Sim.Players)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))
	t.Setenv("NPCBRAIN_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateBrainThinkInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Brain.ThinkInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateBrainQueueSize(t *testing.T) {
	cfg := validConfig()
	cfg.Brain.MaxQueueSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateMetricsAddrRequiredWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg.Metrics.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidateContent(t *testing.T) {
	cfg := validConfig()
	cfg.Content.NPCsDir = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Content.Watch = true
	cfg.Content.ProfilesDir = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Content.ScriptInstructionLimit = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Content.FactionsFile = ""
	assert.NoError(t, cfg.Validate(), "factions are optional")
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "loud"
	cfg.Sim.Players = -1
	cfg.Sim.WorldRadius = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "sim.players")
	assert.Contains(t, err.Error(), "sim.world_radius")
}

// Property-based tests

func TestPropertyPositiveThinkIntervalAccepted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(1, 60_000).Draw(t, "ms")
		cfg := validConfig()
		cfg.Brain.ThinkInterval = time.Duration(ms) * time.Millisecond
		if err := cfg.Validate(); err != nil {
			t.Fatalf("think interval %dms rejected: %v", ms, err)
		}
	})
}

func TestPropertyNegativePlayersRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		players := rapid.IntRange(-1000, -1).Draw(t, "players")
		cfg := validConfig()
		cfg.Sim.Players = players
		if err := cfg.Validate(); err == nil {
			t.Fatalf("players=%d accepted", players)
		}
	})
}

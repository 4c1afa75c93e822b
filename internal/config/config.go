// Package config provides Viper-based configuration loading for the brain simulator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/npcbrain/internal/game/ai"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// BrainConfig holds the tunables shared by every NPC brain.
type BrainConfig struct {
	ThinkInterval        time.Duration `mapstructure:"think_interval"`
	MaxQueueSize         int           `mapstructure:"max_queue_size"`
	MaxAggroListSize     int           `mapstructure:"max_aggro_list_size"`
	MaxAggroListDistance float64       `mapstructure:"max_aggro_list_distance"`
	MaxAggroDistance     float64       `mapstructure:"max_aggro_distance"`
	MaxPetAggroDistance  float64       `mapstructure:"max_pet_aggro_distance"`
	MinAggroAmount       int64         `mapstructure:"min_aggro_amount"`
	ProtectRange         float64       `mapstructure:"protect_range"`
	MaxProtectLevel      int           `mapstructure:"max_protect_level"`
}

// Limits converts the section into brain limits.
//
// Postcondition: The result validates whenever BrainConfig does.
func (b BrainConfig) Limits() ai.Limits {
	return ai.Limits{
		ThinkInterval:        b.ThinkInterval,
		MaxQueueSize:         b.MaxQueueSize,
		MaxAggroListSize:     b.MaxAggroListSize,
		MaxAggroListDistance: b.MaxAggroListDistance,
		MaxAggroDistance:     b.MaxAggroDistance,
		MaxPetAggroDistance:  b.MaxPetAggroDistance,
		MinAggroAmount:       b.MinAggroAmount,
		ProtectRange:         b.ProtectRange,
		MaxProtectLevel:      b.MaxProtectLevel,
	}
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled toggles the /metrics listener.
	Enabled bool `mapstructure:"enabled"`
	// Addr is the "host:port" the listener binds.
	Addr string `mapstructure:"addr"`
}

// ContentConfig locates the YAML and Lua content loaded at startup.
type ContentConfig struct {
	NPCsDir     string `mapstructure:"npcs_dir"`
	ProfilesDir string `mapstructure:"profiles_dir"`
	// FactionsFile lists the factions templates may name; empty means none.
	FactionsFile string `mapstructure:"factions_file"`
	// ScriptsDir holds one subdirectory of Lua files per zone.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// ScriptInstructionLimit bounds each Lua hook call; 0 selects the sandbox default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
	// Watch reloads changed profiles without a restart.
	Watch bool `mapstructure:"watch"`
}

// SimConfig shapes the simulated world the brains run in.
type SimConfig struct {
	// ZoneID names the zone whose Lua VM scripted actions use.
	ZoneID string `mapstructure:"zone_id"`
	// Players is the number of wandering players spawned.
	Players int `mapstructure:"players"`
	// PlayerLevel is the level given to every simulated player.
	PlayerLevel int `mapstructure:"player_level"`
	// WorldRadius bounds spawn and wander positions around the origin.
	WorldRadius float64 `mapstructure:"world_radius"`
	// MoveInterval is how often players wander and followers step.
	MoveInterval time.Duration `mapstructure:"move_interval"`
	// Seed feeds the wander RNG; 0 picks a time-based seed.
	Seed int64 `mapstructure:"seed"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Brain   BrainConfig   `mapstructure:"brain"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Content ContentConfig `mapstructure:"content"`
	Sim     SimConfig     `mapstructure:"sim"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Brain.Limits().Validate(); err != nil {
		errs = append(errs, "brain: "+err.Error())
	}
	if err := validateMetrics(c.Metrics); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSim(c.Sim); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateMetrics(m MetricsConfig) error {
	if m.Enabled && m.Addr == "" {
		return fmt.Errorf("metrics.addr must not be empty when metrics.enabled is set")
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.NPCsDir == "" {
		return fmt.Errorf("content.npcs_dir must not be empty")
	}
	if c.Watch && c.ProfilesDir == "" {
		return fmt.Errorf("content.watch requires content.profiles_dir")
	}
	if c.ScriptInstructionLimit < 0 {
		return fmt.Errorf("content.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit)
	}
	return nil
}

func validateSim(s SimConfig) error {
	var errs []string
	if s.Players < 0 {
		errs = append(errs, fmt.Sprintf("sim.players must be >= 0, got %d", s.Players))
	}
	if s.PlayerLevel < 1 {
		errs = append(errs, fmt.Sprintf("sim.player_level must be >= 1, got %d", s.PlayerLevel))
	}
	if s.WorldRadius <= 0 {
		errs = append(errs, fmt.Sprintf("sim.world_radius must be > 0, got %g", s.WorldRadius))
	}
	if s.MoveInterval <= 0 {
		errs = append(errs, "sim.move_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with NPCBRAIN_ prefix
	v.SetEnvPrefix("NPCBRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	l := ai.DefaultLimits()
	v.SetDefault("brain.think_interval", l.ThinkInterval.String())
	v.SetDefault("brain.max_queue_size", l.MaxQueueSize)
	v.SetDefault("brain.max_aggro_list_size", l.MaxAggroListSize)
	v.SetDefault("brain.max_aggro_list_distance", l.MaxAggroListDistance)
	v.SetDefault("brain.max_aggro_distance", l.MaxAggroDistance)
	v.SetDefault("brain.max_pet_aggro_distance", l.MaxPetAggroDistance)
	v.SetDefault("brain.min_aggro_amount", l.MinAggroAmount)
	v.SetDefault("brain.protect_range", l.ProtectRange)
	v.SetDefault("brain.max_protect_level", l.MaxProtectLevel)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9102")

	v.SetDefault("content.npcs_dir", "content/npcs")
	v.SetDefault("content.profiles_dir", "content/profiles")
	v.SetDefault("content.factions_file", "content/factions.yaml")
	v.SetDefault("content.scripts_dir", "content/scripts")
	v.SetDefault("content.script_instruction_limit", 0)
	v.SetDefault("content.watch", false)

	v.SetDefault("sim.zone_id", "forest")
	v.SetDefault("sim.players", 4)
	v.SetDefault("sim.player_level", 10)
	v.SetDefault("sim.world_radius", 2000.0)
	v.SetDefault("sim.move_interval", "500ms")
	v.SetDefault("sim.seed", 0)
}

// Package config provides Viper-based configuration loading for the tactics simulator.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig tunes the encounter runtime.
type CombatConfig struct {
	// CellSize is the spatial index bucket size in grid squares.
	CellSize int `mapstructure:"cell_size"`
	// TurnTimeout ends an idle player turn. Zero disables the timer.
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
	// SlowNode is the behavior-tree tick duration above which a node is logged.
	SlowNode time.Duration `mapstructure:"slow_node"`
	// MaxEvents caps cascaded events per processed batch.
	MaxEvents int `mapstructure:"max_events"`
	// MaxRounds ends a stalemate.
	MaxRounds int `mapstructure:"max_rounds"`
}

// AIConfig configures the generative decision backend.
type AIConfig struct {
	// Generative enables the fallback backend.
	Generative bool          `mapstructure:"generative"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxTokens  int64         `mapstructure:"max_tokens"`
}

// ContentConfig names the static data directories.
type ContentConfig struct {
	Monsters   string `mapstructure:"monsters"`
	Archetypes string `mapstructure:"archetypes"`
	Conditions string `mapstructure:"conditions"`
	Blueprints string `mapstructure:"blueprints"`
	// Scripts is optional; empty disables Lua hooks.
	Scripts         string `mapstructure:"scripts"`
	ScriptInstLimit int    `mapstructure:"script_instruction_limit"`
}

// PersistenceConfig toggles the postgres event log.
type PersistenceConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Combat      CombatConfig      `mapstructure:"combat"`
	AI          AIConfig          `mapstructure:"ai"`
	Content     ContentConfig     `mapstructure:"content"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// Validate checks all configuration invariants. The database section is only
// checked when persistence is enabled.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Persistence.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAI(c.AI); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.CellSize < 1 {
		errs = append(errs, fmt.Sprintf("combat.cell_size must be >= 1, got %d", c.CellSize))
	}
	if c.TurnTimeout < 0 {
		errs = append(errs, "combat.turn_timeout must not be negative")
	}
	if c.SlowNode < 0 {
		errs = append(errs, "combat.slow_node must not be negative")
	}
	if c.MaxEvents < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_events must be >= 1, got %d", c.MaxEvents))
	}
	if c.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("combat.max_rounds must be >= 1, got %d", c.MaxRounds))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAI(a AIConfig) error {
	if !a.Generative {
		return nil
	}
	var errs []string
	if a.APIKey == "" {
		errs = append(errs, "ai.api_key must be set when ai.generative is enabled")
	}
	if a.Model == "" {
		errs = append(errs, "ai.model must not be empty")
	}
	if a.Timeout <= 0 {
		errs = append(errs, "ai.timeout must be positive")
	}
	if a.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("ai.max_tokens must be >= 1, got %d", a.MaxTokens))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	for key, dir := range map[string]string{
		"content.monsters":   c.Monsters,
		"content.archetypes": c.Archetypes,
		"content.conditions": c.Conditions,
		"content.blueprints": c.Blueprints,
	} {
		if dir == "" {
			errs = append(errs, key+" must not be empty")
		}
	}
	if c.ScriptInstLimit < 0 {
		errs = append(errs, "content.script_instruction_limit must not be negative")
	}
	if len(errs) > 0 {
		slices.Sort(errs)
		return errors.New(strings.Join(errs, "; "))
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

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with TACTICS_ prefix
	v.SetEnvPrefix("TACTICS")
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

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tactics")
	v.SetDefault("database.password", "tactics")
	v.SetDefault("database.name", "tactics")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("combat.cell_size", 4)
	v.SetDefault("combat.turn_timeout", "0s")
	v.SetDefault("combat.slow_node", "5ms")
	v.SetDefault("combat.max_events", 256)
	v.SetDefault("combat.max_rounds", 100)

	v.SetDefault("ai.generative", false)
	v.SetDefault("ai.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", "10s")
	v.SetDefault("ai.max_tokens", 512)

	v.SetDefault("content.monsters", "content/monsters")
	v.SetDefault("content.archetypes", "content/archetypes")
	v.SetDefault("content.conditions", "content/conditions")
	v.SetDefault("content.blueprints", "content/blueprints")
	v.SetDefault("content.scripts", "")
	v.SetDefault("content.script_instruction_limit", 100000)

	v.SetDefault("persistence.enabled", false)
}

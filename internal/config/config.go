// Package config loads snapshot engine settings from YAML or TOML files with
// .env and SNAPSHOT_* environment overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	snapshot "github.com/goliatone/go-snapshot"
	"github.com/goliatone/go-snapshot/pkg/activity"
	"github.com/goliatone/go-snapshot/resources"
)

const envPrefix = "SNAPSHOT_"

type Config struct {
	Culture            string `yaml:"culture" toml:"culture"`
	Evaluator          string `yaml:"evaluator" toml:"evaluator"`
	ComponentCache     bool   `yaml:"component_cache" toml:"component_cache"`
	DevelopmentAsserts bool   `yaml:"development_asserts" toml:"development_asserts"`
	// SnippetTimeout bounds js snippets, as a time.ParseDuration string.
	SnippetTimeout string `yaml:"snippet_timeout" toml:"snippet_timeout"`

	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`

	Deserialize struct {
		RecycleInstances      bool   `yaml:"recycle_instances" toml:"recycle_instances"`
		ValidateRecycledTypes *bool  `yaml:"validate_recycled_types" toml:"validate_recycled_types"`
		PreserveNames         *bool  `yaml:"preserve_names" toml:"preserve_names"`
		ApplyDefaults         *bool  `yaml:"apply_defaults" toml:"apply_defaults"`
		Culture               string `yaml:"culture" toml:"culture"`
	} `yaml:"deserialize" toml:"deserialize"`

	Activity struct {
		Channel  string `yaml:"channel" toml:"channel"`
		ActorID  string `yaml:"actor_id" toml:"actor_id"`
		TenantID string `yaml:"tenant_id" toml:"tenant_id"`
	} `yaml:"activity" toml:"activity"`

	State struct {
		Path         string `yaml:"path" toml:"path"`
		HistoryLimit int    `yaml:"history_limit" toml:"history_limit"`
	} `yaml:"state" toml:"state"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	cfg := &Config{Evaluator: "expr"}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.State.Path = "snapshot.db"
	cfg.State.HistoryLimit = 100
	return cfg
}

// Load reads path (".yaml", ".yml" or ".toml") over the defaults. An empty
// path skips the file. A .env file in the working directory is loaded first
// and SNAPSHOT_* variables override file values.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load config file
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		case ".toml":
			if err := toml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config: unsupported file extension %q", ext)
		}
	}

	// 3. Override with environment variables if present
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, set func(bool)) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
		}
		set(b)
		return nil
	}

	str("CULTURE", &c.Culture)
	str("EVALUATOR", &c.Evaluator)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STATE_PATH", &c.State.Path)
	str("DESERIALIZE_CULTURE", &c.Deserialize.Culture)
	str("SNIPPET_TIMEOUT", &c.SnippetTimeout)
	str("ACTIVITY_CHANNEL", &c.Activity.Channel)
	str("ACTIVITY_ACTOR_ID", &c.Activity.ActorID)
	str("ACTIVITY_TENANT_ID", &c.Activity.TenantID)

	if v, ok := lookup(envPrefix + "HISTORY_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sHISTORY_LIMIT: %w", envPrefix, err)
		}
		c.State.HistoryLimit = n
	}

	setters := map[string]func(bool){
		"COMPONENT_CACHE":         func(b bool) { c.ComponentCache = b },
		"DEVELOPMENT_ASSERTS":     func(b bool) { c.DevelopmentAsserts = b },
		"RECYCLE_INSTANCES":       func(b bool) { c.Deserialize.RecycleInstances = b },
		"VALIDATE_RECYCLED_TYPES": func(b bool) { c.Deserialize.ValidateRecycledTypes = &b },
		"PRESERVE_NAMES":          func(b bool) { c.Deserialize.PreserveNames = &b },
		"APPLY_DEFAULTS":          func(b bool) { c.Deserialize.ApplyDefaults = &b },
	}
	for _, key := range []string{"COMPONENT_CACHE", "DEVELOPMENT_ASSERTS", "RECYCLE_INSTANCES", "VALIDATE_RECYCLED_TYPES", "PRESERVE_NAMES", "APPLY_DEFAULTS"} {
		if err := boolean(key, setters[key]); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Evaluator) {
	case "", "expr", "cel", "js":
	default:
		return fmt.Errorf("config: unknown evaluator %q", c.Evaluator)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.SnippetTimeout != "" {
		if _, err := time.ParseDuration(c.SnippetTimeout); err != nil {
			return fmt.Errorf("config: snippet_timeout: %w", err)
		}
	}
	if c.State.HistoryLimit < 0 {
		return fmt.Errorf("config: history_limit must not be negative")
	}
	return nil
}

// Options converts the settings into service options. Log output goes to w.
func (c *Config) Options(w io.Writer) []snapshot.Option {
	opts := []snapshot.Option{
		snapshot.WithCulture(resources.ParseCulture(c.Culture)),
		snapshot.WithDevelopmentAsserts(c.DevelopmentAsserts),
		snapshot.WithLogger(snapshot.NewSlogLogger(c.slogLogger(w))),
		snapshot.WithActivityConfig(activity.Config{
			Channel:  c.Activity.Channel,
			ActorID:  c.Activity.ActorID,
			TenantID: c.Activity.TenantID,
		}),
	}
	switch strings.ToLower(c.Evaluator) {
	case "cel":
		opts = append(opts, snapshot.WithEvaluator(snapshot.NewCELEvaluator()))
	case "js":
		// Validate already rejected malformed durations.
		timeout, _ := time.ParseDuration(c.SnippetTimeout)
		opts = append(opts, snapshot.WithEvaluator(snapshot.NewJSEvaluator(snapshot.JSWithTimeout(timeout))))
	}
	if c.ComponentCache {
		opts = append(opts, snapshot.WithComponentCache(snapshot.NewComponentCache()))
	}
	return opts
}

// DeserializeOptions converts the deserialize section. Unset tri-state
// values keep the engine defaults.
func (c *Config) DeserializeOptions() []snapshot.DeserializeOption {
	d := c.Deserialize
	opts := []snapshot.DeserializeOption{snapshot.WithRecycleInstances(d.RecycleInstances)}
	if d.ValidateRecycledTypes != nil {
		opts = append(opts, snapshot.WithValidateRecycledTypes(*d.ValidateRecycledTypes))
	}
	if d.PreserveNames != nil {
		opts = append(opts, snapshot.WithPreserveNames(*d.PreserveNames))
	}
	if d.ApplyDefaults != nil {
		opts = append(opts, snapshot.WithApplyDefaults(*d.ApplyDefaults))
	}
	if d.Culture != "" {
		opts = append(opts, snapshot.WithDeserializeCulture(resources.ParseCulture(d.Culture)))
	}
	return opts
}

func (c *Config) slogLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, _ := parseLevel(c.Log.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if value == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}

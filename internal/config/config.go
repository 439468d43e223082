// Package config resolves runtime settings. Layers apply in order: defaults,
// YAML file, environment (with .env), command-line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"DialogueWidget/internal/animation"
	"DialogueWidget/internal/interpreter"
	"DialogueWidget/internal/loader"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "configs/dialogue.yaml"
	EnvPrefix   = "DIALOGUE_"
)

type AnimationConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// Config is the fully resolved configuration.
type Config struct {
	Addr         string
	DataDir      string // Empty serves the built-in scenarios
	SourceURL    string // Remote origin for `play`; empty reads the local catalog
	DefaultLang  string
	FallbackLang string
	PacingDelay  time.Duration
	Animation    AnimationConfig
	FetchTimeout time.Duration
	CacheSize    int
	HistoryPath  string // Empty disables history
	SessionIdle  time.Duration
	Watch        bool
}

func Default() Config {
	return Config{
		Addr:         ":8080",
		DefaultLang:  "en",
		FallbackLang: loader.DefaultFallback,
		PacingDelay:  interpreter.DefaultPacingDelay,
		Animation: AnimationConfig{
			Interval:    animation.DefaultInterval,
			MaxAttempts: animation.DefaultMaxAttempts,
		},
		FetchTimeout: 10 * time.Second,
		CacheSize:    16,
		HistoryPath:  "data/history.db",
		SessionIdle:  30 * time.Minute,
		Watch:        true,
	}
}

// Sanitize clamps values that would make the runtime misbehave.
func (c Config) Sanitize() Config {
	def := Default()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = def.Addr
	}
	c.DefaultLang = loader.NormalizeLang(c.DefaultLang)
	if !loader.ValidLang(c.DefaultLang) {
		c.DefaultLang = def.DefaultLang
	}
	c.FallbackLang = loader.NormalizeLang(c.FallbackLang)
	if !loader.ValidLang(c.FallbackLang) {
		c.FallbackLang = def.FallbackLang
	}
	if c.PacingDelay < 0 {
		c.PacingDelay = 0
	}
	if c.Animation.Interval <= 0 {
		c.Animation.Interval = def.Animation.Interval
	}
	if c.Animation.MaxAttempts <= 0 {
		c.Animation.MaxAttempts = def.Animation.MaxAttempts
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.SessionIdle <= 0 {
		c.SessionIdle = def.SessionIdle
	}
	return c
}

// BridgeConfig converts the animation settings for the bridge.
func (c Config) BridgeConfig() animation.Config {
	return animation.Config{Interval: c.Animation.Interval, MaxAttempts: c.Animation.MaxAttempts}
}

/* ------------------------------ File ------------------------------- */

type animationFile struct {
	Interval    *time.Duration `yaml:"interval"`
	MaxAttempts *int           `yaml:"max_attempts"`
}

type fileConfig struct {
	Addr         *string        `yaml:"addr"`
	DataDir      *string        `yaml:"data_dir"`
	SourceURL    *string        `yaml:"source_url"`
	DefaultLang  *string        `yaml:"default_lang"`
	FallbackLang *string        `yaml:"fallback_lang"`
	PacingDelay  *time.Duration `yaml:"pacing_delay"`
	Animation    *animationFile `yaml:"animation"`
	FetchTimeout *time.Duration `yaml:"fetch_timeout"`
	CacheSize    *int           `yaml:"cache_size"`
	HistoryPath  *string        `yaml:"history_path"`
	SessionIdle  *time.Duration `yaml:"session_idle"`
	Watch        *bool          `yaml:"watch"`
}

func mergeFile(base Config, f fileConfig) Config {
	setString(&base.Addr, f.Addr)
	setString(&base.DataDir, f.DataDir)
	setString(&base.SourceURL, f.SourceURL)
	setString(&base.DefaultLang, f.DefaultLang)
	setString(&base.FallbackLang, f.FallbackLang)
	if f.HistoryPath != nil {
		base.HistoryPath = strings.TrimSpace(*f.HistoryPath)
	}
	if f.PacingDelay != nil {
		base.PacingDelay = *f.PacingDelay
	}
	if f.Animation != nil {
		if f.Animation.Interval != nil {
			base.Animation.Interval = *f.Animation.Interval
		}
		if f.Animation.MaxAttempts != nil {
			base.Animation.MaxAttempts = *f.Animation.MaxAttempts
		}
	}
	if f.FetchTimeout != nil {
		base.FetchTimeout = *f.FetchTimeout
	}
	if f.CacheSize != nil {
		base.CacheSize = *f.CacheSize
	}
	if f.SessionIdle != nil {
		base.SessionIdle = *f.SessionIdle
	}
	if f.Watch != nil {
		base.Watch = *f.Watch
	}
	return base
}

// LoadFile merges the YAML file at path onto base. A missing file is not an
// error; base is returned unchanged.
func LoadFile(path string, base Config) (Config, error) {
	if path == "" {
		return base, nil
	}
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, fmt.Errorf("read config %q: %w", cleanPath, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse config %q: %w", cleanPath, err)
	}
	return mergeFile(base, f), nil
}

/* --------------------------- Environment --------------------------- */

// ApplyEnv merges DIALOGUE_* variables onto base. getenv is os.Getenv in
// production. Malformed values are reported and the base value kept.
func ApplyEnv(base Config, getenv func(string) string) (Config, error) {
	var errs []string
	str := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s=%q", EnvPrefix, name, v))
			return
		}
		*dst = d
	}
	num := func(name string, dst *int) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s=%q", EnvPrefix, name, v))
			return
		}
		*dst = n
	}

	str("ADDR", &base.Addr)
	str("DATA_DIR", &base.DataDir)
	str("SOURCE_URL", &base.SourceURL)
	str("DEFAULT_LANG", &base.DefaultLang)
	str("FALLBACK_LANG", &base.FallbackLang)
	str("HISTORY_PATH", &base.HistoryPath)
	dur("PACING_DELAY", &base.PacingDelay)
	dur("ANIMATION_INTERVAL", &base.Animation.Interval)
	num("ANIMATION_MAX_ATTEMPTS", &base.Animation.MaxAttempts)
	dur("FETCH_TIMEOUT", &base.FetchTimeout)
	num("CACHE_SIZE", &base.CacheSize)
	dur("SESSION_IDLE", &base.SessionIdle)
	if v := strings.TrimSpace(getenv(EnvPrefix + "WATCH")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%sWATCH=%q", EnvPrefix, v))
		} else {
			base.Watch = b
		}
	}

	if len(errs) > 0 {
		return base, fmt.Errorf("invalid environment: %s", strings.Join(errs, ", "))
	}
	return base, nil
}

/* ---------------------------- Overrides ---------------------------- */

// Overrides are optional command-line values. Nil fields keep what the
// lower layers resolved.
type Overrides struct {
	Addr        *string
	DataDir     *string
	SourceURL   *string
	DefaultLang *string
	PacingDelay *time.Duration
	HistoryPath *string // An empty value disables history
	Watch       *bool
}

func (o Overrides) apply(base Config) Config {
	setString(&base.Addr, o.Addr)
	setString(&base.DataDir, o.DataDir)
	setString(&base.SourceURL, o.SourceURL)
	setString(&base.DefaultLang, o.DefaultLang)
	if o.HistoryPath != nil {
		base.HistoryPath = *o.HistoryPath
	}
	if o.PacingDelay != nil {
		base.PacingDelay = *o.PacingDelay
	}
	if o.Watch != nil {
		base.Watch = *o.Watch
	}
	return base
}

// Load resolves every layer. The returned error describes a malformed layer;
// the Config is still usable and holds everything that did parse.
func Load(path string, overrides Overrides) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var firstErr error
	if loaded, err := LoadFile(path, cfg); err != nil {
		firstErr = err
	} else {
		cfg = loaded
	}
	cfg, err := ApplyEnv(cfg, os.Getenv)
	if err != nil && firstErr == nil {
		firstErr = err
	}
	return overrides.apply(cfg).Sanitize(), firstErr
}

func setString(dst *string, v *string) {
	if v != nil && strings.TrimSpace(*v) != "" {
		*dst = strings.TrimSpace(*v)
	}
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/lazypower/hippocampus/internal/engine"
)

// Config holds all hippocampus configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Sweeper    SweeperConfig    `toml:"sweeper"`
	Compaction CompactionConfig `toml:"compaction"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"` // empty resolves to ~/.hippocampus/hippocampus.db
}

type LogConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "text", "json"
}

type SweeperConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron spec, e.g. "@daily"
	KeepDays int    `toml:"keep_days"`
}

// CompactionConfig is the file form of engine.Params. Map keys are entry
// type names: decision, user_intent, context, tool_result, ephemeral, unknown.
type CompactionConfig struct {
	DecayRates           map[string]float64 `toml:"decay_rates"`
	SparseThreshold      float64            `toml:"sparse_threshold"`
	CompressThreshold    float64            `toml:"compress_threshold"`
	RetentionFloor       map[string]float64 `toml:"retention_floor"`
	MaxSparseIndexTokens int                `toml:"max_sparse_index_tokens"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	p := engine.DefaultParams()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sweeper: SweeperConfig{
			Enabled:  true,
			Schedule: "@daily",
			KeepDays: 30,
		},
		Compaction: CompactionConfig{
			DecayRates:           stringKeys(p.DecayRates),
			SparseThreshold:      p.SparseThreshold,
			CompressThreshold:    p.CompressThreshold,
			RetentionFloor:       stringKeys(p.RetentionFloor),
			MaxSparseIndexTokens: p.MaxSparseIndexTokens,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Params resolves the compaction section into validated engine params.
// Rates missing from the map keep their defaults. A nil floor map keeps
// the default floors; a non-nil one is used as given.
func (c CompactionConfig) Params() (engine.Params, error) {
	p := engine.DefaultParams()

	for key, rate := range c.DecayRates {
		t, err := engine.ParseEntryType(key)
		if err != nil {
			return p, fmt.Errorf("decay_rates: %w", err)
		}
		p.DecayRates[t] = rate
	}

	if c.RetentionFloor != nil {
		p.RetentionFloor = make(map[engine.EntryType]float64, len(c.RetentionFloor))
		for key, floor := range c.RetentionFloor {
			t, err := engine.ParseEntryType(key)
			if err != nil {
				return p, fmt.Errorf("retention_floor: %w", err)
			}
			p.RetentionFloor[t] = floor
		}
	}

	p.SparseThreshold = c.SparseThreshold
	p.CompressThreshold = c.CompressThreshold
	p.MaxSparseIndexTokens = c.MaxSparseIndexTokens

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// DefaultDir returns ~/.hippocampus, or a relative .hippocampus when the
// home directory cannot be resolved.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return ".hippocampus"
	}
	return filepath.Join(home, ".hippocampus")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// Load reads the config file at path over the defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.withEnv(), nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := Parse(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.withEnv(), nil
}

// LoadOrCreate is Load, writing the defaults to path first when no file
// exists there.
func LoadOrCreate(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return Default(), err
		}
		if err := Write(path, Default()); err != nil {
			return Default(), err
		}
	}
	return Load(path)
}

// Parse decodes TOML into cfg, keeping fields the document omits.
func Parse(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Server.Bind = strings.TrimSpace(cfg.Server.Bind)
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "127.0.0.1"
	}
	if _, err := cfg.Compaction.Params(); err != nil {
		return err
	}
	return nil
}

// Write encodes cfg as TOML at path.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// withEnv applies HIPPOCAMPUS_DB and HIPPOCAMPUS_LOG_LEVEL overrides.
func (c Config) withEnv() Config {
	if db := os.Getenv("HIPPOCAMPUS_DB"); db != "" {
		c.Database.Path = expandPath(db)
	}
	if level := os.Getenv("HIPPOCAMPUS_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	return c
}

// DBPath returns the configured database path or the default location.
func (c *Config) DBPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DefaultDir(), "hippocampus.db")
}

// Logger builds the process logger described by the [log] section.
func (c LogConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	trimmed := strings.TrimPrefix(path, "~")
	trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))
	return filepath.Join(home, trimmed)
}

func stringKeys(m map[engine.EntryType]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

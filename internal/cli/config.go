package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/procstep/internal/state"
)

// Config holds defaults read from a TOML file. Command-line flags override
// it; keys missing from the file leave the built-in defaults alone.
type Config struct {
	LogLevel    slog.Level
	Database    string
	Seed        *uint64
	Parallelism int
	History     *state.History
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{LogLevel: slog.LevelInfo}
}

type fileConfig struct {
	LogLevel    string `toml:"log_level"`
	DB          string `toml:"db"`
	Seed        int64  `toml:"seed"`
	Parallelism int    `toml:"parallelism"`
	History     string `toml:"history"`
}

// LoadConfig reads a config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return Config{}, fmt.Errorf("parse log_level: %w", err)
		}
	}

	if meta.IsDefined("db") {
		cfg.Database = strings.TrimSpace(raw.DB)
	}

	if meta.IsDefined("seed") {
		if raw.Seed < 0 {
			return Config{}, fmt.Errorf("parse seed: must be non-negative, got %d", raw.Seed)
		}
		seed := uint64(raw.Seed)
		cfg.Seed = &seed
	}

	if meta.IsDefined("parallelism") {
		if raw.Parallelism < 0 {
			return Config{}, fmt.Errorf("parse parallelism: must be non-negative, got %d", raw.Parallelism)
		}
		cfg.Parallelism = raw.Parallelism
	}

	if meta.IsDefined("history") {
		h, err := state.ParseHistory(strings.TrimSpace(raw.History))
		if err != nil {
			return Config{}, fmt.Errorf("parse history: %w", err)
		}
		cfg.History = &h
	}

	return cfg, nil
}

// newLogger returns a text logger on w. Verbose lowers the level to debug.
func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := opts.Config.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

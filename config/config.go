// Package config loads the host settings of a Coup table from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/luca-patrignani/mental-coup/domain/coup"
)

// Config holds the process settings. Every field has a default, so an empty
// environment yields a playable table.
type Config struct {
	// LedgerPath is the SQLite file backing the table. Empty keeps the game in memory.
	LedgerPath       string        `env:"COUP_LEDGER_PATH"`
	GameID           string        `env:"COUP_GAME_ID" envDefault:"table-1"`
	MinPlayers       int           `env:"COUP_MIN_PLAYERS" envDefault:"2"`
	MaxPlayers       int           `env:"COUP_MAX_PLAYERS" envDefault:"6"`
	AllowLateJoin    bool          `env:"COUP_ALLOW_LATE_JOIN" envDefault:"false"`
	DecisionWindow   time.Duration `env:"COUP_DECISION_WINDOW" envDefault:"30s"`
	MandatoryCoupAt  uint          `env:"COUP_MANDATORY_COUP_AT" envDefault:"10"`
	TargetOnlyBlocks bool          `env:"COUP_TARGET_ONLY_BLOCKS" envDefault:"false"`
	StartingCoins    uint          `env:"COUP_STARTING_COINS" envDefault:"2"`
	LogLevel         string        `env:"COUP_LOG_LEVEL" envDefault:"info"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.GameID = strings.TrimSpace(cfg.GameID)
	if cfg.GameID == "" {
		return Config{}, fmt.Errorf("COUP_GAME_ID must not be empty")
	}
	if err := cfg.Rules().Validate(); err != nil {
		return Config{}, fmt.Errorf("rules: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Rules builds the engine rules from the configuration.
func (c Config) Rules() coup.Rules {
	return coup.Rules{
		MinPlayers:       c.MinPlayers,
		MaxPlayers:       c.MaxPlayers,
		AllowLateJoin:    c.AllowLateJoin,
		DecisionWindow:   c.DecisionWindow,
		MandatoryCoupAt:  c.MandatoryCoupAt,
		TargetOnlyBlocks: c.TargetOnlyBlocks,
		StartingCoins:    c.StartingCoins,
	}
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("COUP_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Package config loads runtime configuration for tourneyctl from
// .tourney.yaml, TOURNEY_* environment variables, and CLI flags, following
// the layered viper setup papapumpkin-quasar's internal/config uses.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EngineEntry is one participant's launch descriptor, read from the
// engines list in the config file.
type EngineEntry struct {
	Name     string   `mapstructure:"name"`
	Path     string   `mapstructure:"path"`
	Args     []string `mapstructure:"args"`
	Protocol string   `mapstructure:"protocol"`
	Elo      int      `mapstructure:"elo"`
}

// TimeControlEntry mirrors timecontrol.Controller's on-disk shape.
type TimeControlEntry struct {
	Mode      string  `mapstructure:"mode"`
	Moves     int     `mapstructure:"moves"`
	Time      float64 `mapstructure:"time"`
	Increment float64 `mapstructure:"increment"`
	Margin    float64 `mapstructure:"margin"`
	Depth     int     `mapstructure:"depth"`
}

// Config holds the full tournament run configuration.
type Config struct {
	TournamentName string           `mapstructure:"tournament_name"`
	Type           string           `mapstructure:"type"` // round-robin | knockout
	GamesPerPair   int              `mapstructure:"games_per_pair"`
	Concurrency    int              `mapstructure:"concurrency"`
	PonderMode     bool             `mapstructure:"ponder"`
	VerboseEngineIO bool            `mapstructure:"verbose_engine_io"`

	AdjudicationMaxGameLength int  `mapstructure:"adjudication_max_game_length"`
	AdjudicationEgtbMode      bool `mapstructure:"adjudication_egtb_mode"`
	AdjudicationMaxPieces     int  `mapstructure:"adjudication_max_pieces"`

	TimeControl TimeControlEntry `mapstructure:"time_control"`
	Engines     []EngineEntry    `mapstructure:"engines"`

	OpeningBookPath string `mapstructure:"opening_book_path"`
	OpeningMaxPly   int    `mapstructure:"opening_max_ply"`
	OpeningTop100   bool   `mapstructure:"opening_top100"`

	LedgerBackend string `mapstructure:"ledger_backend"` // file | redis
	LedgerPath    string `mapstructure:"ledger_path"`
	RedisURL      string `mapstructure:"redis_url"`
	DatabaseURL   string `mapstructure:"database_url"`

	PGNOutputPath string `mapstructure:"pgn_output_path"`
}

// Load reads configuration from viper, applying defaults for any value not
// set by a config file, environment variable, or flag.
func Load() (*Config, error) {
	viper.SetDefault("tournament_name", "tournament")
	viper.SetDefault("type", "round-robin")
	viper.SetDefault("games_per_pair", 2)
	viper.SetDefault("concurrency", 1)
	viper.SetDefault("ponder", false)
	viper.SetDefault("verbose_engine_io", false)
	viper.SetDefault("adjudication_max_game_length", 0)
	viper.SetDefault("adjudication_egtb_mode", false)
	viper.SetDefault("adjudication_max_pieces", 6)
	viper.SetDefault("time_control.mode", "standard")
	viper.SetDefault("time_control.moves", 40)
	viper.SetDefault("time_control.time", 60.0)
	viper.SetDefault("time_control.increment", 1.0)
	viper.SetDefault("time_control.margin", 0.1)
	viper.SetDefault("opening_max_ply", 0)
	viper.SetDefault("opening_top100", false)
	viper.SetDefault("ledger_backend", "file")
	viper.SetDefault("ledger_path", "playing.json")
	viper.SetDefault("pgn_output_path", "tourney-games.pgn")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Engines) < 2 {
		return fmt.Errorf("at least two engines are required, got %d", len(c.Engines))
	}
	seen := make(map[string]bool, len(c.Engines))
	for _, e := range c.Engines {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return fmt.Errorf("engine entry missing name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate engine name %q", name)
		}
		seen[name] = true
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("engine %q missing launch path", name)
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "round-robin", "knockout":
	default:
		return fmt.Errorf("tournament type must be round-robin or knockout, got %q", c.Type)
	}
	if strings.ToLower(strings.TrimSpace(c.LedgerBackend)) == "redis" && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("ledger_backend=redis requires redis_url")
	}
	return nil
}

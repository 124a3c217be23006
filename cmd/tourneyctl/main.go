// Command tourneyctl runs a chess-engine tournament: it reads a config
// file describing the participating engines and time control, plays every
// scheduled match through the core state machines, and writes a PGN
// archive plus a standings report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/parkbanksia/tourney/internal/archive"
	"github.com/parkbanksia/tourney/internal/config"
	"github.com/parkbanksia/tourney/internal/enginepool"
	"github.com/parkbanksia/tourney/internal/ledger"
	"github.com/parkbanksia/tourney/internal/obslog"
	"github.com/parkbanksia/tourney/internal/registry"
	"github.com/parkbanksia/tourney/internal/ticker"
	"github.com/parkbanksia/tourney/internal/tournament"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "tourneyctl",
	Short: "Run and resume chess-engine tournaments",
	Long:  "tourneyctl schedules and plays chess-engine tournaments against a resumable match ledger.",
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .tourney.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose-engine-io", "v", false, "log every line exchanged with each engine")
	_ = viper.BindPFlag("verbose_engine_io", rootCmd.PersistentFlags().Lookup("verbose-engine-io"))

	rootCmd.AddCommand(runCmd, resumeCmd, validateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".tourney")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("TOURNEY")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a tournament from scratch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTournament(cmd.Context())
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a tournament from its ledger, replaying only unfinished matches",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The manager's Run already skips ledger-completed matches; resume
		// is the same entrypoint pointed at the same ledger file.
		return runTournament(cmd.Context())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without launching any engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		fmt.Printf("configuration valid: %d engines, type=%s, games_per_pair=%d\n", len(cfg.Engines), cfg.Type, cfg.GamesPerPair)
		return nil
	},
}

func runTournament(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := obslog.L()

	reg, err := registry.New(cfg.Engines, log)
	if err != nil {
		return fmt.Errorf("build engine registry: %w", err)
	}

	pool, err := enginepool.New(enginepool.Config{Factory: reg.Factory(), PerEngineCapacity: cfg.Concurrency + 1})
	if err != nil {
		return fmt.Errorf("build engine pool: %w", err)
	}
	defer pool.Close()

	store, err := buildLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var arc *archive.Repository
	if cfg.DatabaseURL != "" {
		arc, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect archive database: %w", err)
		}
		if err := arc.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure archive schema: %w", err)
		}
		defer arc.Close()
	}

	tk := ticker.New(ticker.DefaultInterval)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go tk.Run(runCtx)

	mgr := tournament.New(cfg, reg, pool, store, arc, tk, log)
	mgr.RegisterPoolTick()

	sigCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mgr.Run(sigCtx); err != nil {
		return fmt.Errorf("run tournament: %w", err)
	}

	for _, s := range mgr.Standings() {
		log.Info("standing",
			zap.String("engine", s.Name),
			zap.Float64("score", s.Score()),
			zap.Int("wins", s.Wins),
			zap.Int("losses", s.Losses),
			zap.Int("draws", s.Draws),
			zap.Float64("elo_diff", s.Elo.EloDiff),
			zap.Float64("los", s.Elo.LOS),
		)
	}
	return nil
}

func buildLedgerStore(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case "redis":
		return ledger.NewRedisStore(ctx, cfg.RedisURL)
	default:
		return ledger.NewFileStore(cfg.LedgerPath)
	}
}

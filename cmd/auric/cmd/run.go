package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"auric/agent"
	"auric/broker"
	"auric/config"
	"auric/feed"
	"auric/hub"
	"auric/journal"
	"auric/logger"
	"auric/market"
	"auric/oracle"
	"auric/risk"
	"auric/server"
	"auric/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading service",
	Long: `Run the full trading service: price feed, simulated ledger, control
loop, decision oracle and the HTTP/WebSocket API.

The agent starts disabled unless --agent is given; toggle it at runtime via
POST /api/agent/toggle.

Example:
  auric run --config config.yaml --agent`,
	RunE: runRun,
}

var (
	runConfigPath string
	runAgent      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to YAML config file")
	runCmd.Flags().BoolVar(&runAgent, "agent", false, "start with the autonomous agent enabled")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	log := logger.Setup(logger.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	jrnl, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer jrnl.Close()

	policy := risk.Policy{
		MaxOpenPositions:    cfg.Risk.MaxOpenPositions,
		MinStopDistance:     cfg.Risk.MinStopDistance,
		MinRR:               cfg.Risk.MinRR,
		ConfidenceThreshold: cfg.Risk.ConfidenceThreshold,
		DefaultVolume:       cfg.Risk.DefaultVolume,
		MaxVolume:           cfg.Risk.MaxVolume,
	}

	engine := sim.NewEngine(cfg.Feed.Instrument, cfg.Account.Currency, cfg.Account.Balance, policy, jrnl)
	events := hub.New(logger.Component("hub"))

	// Stop-loss and take-profit closes happen inside the mark-to-market pass;
	// surface them on the event stream like any other trade.
	engine.SetCloseListener(func(pos broker.Position, res broker.CloseResult, reason string) {
		events.Broadcast(hub.TradeEvent, broker.TradeResult{
			Success: true,
			Action:  "close",
			Ticket:  res.Ticket,
			Price:   res.Price,
			Profit:  res.Profit,
			Message: reason,
		})
	})

	timeout, err := cfg.Oracle.ParseTimeout()
	if err != nil {
		return err
	}
	adapter := oracle.NewAdapter(oracle.NewLLM(cfg.Oracle.Endpoint, cfg.Oracle.APIKey, cfg.Oracle.Model), timeout)

	samplePeriod, err := cfg.Loop.ParseSamplePeriod()
	if err != nil {
		return err
	}
	tf, err := market.ParseTimeframe(cfg.Loop.Timeframe)
	if err != nil {
		return err
	}

	loop := agent.New(agent.Options{
		Instrument:    cfg.Feed.Instrument,
		Timeframe:     tf,
		SamplePeriod:  samplePeriod,
		DecisionEvery: cfg.Loop.DecisionEvery,
		SnapshotEvery: cfg.Loop.SnapshotEvery,
	}, source, engine, adapter, events, policy, logger.Component("agent"))

	if runAgent {
		loop.Toggle(true)
	}

	go func() {
		if err := loop.Run(ctx); err != nil {
			log.WithError(err).Error("control loop exited")
			stop()
		}
	}()

	srv := server.New(cfg.Server.Addr, loop, engine, source, events, logger.Component("server"))
	return srv.Run(ctx)
}

// buildSource selects the price feed. In strict mode an unreachable live
// source aborts startup; otherwise the service degrades to synthetic data.
func buildSource(ctx context.Context, cfg *config.Config) (feed.Source, error) {
	log := logger.Component("feed")

	if cfg.Feed.Source == "oanda" {
		source, err := feed.NewOanda(ctx, cfg.Feed.Instrument, feed.OandaConfig{
			Token:     cfg.Feed.Oanda.Token,
			AccountID: cfg.Feed.Oanda.AccountID,
			Practice:  cfg.Feed.Oanda.Practice,
		})
		if err == nil {
			log.WithField("instrument", cfg.Feed.Instrument).Info("connected to oanda")
			return source, nil
		}
		if cfg.Feed.Strict {
			return nil, fmt.Errorf("strict mode: %w", err)
		}
		log.WithError(err).Warn("oanda unreachable, falling back to synthetic data")
	}

	log.WithFields(map[string]interface{}{
		"instrument": cfg.Feed.Instrument,
		"price":      cfg.Feed.InitialPrice,
	}).Info("using synthetic price feed")
	return feed.NewSynthetic(cfg.Feed.Instrument, cfg.Feed.InitialPrice, cfg.Feed.Seed), nil
}

func buildJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return journal.Nop{}, nil
	}
}

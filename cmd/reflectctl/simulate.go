package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"reflectledger/config"
	"reflectledger/integrations/indexer"
	"reflectledger/native/token"
)

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path of the configuration file to create")
	force := fs.Bool("force", false, "Replace an existing configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := os.Stat(*configPath); err == nil {
		if !*force {
			return fmt.Errorf("config %s already exists (use -force to replace it)", *configPath)
		}
		if err := os.Remove(*configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s (owner %s)\n", *configPath, cfg.Token.Owner)
	return nil
}

func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the ledger configuration")
	scenarioPath := fs.String("scenario", "", "YAML scenario to run")
	reset := fs.Bool("reset", false, "Discard the persisted snapshot and event log first")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenarioPath == "" {
		return fmt.Errorf("-scenario required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	sc, err := LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	logger, logCloser := setupLogging(cfg)
	defer logCloser.Close()

	ctx := context.Background()
	shutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	w, err := simulate(ctx, cfg, sc, *reset, logger)
	if w != nil {
		printSummary(os.Stdout, w)
	}
	return err
}

// simulate runs sc against a fresh ledger, indexing every event, and saves
// the final snapshot when the run succeeds.
func simulate(ctx context.Context, cfg *config.Config, sc *Scenario, reset bool, logger *slog.Logger) (*world, error) {
	start, err := sc.startTime()
	if err != nil {
		return nil, fmt.Errorf("scenario start: %w", err)
	}
	if reset {
		if err := removeIfExists(cfg.SnapshotPath()); err != nil {
			return nil, err
		}
		if dsn := cfg.EventsDSN(); isFileDSN(dsn) {
			if err := removeIfExists(dsn); err != nil {
				return nil, err
			}
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	if _, exists, err := token.LoadSnapshot(store); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("a snapshot already exists in %s (use -reset to replace it)", cfg.SnapshotPath())
	}

	w, err := newWorld(cfg, start)
	if err != nil {
		return nil, err
	}
	ix, err := indexer.Open(cfg.EventsDSN())
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	ix.SetLogger(logger)
	ix.SetNowFunc(w.clock)

	hooks, err := webhookSink(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer hooks.Close()

	w.engine.SetLogger(logger)
	w.engine.SetEmitter(sinks(ix, hooks))

	outcomes, err := sc.Run(ctx, w, logger)
	if err != nil {
		return w, err
	}
	if err := ix.Err(); err != nil {
		return w, err
	}
	if err := w.engine.Save(store); err != nil {
		return w, fmt.Errorf("save snapshot: %w", err)
	}
	rejected := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			rejected++
		}
	}
	logger.Info("scenario complete",
		slog.Int("steps", len(outcomes)),
		slog.Int("rejected", rejected),
		slog.String("snapshot", cfg.SnapshotPath()))
	return w, nil
}

func printSummary(out io.Writer, w *world) {
	e := w.engine
	decimals := e.Decimals()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total supply\t%s\n", config.FormatAmount(e.TotalSupply(), decimals))
	fmt.Fprintf(tw, "holders\t%d\n", e.HolderCount())
	fmt.Fprintf(tw, "pending swap\t%s\n", config.FormatAmount(e.PendingSwap(), decimals))
	fmt.Fprintf(tw, "dividends distributed\t%s\n", config.FormatAmount(e.TotalDividendsDistributed(), decimals))
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "account\tbalance\twithdrawable\twithdrawn")

	labels := make([]string, 0, len(w.labels)+1)
	labels = append(labels, "owner")
	for label := range w.labels {
		labels = append(labels, label)
	}
	sort.Strings(labels[1:])
	for _, label := range labels {
		addr, err := w.resolve(label)
		if err != nil {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", label,
			config.FormatAmount(e.BalanceOf(addr), decimals),
			config.FormatAmount(e.WithdrawableDividendsOf(addr), decimals),
			config.FormatAmount(e.WithdrawnDividendsOf(addr), decimals))
	}
	_ = tw.Flush()
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/homework-solver/internal/core/async"
	"github.com/joseph-ayodele/homework-solver/internal/ingest"
	"github.com/joseph-ayodele/homework-solver/internal/server"
)

const shutdownGrace = 30 * time.Second

var errWatcherStopped = errors.New("watcher stopped")

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watcher daemon",
	Long: `Recovers documents interrupted by a previous run, optionally scans the watch folder,
then processes every PDF that is created or modified there until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.Duration("debounce", 0, "quiet window before a changed file is processed (default 2s)")
	f.Bool("initial-scan", true, "process PDFs already in the folder at start")
	f.String("health-addr", "", "serve grpc.health.v1 on this address (e.g. :8081)")
	cobra.CheckErr(v.BindPFlag("debounce", f.Lookup("debounce")))
	cobra.CheckErr(v.BindPFlag("initial_scan", f.Lookup("initial-scan")))
	cobra.CheckErr(v.BindPFlag("health_addr", f.Lookup("health-addr")))
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := cfg.ValidateWatch(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	proc := newProcessor(cfg, st, logger)
	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Workers),
		async.WithQueueSize(cfg.QueueSize),
		async.WithProcessTimeout(cfg.ProcessTimeout),
	)

	resume, err := proc.Recover(ctx)
	if err != nil {
		return err
	}
	for _, p := range resume {
		if _, err := os.Stat(p); err != nil {
			logger.Warn("cannot resume document: source missing", "path", p, "error", err)
			continue
		}
		queue.Enqueue(ctx, p)
	}

	g, gctx := errgroup.WithContext(ctx)
	events, watchErrs, err := ingest.StartWatcher(gctx, ingest.WatchConfig{
		Dir:         cfg.WatchDir,
		InitialScan: cfg.InitialScan,
		Debounce:    cfg.Debounce,
	}, logger)
	if err != nil {
		return err
	}

	var watching atomic.Bool
	watching.Store(true)
	g.Go(func() error {
		defer watching.Store(false)
		for ev := range events {
			queue.Enqueue(gctx, ev.Path)
		}
		return nil
	})
	g.Go(func() error {
		for err := range watchErrs {
			logger.Warn("watcher reported error", "error", err)
		}
		return nil
	})

	if cfg.HealthAddr != "" {
		hs := server.NewHealthServer(cfg.HealthAddr, 15*time.Second, logger)
		hs.AddCheck("state_db", func(ctx context.Context) error {
			return server.PingStateDB(ctx, st.docs, logger, 3*time.Second)
		})
		hs.AddCheck("watcher", func(context.Context) error {
			if !watching.Load() {
				return errWatcherStopped
			}
			return nil
		})
		g.Go(func() error { return hs.Run(gctx) })
	}

	logger.Info("watching for homework", "dir", cfg.WatchDir, "output_dir", cfg.OutputDir, "workers", cfg.Workers)
	err = g.Wait()

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	return err
}

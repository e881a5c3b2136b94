package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/coldhome-io/coldhome/internal/metrics"
)

func runDaemon(args []string) {
	fs := flag.NewFlagSet("daemon", flag.ExitOnError)
	var f runFlags
	f.register(fs)
	schedule := fs.String("schedule", "", `Cron schedule for archival passes (e.g. "0 3 * * *")`)
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g. :9090)")

	fs.Usage = func() {
		fmt.Println(`Usage: coldhome daemon [options]

Run archival passes on a cron schedule and serve Prometheus metrics.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := f.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *schedule != "" {
		cfg.Daemon.Schedule = *schedule
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if cfg.Daemon.Schedule == "" {
		fmt.Fprintln(os.Stderr, "daemon mode needs a cron schedule (-schedule or daemon.schedule)")
		os.Exit(1)
	}
	if _, err := cron.ParseStandard(cfg.Daemon.Schedule); err != nil {
		fmt.Fprintf(os.Stderr, "invalid cron schedule %q: %v\n", cfg.Daemon.Schedule, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archiverMetrics := metrics.NewArchiverMetrics()
	storeMetrics := metrics.NewObjectStoreMetrics()

	store, err := newStore(ctx, cfg, storeMetrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create object store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runner := newRunner(cfg, store, newBuilder(&f), logger, archiverMetrics)

	// One pass at a time: a slow pass simply absorbs the next tick.
	var passMu sync.Mutex
	pass := func() {
		if !passMu.TryLock() {
			logger.Warn("previous archival pass still running, skipping this tick")
			return
		}
		defer passMu.Unlock()

		summary, err := runner.Run(ctx)
		if err != nil {
			logger.Errorf("archival pass aborted", map[string]any{"error": err.Error()})
			return
		}
		if summary.Failed > 0 {
			logger.Errorf("archival pass finished with failures", map[string]any{"failed": summary.Failed})
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Daemon.Schedule, pass); err != nil {
		fmt.Fprintf(os.Stderr, "failed to schedule archival pass: %v\n", err)
		os.Exit(1)
	}
	c.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.Observability.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics server failed", map[string]any{"error": err.Error()})
		}
	}()

	logger.Infof("daemon started", map[string]any{
		"schedule":    cfg.Daemon.Schedule,
		"metricsAddr": cfg.Observability.MetricsAddr,
	})

	<-ctx.Done()
	logger.Info("shutting down")

	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

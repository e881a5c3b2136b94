package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/coldhome-io/coldhome/internal/archive"
	"github.com/coldhome-io/coldhome/internal/archiver"
	"github.com/coldhome-io/coldhome/internal/config"
	"github.com/coldhome-io/coldhome/internal/logging"
	"github.com/coldhome-io/coldhome/internal/metrics"
	"github.com/coldhome-io/coldhome/internal/objectstore"
	"github.com/coldhome-io/coldhome/internal/objectstore/s3"
)

// runFlags holds CLI overrides shared by the run and daemon subcommands.
type runFlags struct {
	configPath  string
	root        string
	days        int
	prefix      string
	bucket      string
	delete      bool
	dryRun      bool
	user        string
	workers     int
	noticeFile  string
	sizeCeiling string
	builtinTar  bool
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&f.root, "root", "", "Root directory containing user home directories")
	fs.IntVar(&f.days, "days", 0, "Staleness cutoff in days")
	fs.StringVar(&f.prefix, "prefix", "", "Object key prefix to upload archives under")
	fs.StringVar(&f.bucket, "bucket", "", "Object store bucket")
	fs.BoolVar(&f.delete, "delete", false, "Write retrieval notices and delete archived directories")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Report what would be archived without changing anything")
	fs.StringVar(&f.user, "user", "", "Only process this single user directory")
	fs.IntVar(&f.workers, "workers", 0, "Worker pool size")
	fs.StringVar(&f.noticeFile, "notice-file", "", "Name of the retrieval notice file")
	fs.StringVar(&f.sizeCeiling, "size-ceiling", "", `Skip archiving inactive directories at or above this size (e.g. "100GB")`)
	fs.BoolVar(&f.builtinTar, "builtin-tar", false, "Build archives in-process instead of invoking tar")
}

// loadConfig loads the configuration and applies CLI overrides.
func (f *runFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if f.root != "" {
		cfg.Archiver.RootDir = f.root
	}
	if f.days > 0 {
		cfg.Archiver.CutoffDays = f.days
	}
	if f.prefix != "" {
		cfg.Archiver.ObjectPrefix = f.prefix
	}
	if f.bucket != "" {
		cfg.ObjectStore.Bucket = f.bucket
	}
	if f.delete {
		cfg.Archiver.Delete = true
	}
	if f.dryRun {
		cfg.Archiver.DryRun = true
	}
	if f.user != "" {
		cfg.Archiver.Only = f.user
	}
	if f.workers > 0 {
		cfg.Archiver.Workers = f.workers
	}
	if f.noticeFile != "" {
		cfg.Archiver.NoticeFileName = f.noticeFile
	}
	if f.sizeCeiling != "" {
		ceiling, err := humanize.ParseBytes(f.sizeCeiling)
		if err != nil {
			return nil, fmt.Errorf("invalid -size-ceiling %q: %w", f.sizeCeiling, err)
		}
		cfg.Archiver.SizeCeilingBytes = int64(ceiling)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	})
}

func newStore(ctx context.Context, cfg *config.Config, rec objectstore.MetricsRecorder) (objectstore.Store, error) {
	store, err := s3.New(ctx, s3.Config{
		Bucket:          cfg.ObjectStore.Bucket,
		Region:          cfg.ObjectStore.Region,
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKey,
		SecretAccessKey: cfg.ObjectStore.SecretKey,
		UsePathStyle:    cfg.ObjectStore.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return store, nil
	}
	return objectstore.NewInstrumentedStore(store, rec), nil
}

func newBuilder(f *runFlags) archive.Builder {
	if f.builtinTar {
		return &archive.GzipBuilder{}
	}
	return &archive.TarBuilder{}
}

func newRunner(cfg *config.Config, store objectstore.Store, builder archive.Builder, logger *logging.Logger, m *metrics.ArchiverMetrics) *archiver.Runner {
	return archiver.NewRunner(archiver.Options{
		Config:    cfg.Archiver,
		Store:     store,
		Builder:   builder,
		Logger:    logger,
		Reporter:  archiver.NewReporter(os.Stdout),
		Metrics:   m,
		RefPrefix: "s3://" + cfg.ObjectStore.Bucket,
	})
}

func runOnce(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var f runFlags
	f.register(fs)

	fs.Usage = func() {
		fmt.Println(`Usage: coldhome run [options]

Perform one archival pass: classify every user home directory under the
root, archive and upload the inactive ones, and (with -delete) leave a
retrieval notice and remove the archived contents.

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

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create object store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runner := newRunner(cfg, store, newBuilder(&f), logger, nil)

	summary, err := runner.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", err)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(2)
	}
}

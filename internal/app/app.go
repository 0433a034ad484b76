package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jgivc/boundaryimporter/internal/archive"
	"github.com/jgivc/boundaryimporter/internal/common"
	"github.com/jgivc/boundaryimporter/internal/config"
	"github.com/jgivc/boundaryimporter/internal/entity"
	"github.com/jgivc/boundaryimporter/internal/repository/registry"
	rreport "github.com/jgivc/boundaryimporter/internal/repository/report"
	"github.com/jgivc/boundaryimporter/internal/service/acquisition"
	"github.com/jgivc/boundaryimporter/internal/service/report"
	"github.com/jgivc/boundaryimporter/internal/storage/remote"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const (
	reportTimeout = 10 * time.Second
	pingTimeout   = 5 * time.Second
)

type Reporter interface {
	Report(ctx context.Context, outcome *entity.RunOutcome) error
}

type App struct {
	cfgPath  string
	cfg      *config.Config
	running  atomic.Bool
	registry acquisition.Registry
	reporter Reporter
	rdb      *redis.Client
	log      *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

// Start loads the configuration and wires the long lived collaborators.
// Every returned error wraps common.ErrSetup.
func (a *App) Start() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrSetup, err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return a.init(cfg, afero.NewOsFs(), log)
}

func (a *App) init(cfg *config.Config, fs afero.Fs, log *slog.Logger) error {
	a.cfg = cfg
	a.log = log

	a.registry = registry.NewBoundaryRegistry(cfg.Registry.URL, cfg.Registry.UploadTimeout, cfg.Registry.QueryTimeout, log)

	var publisher report.Publisher

	if cfg.Report.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.Report.RedisURL)
		if err != nil {
			return fmt.Errorf("%w: cannot parse redis url: %w", common.ErrSetup, err)
		}

		a.rdb = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if _, err := a.rdb.Ping(ctx).Result(); err != nil {
			log.Warn("Redis is not reachable, reports may not be published", slog.Any("error", err))
		}

		publisher = rreport.NewReportRepository(a.rdb, cfg.Report.RedisKey, cfg.Report.RedisTTL, log)
	}

	a.reporter = report.NewReportService(fs, report.Options{
		MarkdownFile: cfg.Report.MarkdownFile,
		HTMLFile:     cfg.Report.HTMLFile,
	}, publisher, log)

	return nil
}

// RunOnce connects to the acquisition server, runs one acquisition and reports it.
// Only one run may be in progress at a time.
func (a *App) RunOnce(ctx context.Context) (*entity.RunOutcome, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, common.ErrRunAlreadyStarted
	}
	defer a.running.Store(false)

	src, err := remote.Open(ctx, remote.Options{
		URL:             a.cfg.Acquisition.URL,
		Username:        a.cfg.Acquisition.Username,
		Password:        a.cfg.Acquisition.Password,
		PrivateKeyFile:  a.cfg.Acquisition.PrivateKeyFile,
		KnownHostsFile:  a.cfg.Acquisition.KnownHostsFile,
		ConnectTimeout:  a.cfg.Acquisition.ConnectTimeout,
		ConnectAttempts: a.cfg.Acquisition.ConnectAttempts,
	}, a.log)
	if err != nil {
		if ctx.Err() != nil {
			return nil, common.ErrInterrupted
		}

		a.log.Error("Cannot open acquisition server", slog.Any("error", err))

		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.log.Warn("Cannot close acquisition server connection", slog.Any("error", err))
		}
	}()

	svc := acquisition.NewAcquisitionService(src, a.registry, acquisition.Options{
		Directory: a.cfg.Acquisition.Directory,
		Limits: archive.Limits{
			MaxEntries:    a.cfg.Limits.MaxEntries,
			MaxTotalBytes: a.cfg.Limits.MaxTotalBytes,
		},
		TrackImported: a.cfg.Dedup.TrackImported,
	}, a.log)

	outcome, runErr := svc.Run(ctx)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := a.reporter.Report(rctx, outcome); err != nil {
		a.log.Warn("Run report is incomplete", slog.Any("error", err))
	}

	return outcome, runErr
}

// Daemon runs an acquisition every interval and whenever trigger fires, until ctx is done.
// A trigger received while a run is in progress is rejected.
func (a *App) Daemon(ctx context.Context, trigger <-chan struct{}) {
	interval := a.cfg.Daemon.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	a.log.Info("Daemon started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runLogged(ctx)
		}()
	}

	start()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Daemon stopping")

			return
		case <-ticker.C:
			start()
		case <-trigger:
			a.log.Info("Run triggered")
			start()
		}
	}
}

func (a *App) runLogged(ctx context.Context) {
	_, err := a.RunOnce(ctx)

	switch {
	case err == nil:
	case errors.Is(err, common.ErrRunAlreadyStarted):
		a.log.Warn("Run skipped", slog.Any("error", err))
	case errors.Is(err, common.ErrInterrupted):
		a.log.Info("Run interrupted")
	default:
		a.log.Error("Run failed", slog.Any("error", err))
	}
}

func (a *App) Stop() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("Cannot close redis client", slog.Any("error", err))
		}
	}
}

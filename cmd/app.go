package cmd

import (
	"fmt"

	"github.com/AlfredBerg/rootdata-sync/internal/archive"
	"github.com/AlfredBerg/rootdata-sync/internal/config"
	"github.com/AlfredBerg/rootdata-sync/internal/crawl"
	"github.com/AlfredBerg/rootdata-sync/internal/logging"
	"github.com/AlfredBerg/rootdata-sync/internal/outputHandlers/airtable"
	"github.com/AlfredBerg/rootdata-sync/internal/outputHandlers/sqlite"
	"github.com/AlfredBerg/rootdata-sync/internal/syncer"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// app holds everything a pass needs, built from the loaded config.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	runner *crawl.Runner

	cleanup []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	opts := syncer.Options{
		BatchSize:        cfg.Sync.BatchSize,
		MaxAttempts:      cfg.Sync.MaxAttempts,
		RateLimitBackoff: cfg.Sync.RateLimitBackoff,
		RetryBackoff:     cfg.Sync.RetryBackoff,
		BatchPause:       cfg.Sync.BatchPause,
	}
	engine := syncer.New(store, archive.NewFailureLog(cfg.Archive.FailedPath), opts, logger.Named("sync"))

	launch := crawl.RodLauncher(crawl.BrowserOptions{
		Bin:      cfg.Browser.Bin,
		Headless: cfg.Browser.Headless,
		Stealth:  cfg.Browser.Stealth,
	}, logger.Named("browser"))

	timings := crawl.DefaultTimings()
	if cfg.Browser.Timeout > 0 {
		timings.Element = cfg.Browser.Timeout
	}
	site := crawl.Site{
		LoginURL:   cfg.Site.LoginURL,
		ListingURL: cfg.Site.ListingURL,
		Email:      cfg.Site.Email,
		Password:   cfg.Site.Password,
		PageSize:   cfg.Site.PageSize,
	}
	a.runner = crawl.NewRunner(launch, site, timings,
		archive.NewWriter(cfg.Archive.Path, logger.Named("archive")), engine, logger.Named("pass"))
	a.runner.StopOnExisting = cfg.Sync.StopOnExisting
	return a, nil
}

func (a *app) openStore() (syncer.Store, error) {
	switch a.cfg.Remote.Driver {
	case config.DriverSqlite:
		out := &sqlite.SqliteOutput{Database: a.cfg.Remote.SqlitePath}
		if err := out.Init(); err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.cleanup = append(a.cleanup, out.Cleanup)
		a.logger.Info("syncing to sqlite", zap.String("database", out.Database))
		return out, nil
	default:
		a.logger.Info("syncing to airtable", zap.String("base", a.cfg.Remote.BaseID), zap.String("table", a.cfg.Remote.Table))
		return airtable.NewClient(airtable.Options{
			BaseURL: a.cfg.Remote.BaseURL,
			APIKey:  a.cfg.Remote.APIKey,
			BaseID:  a.cfg.Remote.BaseID,
			Table:   a.cfg.Remote.Table,
			Timeout: a.cfg.Remote.Timeout,
		}), nil
	}
}

func (a *app) Close() {
	for _, f := range a.cleanup {
		if err := f(); err != nil {
			a.logger.Warn("cleanup failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

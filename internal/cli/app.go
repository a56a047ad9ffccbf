package cli

import (
	"fmt"
	"io"

	"github.com/pfrederiksen/lastfm-events/internal/cache"
	"github.com/pfrederiksen/lastfm-events/internal/config"
	"github.com/pfrederiksen/lastfm-events/internal/event"
	"github.com/pfrederiksen/lastfm-events/internal/fetch"
	"github.com/pfrederiksen/lastfm-events/internal/logger"
	"github.com/pfrederiksen/lastfm-events/internal/metrics"
	"github.com/pfrederiksen/lastfm-events/internal/pipeline"
	"github.com/pfrederiksen/lastfm-events/internal/resolver"
	"github.com/pfrederiksen/lastfm-events/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app holds the collaborators shared by every request of a process
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	pipeline *pipeline.Pipeline
	db       *cache.DB
}

// newApp builds the pipeline and its caches from cfg. Logs go to logOut.
func newApp(cfg *config.Config, logOut io.Writer, verbose bool) (*app, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level, logOut)
	logger.SetDefault(log)

	sc, err := scraper.New(fetch.New(cfg.FetchOptions()), cfg.Source.Origin)
	if err != nil {
		return nil, fmt.Errorf("initializing scraper: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	opts := cache.Options{Backend: cfg.Cache.Backend, MaxEntries: cfg.Cache.MaxEntries}
	if cfg.Cache.Backend == cache.BackendSQLite {
		if a.db, err = cache.Open(cfg.Cache.SQLitePath); err != nil {
			return nil, fmt.Errorf("initializing cache: %w", err)
		}
		opts.DB = a.db
	}

	details, err := cache.New[event.Detail](opts, resolver.DetailCache)
	if err != nil {
		a.Close() // nolint:errcheck
		return nil, fmt.Errorf("initializing detail cache: %w", err)
	}
	images, err := cache.New[string](opts, resolver.ImageCache)
	if err != nil {
		a.Close() // nolint:errcheck
		return nil, fmt.Errorf("initializing artist image cache: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	a.pipeline = pipeline.New(sc, resolver.New(sc, details, images, m), pipeline.Options{
		StopAfter: cfg.StopAfter(),
		Metrics:   m,
		Logger:    log,
	})

	log.Debug("Initialized pipeline", logger.Fields{
		"origin":        cfg.Source.Origin,
		"cache_backend": cfg.Cache.Backend,
		"max_entries":   cfg.Cache.MaxEntries,
		"stop_after":    cfg.StopAfter(),
	})

	return a, nil
}

// Close releases the cache database, if any
func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

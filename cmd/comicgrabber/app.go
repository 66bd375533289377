package main

import (
	"fmt"

	"comicgrabber/pkg/auth"
	"comicgrabber/pkg/config"
	"comicgrabber/pkg/coordinator"
	"comicgrabber/pkg/fetch"
	"comicgrabber/pkg/lifecycle"
	"comicgrabber/pkg/logger"
	"comicgrabber/pkg/router"
	"comicgrabber/pkg/scraper"
	"comicgrabber/pkg/sites"
	"comicgrabber/pkg/storage"
)

// app wires the download pipeline for one process
type app struct {
	cfg         *config.Config
	log         logger.Logger
	client      *fetch.Client
	sessions    *auth.Manager
	registry    *scraper.Registry
	loader      *scraper.Loader
	storage     *storage.Manager
	tracker     *lifecycle.Tracker
	coordinator *coordinator.Coordinator
	router      *router.Router
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	log = logger.OrDefault(log)

	sessions, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential storage unavailable, using environment only")
		sessions = auth.NewManagerWithStores(auth.NewEnvironmentStore())
	}

	registry := scraper.NewRegistry()
	if err := sites.Register(registry, sites.Deps{Extractor: scraper.NewPatternExtractor()}); err != nil {
		return nil, fmt.Errorf("failed to register sites: %w", err)
	}

	store, err := storage.NewManager(cfg.Download.Directory, log)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare output directory: %w", err)
	}

	client := fetch.NewClient(cfg.Fetch, log)
	tracker := lifecycle.NewTracker(store, cfg.Download.WaitTimeout, log)
	coord := coordinator.New(cfg, client, tracker, log)

	loader := scraper.NewLoader(registry, client, sessions, log)

	r := router.New(log)
	coord.Register(r)
	loader.Register(r)

	return &app{
		cfg:         cfg,
		log:         log,
		client:      client,
		sessions:    sessions,
		registry:    registry,
		loader:      loader,
		storage:     store,
		tracker:     tracker,
		coordinator: coord,
		router:      r,
	}, nil
}

// Close stops the tracker and waits for archives still being written
func (a *app) Close() {
	a.tracker.Close()
	a.storage.Wait()
}

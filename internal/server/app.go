// Package server publishes scenario documents over HTTP and runs one
// interpreter per WebSocket session.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"DialogueWidget/internal/config"
	"DialogueWidget/internal/history"
	"DialogueWidget/internal/loader"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

// App wires the catalog, loader, history store and session hub together.
type App struct {
	cfg      config.Config
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	catalog  *Catalog
	loader   *loader.Loader
	recorder history.Recorder
	store    *history.Store
	hub      *Hub
	watcher  *Watcher
}

// NewApp builds an App from resolved configuration.
func NewApp(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		hub:      NewHub(),
		recorder: history.Nop{},
	}

	catalog, err := NewCatalog(ctx, cfg.DataDir, log)
	if err != nil {
		cancel()
		return nil, err
	}
	a.catalog = catalog

	a.loader, err = loader.New(catalog.Source(), loader.Options{
		Fallback:  cfg.FallbackLang,
		CacheSize: cfg.CacheSize,
		Logger:    log,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
		a.recorder = store
	}

	if cfg.DataDir != "" && cfg.Watch {
		w, err := NewWatcher(catalog, 0, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			a.Close()
			return nil, fmt.Errorf("watch %s: %w", cfg.DataDir, err)
		}
		a.watcher = w
	}
	return a, nil
}

// Handler returns the HTTP routes.
func (a *App) Handler() http.Handler {
	return newMux(a)
}

// Hub exposes live sessions.
func (a *App) Hub() *Hub {
	return a.hub
}

// Catalog exposes the published documents.
func (a *App) Catalog() *Catalog {
	return a.catalog
}

// Run serves on the configured address until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, sweeping idle sessions.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("starting web server",
			zap.String("addr", ln.Addr().String()),
			zap.Strings("languages", a.catalog.Languages()),
			zap.Duration("pacing", a.cfg.PacingDelay))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := a.hub.CleanupIdle(a.cfg.SessionIdle); n > 0 {
					a.log.Info("closed idle sessions", zap.Int("count", n))
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		a.hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close stops background work and releases the history store.
func (a *App) Close() error {
	a.cancel()
	a.hub.CloseAll()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

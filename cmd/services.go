package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/highlight"
	"github.com/zjrosen/hlpipe/internal/infrastructure/sqlite"
	"github.com/zjrosen/hlpipe/internal/log"
	"github.com/zjrosen/hlpipe/internal/protocol"
	"github.com/zjrosen/hlpipe/internal/tracing"
	"github.com/zjrosen/hlpipe/internal/watcher"
)

// shutdownTimeout bounds flushing spans on exit.
const shutdownTimeout = 5 * time.Second

// services holds the components shared by the serve loop and the one-shot
// commands.
type services struct {
	registry    *grammar.Registry
	highlighter *highlight.Highlighter
	db          *sqlite.DB
	tracing     *tracing.Provider
}

func newServices(c config.Config) (*services, error) {
	rt := &services{
		registry: grammar.NewRegistry(c.Languages.Aliases),
	}

	var opts []highlight.HighlighterOption
	if c.Cache.Persistent.Enabled {
		db, err := sqlite.NewDB(c.Cache.Persistent.Path)
		if err != nil {
			return nil, fmt.Errorf("opening render store: %w", err)
		}
		rt.db = db
		opts = append(opts, highlight.WithStore(db.RenderStore()))
	}

	h, err := highlight.NewHighlighter(c.Highlight, c.Cache.Memory, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.highlighter = h

	provider, err := tracing.NewProvider(tracing.FromConfig(c.Tracing))
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	rt.tracing = provider

	return rt, nil
}

// Close flushes spans and closes the render store.
func (rt *services) Close() {
	if rt.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := rt.tracing.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "Failed to shut down tracing", err)
		}
		cancel()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			log.ErrorErr(log.CatDB, "Failed to close render store", err)
		}
	}
}

// Apply installs aliases and highlight settings from c. Cache and tracing
// settings are fixed for the life of the process.
func (rt *services) Apply(ctx context.Context, c config.Config) error {
	if err := config.ValidateAliases(c.Languages.Aliases); err != nil {
		return err
	}
	if err := config.ValidateHighlight(c.Highlight); err != nil {
		return err
	}
	if err := rt.highlighter.Reconfigure(ctx, c.Highlight); err != nil {
		return err
	}
	rt.registry.SetAliases(c.Languages.Aliases)
	return nil
}

// Reload reads path and applies it. A bad file keeps the current settings.
func (rt *services) Reload(ctx context.Context, path string) error {
	next, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	return rt.Apply(ctx, next)
}

// WatchConfig reloads path whenever it changes until the returned stop
// function is called.
func (rt *services) WatchConfig(path string) (func(), error) {
	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				if err := rt.Reload(ctx, path); err != nil {
					log.ErrorErr(log.CatConfig, "Config reload failed, keeping previous settings", err, "path", path)
					continue
				}
				log.Info(log.CatConfig, "Config reloaded", "path", path)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		if err := w.Stop(); err != nil {
			log.ErrorErr(log.CatWatcher, "Failed to stop watcher", err)
		}
	}, nil
}

func (rt *services) logSummary(s protocol.Summary) {
	stats := rt.highlighter.Stats()
	log.Info(log.CatProtocol, "Session finished",
		"session", s.SessionID,
		"requests", s.Requests,
		"discarded", s.Discarded,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
		"cache_items", stats.Items)
}

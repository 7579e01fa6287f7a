package highlight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/zjrosen/hlpipe/internal/cachemanager"
	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/infrastructure/sqlite"
	"github.com/zjrosen/hlpipe/internal/log"
)

// Digest is the cache key of a render.
type Digest string

// Store persists renders across processes.
type Store interface {
	Get(ctx context.Context, digest string) (*sqlite.Render, error)
	Put(ctx context.Context, r *sqlite.Render) error
}

type renderInput struct {
	digest Digest
	scope  grammar.Scope
	source string
}

// Highlighter renders through the memory cache and optional store.
type Highlighter struct {
	renderer atomic.Pointer[Renderer]
	cache    *cachemanager.ReadThroughCache[Digest, string, renderInput]
	store    Store
	ttl      time.Duration
}

// HighlighterOption configures a Highlighter.
type HighlighterOption func(*Highlighter)

// WithStore adds a persistent store consulted after the memory cache.
func WithStore(s Store) HighlighterOption {
	return func(h *Highlighter) {
		h.store = s
	}
}

// NewHighlighter builds a highlighter from configuration.
func NewHighlighter(hc config.HighlightConfig, cc config.MemoryCacheConfig, opts ...HighlighterOption) (*Highlighter, error) {
	renderer, err := NewRenderer(hc)
	if err != nil {
		return nil, err
	}

	ttl := cc.TTL
	if ttl == 0 {
		ttl = cachemanager.DefaultExpiration
	}

	h := &Highlighter{ttl: ttl}
	h.renderer.Store(renderer)
	for _, opt := range opts {
		opt(h)
	}

	manager := cachemanager.NewInMemoryCacheManager[Digest, string]("renders", ttl, cachemanager.DefaultCleanupInterval)
	h.cache = cachemanager.NewReadThroughCache[Digest, string, renderInput](manager, h.load, !cc.Enabled)
	return h, nil
}

// Render returns the HTML for source under scope.
func (h *Highlighter) Render(ctx context.Context, scope grammar.Scope, source string) (string, error) {
	renderer := h.renderer.Load()
	digest := digestOf(scope.Name, renderer.Fingerprint(), source)
	return h.cache.GetWithRefresh(ctx, digest, renderInput{digest: digest, scope: scope, source: source}, h.ttl)
}

func (h *Highlighter) load(ctx context.Context, in renderInput) (string, error) {
	if h.store != nil {
		stored, err := h.store.Get(ctx, string(in.digest))
		switch {
		case err == nil:
			log.Debug(log.CatDB, "Store hit", "scope", in.scope.Name, "digest", in.digest)
			return stored.HTML, nil
		case !errors.Is(err, sqlite.ErrNotFound):
			log.ErrorErr(log.CatDB, "Store lookup failed", err, "digest", in.digest)
		}
	}

	out, err := h.renderer.Load().Render(ctx, in.scope, in.source)
	if err != nil {
		return "", err
	}

	if h.store != nil {
		if err := h.store.Put(ctx, &sqlite.Render{
			Digest:      string(in.digest),
			Scope:       in.scope.Name,
			HTML:        out,
			SourceBytes: len(in.source),
		}); err != nil {
			log.ErrorErr(log.CatDB, "Store write failed", err, "digest", in.digest)
		}
	}
	return out, nil
}

// Reconfigure swaps the renderer and drops cached renders. On error the
// previous renderer stays in place.
func (h *Highlighter) Reconfigure(ctx context.Context, hc config.HighlightConfig) error {
	renderer, err := NewRenderer(hc)
	if err != nil {
		return err
	}
	h.renderer.Store(renderer)
	log.Info(log.CatRender, "Renderer reconfigured", "fingerprint", renderer.Fingerprint())
	return h.cache.Flush(ctx)
}

// Renderer returns the renderer currently in use.
func (h *Highlighter) Renderer() *Renderer {
	return h.renderer.Load()
}

// Stats reports memory cache counters.
func (h *Highlighter) Stats() cachemanager.Stats {
	return h.cache.Stats()
}

func digestOf(scope, fingerprint, source string) Digest {
	sum := sha256.New()
	sum.Write([]byte(scope))
	sum.Write([]byte{0})
	sum.Write([]byte(fingerprint))
	sum.Write([]byte{0})
	sum.Write([]byte(source))
	return Digest(hex.EncodeToString(sum.Sum(nil)))
}

package highlight

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/infrastructure/sqlite"
)

func newHighlighter(t *testing.T, opts ...HighlighterOption) *Highlighter {
	t.Helper()
	cfg := config.Defaults()
	h, err := NewHighlighter(cfg.Highlight, cfg.Cache.Memory, opts...)
	require.NoError(t, err)
	return h
}

func TestHighlighter_IdenticalRequestsIdenticalOutput(t *testing.T) {
	h := newHighlighter(t)
	scope := resolve(t, "python")
	src := "def f(x):\n    return x\n"

	first, err := h.Render(context.Background(), scope, src)
	require.NoError(t, err)
	second, err := h.Render(context.Background(), scope, src)
	require.NoError(t, err)

	require.Equal(t, first, second)
	stats := h.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestHighlighter_AliasesShareCacheEntry(t *testing.T) {
	h := newHighlighter(t)

	_, err := h.Render(context.Background(), resolve(t, "py"), "x = 1\n")
	require.NoError(t, err)
	_, err = h.Render(context.Background(), resolve(t, "python"), "x = 1\n")
	require.NoError(t, err)

	require.Equal(t, int64(1), h.Stats().Hits)
}

func TestHighlighter_CacheDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Cache.Memory.Enabled = false
	h, err := NewHighlighter(cfg.Highlight, cfg.Cache.Memory)
	require.NoError(t, err)

	scope := resolve(t, "go")
	for i := 0; i < 2; i++ {
		_, err := h.Render(context.Background(), scope, "x := 1\n")
		require.NoError(t, err)
	}
	require.Equal(t, 0, h.Stats().Items)
}

func TestHighlighter_Reconfigure(t *testing.T) {
	h := newHighlighter(t)
	scope := resolve(t, "go")
	ctx := context.Background()

	before, err := h.Render(ctx, scope, "func f() {}\n")
	require.NoError(t, err)
	require.Contains(t, before, `class="kd"`)

	hc := config.Defaults().Highlight
	hc.ClassPrefix = "hl-"
	require.NoError(t, h.Reconfigure(ctx, hc))
	require.Equal(t, 0, h.Stats().Items)

	after, err := h.Render(ctx, scope, "func f() {}\n")
	require.NoError(t, err)
	require.Contains(t, after, `class="hl-kd"`)
}

func TestHighlighter_ReconfigureInvalidKeepsRenderer(t *testing.T) {
	h := newHighlighter(t)
	old := h.Renderer()

	hc := config.Defaults().Highlight
	hc.Style = "does-not-exist"
	require.Error(t, h.Reconfigure(context.Background(), hc))
	require.Same(t, old, h.Renderer())
}

func TestHighlighter_WithStore(t *testing.T) {
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "renders.db"))
	require.NoError(t, err)
	defer db.Close()
	store := db.RenderStore()
	ctx := context.Background()
	scope := resolve(t, "go")

	h := newHighlighter(t, WithStore(store))
	out, err := h.Render(ctx, scope, "x := 1\n")
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// A fresh process finds the render in the store.
	digest := digestOf(scope.Name, h.Renderer().Fingerprint(), "x := 1\n")
	stored, err := store.Get(ctx, string(digest))
	require.NoError(t, err)
	require.Equal(t, out, stored.HTML)
	require.Equal(t, "Go", stored.Scope)
}

func TestHighlighter_StoreHitSkipsRender(t *testing.T) {
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "renders.db"))
	require.NoError(t, err)
	defer db.Close()
	store := db.RenderStore()
	ctx := context.Background()
	scope := resolve(t, "go")

	h := newHighlighter(t, WithStore(store))
	digest := digestOf(scope.Name, h.Renderer().Fingerprint(), "x := 1\n")
	require.NoError(t, store.Put(ctx, &sqlite.Render{Digest: string(digest), Scope: "Go", HTML: "<stored>"}))

	out, err := h.Render(ctx, scope, "x := 1\n")
	require.NoError(t, err)
	require.Equal(t, "<stored>", out)
}

type failingStore struct {
	mu   sync.Mutex
	puts int
}

func (s *failingStore) Get(ctx context.Context, digest string) (*sqlite.Render, error) {
	return nil, errors.New("disk on fire")
}

func (s *failingStore) Put(ctx context.Context, r *sqlite.Render) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	return errors.New("disk on fire")
}

func TestHighlighter_StoreErrorsDoNotFailRender(t *testing.T) {
	store := &failingStore{}
	h := newHighlighter(t, WithStore(store))

	out, err := h.Render(context.Background(), resolve(t, "go"), "func f() {}\n")
	require.NoError(t, err)
	require.Contains(t, out, `class="kd"`)
	require.Equal(t, 1, store.puts)
}

func TestDigestOf(t *testing.T) {
	a := digestOf("Go", "fp", "x")
	require.Len(t, string(a), 64)
	require.Equal(t, a, digestOf("Go", "fp", "x"))
	require.NotEqual(t, a, digestOf("Python", "fp", "x"))
	require.NotEqual(t, a, digestOf("Go", "fp2", "x"))
	require.NotEqual(t, a, digestOf("Go", "fp", "y"))
	// Field boundaries are unambiguous.
	require.NotEqual(t, digestOf("ab", "c", ""), digestOf("a", "bc", ""))
}

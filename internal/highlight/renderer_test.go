package highlight

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
)

func resolve(t *testing.T, flag string) grammar.Scope {
	t.Helper()
	scope, err := grammar.NewRegistry(nil).Resolve(flag)
	require.NoError(t, err)
	return scope
}

func newRenderer(t *testing.T, mutate func(*config.HighlightConfig)) *Renderer {
	t.Helper()
	cfg := config.Defaults().Highlight
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := NewRenderer(cfg)
	require.NoError(t, err)
	return r
}

func TestNewRenderer_UnknownStyle(t *testing.T) {
	cfg := config.Defaults().Highlight
	cfg.Style = "no-such-style"

	_, err := NewRenderer(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no-such-style")
}

func TestNewRenderer_InvalidConfig(t *testing.T) {
	cfg := config.Defaults().Highlight
	cfg.TabWidth = -1

	_, err := NewRenderer(cfg)
	require.Error(t, err)
}

func TestNewRenderer_EmptyStyleUsesFallback(t *testing.T) {
	r := newRenderer(t, func(c *config.HighlightConfig) { c.Style = "" })
	require.Contains(t, r.Fingerprint(), "style=")
}

func TestRenderer_PlainTextIsEscapedVerbatim(t *testing.T) {
	r := newRenderer(t, nil)

	out, err := r.Render(context.Background(), resolve(t, "plain"), "hello\n<world> & co\n")
	require.NoError(t, err)
	require.Equal(t, "hello\n&lt;world&gt; &amp; co\n", out)
}

func TestRenderer_BareSpans(t *testing.T) {
	r := newRenderer(t, nil)

	out, err := r.Render(context.Background(), resolve(t, "go"), "func main() {}\n")
	require.NoError(t, err)
	require.Contains(t, out, `<span class="kd">func</span>`)
	require.False(t, strings.HasPrefix(out, "<pre"), "default output has no <pre> wrapper")
}

// A raw string spanning lines keeps its string class on both lines.
func TestRenderer_TokenizesAcrossLines(t *testing.T) {
	r := newRenderer(t, nil)

	out, err := r.Render(context.Background(), resolve(t, "go"), "x := `a\nb`\n")
	require.NoError(t, err)
	require.Contains(t, out, "<span class=\"s\">`a\n</span>")
	require.Contains(t, out, "<span class=\"s\">b`</span>")
}

func TestRenderer_LineBreaksArePreserved(t *testing.T) {
	r := newRenderer(t, nil)
	scope := resolve(t, "go")

	twoLines, err := r.Render(context.Background(), scope, "// comment\nx := 1\n")
	require.NoError(t, err)
	require.Contains(t, twoLines, `<span class="o">:=</span>`)

	oneLine, err := r.Render(context.Background(), scope, "// comment x := 1\n")
	require.NoError(t, err)
	require.NotContains(t, oneLine, `<span class="o">:=</span>`)
}

func TestRenderer_Options(t *testing.T) {
	scope := resolve(t, "go")
	src := "func main() {}\n"

	tests := []struct {
		name   string
		mutate func(*config.HighlightConfig)
		check  func(t *testing.T, out string)
	}{
		{
			name:   "class prefix",
			mutate: func(c *config.HighlightConfig) { c.ClassPrefix = "hl-" },
			check: func(t *testing.T, out string) {
				require.Contains(t, out, `class="hl-kd"`)
			},
		},
		{
			name:   "inline styles",
			mutate: func(c *config.HighlightConfig) { c.Classes = false },
			check: func(t *testing.T, out string) {
				require.Contains(t, out, `style="`)
				require.NotContains(t, out, `class="kd"`)
			},
		},
		{
			name:   "surrounding pre",
			mutate: func(c *config.HighlightConfig) { c.PreventSurroundingPre = false },
			check: func(t *testing.T, out string) {
				require.True(t, strings.HasPrefix(out, "<pre"), out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRenderer(t, tt.mutate)
			out, err := r.Render(context.Background(), scope, src)
			require.NoError(t, err)
			tt.check(t, out)
		})
	}
}

func TestRenderer_CanceledContext(t *testing.T) {
	r := newRenderer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, resolve(t, "go"), "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRenderer_ScopeWithoutLexer(t *testing.T) {
	r := newRenderer(t, nil)

	_, err := r.Render(context.Background(), grammar.Scope{Name: "broken"}, "x")
	require.Error(t, err)
}

func TestRenderer_WriteCSS(t *testing.T) {
	r := newRenderer(t, nil)

	var sb strings.Builder
	require.NoError(t, r.WriteCSS(&sb))
	require.Contains(t, sb.String(), ".chroma")
	require.Contains(t, sb.String(), ".kd")
}

func TestRenderer_Fingerprint(t *testing.T) {
	a := newRenderer(t, nil)
	b := newRenderer(t, nil)
	c := newRenderer(t, func(cfg *config.HighlightConfig) { cfg.ClassPrefix = "x-" })

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestStyleNames(t *testing.T) {
	require.Contains(t, StyleNames(), "github")
}

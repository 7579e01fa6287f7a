// Package highlight turns source text into highlighted HTML.
//
// Tokenizing uses the lexer carried by a grammar.Scope; serialization uses
// chroma's HTML formatter configured from HighlightConfig. Highlighter adds
// the in-memory and persistent render caches in front of a Renderer.
package highlight

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/log"
)

// Renderer is a configured tokenizer + HTML serializer. It holds no
// per-request state and is safe for concurrent use.
type Renderer struct {
	cfg         config.HighlightConfig
	style       *chroma.Style
	formatter   *html.Formatter
	fingerprint string
}

// NewRenderer builds a renderer from cfg. An unknown style name is an error.
func NewRenderer(cfg config.HighlightConfig) (*Renderer, error) {
	if err := config.ValidateHighlight(cfg); err != nil {
		return nil, err
	}

	styleName := cfg.Style
	if styleName == "" {
		styleName = styles.Fallback.Name
	}
	style, ok := styles.Registry[styleName]
	if !ok {
		style, ok = styles.Registry[strings.ToLower(styleName)]
	}
	if !ok {
		return nil, fmt.Errorf("unknown highlight style %q", cfg.Style)
	}

	opts := []html.Option{
		html.WithClasses(cfg.Classes),
		html.ClassPrefix(cfg.ClassPrefix),
		html.WithLineNumbers(cfg.LineNumbers),
		html.PreventSurroundingPre(cfg.PreventSurroundingPre),
	}
	if cfg.TabWidth > 0 {
		opts = append(opts, html.TabWidth(cfg.TabWidth))
	}

	return &Renderer{
		cfg:       cfg,
		style:     style,
		formatter: html.New(opts...),
		fingerprint: fmt.Sprintf("style=%s;classes=%t;prefix=%s;tab=%d;lines=%t;nopre=%t",
			style.Name, cfg.Classes, cfg.ClassPrefix, cfg.TabWidth, cfg.LineNumbers, cfg.PreventSurroundingPre),
	}, nil
}

// Render tokenizes source with scope's grammar and returns the HTML. The
// whole source is tokenized as one unit so constructs spanning lines keep
// their state.
func (r *Renderer) Render(ctx context.Context, scope grammar.Scope, source string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if scope.Lexer == nil {
		return "", fmt.Errorf("scope %q has no grammar", scope.Name)
	}

	iterator, err := scope.Lexer.Tokenise(nil, source)
	if err != nil {
		return "", fmt.Errorf("tokenizing %s source: %w", scope.Name, err)
	}

	var sb strings.Builder
	if err := r.formatter.Format(&sb, r.style, iterator); err != nil {
		return "", fmt.Errorf("serializing %s source: %w", scope.Name, err)
	}

	log.Debug(log.CatRender, "Rendered", "scope", scope.Name, "source_bytes", len(source), "html_bytes", sb.Len())
	return sb.String(), nil
}

// WriteCSS writes the stylesheet matching class-based output.
func (r *Renderer) WriteCSS(w io.Writer) error {
	return r.formatter.WriteCSS(w, r.style)
}

// Fingerprint identifies the output-affecting settings. Two renderers with
// the same fingerprint produce identical HTML for identical input.
func (r *Renderer) Fingerprint() string {
	return r.fingerprint
}

// StyleNames lists the available styles.
func StyleNames() []string {
	return styles.Names()
}

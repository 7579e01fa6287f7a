package protocol

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/log"
	"github.com/zjrosen/hlpipe/internal/tracing"
)

// Terminator ends every response block. It is not escaped inside the HTML,
// so source with a line that is exactly Terminator renders to a line a reader
// cannot tell apart from the end of the block. The client rejects such source.
const Terminator = "\x04"

// Resolver maps a language flag to a grammar scope.
type Resolver interface {
	Resolve(flag string) (grammar.Scope, error)
}

// Renderer turns source into HTML for a scope.
type Renderer interface {
	Render(ctx context.Context, scope grammar.Scope, source string) (string, error)
}

// Dispatcher resolves, renders and writes completed requests.
type Dispatcher struct {
	resolver Resolver
	renderer Renderer
	out      *bufio.Writer
	tracer   trace.Tracer
}

// NewDispatcher writes responses to w. A nil tracer disables spans.
func NewDispatcher(resolver Resolver, renderer Renderer, w io.Writer, tracer trace.Tracer) *Dispatcher {
	out, ok := w.(*bufio.Writer)
	if !ok {
		out = bufio.NewWriter(w)
	}
	return &Dispatcher{
		resolver: resolver,
		renderer: renderer,
		out:      out,
		tracer:   tracer,
	}
}

// Dispatch handles one request. A resolution failure is returned as-is and
// nothing is written. On success the HTML line and the terminator line are
// written and flushed before Dispatch returns.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	return tracing.Run(ctx, d.tracer, tracing.SpanDispatch, func(ctx context.Context, span trace.Span) error {
		scope, err := d.resolver.Resolve(req.Language)
		if err != nil {
			span.SetAttributes(attribute.String(tracing.AttrErrorType, "resolve"))
			return err
		}
		span.SetAttributes(attribute.String(tracing.AttrRequestScope, scope.Name))
		span.AddEvent(tracing.EventResolved)

		html, err := d.renderer.Render(ctx, scope, req.Source)
		if err != nil {
			span.SetAttributes(attribute.String(tracing.AttrErrorType, "render"))
			return fmt.Errorf("rendering %s: %w", scope.Name, err)
		}
		span.SetAttributes(attribute.Int(tracing.AttrResponseHTMLBytes, len(html)))
		span.AddEvent(tracing.EventRendered)

		if err := d.write(html); err != nil {
			span.SetAttributes(attribute.String(tracing.AttrErrorType, "write"))
			return fmt.Errorf("writing response: %w", err)
		}

		log.Debug(log.CatProtocol, "Dispatched",
			"session", tracing.SessionIDFromContext(ctx),
			"language", req.Language,
			"scope", scope.Name,
			"source_bytes", len(req.Source),
			"html_bytes", len(html))
		return nil
	},
		attribute.String(tracing.AttrRequestLanguage, req.Language),
		attribute.Int(tracing.AttrRequestSourceBytes, len(req.Source)),
	)
}

func (d *Dispatcher) write(html string) error {
	if _, err := d.out.WriteString(html); err != nil {
		return err
	}
	if _, err := d.out.WriteString("\n" + Terminator + "\n"); err != nil {
		return err
	}
	return d.out.Flush()
}

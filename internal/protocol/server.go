package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/hlpipe/internal/log"
	"github.com/zjrosen/hlpipe/internal/tracing"
)

// ReadyLine is written once before any input is read.
const ReadyLine = "ready"

// DefaultMaxLineBytes bounds one input line when no limit is configured.
const DefaultMaxLineBytes = 1024 * 1024

// Summary describes a finished session.
type Summary struct {
	SessionID string
	Requests  int
	Discarded int
}

// Server runs protocol sessions.
type Server struct {
	resolver     Resolver
	renderer     Renderer
	tracer       trace.Tracer
	maxLineBytes int
	onEnd        func(Summary)
}

// Option configures a Server.
type Option func(*Server)

// WithTracer enables spans for sessions and dispatches.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithMaxLineBytes sets the longest accepted input line. Non-positive values
// keep the default.
func WithMaxLineBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLineBytes = n
		}
	}
}

// WithSummary registers fn to receive the summary of every finished session.
func WithSummary(fn func(Summary)) Option {
	return func(s *Server) {
		s.onEnd = fn
	}
}

// NewServer creates a server that resolves flags with resolver and renders
// with renderer.
func NewServer(resolver Resolver, renderer Renderer, opts ...Option) *Server {
	s := &Server{
		resolver:     resolver,
		renderer:     renderer,
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve runs one session reading from in and writing to out. It returns nil
// when the session ends with a blank line in the idle state or when input is
// exhausted. Resolution failures are returned unchanged so callers can match
// grammar.ErrUnknownLanguage; nothing is written for the failed request.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) (err error) {
	summary := Summary{SessionID: uuid.NewString()}
	ctx = tracing.ContextWithSessionID(ctx, summary.SessionID)

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, tracing.SpanSession,
			trace.WithAttributes(attribute.String(tracing.AttrSessionID, summary.SessionID)))
		defer span.End()
		defer func() {
			if err != nil {
				span.RecordError(err)
			}
		}()
	}

	log.Info(log.CatProtocol, "Session started", "session", summary.SessionID)
	defer func() {
		log.Info(log.CatProtocol, "Session ended",
			"session", summary.SessionID,
			"requests", summary.Requests,
			"discarded", summary.Discarded,
			"error", err)
		if s.onEnd != nil {
			s.onEnd(summary)
		}
	}()

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(ReadyLine + "\n"); err != nil {
		return fmt.Errorf("writing ready line: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing ready line: %w", err)
	}

	reader := NewLineReader(in, s.maxLineBytes)
	dispatcher := NewDispatcher(s.resolver, s.renderer, w, s.tracer)
	var assembler Assembler

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.Next()
		if errors.Is(err, io.EOF) {
			if lang, n := assembler.Pending(); lang != "" || n > 0 {
				log.Warn(log.CatProtocol, "Input closed with pending request",
					"session", summary.SessionID, "language", lang, "buffered_bytes", n)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		step := assembler.Feed(line)
		switch step.Kind {
		case StepDeclare:
			if step.Discarded {
				summary.Discarded++
				trace.SpanFromContext(ctx).AddEvent(tracing.EventBufferDiscarded)
				log.Debug(log.CatProtocol, "Discarded unflushed buffer", "session", summary.SessionID, "language", line)
			}
		case StepFlush:
			if err := dispatcher.Dispatch(ctx, step.Request); err != nil {
				log.ErrorErr(log.CatProtocol, "Dispatch failed", err,
					"session", summary.SessionID, "language", step.Request.Language)
				return err
			}
			summary.Requests++
		case StepEnd:
			return nil
		}
	}
}

// Package client drives an hlpipe process from Go.
//
// Session speaks the protocol over any reader/writer pair; Client starts an
// hlpipe child process and wraps a Session around its stdio.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/zjrosen/hlpipe/internal/log"
)

// DefaultReadyTimeout bounds the wait for the ready line.
const DefaultReadyTimeout = 10 * time.Second

var (
	// ErrProcessExited is returned when output ends before a block terminator,
	// which is how the server reports an unknown language.
	ErrProcessExited = errors.New("highlighter exited")
	// ErrNotReady is returned when the ready line is missing or wrong.
	ErrNotReady = errors.New("highlighter did not become ready")
	// ErrClosed is returned after the session has been ended.
	ErrClosed = errors.New("session closed")
	// ErrTerminatorInSource is returned for code containing a line that is
	// exactly the block terminator, which would end the response early.
	ErrTerminatorInSource = errors.New("source contains a terminator line")
)

// terminatorLine is the line that ends every response block.
const terminatorLine = "\x04"

type readyResult struct {
	line string
	err  error
}

// Session is one protocol conversation. It is safe for concurrent use;
// requests are serialized.
type Session struct {
	mu      sync.Mutex
	r       *bufio.Reader
	w       *bufio.Writer
	aliases map[string]string
	ready   bool
	closed  bool

	// readyCh receives the first line. It is created once so a retry after
	// a timeout waits on the same read instead of starting another one.
	readyCh chan readyResult
}

// NewSession speaks the protocol by writing to w and reading responses from
// r. Flags found in aliases are renamed before they are sent.
func NewSession(r io.Reader, w io.Writer, aliases map[string]string) *Session {
	a := make(map[string]string, len(aliases))
	for k, v := range aliases {
		a[k] = v
	}
	return &Session{
		r:       bufio.NewReader(r),
		w:       bufio.NewWriter(w),
		aliases: a,
	}
}

// WaitReady blocks until the ready line arrives, ctx is done or timeout
// elapses. It is called implicitly by the first Highlight.
func (s *Session) WaitReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitReady(ctx, timeout)
}

func (s *Session) waitReady(ctx context.Context, timeout time.Duration) error {
	if s.ready {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	start := time.Now()
	if s.readyCh == nil {
		s.readyCh = make(chan readyResult, 1)
		go func(ch chan<- readyResult) {
			line, err := s.r.ReadString('\n')
			ch <- readyResult{line, err}
		}(s.readyCh)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-s.readyCh:
		// Keep the result for later calls; the reader goroutine is done.
		s.readyCh <- res
		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				return fmt.Errorf("%w: %w", ErrNotReady, ErrProcessExited)
			}
			return fmt.Errorf("%w: %w", ErrNotReady, res.err)
		}
		if res.line != "ready\n" {
			return fmt.Errorf("%w: unexpected first line %q", ErrNotReady, res.line)
		}
	case <-timer.C:
		return fmt.Errorf("%w: no ready line after %s", ErrNotReady, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	s.ready = true
	log.Info(log.CatClient, "Highlighter ready", "took", time.Since(start))
	return nil
}

// Highlight sends one request and returns the HTML. If the server exits
// before answering, the error wraps ErrProcessExited.
func (s *Session) Highlight(ctx context.Context, lang, code string) (string, error) {
	if err := validateFlag(lang); err != nil {
		return "", err
	}
	lines := sourceLines(code)
	for _, line := range lines {
		if line == terminatorLine {
			return "", ErrTerminatorInSource
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if err := s.waitReady(ctx, DefaultReadyTimeout); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if to, ok := s.aliases[lang]; ok {
		lang = to
	}
	log.Debug(log.CatClient, "Highlight request", "language", lang, "source_bytes", len(code))

	if err := s.writeRequest(lang, lines); err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	return s.readBlock()
}

func (s *Session) writeRequest(lang string, lines []string) error {
	if _, err := s.w.WriteString(lang + "\n"); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := s.w.WriteString("\t" + line + "\n"); err != nil {
			return err
		}
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *Session) readBlock() (string, error) {
	var sb strings.Builder
	for {
		line, err := s.r.ReadString('\n')
		if line == terminatorLine+"\n" {
			return strings.TrimSuffix(sb.String(), "\n"), nil
		}
		sb.WriteString(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrProcessExited
			}
			return "", fmt.Errorf("reading response: %w", err)
		}
	}
}

// End sends the end-of-session signal. Further requests fail with ErrClosed.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func validateFlag(lang string) error {
	switch {
	case lang == "":
		return fmt.Errorf("language flag is empty")
	case lang[0] == '\t':
		return fmt.Errorf("language flag %q starts with a tab", lang)
	case strings.ContainsAny(lang, "\r\n"):
		return fmt.Errorf("language flag %q contains a line break", lang)
	}
	return nil
}

// sourceLines splits code the way a text editor shows it: a final newline
// does not start an extra line and CRLF endings are normalized.
func sourceLines(code string) []string {
	if code == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(code, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

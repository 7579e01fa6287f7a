package client

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/hlpipe/internal/config"
	"github.com/zjrosen/hlpipe/internal/grammar"
	"github.com/zjrosen/hlpipe/internal/highlight"
	"github.com/zjrosen/hlpipe/internal/protocol"
)

// startInProcess runs a protocol server on pipes and returns a session
// talking to it plus a channel receiving Serve's result.
func startInProcess(t *testing.T, aliases map[string]string) (*Session, <-chan error) {
	t.Helper()
	cfg := config.Defaults()
	h, err := highlight.NewHighlighter(cfg.Highlight, cfg.Cache.Memory)
	require.NoError(t, err)
	server := protocol.NewServer(grammar.NewRegistry(nil), h)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := server.Serve(context.Background(), inR, outW)
		_ = outW.Close()
		_ = inR.Close()
		done <- err
	}()
	t.Cleanup(func() {
		_ = inW.Close()
		_ = outR.Close()
	})

	return NewSession(outR, inW, aliases), done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not finish")
		return nil
	}
}

func TestSession_Highlight(t *testing.T) {
	s, done := startInProcess(t, nil)
	ctx := context.Background()

	html, err := s.Highlight(ctx, "plain", "hello\nworld\n")
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", html)

	html, err = s.Highlight(ctx, "go", "func main() {}")
	require.NoError(t, err)
	require.Contains(t, html, `<span class="kd">func</span>`)

	require.NoError(t, s.End())
	require.NoError(t, waitDone(t, done))
}

func TestSession_Aliases(t *testing.T) {
	s, done := startInProcess(t, map[string]string{"golang": "go"})

	html, err := s.Highlight(context.Background(), "golang", "var x int\n")
	require.NoError(t, err)
	require.Contains(t, html, `<span class="kd">var</span>`)

	require.NoError(t, s.End())
	require.NoError(t, waitDone(t, done))
}

func TestSession_CRLFSource(t *testing.T) {
	s, done := startInProcess(t, nil)

	html, err := s.Highlight(context.Background(), "plain", "a\r\nb\r\n")
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", html)

	require.NoError(t, s.End())
	require.NoError(t, waitDone(t, done))
}

func TestSession_UnknownLanguage(t *testing.T) {
	s, done := startInProcess(t, nil)

	_, err := s.Highlight(context.Background(), "definitely-not-a-language", "x")
	require.ErrorIs(t, err, ErrProcessExited)
	require.ErrorIs(t, waitDone(t, done), grammar.ErrUnknownLanguage)
}

func TestSession_ClosedAfterEnd(t *testing.T) {
	s, done := startInProcess(t, nil)
	require.NoError(t, s.WaitReady(context.Background(), time.Second))
	require.NoError(t, s.End())
	require.NoError(t, s.End(), "End is idempotent")
	require.NoError(t, waitDone(t, done))

	_, err := s.Highlight(context.Background(), "go", "x")
	require.ErrorIs(t, err, ErrClosed)
}

func TestSession_InvalidFlag(t *testing.T) {
	s := NewSession(strings.NewReader("ready\n"), io.Discard, nil)

	for _, flag := range []string{"", "\tgo", "go\nrust", "go\r"} {
		_, err := s.Highlight(context.Background(), flag, "x")
		require.Error(t, err, "flag %q", flag)
	}
}

func TestSession_WaitReady(t *testing.T) {
	tests := []struct {
		name   string
		output string
		errIs  error
	}{
		{"ready", "ready\n", nil},
		{"wrong line", "hello\n", ErrNotReady},
		{"eof", "", ErrProcessExited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(strings.NewReader(tt.output), io.Discard, nil)
			err := s.WaitReady(context.Background(), time.Second)
			if tt.errIs == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.errIs)
		})
	}
}

func TestSession_WaitReadyTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := NewSession(r, io.Discard, nil)

	err := s.WaitReady(context.Background(), 20*time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)
	require.Contains(t, err.Error(), "no ready line")
}

func TestSession_WaitReadyRetryAfterTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := NewSession(r, io.Discard, nil)
	ctx := context.Background()

	err := s.WaitReady(ctx, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrNotReady)

	go func() { _, _ = io.WriteString(w, "ready\n") }()

	require.NoError(t, s.WaitReady(ctx, time.Second), "late ready line is seen by the retry")
	require.NoError(t, s.WaitReady(ctx, time.Second))
}

func TestSession_WaitReadyCancelledThenHighlight(t *testing.T) {
	s, done := startInProcess(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WaitReady(ctx, time.Second)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}

	html, err := s.Highlight(context.Background(), "plain", "after retry\n")
	require.NoError(t, err)
	require.Equal(t, "after retry\n", html)

	require.NoError(t, s.End())
	require.NoError(t, waitDone(t, done))
}

func TestSession_WaitReadyFailureIsSticky(t *testing.T) {
	s := NewSession(strings.NewReader("hello\n"), io.Discard, nil)

	for k := 0; k < 2; k++ {
		err := s.WaitReady(context.Background(), time.Second)
		require.ErrorIs(t, err, ErrNotReady)
		require.Contains(t, err.Error(), "unexpected first line")
	}
}

func TestSession_RejectsTerminatorLine(t *testing.T) {
	s, done := startInProcess(t, nil)
	ctx := context.Background()

	_, err := s.Highlight(ctx, "plain", "before\n\x04\nafter\n")
	require.ErrorIs(t, err, ErrTerminatorInSource)

	_, err = s.Highlight(ctx, "plain", "crlf\r\n\x04\r\n")
	require.ErrorIs(t, err, ErrTerminatorInSource)

	// Nothing was sent, so the session stays in step.
	html, err := s.Highlight(ctx, "plain", "a\x04b\n")
	require.NoError(t, err)
	require.Equal(t, "a\x04b\n", html)

	require.NoError(t, s.End())
	require.NoError(t, waitDone(t, done))
}

func TestSourceLines(t *testing.T) {
	tests := []struct {
		code string
		want []string
	}{
		{"", nil},
		{"\n", []string{""}},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\nb\n", []string{"a", "", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"\tindented\n", []string{"\tindented"}},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, sourceLines(tt.code), "code %q", tt.code)
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/zjrosen/hlpipe/internal/log"
)

// Options configures a child process.
type Options struct {
	// Path is the hlpipe executable. Defaults to "hlpipe" on PATH.
	Path string
	// Args are passed to the executable.
	Args []string
	// Env is appended to the current environment.
	Env []string
	// Aliases rename flags before they are sent.
	Aliases map[string]string
	// ReadyTimeout bounds startup. Defaults to DefaultReadyTimeout.
	ReadyTimeout time.Duration
	// Stderr receives the child's stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// Client owns an hlpipe child process.
type Client struct {
	*Session
	cmd   *exec.Cmd
	stdin io.WriteCloser

	waitOnce sync.Once
	waitErr  error
}

// Start launches the process and waits for it to report ready.
func Start(ctx context.Context, opts Options) (*Client, error) {
	path := opts.Path
	if path == "" {
		path = "hlpipe"
	}

	cmd := exec.CommandContext(ctx, path, opts.Args...) // #nosec G204 -- caller chooses the executable
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	log.Info(log.CatClient, "Starting highlighter", "path", path, "args", opts.Args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}

	c := &Client{
		Session: NewSession(stdout, stdin, opts.Aliases),
		cmd:     cmd,
		stdin:   stdin,
	}

	if err := c.WaitReady(ctx, opts.ReadyTimeout); err != nil {
		_ = cmd.Process.Kill()
		_ = c.wait()
		return nil, err
	}
	return c, nil
}

// Highlight sends one request. When the process has exited instead of
// answering, the returned error wraps ErrProcessExited and the exit status.
func (c *Client) Highlight(ctx context.Context, lang, code string) (string, error) {
	html, err := c.Session.Highlight(ctx, lang, code)
	if errors.Is(err, ErrProcessExited) {
		if waitErr := c.wait(); waitErr != nil {
			return "", fmt.Errorf("%w: %w", ErrProcessExited, waitErr)
		}
	}
	return html, err
}

// ExitCode returns the exit code once the process has exited, or -1.
func (c *Client) ExitCode() int {
	if c.cmd.ProcessState == nil {
		return -1
	}
	return c.cmd.ProcessState.ExitCode()
}

// Close ends the session and waits for the process to exit. If the process
// already failed, its exit error is returned.
func (c *Client) Close() error {
	if err := c.End(); err != nil {
		log.Debug(log.CatClient, "End signal not delivered", "error", err)
	}
	_ = c.stdin.Close()
	return c.wait()
}

// wait reaps the process once.
func (c *Client) wait() error {
	c.waitOnce.Do(func() {
		c.waitErr = c.cmd.Wait()
		log.Info(log.CatClient, "Highlighter exited", "code", c.ExitCode())
	})
	return c.waitErr
}

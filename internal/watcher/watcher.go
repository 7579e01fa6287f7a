// Package watcher reports changes to a single config file.
//
// Events are debounced, and a notification is only sent when the file's
// content differs from what was last reported, so editors that touch or
// rewrite an unchanged file do not trigger a reload.
package watcher

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/hlpipe/internal/log"
)

// Config holds watcher configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 250 * time.Millisecond,
	}
}

// Watcher monitors one file and sends a notification when its content
// changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}

	// digest of the content last reported, owned by loop after Start.
	digest [sha256.Size]byte
}

// New creates a new file watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file so replacing the file by rename is still seen.
func (w *Watcher) Start() (<-chan struct{}, error) {
	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}
	if d, err := fileDigest(w.path); err == nil {
		w.digest = d
	}

	go w.loop()

	log.Debug(log.CatWatcher, "Watching file", "path", w.path, "debounce", w.debounce)
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.touches(event) {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.settle()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Watch error", err, "path", w.path)

		case <-w.done:
			timer.Stop()
			return
		}
	}
}

// settle runs once events have been quiet for the debounce period.
func (w *Watcher) settle() {
	d, err := fileDigest(w.path)
	if err != nil {
		// Removed without a replacement yet; the create will fire again.
		log.Debug(log.CatWatcher, "File not readable", "path", w.path, "error", err)
		return
	}
	if d == w.digest {
		log.Debug(log.CatWatcher, "File rewritten without changes", "path", w.path)
		return
	}
	w.digest = d

	select {
	case w.onChange <- struct{}{}:
	default:
	}
	log.Debug(log.CatWatcher, "File changed", "path", w.path)
}

func (w *Watcher) touches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func fileDigest(path string) ([sha256.Size]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the config file being watched
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}

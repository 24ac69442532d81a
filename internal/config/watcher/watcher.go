// Package watcher re-validates a configuration file whenever it changes.
//
// The bridge's Config is immutable once built; the watcher exists for
// operators editing a file for the next start. It polls the file's
// modification time, waits for the file to settle, then loads and validates
// it and reports the result.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/keybridge/internal/config"
)

// Operation is the kind of change observed.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates the file appeared.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Result is reported after every settled change.
type Result struct {
	Path string
	Op   Operation
	Time time.Time

	// Config is the loaded configuration when Err is nil.
	Config config.Config

	// Err is the load or validation error. It is nil for a valid file and
	// unset for OpRemove.
	Err error
}

// Handler receives results on the watcher's goroutine.
type Handler func(Result)

// Watcher polls one configuration file.
type Watcher struct {
	path     string
	handler  Handler
	interval time.Duration
	debounce time.Duration
	load     func(path string) (config.Config, error)
	logger   *zap.Logger

	lastMod time.Time
	pending *Result
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce sets how long the file must stay unchanged before it is loaded.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger. The watcher logs under the "config.watcher" name.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher for path that reports to handler.
func New(path string, handler Handler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		handler:  handler,
		interval: 500 * time.Millisecond,
		debounce: 100 * time.Millisecond,
		load:     config.LoadFile,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("config.watcher")

	if info, err := os.Stat(abs); err == nil {
		w.lastMod = info.ModTime()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Check validates the file once and reports the result.
func (w *Watcher) Check() Result {
	r := Result{Path: w.path, Op: OpWrite, Time: time.Now()}
	r.Config, r.Err = w.load(w.path)
	w.emit(r)
	return r
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Debug("watching", zap.String("path", w.path), zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			w.poll(now)
		}
	}
}

// poll records a change as pending and reports it once it is older than the
// debounce period. Repeated writes keep the first operation and move the time.
func (w *Watcher) poll(now time.Time) {
	if change := w.checkFile(now); change != nil {
		switch {
		case w.pending == nil, change.Op == OpRemove:
			w.pending = change
		default:
			w.pending.Time = change.Time
		}
	}

	if w.pending == nil || now.Sub(w.pending.Time) < w.debounce {
		return
	}

	r := *w.pending
	w.pending = nil
	if r.Op != OpRemove {
		r.Config, r.Err = w.load(w.path)
	}
	w.emit(r)
}

func (w *Watcher) checkFile(now time.Time) *Result {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !w.lastMod.IsZero() {
			w.lastMod = time.Time{}
			return &Result{Path: w.path, Op: OpRemove, Time: now}
		}
		return nil
	}

	mod := info.ModTime()
	switch {
	case w.lastMod.IsZero():
		w.lastMod = mod
		return &Result{Path: w.path, Op: OpCreate, Time: now}
	case !mod.Equal(w.lastMod):
		w.lastMod = mod
		return &Result{Path: w.path, Op: OpWrite, Time: now}
	}
	return nil
}

// emit calls the handler, recovering from a panicking handler so the
// watcher keeps running.
func (w *Watcher) emit(r Result) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("config watch handler panicked", zap.Any("panic", p))
		}
	}()
	w.handler(r)
}

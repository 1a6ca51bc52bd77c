// Package watcher turns file system changes below source directories into
// debounced create, modify and delete events.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is what happened to a source file.
type Operation int

// Operations reported to the handler.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a settled change to one source file.
type Event struct {
	Path      string
	Operation Operation
}

// Handler receives settled events, one at a time and in path order per
// flush.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Paths []string
	// Debounce is how long a path must stay quiet before its event is
	// reported. Defaults to 500ms.
	Debounce time.Duration
	// Recursive also watches subdirectories, including ones created later.
	Recursive bool
	// Accept selects the files whose events are reported. Nil accepts
	// every file that is not hidden.
	Accept func(path string) bool
}

// change is an unsettled event: the merged operation and when the path
// was last touched.
type change struct {
	op   Operation
	last time.Time
}

// Watcher watches directories for changes to catalogable sources. All
// bookkeeping happens on the goroutine started by Start.
type Watcher struct {
	fs      *fsnotify.Watcher
	cfg     Config
	handle  Handler
	logger  *slog.Logger
	pending map[string]change
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config, handle Handler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Accept == nil {
		cfg.Accept = func(string) bool { return true }
	}
	return &Watcher{
		fs:      fsw,
		cfg:     cfg,
		handle:  handle,
		logger:  logger,
		pending: make(map[string]change),
	}, nil
}

// Start registers the configured paths and processes events until ctx is
// done or Stop is called. Paths that cannot be watched are logged and
// skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, p := range w.cfg.Paths {
		if err := w.Add(p); err != nil {
			w.logger.Warn("failed to watch path", "path", p, "error", err)
		}
	}
	go w.run(ctx)
	return nil
}

// Stop closes the underlying notifier, which ends the event loop.
func (w *Watcher) Stop() error {
	return w.fs.Close()
}

// Add watches path, and everything below it when the watcher is recursive.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.cfg.Recursive {
		return w.addTree(abs)
	}
	if err := w.fs.Add(abs); err != nil {
		return err
	}
	w.logger.Info("watching directory", "path", abs)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(min(w.cfg.Debounce, 100*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.observe(ev, time.Now())

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for _, e := range w.settled(now) {
				w.dispatch(ctx, e)
			}
		}
	}
}

// observe records a raw notification. New directories are added to the
// watch set when recursive; they never produce events themselves.
func (w *Watcher) observe(ev fsnotify.Event, now time.Time) {
	if w.cfg.Recursive && ev.Op.Has(fsnotify.Create) && isDir(ev.Name) {
		if err := w.addTree(ev.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
		}
		return
	}
	if isHidden(ev.Name) || !w.cfg.Accept(ev.Name) {
		return
	}

	op := operationOf(ev.Op)
	w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())

	if prev, ok := w.pending[ev.Name]; ok {
		op = mergeOp(prev.op, op)
	}
	w.pending[ev.Name] = change{op: op, last: now}
}

// settled removes and returns, sorted by path, the events that have been
// quiet for the debounce period.
func (w *Watcher) settled(now time.Time) []Event {
	var out []Event
	for path, c := range w.pending {
		if now.Sub(c.last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		out = append(out, Event{Path: path, Operation: c.op})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (w *Watcher) dispatch(ctx context.Context, e Event) {
	w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())
	if err := w.handle(ctx, e); err != nil {
		w.logger.Error("handler error",
			"path", e.Path,
			"operation", e.Operation.String(),
			"error", err,
		)
	}
}

// mergeOp folds a new operation into an unsettled one. A delete wins over
// anything before it and a create after a delete means the file was
// replaced. Otherwise the first operation stands, so create then write is
// still a create.
func mergeOp(prev, next Operation) Operation {
	switch {
	case next == OpDelete:
		return OpDelete
	case prev == OpDelete && next == OpCreate:
		return OpCreate
	default:
		return prev
	}
}

// operationOf maps a notification to an operation. A rename is reported
// by fsnotify on the old name, so the file is gone from there.
func operationOf(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

// isHidden reports dotfiles, which includes the temporary files editors
// and atomic writers create next to the target.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

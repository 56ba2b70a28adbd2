// Package watcher keeps a collection's in-memory index consistent with
// filesystem mutations performed by any process, by translating raw change
// notifications into calendar load/unload operations.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Terrance/Davendar/internal/collection"
	"github.com/Terrance/Davendar/internal/entry"
	"github.com/Terrance/Davendar/internal/logger"
)

// ErrRootGone reports that the collection root itself was removed. This is
// not recoverable locally; the process supervisor owns restart/reporting.
var ErrRootGone = errors.New("collection root disappeared")

// Reconciler subscribes to change notifications for the collection root and
// every known calendar directory, and is the sole steady-state mutator of the
// collection's indices. Events are processed strictly in delivery order, one
// at a time.
type Reconciler struct {
	coll   *collection.Collection
	logger logger.Logger

	fw      *fsnotify.Watcher
	mu      sync.RWMutex
	watched map[string]bool // calendar directory path -> subscribed
	stopCh  chan struct{}
	fatalCh chan error
}

// Watching reports whether a subscription is held for the given directory.
func (r *Reconciler) Watching(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.watched[path]
}

func (r *Reconciler) setWatched(path string, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on {
		r.watched[path] = true
	} else {
		delete(r.watched, path)
	}
}

// watchedDirs snapshots the subscribed calendar directories.
func (r *Reconciler) watchedDirs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dirs := make([]string, 0, len(r.watched))
	for path := range r.watched {
		dirs = append(dirs, path)
	}
	return dirs
}

// New creates a reconciler for the given collection.
func New(coll *collection.Collection, log logger.Logger) *Reconciler {
	return &Reconciler{
		coll:    coll,
		logger:  log,
		watched: make(map[string]bool),
		stopCh:  make(chan struct{}),
		fatalCh: make(chan error, 1),
	}
}

// Start runs the startup protocol synchronously, then begins steady-state
// watching in the background. Watches are registered on the root and on every
// existing subdirectory BEFORE any directory is scanned, so a directory
// appearing or vanishing during the scan still produces an event.
func (r *Reconciler) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	r.fw = fw

	root := r.coll.Path()
	if err := fw.Add(root); err != nil {
		fw.Close() // nolint:errcheck
		return fmt.Errorf("watch root %s: %w", root, err)
	}

	dirents, err := os.ReadDir(root)
	if err != nil {
		fw.Close() // nolint:errcheck
		return fmt.Errorf("enumerate root %s: %w", root, err)
	}
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(root, d.Name())
		if err := fw.Add(path); err != nil {
			r.logger.Warn("failed to watch calendar directory",
				logger.String("path", path),
				logger.Error(err))
			continue
		}
		r.setWatched(path, true)
	}

	dirs := r.watchedDirs()
	r.logger.Info("running initial directory scan",
		logger.Int("directories", len(dirs)))
	for _, path := range dirs {
		name := filepath.Base(path)
		if _, ok := r.coll.Calendar(name); ok {
			continue
		}
		cal, err := r.coll.OpenCalendar(name)
		if err != nil {
			r.logger.Error("failed to open calendar",
				logger.String("calendar", name),
				logger.Error(err))
			continue
		}
		r.coll.AddCalendar(cal)
	}

	r.logger.Info("listening for filesystem changes")
	go r.run(ctx)
	return nil
}

// Stop ends steady-state watching.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// Err delivers at most one fatal watch-subsystem failure.
func (r *Reconciler) Err() <-chan error {
	return r.fatalCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.fw.Close() // nolint:errcheck
	for {
		select {
		case ev, ok := <-r.fw.Events:
			if !ok {
				r.fatal(errors.New("event stream closed"))
				return
			}
			if err := r.handle(ev); err != nil {
				r.fatal(err)
				return
			}
		case err, ok := <-r.fw.Errors:
			if !ok {
				r.fatal(errors.New("error stream closed"))
				return
			}
			r.logger.Error("watch error", logger.Error(err))
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) fatal(err error) {
	r.logger.Error("watch loop terminating", logger.Error(err))
	select {
	case r.fatalCh <- err:
	default:
	}
}

// handle translates one raw filesystem event into index mutations. A non-nil
// return terminates the loop.
func (r *Reconciler) handle(ev fsnotify.Event) error {
	path := filepath.Clean(ev.Name)
	root := r.coll.Path()

	if path == root {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			return fmt.Errorf("%w: %s", ErrRootGone, root)
		}
		return nil
	}

	switch dir := filepath.Dir(path); {
	case dir == root:
		// The change concerns a calendar directory itself.
		r.handleCalendar(path, ev)
	case r.Watching(dir):
		// The change concerns an entry file inside a calendar.
		r.handleEntryFile(dir, filepath.Base(path))
	}
	return nil
}

// handleCalendar reconciles the appearance or disappearance of a calendar
// directory under the root.
func (r *Reconciler) handleCalendar(path string, ev fsnotify.Event) {
	info, err := os.Stat(path)
	isDir := err == nil && info.IsDir()
	name := filepath.Base(path)

	switch watched := r.Watching(path); {
	case !watched && isDir:
		// Calendar was created or moved into the root: watch first, scan after.
		r.logger.Debug("adding new calendar", logger.String("calendar", name))
		if err := r.fw.Add(path); err != nil {
			r.logger.Warn("failed to watch new calendar",
				logger.String("path", path),
				logger.Error(err))
			return
		}
		r.setWatched(path, true)
		cal, err := r.coll.OpenCalendar(name)
		if err != nil {
			r.logger.Error("failed to open calendar",
				logger.String("calendar", name),
				logger.Error(err))
			return
		}
		r.coll.AddCalendar(cal)

	case watched && !isDir:
		// Calendar was deleted or moved out of the root. A deleted directory
		// takes its watch with it; deregistering again would fail.
		r.logger.Debug("removing old calendar", logger.String("calendar", name))
		if !ev.Has(fsnotify.Remove) {
			if err := r.fw.Remove(path); err != nil {
				r.logger.Debug("failed to remove watch",
					logger.String("path", path),
					logger.Error(err))
			}
		}
		r.setWatched(path, false)
		r.coll.DropCalendar(name)
	}
}

// handleEntryFile reconciles a change to one file inside a calendar
// directory: existing files are (re)loaded, vanished ones unloaded.
// Directory-type changes inside a calendar are ignored.
func (r *Reconciler) handleEntryFile(dir, name string) {
	cal, ok := r.coll.Calendar(filepath.Base(dir))
	if !ok {
		return
	}

	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return
	}

	if name == collection.MetadataFile {
		if err == nil {
			cal.ScanMetadata()
		}
		return
	}
	if !strings.HasSuffix(name, entry.Suffix) {
		return
	}

	if err == nil {
		r.logger.Debug("loading entry",
			logger.String("calendar", cal.Dirname()),
			logger.String("file", name))
		cal.LoadEntry(name)
	} else {
		r.logger.Debug("unloading entry",
			logger.String("calendar", cal.Dirname()),
			logger.String("file", name))
		cal.UnloadEntry(name)
	}
}

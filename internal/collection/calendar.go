// Package collection maintains the in-memory index of calendars and entries
// mirroring the on-disk layout: one directory per calendar under a root, one
// .ics file per entry. Reads may run concurrently with the watch reconciler's
// writes; each index is guarded by its own RWMutex, held only for map
// mutations and never across file I/O.
package collection

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Terrance/Davendar/internal/entry"
	"github.com/Terrance/Davendar/internal/logger"
	"github.com/Terrance/Davendar/internal/temporal"
)

// MetadataFile is the optional per-calendar sidecar written by Radicale-style
// servers.
const MetadataFile = ".Radicale.props"

type metadata struct {
	Label  string `json:"D:displayname"`
	Colour string `json:"ICAL:calendar-color"`
}

// Calendar indexes the entries of one on-disk directory, keyed both by UID
// and by filename. The two indices always reference the same set of live
// entries.
type Calendar struct {
	root    string
	dirname string
	loc     *time.Location
	logger  logger.Logger
	workers int

	mu         sync.RWMutex
	byUID      map[string]*entry.Entry
	byFilename map[string]*entry.Entry
	label      string
	colour     string
}

// OpenCalendar builds the index for one calendar directory. A missing
// directory is created (empty calendars are valid); files that fail to parse
// are logged and skipped.
func OpenCalendar(root, dirname string, loc *time.Location, log logger.Logger, workers int) (*Calendar, error) {
	c := &Calendar{
		root:       root,
		dirname:    dirname,
		loc:        loc,
		logger:     log,
		workers:    workers,
		byUID:      make(map[string]*entry.Entry),
		byFilename: make(map[string]*entry.Entry),
	}
	if _, err := os.Stat(c.Path()); os.IsNotExist(err) {
		if err := os.Mkdir(c.Path(), 0o755); err != nil {
			return nil, err
		}
		return c, nil
	}
	c.ScanEntries()
	c.ScanMetadata()
	return c, nil
}

func (c *Calendar) Dirname() string { return c.dirname }

// Path is the calendar's directory on disk.
func (c *Calendar) Path() string { return filepath.Join(c.root, c.dirname) }

// Label returns the display name from the metadata sidecar, if any.
func (c *Calendar) Label() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.label
}

// Colour returns the display colour from the metadata sidecar, if any.
func (c *Calendar) Colour() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.colour
}

// ScanEntries enumerates every entry file in the directory and loads each
// one. Parses run on a small worker pool; a failure for one file never aborts
// the rest of the scan.
func (c *Calendar) ScanEntries() {
	c.logger.Debug("scanning calendar", logger.String("calendar", c.dirname))

	dirents, err := os.ReadDir(c.Path())
	if err != nil {
		c.logger.Warn("failed to read calendar directory",
			logger.String("calendar", c.dirname),
			logger.Error(err))
		return
	}

	names := make(chan string)
	var wg sync.WaitGroup
	workers := c.workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				c.LoadEntry(name)
			}
		}()
	}

	count := 0
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), entry.Suffix) {
			continue
		}
		names <- d.Name()
		count++
	}
	close(names)
	wg.Wait()

	c.logger.Debug("calendar scan complete",
		logger.String("calendar", c.dirname),
		logger.Int("files", count))
}

// ScanMetadata reads the optional sidecar file. Metadata is best-effort: any
// read or parse failure leaves the previous values in place.
func (c *Calendar) ScanMetadata() {
	raw, err := os.ReadFile(filepath.Join(c.Path(), MetadataFile))
	if err != nil {
		return
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return
	}
	c.mu.Lock()
	c.label = meta.Label
	c.colour = meta.Colour
	c.mu.Unlock()
	c.logger.Debug("identified calendar",
		logger.String("calendar", c.dirname),
		logger.String("label", meta.Label))
}

// AddEntry re-homes the entry into this calendar's directory and inserts it
// into both indices.
func (c *Calendar) AddEntry(e *entry.Entry) error {
	if err := e.MoveTo(c.Path()); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(e)
	return nil
}

// insertLocked keeps the uid/filename bijection: an entry already indexed
// under the same filename (a reload, possibly with a new UID) is displaced
// first.
func (c *Calendar) insertLocked(e *entry.Entry) {
	if prev, ok := c.byFilename[e.Filename()]; ok {
		delete(c.byUID, prev.UID())
	}
	if prev, ok := c.byUID[e.UID()]; ok {
		delete(c.byFilename, prev.Filename())
	}
	c.byUID[e.UID()] = e
	c.byFilename[e.Filename()] = e
}

// DropEntry removes the entry from both indices.
func (c *Calendar) DropEntry(e *entry.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byUID, e.UID())
	delete(c.byFilename, e.Filename())
}

// MoveEntry transfers an entry to another calendar, file included.
func (c *Calendar) MoveEntry(e *entry.Entry, target *Calendar) error {
	c.DropEntry(e)
	return target.AddEntry(e)
}

// LoadEntry parses one file from the calendar directory into the index,
// replacing any entry previously held under that filename. Invalid files are
// logged and skipped.
func (c *Calendar) LoadEntry(filename string) {
	e, err := entry.Load(filepath.Join(c.Path(), filename), c.loc)
	if err != nil {
		c.logger.Warn("skipping non-entry file",
			logger.String("calendar", c.dirname),
			logger.String("file", filename),
			logger.Error(err))
		return
	}
	e.MoveTo(c.Path()) // nolint:errcheck // freshly loaded from this directory
	c.mu.Lock()
	c.insertLocked(e)
	c.mu.Unlock()
}

// UnloadEntry drops the entry indexed under filename, if any.
func (c *Calendar) UnloadEntry(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byFilename[filename]; ok {
		delete(c.byFilename, filename)
		delete(c.byUID, e.UID())
	}
}

// Lookup resolves either a UID or a filename to the same entry, tried in that
// order.
func (c *Calendar) Lookup(key string) (*entry.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.byUID[key]; ok {
		return e, true
	}
	e, ok := c.byFilename[key]
	return e, ok
}

// Entries snapshots all live entries.
func (c *Calendar) Entries() []*entry.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]*entry.Entry, 0, len(c.byUID))
	for _, e := range c.byUID {
		entries = append(entries, e)
	}
	return entries
}

// Count returns the number of indexed entries.
func (c *Calendar) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byUID)
}

// Events returns the calendar's events in entry order.
func (c *Calendar) Events() []*entry.Entry { return c.ofKind(entry.Event) }

// Tasks returns the calendar's tasks in entry order.
func (c *Calendar) Tasks() []*entry.Entry { return c.ofKind(entry.Task) }

func (c *Calendar) ofKind(kind entry.Kind) []*entry.Entry {
	var out []*entry.Entry
	for _, e := range c.Entries() {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	entry.Sort(out)
	return out
}

// Slice returns every occurrence overlapping [notBefore, notAfter), expanded
// from recurring entries, in entry order. All-day entries are matched against
// date-only bounds derived from the window; occurrences missing either bound
// are dropped.
func (c *Calendar) Slice(notBefore, notAfter time.Time) []*entry.Entry {
	var selected []*entry.Entry
	for _, e := range c.Entries() {
		from, to := notBefore, notAfter
		if e.AllDay() {
			from, to = dateBounds(notBefore, notAfter, c.loc)
		}
		for _, occ := range e.Expand(from, to) {
			startDT, okS := occ.Start().DateTime(c.loc)
			endDT, okE := occ.End().DateTime(c.loc)
			if !okS || !okE {
				continue
			}
			if endDT.After(from) && startDT.Before(to) {
				selected = append(selected, occ)
			}
		}
	}
	entry.Sort(selected)
	return selected
}

// dateBounds widens a zoned window to whole calendar days: the lower bound
// floors to midnight, the upper bound ceils to the next midnight.
func dateBounds(notBefore, notAfter time.Time, loc *time.Location) (time.Time, time.Time) {
	from := temporal.Midnight(notBefore.In(loc))
	to := temporal.Midnight(notAfter.In(loc))
	if to.Before(notAfter.In(loc)) {
		to = to.AddDate(0, 0, 1)
	}
	return from, to
}

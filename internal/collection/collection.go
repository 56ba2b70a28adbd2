package collection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Terrance/Davendar/internal/entry"
	"github.com/Terrance/Davendar/internal/logger"
)

var (
	// ErrNotFound reports a calendar key that matched nothing.
	ErrNotFound = errors.New("calendar not found")

	// ErrAmbiguous reports a label shared by several calendars.
	ErrAmbiguous = errors.New("calendar key is ambiguous")
)

// Collection aggregates every calendar under one root directory. Its key set
// mirrors the set of subdirectories currently believed to exist; the watch
// reconciler is the sole steady-state mutator.
type Collection struct {
	path    string
	loc     *time.Location
	logger  logger.Logger
	workers int

	mu        sync.RWMutex
	calendars map[string]*Calendar
}

// New creates an empty collection rooted at path. Calendars are added by the
// initial scan and the watch reconciler.
func New(path string, loc *time.Location, log logger.Logger, workers int) *Collection {
	return &Collection{
		path:      path,
		loc:       loc,
		logger:    log,
		workers:   workers,
		calendars: make(map[string]*Calendar),
	}
}

// Path is the collection root directory.
func (c *Collection) Path() string { return c.path }

// Location is the process-configured timezone.
func (c *Collection) Location() *time.Location { return c.loc }

// OpenCalendar scans one subdirectory into a new Calendar. The calendar is
// not registered; callers pair this with AddCalendar.
func (c *Collection) OpenCalendar(dirname string) (*Calendar, error) {
	cal, err := OpenCalendar(c.path, dirname, c.loc, c.logger, c.workers)
	if err != nil {
		return nil, fmt.Errorf("open calendar %s: %w", dirname, err)
	}
	return cal, nil
}

// AddCalendar registers a calendar under its directory name.
func (c *Collection) AddCalendar(cal *Calendar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calendars[cal.Dirname()] = cal
}

// DropCalendar removes the calendar keyed by dirname, reporting whether one
// was registered.
func (c *Collection) DropCalendar(dirname string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.calendars[dirname]; !ok {
		return false
	}
	delete(c.calendars, dirname)
	return true
}

// Calendar returns the calendar keyed by dirname.
func (c *Collection) Calendar(dirname string) (*Calendar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cal, ok := c.calendars[dirname]
	return cal, ok
}

// Calendars snapshots all registered calendars.
func (c *Collection) Calendars() []*Calendar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cals := make([]*Calendar, 0, len(c.calendars))
	for _, cal := range c.calendars {
		cals = append(cals, cal)
	}
	return cals
}

// Lookup resolves a calendar by directory name, or failing that by a unique
// metadata label. Absent or ambiguous matches are errors, never a silent
// fallback.
func (c *Collection) Lookup(key string) (*Calendar, error) {
	if cal, ok := c.Calendar(key); ok {
		return cal, nil
	}
	var match *Calendar
	for _, cal := range c.Calendars() {
		if cal.Label() != key {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("%w: label %q", ErrAmbiguous, key)
		}
		match = cal
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return match, nil
}

// Slice aggregates each calendar's occurrences overlapping
// [notBefore, notAfter) into one sequence in entry order.
func (c *Collection) Slice(notBefore, notAfter time.Time) []*entry.Entry {
	var selected []*entry.Entry
	for _, cal := range c.Calendars() {
		selected = append(selected, cal.Slice(notBefore, notAfter)...)
	}
	entry.Sort(selected)
	return selected
}

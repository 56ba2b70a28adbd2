// Package entry models a single calendar item (an event or a task) as a typed
// view over its backing iCalendar document. One .ics file holds one entry.
package entry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/Terrance/Davendar/internal/temporal"
)

var (
	// ErrInvalid marks a file that does not contain a supported component.
	// Calendar scans log and skip these rather than aborting.
	ErrInvalid = errors.New("not a supported calendar entry")

	// ErrVirtual rejects persistence of a computed recurrence occurrence.
	ErrVirtual = errors.New("virtual occurrence cannot be persisted")

	// ErrDetached rejects persistence of an entry with no assigned calendar.
	ErrDetached = errors.New("entry is not attached to a calendar")
)

// Suffix is the on-disk filename suffix for entry files.
const Suffix = ".ics"

// Kind discriminates the two entry variants.
type Kind int

const (
	Event Kind = iota
	Task
)

func (k Kind) String() string {
	if k == Task {
		return "task"
	}
	return "event"
}

// Priority is the 3-level view over the iCalendar 0-9 PRIORITY scale.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

// Properties without a named constant in the ical library.
const (
	propDue          = ical.ComponentProperty("DUE")
	propPriority     = ical.ComponentProperty("PRIORITY")
	propRDate        = ical.ComponentProperty("RDATE")
	propLastModified = ical.ComponentProperty("LAST-MODIFIED")
	propRecurrenceID = ical.ComponentProperty("RECURRENCE-ID")
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// Entry is one calendar item backed by a parsed VCALENDAR document. The
// document's authoritative sub-component is held directly; sibling components
// of the same type carrying a RECURRENCE-ID are kept as recurrence overrides.
//
// A virtual entry is a transient projection of one recurrence occurrence: it
// shares the source document but carries its own start/end and can never be
// saved, reloaded or moved.
type Entry struct {
	kind     Kind
	filename string
	dir      string // owning calendar directory, "" while detached
	loc      *time.Location

	doc       *ical.Calendar
	core      *ical.ComponentBase
	overrides []*ical.ComponentBase

	virtual      bool
	vStart, vEnd temporal.Value
}

// New creates a fresh, detached entry with a generated UID and filename.
func New(kind Kind, loc *time.Location) *Entry {
	doc := ical.NewCalendar()
	uid := uuid.NewString()

	var core *ical.ComponentBase
	switch kind {
	case Task:
		todo := &ical.VTodo{}
		doc.Components = append(doc.Components, todo)
		core = &todo.ComponentBase
	default:
		event := &ical.VEvent{}
		doc.Components = append(doc.Components, event)
		core = &event.ComponentBase
	}
	core.SetProperty(ical.ComponentPropertyUniqueId, uid)

	return &Entry{
		kind:     kind,
		filename: uid + Suffix,
		loc:      loc,
		doc:      doc,
		core:     core,
	}
}

// Parse builds an entry from raw iCalendar bytes. The document must contain
// at least one supported component (VEVENT or VTODO); when several of the
// same type are present, the one carrying a recurrence rule or date set is
// authoritative and components with a RECURRENCE-ID become overrides.
func Parse(data []byte, loc *time.Location) (*Entry, error) {
	doc, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	kind, cores, err := supportedComponents(doc)
	if err != nil {
		return nil, err
	}

	e := &Entry{kind: kind, loc: loc, doc: doc}
	e.core, e.overrides = splitOverrides(cores)
	if e.UID() == "" {
		return nil, fmt.Errorf("%w: missing UID", ErrInvalid)
	}
	e.filename = e.UID() + Suffix
	return e, nil
}

// Load reads and parses one entry file. The entry keeps the file's own name
// and its owning directory.
func Load(path string, loc *time.Location) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e, err := Parse(data, loc)
	if err != nil {
		return nil, err
	}
	e.filename = filepath.Base(path)
	e.dir = filepath.Dir(path)
	return e, nil
}

// supportedComponents extracts all components of the first supported type
// found in the document.
func supportedComponents(doc *ical.Calendar) (Kind, []*ical.ComponentBase, error) {
	var events, tasks []*ical.ComponentBase
	for _, comp := range doc.Components {
		switch c := comp.(type) {
		case *ical.VEvent:
			events = append(events, &c.ComponentBase)
		case *ical.VTodo:
			tasks = append(tasks, &c.ComponentBase)
		}
	}
	switch {
	case len(events) > 0:
		return Event, events, nil
	case len(tasks) > 0:
		return Task, tasks, nil
	default:
		return Event, nil, fmt.Errorf("%w: no VEVENT or VTODO component", ErrInvalid)
	}
}

// splitOverrides picks the authoritative base component and collects
// recurrence overrides. The first component with an RRULE or RDATE wins;
// failing that, the first component overall.
func splitOverrides(cores []*ical.ComponentBase) (*ical.ComponentBase, []*ical.ComponentBase) {
	base := cores[0]
	for _, c := range cores {
		if c.GetProperty(ical.ComponentPropertyRrule) != nil || c.GetProperty(propRDate) != nil {
			base = c
			break
		}
	}
	var overrides []*ical.ComponentBase
	for _, c := range cores {
		if c != base && c.GetProperty(propRecurrenceID) != nil {
			overrides = append(overrides, c)
		}
	}
	return base, overrides
}

// --- Identity and placement

func (e *Entry) Kind() Kind       { return e.kind }
func (e *Entry) Filename() string { return e.filename }
func (e *Entry) Virtual() bool    { return e.virtual }

// UID returns the entry's unique identifier. Never empty for a loaded or
// freshly created entry.
func (e *Entry) UID() string { return e.text(ical.ComponentPropertyUniqueId) }

// Path is the absolute file path, or "" while the entry is detached.
func (e *Entry) Path() string {
	if e.dir == "" {
		return ""
	}
	return filepath.Join(e.dir, e.filename)
}

// MoveTo re-homes the entry into dir, renaming the backing file when one
// already exists on disk.
func (e *Entry) MoveTo(dir string) error {
	if e.virtual {
		return ErrVirtual
	}
	if e.dir != "" && e.dir != dir {
		old := e.Path()
		if _, err := os.Stat(old); err == nil {
			if err := os.Rename(old, filepath.Join(dir, e.filename)); err != nil {
				return fmt.Errorf("move entry %s: %w", e.filename, err)
			}
		}
	}
	e.dir = dir
	return nil
}

// --- Typed property access

func (e *Entry) Summary() string  { return e.text(ical.ComponentPropertySummary) }
func (e *Entry) Location() string { return e.text(ical.ComponentPropertyLocation) }

func (e *Entry) SetSummary(s string)  { e.setText(ical.ComponentPropertySummary, s) }
func (e *Entry) SetLocation(s string) { e.setText(ical.ComponentPropertyLocation, s) }

// Start returns the entry start as a date-or-datetime value.
func (e *Entry) Start() temporal.Value {
	if e.virtual && e.vStart.Defined() {
		return e.vStart
	}
	return e.timeValue(ical.ComponentPropertyDtStart)
}

// End returns the entry end (DTEND for events, DUE for tasks).
func (e *Entry) End() temporal.Value {
	if e.virtual && e.vEnd.Defined() {
		return e.vEnd
	}
	return e.timeValue(e.endProperty())
}

func (e *Entry) SetStart(v temporal.Value) { e.setTimeValue(ical.ComponentPropertyDtStart, v) }
func (e *Entry) SetEnd(v temporal.Value)   { e.setTimeValue(e.endProperty(), v) }

func (e *Entry) endProperty() ical.ComponentProperty {
	if e.kind == Task {
		return propDue
	}
	return ical.ComponentPropertyDtEnd
}

// Created returns the CREATED stamp, if any.
func (e *Entry) Created() (time.Time, bool) {
	return e.stamp(ical.ComponentPropertyCreated)
}

// Updated returns the LAST-MODIFIED stamp, if any.
func (e *Entry) Updated() (time.Time, bool) {
	return e.stamp(propLastModified)
}

// RawPriority returns the iCalendar 0-9 priority, 0 when unset or malformed.
func (e *Entry) RawPriority() int {
	n, err := strconv.Atoi(strings.TrimSpace(e.text(propPriority)))
	if err != nil {
		return 0
	}
	return n
}

// PriorityLevel folds the 0-9 scale into three levels: 1-4 low, 5 medium,
// 6-9 high, anything else none.
func (e *Entry) PriorityLevel() Priority {
	switch n := e.RawPriority(); {
	case n >= 1 && n <= 4:
		return PriorityLow
	case n == 5:
		return PriorityMedium
	case n >= 6 && n <= 9:
		return PriorityHigh
	default:
		return PriorityNone
	}
}

// SetPriorityLevel stores the canonical 0-9 value for a 3-level priority.
func (e *Entry) SetPriorityLevel(p Priority) {
	switch p {
	case PriorityLow:
		e.setText(propPriority, "4")
	case PriorityMedium:
		e.setText(propPriority, "5")
	case PriorityHigh:
		e.setText(propPriority, "6")
	default:
		e.removeProp(propPriority)
	}
}

// AllDay reports whether the start has no time component.
func (e *Entry) AllDay() bool { return e.Start().IsDate() }

func (e *Entry) text(name ical.ComponentProperty) string {
	p := e.core.GetProperty(name)
	if p == nil {
		return ""
	}
	return p.Value
}

// setText clears any existing value, then stores the new one; an empty value
// just clears the field.
func (e *Entry) setText(name ical.ComponentProperty, value string) {
	e.removeProp(name)
	if value != "" {
		e.core.SetProperty(name, value)
	}
}

func (e *Entry) timeValue(name ical.ComponentProperty) temporal.Value {
	p := e.core.GetProperty(name)
	if p == nil || p.Value == "" {
		return temporal.Value{}
	}
	return decodeTime(p, e.loc)
}

// setTimeValue clears the field, then stores a date-time tagged with the
// configured timezone identifier, or a bare date with VALUE=DATE.
func (e *Entry) setTimeValue(name ical.ComponentProperty, v temporal.Value) {
	e.removeProp(name)
	switch v.Kind() {
	case temporal.Date:
		d, _ := v.Date(e.loc)
		e.core.SetProperty(name, d.Format(dateLayout),
			&ical.KeyValues{Key: "VALUE", Value: []string{"DATE"}})
	case temporal.DateTime:
		dt, _ := v.DateTime(e.loc)
		e.core.SetProperty(name, dt.Format(dateTimeLayout),
			&ical.KeyValues{Key: "TZID", Value: []string{e.loc.String()}})
	}
}

func (e *Entry) stamp(name ical.ComponentProperty) (time.Time, bool) {
	v, ok := e.timeValue(name).DateTime(e.loc)
	return v, ok
}

func (e *Entry) removeProp(name ical.ComponentProperty) {
	props := e.core.Properties[:0]
	for _, p := range e.core.Properties {
		if !strings.EqualFold(p.IANAToken, string(name)) {
			props = append(props, p)
		}
	}
	e.core.Properties = props
}

// decodeTime turns one iCalendar date/date-time property into a temporal
// value. VALUE=DATE (or a value without a time part) is a bare date; a "Z"
// suffix is UTC; a TZID parameter names the zone; anything else floats in the
// configured timezone.
func decodeTime(p *ical.IANAProperty, loc *time.Location) temporal.Value {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return temporal.Value{}
	}

	isDate := !strings.Contains(v, "T")
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		isDate = true
	}
	if isDate {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return temporal.Value{}
		}
		return temporal.NewDate(t)
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(utcLayout, v)
		if err != nil {
			return temporal.Value{}
		}
		return temporal.NewDateTime(t)
	}

	zone := loc
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if l, err := time.LoadLocation(tzs[0]); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation(dateTimeLayout, v, zone)
	if err != nil {
		return temporal.Value{}
	}
	return temporal.NewDateTime(t)
}

// --- Day and time slicing

// Days lists every calendar date the entry occupies, as midnights in the
// configured timezone. An entry ending exactly at midnight does not occupy
// that final day.
func (e *Entry) Days() []time.Time {
	startD, okS := e.Start().Date(e.loc)
	endD, okE := e.End().Date(e.loc)

	switch {
	case okS && okE:
		if c, ok := e.End().Clock(e.loc); ok && c == 0 {
			endD = endD.AddDate(0, 0, -1)
		}
		days := []time.Time{startD}
		for d := startD.AddDate(0, 0, 1); !d.After(endD); d = d.AddDate(0, 0, 1) {
			days = append(days, d)
		}
		return days
	case okS:
		return []time.Time{startD}
	case okE:
		return []time.Time{endD}
	default:
		return nil
	}
}

// TimeSpan is the clipped time-of-day interval of an entry on one day. A zero
// Start or End marks the day edge: the entry spans on from an adjacent day,
// or occupies the whole day.
type TimeSpan struct {
	Start time.Duration
	End   time.Duration
}

// TimesOn reports the entry's occupation of the 24-hour window of day, or
// ok=false when the entry does not intersect that day at all.
func (e *Entry) TimesOn(day time.Time) (TimeSpan, bool) {
	startDT, okS := e.Start().DateTime(e.loc)
	endDT, okE := e.End().DateTime(e.loc)
	if !okS && !okE {
		return TimeSpan{}, false
	}
	if !okS {
		startDT = endDT
	}
	if !okE {
		endDT = startDT
	}

	lower := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, e.loc)
	upper := lower.AddDate(0, 0, 1)
	if !startDT.Before(upper) || !endDT.After(lower) {
		return TimeSpan{}, false
	}

	var ts TimeSpan
	if startDT.After(lower) && startDT.Before(upper) {
		ts.Start = clockOf(startDT.In(e.loc))
	}
	if endDT.After(lower) && endDT.Before(upper) {
		ts.End = clockOf(endDT.In(e.loc))
	}
	return ts, true
}

func clockOf(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// --- Ordering and grouping

// Less orders entries by (start, end, summary). A missing bound compares as
// the present moment, so unscheduled items sort near the current view.
func (e *Entry) Less(other *Entry) bool {
	now := time.Now().In(e.loc)
	es, os := orBound(e.Start(), e.loc, now), orBound(other.Start(), other.loc, now)
	if !es.Equal(os) {
		return es.Before(os)
	}
	ee, oe := orBound(e.End(), e.loc, now), orBound(other.End(), other.loc, now)
	if !ee.Equal(oe) {
		return ee.Before(oe)
	}
	return e.Summary() < other.Summary()
}

func orBound(v temporal.Value, loc *time.Location, def time.Time) time.Time {
	if dt, ok := v.DateTime(loc); ok {
		return dt
	}
	return def
}

// Sort orders a slice of entries in place.
func Sort(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
}

// Group classifies entries by the dates they occupy. An entry spanning
// several days appears under each of them.
func Group(entries []*Entry) map[time.Time][]*Entry {
	grouped := make(map[time.Time][]*Entry)
	for _, e := range entries {
		for _, day := range e.Days() {
			grouped[day] = append(grouped[day], e)
		}
	}
	return grouped
}

// --- Persistence

// Save stamps CREATED/LAST-MODIFIED and writes the document to its file.
func (e *Entry) Save() error {
	if e.virtual {
		return ErrVirtual
	}
	if e.dir == "" {
		return ErrDetached
	}
	now := time.Now().UTC().Format(utcLayout)
	if e.core.GetProperty(ical.ComponentPropertyCreated) == nil {
		e.core.SetProperty(ical.ComponentPropertyCreated, now)
	}
	e.removeProp(propLastModified)
	e.core.SetProperty(propLastModified, now)
	return os.WriteFile(e.Path(), []byte(e.doc.Serialize()), 0o644)
}

// Reload replaces the in-memory document with the file's current contents.
func (e *Entry) Reload() error {
	if e.virtual {
		return ErrVirtual
	}
	if e.dir == "" {
		return ErrDetached
	}
	fresh, err := Load(e.Path(), e.loc)
	if err != nil {
		return err
	}
	if fresh.kind != e.kind {
		return fmt.Errorf("%w: component type changed on disk", ErrInvalid)
	}
	e.doc, e.core, e.overrides = fresh.doc, fresh.core, fresh.overrides
	return nil
}

// Delete removes the backing file. The in-memory entry stays usable but
// detaches from its calendar directory.
func (e *Entry) Delete() error {
	if e.virtual {
		return ErrVirtual
	}
	if e.dir == "" {
		return ErrDetached
	}
	if err := os.Remove(e.Path()); err != nil {
		return err
	}
	e.dir = ""
	return nil
}

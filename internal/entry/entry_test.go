package entry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Terrance/Davendar/internal/temporal"
)

func icsDoc(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//davendar//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

func timedEvent(t *testing.T, start, end time.Time) *Entry {
	t.Helper()
	e := New(Event, time.UTC)
	e.SetStart(temporal.NewDateTime(start))
	e.SetEnd(temporal.NewDateTime(end))
	return e
}

func allDayEvent(t *testing.T, start, end time.Time) *Entry {
	t.Helper()
	e := New(Event, time.UTC)
	e.SetStart(temporal.NewDate(start))
	e.SetEnd(temporal.NewDate(end))
	return e
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsDay(days []time.Time, want time.Time) bool {
	for _, d := range days {
		if d.Equal(want) {
			return true
		}
	}
	return false
}

func TestNewHasUID(t *testing.T) {
	for _, kind := range []Kind{Event, Task} {
		e := New(kind, time.UTC)
		if e.UID() == "" {
			t.Errorf("New(%v) UID is empty", kind)
		}
		if e.Filename() != e.UID()+Suffix {
			t.Errorf("New(%v) Filename() = %q, want uid+suffix", kind, e.Filename())
		}
	}
}

func TestAllDay(t *testing.T) {
	d := allDayEvent(t, day(2024, 6, 10), day(2024, 6, 11))
	if !d.AllDay() {
		t.Error("date-valued event marked not all day")
	}
	dt := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC))
	if dt.AllDay() {
		t.Error("timed event marked all day")
	}
}

func TestDaysSingle(t *testing.T) {
	e := allDayEvent(t, day(2024, 6, 10), day(2024, 6, 11))
	days := e.Days()
	if len(days) != 1 || !days[0].Equal(day(2024, 6, 10)) {
		t.Errorf("Days() = %v, want [2024-06-10]", days)
	}
}

func TestDaysMidnightEndExcluded(t *testing.T) {
	// All-day 2024-06-10 to 2024-06-12 (midnight): the final day is excluded.
	e := allDayEvent(t, day(2024, 6, 10), day(2024, 6, 12))
	days := e.Days()
	if len(days) != 2 {
		t.Fatalf("Days() = %v, want 2 days", days)
	}
	if !days[0].Equal(day(2024, 6, 10)) || !days[1].Equal(day(2024, 6, 11)) {
		t.Errorf("Days() = %v, want [06-10, 06-11]", days)
	}
	if containsDay(days, day(2024, 6, 12)) {
		t.Error("Days() includes the midnight end day")
	}
}

func TestDaysTimedMulti(t *testing.T) {
	e := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 11, 17, 0, 0, 0, time.UTC))
	days := e.Days()
	if containsDay(days, day(2024, 6, 9)) {
		t.Error("event leaks into past")
	}
	if !containsDay(days, day(2024, 6, 10)) || !containsDay(days, day(2024, 6, 11)) {
		t.Errorf("Days() = %v, want both spanned days", days)
	}
	if containsDay(days, day(2024, 6, 12)) {
		t.Error("event leaks into future")
	}
}

func TestDaysSingleBound(t *testing.T) {
	e := New(Event, time.UTC)
	e.SetStart(temporal.NewDate(day(2024, 6, 10)))
	days := e.Days()
	if len(days) != 1 || !days[0].Equal(day(2024, 6, 10)) {
		t.Errorf("Days() = %v, want just the start day", days)
	}

	e = New(Event, time.UTC)
	if days := e.Days(); len(days) != 0 {
		t.Errorf("Days() with no bounds = %v, want empty", days)
	}
}

func TestTimesOnTimed(t *testing.T) {
	e := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 17, 0, 0, 0, time.UTC))

	if _, ok := e.TimesOn(day(2024, 6, 9)); ok {
		t.Error("TimesOn() intersects the day before")
	}
	ts, ok := e.TimesOn(day(2024, 6, 10))
	if !ok {
		t.Fatal("TimesOn() does not intersect its own day")
	}
	if ts.Start != 9*time.Hour || ts.End != 17*time.Hour {
		t.Errorf("TimesOn() = %v-%v, want 9h-17h", ts.Start, ts.End)
	}
	if _, ok := e.TimesOn(day(2024, 6, 11)); ok {
		t.Error("TimesOn() intersects the day after")
	}
}

func TestTimesOnMultiDay(t *testing.T) {
	e := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 11, 17, 0, 0, 0, time.UTC))

	first, ok := e.TimesOn(day(2024, 6, 10))
	if !ok || first.Start != 9*time.Hour || first.End != 0 {
		t.Errorf("TimesOn(first) = %+v ok=%v, want start 9h, open end", first, ok)
	}
	second, ok := e.TimesOn(day(2024, 6, 11))
	if !ok || second.Start != 0 || second.End != 17*time.Hour {
		t.Errorf("TimesOn(second) = %+v ok=%v, want open start, end 17h", second, ok)
	}
}

func TestTimesOnAllDay(t *testing.T) {
	e := allDayEvent(t, day(2024, 6, 10), day(2024, 6, 11))
	ts, ok := e.TimesOn(day(2024, 6, 10))
	if !ok {
		t.Fatal("TimesOn() does not intersect the all-day date")
	}
	if ts.Start != 0 || ts.End != 0 {
		t.Errorf("TimesOn() = %+v, want day-edge markers", ts)
	}
	// Every day in Days() must intersect.
	for _, d := range e.Days() {
		if _, ok := e.TimesOn(d); !ok {
			t.Errorf("TimesOn(%v) = no intersection for a day in Days()", d)
		}
	}
}

func TestOrdering(t *testing.T) {
	early := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC))
	late := timedEvent(t,
		time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC))
	if !early.Less(late) {
		t.Error("earlier event should order first")
	}
	if late.Less(early) {
		t.Error("later event should not order first")
	}

	// Same bounds: summary breaks the tie.
	a := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC))
	a.SetSummary("Alpha")
	b := timedEvent(t,
		time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC))
	b.SetSummary("Beta")
	if !a.Less(b) {
		t.Error("summary should break ordering ties")
	}

	// Unscheduled entries compare as "now" rather than failing.
	unscheduled := New(Task, time.UTC)
	past := timedEvent(t,
		time.Date(2000, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 10, 0, 0, 0, time.UTC))
	if !past.Less(unscheduled) {
		t.Error("past event should order before an unscheduled entry")
	}
}

func TestGroup(t *testing.T) {
	spanning := allDayEvent(t, day(2024, 6, 10), day(2024, 6, 12))
	single := allDayEvent(t, day(2024, 6, 11), day(2024, 6, 12))

	grouped := Group([]*Entry{spanning, single})
	if got := len(grouped[day(2024, 6, 10)]); got != 1 {
		t.Errorf("group[06-10] has %d entries, want 1", got)
	}
	if got := len(grouped[day(2024, 6, 11)]); got != 2 {
		t.Errorf("group[06-11] has %d entries, want 2", got)
	}
	if got := len(grouped[day(2024, 6, 12)]); got != 0 {
		t.Errorf("group[06-12] has %d entries, want 0", got)
	}
}

func TestPriorityLevels(t *testing.T) {
	cases := []struct {
		raw  string
		want Priority
	}{
		{"", PriorityNone},
		{"0", PriorityNone},
		{"1", PriorityLow},
		{"4", PriorityLow},
		{"5", PriorityMedium},
		{"6", PriorityHigh},
		{"9", PriorityHigh},
		{"12", PriorityNone},
	}
	for _, c := range cases {
		doc := []string{"BEGIN:VTODO", "UID:prio-test", "SUMMARY:Chore"}
		if c.raw != "" {
			doc = append(doc, "PRIORITY:"+c.raw)
		}
		doc = append(doc, "END:VTODO")
		e, err := Parse(icsDoc(doc...), time.UTC)
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got := e.PriorityLevel(); got != c.want {
			t.Errorf("PriorityLevel() with PRIORITY=%q = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestSetPriorityLevelRoundTrip(t *testing.T) {
	e := New(Task, time.UTC)
	e.SetPriorityLevel(PriorityHigh)
	if got := e.PriorityLevel(); got != PriorityHigh {
		t.Errorf("PriorityLevel() = %v, want high", got)
	}
	if got := e.RawPriority(); got != 6 {
		t.Errorf("RawPriority() = %d, want 6", got)
	}
	e.SetPriorityLevel(PriorityNone)
	if got := e.PriorityLevel(); got != PriorityNone {
		t.Errorf("PriorityLevel() after clear = %v, want none", got)
	}
}

func TestParseRejectsUnsupported(t *testing.T) {
	_, err := Parse(icsDoc(), time.UTC)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Parse() of empty calendar = %v, want ErrInvalid", err)
	}

	_, err = Parse(icsDoc("BEGIN:VEVENT", "SUMMARY:No identity", "END:VEVENT"), time.UTC)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Parse() without UID = %v, want ErrInvalid", err)
	}
}

func TestParseEventFields(t *testing.T) {
	e, err := Parse(icsDoc(
		"BEGIN:VEVENT",
		"UID:abc-123",
		"SUMMARY:Standup",
		"LOCATION:Room 1",
		"DTSTART:20240610T090000Z",
		"DTEND:20240610T093000Z",
		"END:VEVENT",
	), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if e.Kind() != Event {
		t.Errorf("Kind() = %v, want Event", e.Kind())
	}
	if e.UID() != "abc-123" {
		t.Errorf("UID() = %q, want abc-123", e.UID())
	}
	if e.Summary() != "Standup" || e.Location() != "Room 1" {
		t.Errorf("Summary()/Location() = %q/%q", e.Summary(), e.Location())
	}
	start, ok := e.Start().DateTime(time.UTC)
	if !ok || !start.Equal(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v ok=%v", start, ok)
	}
	if e.AllDay() {
		t.Error("timed event reported all day")
	}
}

func TestParseTaskDue(t *testing.T) {
	e, err := Parse(icsDoc(
		"BEGIN:VTODO",
		"UID:task-1",
		"SUMMARY:File taxes",
		"DUE;VALUE=DATE:20240615",
		"END:VTODO",
	), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if e.Kind() != Task {
		t.Errorf("Kind() = %v, want Task", e.Kind())
	}
	end, ok := e.End().Date(time.UTC)
	if !ok || !end.Equal(day(2024, 6, 15)) {
		t.Errorf("End() date = %v ok=%v, want 2024-06-15", end, ok)
	}
}

func TestSetStartClearsBeforeStoring(t *testing.T) {
	e := New(Event, time.UTC)
	e.SetStart(temporal.NewDateTime(time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)))
	e.SetStart(temporal.NewDate(day(2024, 6, 11)))
	if !e.AllDay() {
		t.Error("SetStart() should replace the previous date-time with a bare date")
	}
	start, _ := e.Start().Date(time.UTC)
	if !start.Equal(day(2024, 6, 11)) {
		t.Errorf("Start() = %v, want 2024-06-11", start)
	}

	e.SetStart(temporal.Value{})
	if e.Start().Defined() {
		t.Error("SetStart(absent) should clear the field")
	}
}

func TestSaveRequiresCalendar(t *testing.T) {
	e := New(Event, time.UTC)
	if err := e.Save(); err != ErrDetached {
		t.Errorf("Save() on detached entry = %v, want ErrDetached", err)
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := New(Event, time.UTC)
	e.SetSummary("Dentist")
	e.SetLocation("High Street")
	e.SetStart(temporal.NewDateTime(time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)))
	e.SetEnd(temporal.NewDateTime(time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)))
	if err := e.MoveTo(dir); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, ok := e.Created(); !ok {
		t.Error("Save() should stamp CREATED")
	}
	if _, ok := e.Updated(); !ok {
		t.Error("Save() should stamp LAST-MODIFIED")
	}

	loaded, err := Load(filepath.Join(dir, e.Filename()), time.UTC)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.UID() != e.UID() {
		t.Errorf("Load() UID = %q, want %q", loaded.UID(), e.UID())
	}
	if loaded.Summary() != "Dentist" || loaded.Location() != "High Street" {
		t.Errorf("Load() Summary/Location = %q/%q", loaded.Summary(), loaded.Location())
	}
	ls, _ := loaded.Start().DateTime(time.UTC)
	es, _ := e.Start().DateTime(time.UTC)
	if !ls.Equal(es) {
		t.Errorf("Load() Start = %v, want %v", ls, es)
	}

	// Reloading the unmodified file is idempotent.
	before, _ := loaded.Start().DateTime(time.UTC)
	if err := loaded.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	after, _ := loaded.Start().DateTime(time.UTC)
	if !before.Equal(after) || loaded.Summary() != "Dentist" {
		t.Error("Reload() of an unmodified file changed entry state")
	}
}

func TestMoveToRenamesFile(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	e := New(Event, time.UTC)
	e.SetSummary("Move me")
	if err := e.MoveTo(src); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}
	if err := e.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := e.MoveTo(dst); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, e.Filename())); err != nil {
		t.Errorf("file not found in target directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, e.Filename())); !os.IsNotExist(err) {
		t.Error("file still present in source directory")
	}
}

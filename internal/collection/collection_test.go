package collection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Terrance/Davendar/internal/logger"
)

func newTestCollection(t *testing.T) *Collection {
	t.Helper()
	return New(t.TempDir(), time.UTC, logger.New("error", false), 2)
}

func addCalendarWithLabel(t *testing.T, coll *Collection, dirname, label string) *Calendar {
	t.Helper()
	if label != "" {
		dir := filepath.Join(coll.Path(), dirname)
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		props := `{"D:displayname": "` + label + `"}`
		if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte(props), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cal, err := coll.OpenCalendar(dirname)
	if err != nil {
		t.Fatalf("OpenCalendar(%s) error = %v", dirname, err)
	}
	coll.AddCalendar(cal)
	return cal
}

func TestAddDropCalendar(t *testing.T) {
	coll := newTestCollection(t)
	addCalendarWithLabel(t, coll, "Work", "")

	if _, ok := coll.Calendar("Work"); !ok {
		t.Error("Calendar() cannot find registered calendar")
	}
	if len(coll.Calendars()) != 1 {
		t.Errorf("Calendars() = %d, want 1", len(coll.Calendars()))
	}

	if !coll.DropCalendar("Work") {
		t.Error("DropCalendar() = false for a registered calendar")
	}
	if coll.DropCalendar("Work") {
		t.Error("DropCalendar() = true for an already dropped calendar")
	}
	if _, ok := coll.Calendar("Work"); ok {
		t.Error("Calendar() still finds dropped calendar")
	}
}

func TestLookupByDirnameAndLabel(t *testing.T) {
	coll := newTestCollection(t)
	addCalendarWithLabel(t, coll, "work-cal", "Work stuff")
	addCalendarWithLabel(t, coll, "personal", "")

	cal, err := coll.Lookup("work-cal")
	if err != nil || cal.Dirname() != "work-cal" {
		t.Errorf("Lookup(dirname) = %v, %v", cal, err)
	}

	cal, err = coll.Lookup("Work stuff")
	if err != nil || cal.Dirname() != "work-cal" {
		t.Errorf("Lookup(label) = %v, %v", cal, err)
	}

	if _, err := coll.Lookup("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestLookupAmbiguousLabel(t *testing.T) {
	coll := newTestCollection(t)
	addCalendarWithLabel(t, coll, "one", "Shared")
	addCalendarWithLabel(t, coll, "two", "Shared")

	if _, err := coll.Lookup("Shared"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Lookup(shared label) error = %v, want ErrAmbiguous", err)
	}

	// The directory name always wins over labels.
	cal, err := coll.Lookup("one")
	if err != nil || cal.Dirname() != "one" {
		t.Errorf("Lookup(dirname) = %v, %v", cal, err)
	}
}

func TestCollectionSliceAggregates(t *testing.T) {
	coll := newTestCollection(t)
	work := addCalendarWithLabel(t, coll, "Work", "")
	home := addCalendarWithLabel(t, coll, "Home", "")

	writeICS(t, work.Path(), "late.ics",
		"BEGIN:VEVENT",
		"UID:late",
		"SUMMARY:Afternoon",
		"DTSTART:20240610T140000Z",
		"DTEND:20240610T150000Z",
		"END:VEVENT")
	writeICS(t, home.Path(), "early.ics",
		"BEGIN:VEVENT",
		"UID:early",
		"SUMMARY:Morning",
		"DTSTART:20240610T080000Z",
		"DTEND:20240610T090000Z",
		"END:VEVENT")
	work.ScanEntries()
	home.ScanEntries()

	got := coll.Slice(day(2024, 6, 10), day(2024, 6, 11))
	if len(got) != 2 {
		t.Fatalf("Slice() = %d entries, want 2 across calendars", len(got))
	}
	if got[0].UID() != "early" || got[1].UID() != "late" {
		t.Errorf("Slice() order = [%s, %s], want [early, late]", got[0].UID(), got[1].UID())
	}
}

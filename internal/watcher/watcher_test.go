package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Terrance/Davendar/internal/collection"
	"github.com/Terrance/Davendar/internal/logger"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeICS(t *testing.T, dir, name, uid string) {
	t.Helper()
	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//davendar//test//EN",
		"BEGIN:VEVENT",
		"UID:" + uid,
		"SUMMARY:Watched",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")
	if err := os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func startReconciler(t *testing.T, root string) (*collection.Collection, *Reconciler) {
	t.Helper()
	log := logger.New("error", false)
	coll := collection.New(root, time.UTC, log, 2)
	r := New(coll, log)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(r.Stop)
	return coll, r
}

func TestStartScansExistingCalendars(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeICS(t, dir, "existing.ics", "existing-1")

	coll, r := startReconciler(t, root)

	cal, ok := coll.Calendar("Work")
	if !ok {
		t.Fatal("existing calendar not indexed at startup")
	}
	if _, ok := cal.Lookup("existing-1"); !ok {
		t.Error("existing entry not indexed at startup")
	}
	if !r.Watching(dir) {
		t.Error("Watching() = false for an existing calendar directory")
	}
}

func TestCalendarCreatedAndRemoved(t *testing.T) {
	root := t.TempDir()
	coll, r := startReconciler(t, root)

	dir := filepath.Join(root, "New")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "calendar registration", func() bool {
		_, ok := coll.Calendar("New")
		return ok && r.Watching(dir)
	})

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "calendar deregistration", func() bool {
		_, ok := coll.Calendar("New")
		return !ok && !r.Watching(dir)
	})
}

func TestEntryFileLifecycle(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	coll, _ := startReconciler(t, root)
	cal, ok := coll.Calendar("Work")
	if !ok {
		t.Fatal("calendar not indexed at startup")
	}

	writeICS(t, dir, "fresh.ics", "fresh-1")
	waitFor(t, "entry load", func() bool {
		_, ok := cal.Lookup("fresh-1")
		return ok
	})

	// Rewrite under the same name with a new UID: the index follows the file.
	writeICS(t, dir, "fresh.ics", "fresh-2")
	waitFor(t, "entry reload", func() bool {
		_, stale := cal.Lookup("fresh-1")
		_, current := cal.Lookup("fresh-2")
		return !stale && current
	})

	if err := os.Remove(filepath.Join(dir, "fresh.ics")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "entry unload", func() bool {
		_, ok := cal.Lookup("fresh-2")
		return !ok && cal.Count() == 0
	})
}

func TestNonEntryFilesIgnored(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	coll, _ := startReconciler(t, root)
	cal, _ := coll.Calendar("Work")

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Give the event time to arrive; it must not create an entry.
	time.Sleep(200 * time.Millisecond)
	if cal.Count() != 0 {
		t.Errorf("Count() = %d after non-entry write, want 0", cal.Count())
	}
}

func TestMetadataSidecarRefresh(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Work")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	coll, _ := startReconciler(t, root)
	cal, _ := coll.Calendar("Work")

	props := `{"D:displayname": "Renamed", "ICAL:calendar-color": "#00ff00"}`
	if err := os.WriteFile(filepath.Join(dir, collection.MetadataFile), []byte(props), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "metadata refresh", func() bool {
		return cal.Label() == "Renamed" && cal.Colour() == "#00ff00"
	})
}

func TestRootRemovalIsFatal(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "collection")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}

	log := logger.New("error", false)
	coll := collection.New(root, time.UTC, log, 2)
	r := New(coll, log)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-r.Err():
		if err == nil {
			t.Error("Err() delivered nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fatal root-removal error")
	}
}

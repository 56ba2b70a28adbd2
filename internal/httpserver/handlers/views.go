package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Terrance/Davendar/internal/entry"
	"github.com/Terrance/Davendar/internal/httpserver/deps"
)

const dateKey = "2006-01-02"

type entryView struct {
	UID      string `json:"uid"`
	Kind     string `json:"kind"`
	Summary  string `json:"summary"`
	Location string `json:"location,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	AllDay   bool   `json:"all_day"`
	Priority string `json:"priority,omitempty"`
}

func viewOf(e *entry.Entry, loc *time.Location) entryView {
	v := entryView{
		UID:      e.UID(),
		Kind:     e.Kind().String(),
		Summary:  e.Summary(),
		Location: e.Location(),
		AllDay:   e.AllDay(),
	}
	if t, ok := e.Start().DateTime(loc); ok {
		v.Start = formatBound(e.AllDay(), t)
	}
	if t, ok := e.End().DateTime(loc); ok {
		v.End = formatBound(e.AllDay(), t)
	}
	switch e.PriorityLevel() {
	case entry.PriorityLow:
		v.Priority = "low"
	case entry.PriorityMedium:
		v.Priority = "medium"
	case entry.PriorityHigh:
		v.Priority = "high"
	}
	return v
}

func formatBound(allDay bool, t time.Time) string {
	if allDay {
		return t.Format(dateKey)
	}
	return t.Format(time.RFC3339)
}

func views(entries []*entry.Entry, loc *time.Location) []entryView {
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, viewOf(e, loc))
	}
	return out
}

// Month serves every entry occurrence of one calendar month, grouped by the
// days each occupies.
func Month(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, errY := strconv.Atoi(chi.URLParam(r, "year"))
		month, errM := strconv.Atoi(chi.URLParam(r, "month"))
		if errY != nil || errM != nil || month < 1 || month > 12 {
			http.Error(w, "invalid year/month", http.StatusBadRequest)
			return
		}

		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, d.Location)
		to := from.AddDate(0, 1, 0)

		grouped := entry.Group(d.Collection.Slice(from, to))
		days := make(map[string][]entryView, len(grouped))
		for day, entries := range grouped {
			if day.Before(from) || !day.Before(to) {
				continue
			}
			entry.Sort(entries)
			days[day.Format(dateKey)] = views(entries, d.Location)
		}

		writeJSON(w, d, map[string]interface{}{
			"selected": from.Format(dateKey),
			"days":     days,
		})
	}
}

// Day serves the entry occurrences of a single day, in entry order.
func Day(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, errY := strconv.Atoi(chi.URLParam(r, "year"))
		month, errM := strconv.Atoi(chi.URLParam(r, "month"))
		day, errD := strconv.Atoi(chi.URLParam(r, "day"))
		if errY != nil || errM != nil || errD != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}

		from := time.Date(year, time.Month(month), day, 0, 0, 0, 0, d.Location)
		to := from.AddDate(0, 0, 1)

		writeJSON(w, d, map[string]interface{}{
			"selected": from.Format(dateKey),
			"entries":  views(d.Collection.Slice(from, to), d.Location),
		})
	}
}

func writeJSON(w http.ResponseWriter, d deps.Deps, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		d.Logger.Debug("failed to write response")
	}
}

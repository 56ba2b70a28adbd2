package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Terrance/Davendar/internal/collection"
	"github.com/Terrance/Davendar/internal/entry"
	"github.com/Terrance/Davendar/internal/httpserver/deps"
	"github.com/Terrance/Davendar/internal/logger"
	"github.com/Terrance/Davendar/internal/quickadd"
	"github.com/Terrance/Davendar/internal/temporal"
)

type calendarView struct {
	Dirname string `json:"dirname"`
	Label   string `json:"label,omitempty"`
	Colour  string `json:"colour,omitempty"`
	Entries int    `json:"entries"`
}

// Calendars lists every calendar in the collection.
func Calendars(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cals := d.Collection.Calendars()
		out := make([]calendarView, 0, len(cals))
		for _, cal := range cals {
			out = append(out, calendarView{
				Dirname: cal.Dirname(),
				Label:   cal.Label(),
				Colour:  cal.Colour(),
				Entries: cal.Count(),
			})
		}
		writeJSON(w, d, out)
	}
}

type createRequest struct {
	// Text is quick-add input; when set the remaining fields are ignored.
	Text string `json:"text"`

	Kind     string `json:"kind"` // "event" (default) or "task"
	Summary  string `json:"summary"`
	Location string `json:"location"`
	Start    string `json:"start"` // RFC 3339, or 2006-01-02 when AllDay
	End      string `json:"end"`
	AllDay   bool   `json:"all_day"`
}

// CreateEntry creates an entry in the addressed calendar, either from
// structured fields or from quick-add free text.
func CreateEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, ok := lookupCalendar(w, r, d)
		if !ok {
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		kind := entry.Event
		if req.Kind == "task" {
			kind = entry.Task
		}
		e := entry.New(kind, d.Location)

		if req.Text != "" {
			fields, err := quickadd.Parse(req.Text, d.TimeNow().In(d.Location), d.Dates)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			e.SetSummary(fields.Title)
			e.SetLocation(fields.Location)
			e.SetStart(boundValue(fields.Start, fields.AllDay))
			e.SetEnd(boundValue(fields.End, fields.AllDay))
		} else {
			start, errS := parseBound(req.Start, req.AllDay, d.Location)
			end, errE := parseBound(req.End, req.AllDay, d.Location)
			if req.Summary == "" || errS != nil || errE != nil {
				http.Error(w, "summary, start and end are required", http.StatusUnprocessableEntity)
				return
			}
			e.SetSummary(req.Summary)
			e.SetLocation(req.Location)
			e.SetStart(start)
			e.SetEnd(end)
		}

		// Stamp and write the file before the entry becomes visible to
		// concurrent readers; Save mutates the component's properties.
		if err := e.MoveTo(cal.Path()); err != nil {
			d.Logger.Error("failed to place entry", logger.Error(err))
			http.Error(w, "failed to add entry", http.StatusInternalServerError)
			return
		}
		if err := e.Save(); err != nil {
			d.Logger.Error("failed to save entry", logger.Error(err))
			http.Error(w, "failed to save entry", http.StatusInternalServerError)
			return
		}
		if err := cal.AddEntry(e); err != nil {
			d.Logger.Error("failed to add entry", logger.Error(err))
			http.Error(w, "failed to add entry", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusCreated)
		writeJSON(w, d, viewOf(e, d.Location))
	}
}

// GetEntry serves one entry by UID or filename.
func GetEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, e, ok := lookupEntry(w, r, d)
		if !ok {
			return
		}
		writeJSON(w, d, viewOf(e, d.Location))
	}
}

// DeleteEntry removes an entry's file and drops it from the index.
func DeleteEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, e, ok := lookupEntry(w, r, d)
		if !ok {
			return
		}
		if err := e.Delete(); err != nil {
			d.Logger.Error("failed to delete entry", logger.Error(err))
			http.Error(w, "failed to delete entry", http.StatusInternalServerError)
			return
		}
		cal.DropEntry(e)
		w.WriteHeader(http.StatusNoContent)
	}
}

type moveRequest struct {
	Target string `json:"target"`
}

// MoveEntry transfers an entry to another calendar, renaming its file.
func MoveEntry(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, e, ok := lookupEntry(w, r, d)
		if !ok {
			return
		}

		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Target == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		target, err := d.Collection.Lookup(req.Target)
		if err != nil {
			writeLookupError(w, err)
			return
		}

		if err := cal.MoveEntry(e, target); err != nil {
			d.Logger.Error("failed to move entry", logger.Error(err))
			http.Error(w, "failed to move entry", http.StatusInternalServerError)
			return
		}
		writeJSON(w, d, viewOf(e, d.Location))
	}
}

func lookupCalendar(w http.ResponseWriter, r *http.Request, d deps.Deps) (*collection.Calendar, bool) {
	cal, err := d.Collection.Lookup(chi.URLParam(r, "calendar"))
	if err != nil {
		writeLookupError(w, err)
		return nil, false
	}
	return cal, true
}

func lookupEntry(w http.ResponseWriter, r *http.Request, d deps.Deps) (*collection.Calendar, *entry.Entry, bool) {
	cal, ok := lookupCalendar(w, r, d)
	if !ok {
		return nil, nil, false
	}
	e, ok := cal.Lookup(chi.URLParam(r, "key"))
	if !ok {
		http.Error(w, "entry not found", http.StatusNotFound)
		return nil, nil, false
	}
	return cal, e, true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, collection.ErrAmbiguous) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusNotFound)
}

func boundValue(t time.Time, allDay bool) temporal.Value {
	if allDay {
		return temporal.NewDate(t)
	}
	return temporal.NewDateTime(t)
}

func parseBound(text string, allDay bool, loc *time.Location) (temporal.Value, error) {
	if allDay {
		t, err := time.ParseInLocation(dateKey, text, loc)
		if err != nil {
			return temporal.Value{}, err
		}
		return temporal.NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, text)
	if err != nil {
		return temporal.Value{}, err
	}
	return temporal.NewDateTime(t.In(loc)), nil
}

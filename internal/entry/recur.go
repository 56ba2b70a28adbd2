package entry

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/Terrance/Davendar/internal/temporal"
)

// Recurring reports whether the entry carries a recurrence rule or date set.
func (e *Entry) Recurring() bool {
	return e.core.GetProperty(ical.ComponentPropertyRrule) != nil ||
		e.core.GetProperty(propRDate) != nil
}

// Expand materializes the entry's occurrences within [from, to). A
// non-recurring entry expands to itself; a recurring one yields a virtual
// entry per computed occurrence, with RECURRENCE-ID overrides applied. The
// expansion is purely computed from the stored rule, no I/O.
func (e *Entry) Expand(from, to time.Time) []*Entry {
	if e.virtual || !e.Recurring() {
		return []*Entry{e}
	}

	startDT, ok := e.Start().DateTime(e.loc)
	if !ok {
		return []*Entry{e}
	}

	var set rrule.Set
	set.DTStart(startDT)
	if p := e.core.GetProperty(ical.ComponentPropertyRrule); p != nil {
		r, err := rrule.StrToRRule(p.Value)
		if err != nil {
			// A malformed rule degrades to the base occurrence.
			return []*Entry{e}
		}
		r.DTStart(startDT)
		set.RRule(r)
	}
	for _, rd := range e.timeList(propRDate) {
		set.RDate(rd)
	}
	for _, ex := range e.timeList(ical.ComponentPropertyExdate) {
		set.ExDate(ex.In(startDT.Location()))
	}

	allDay := e.Start().IsDate()
	var span time.Duration
	var spanDays int
	if endDT, ok := e.End().DateTime(e.loc); ok {
		span = endDT.Sub(startDT)
	}
	if allDay {
		// Calendar arithmetic, not wall-clock hours: a midnight-to-midnight
		// span crossing a DST shift is not a multiple of 24h.
		startD, _ := e.Start().Date(e.loc)
		if endD, ok := e.End().Date(e.loc); ok {
			spanDays = daysBetween(startD, endD)
		}
	}

	occTimes := set.Between(from.In(startDT.Location()), to.In(startDT.Location()), true)
	occurrences := make([]*Entry, 0, len(occTimes))
	for _, occStart := range occTimes {
		var vStart, vEnd temporal.Value
		if allDay {
			vStart = temporal.NewDate(occStart)
			if e.End().Defined() {
				vEnd = temporal.NewDate(occStart.AddDate(0, 0, spanDays))
			}
		} else {
			vStart = temporal.NewDateTime(occStart)
			if e.End().Defined() {
				vEnd = temporal.NewDateTime(occStart.Add(span))
			}
		}

		core := e.core
		if o, ok := e.overrideFor(occStart); ok {
			core = o
			vStart = temporal.Value{}
			vEnd = temporal.Value{}
		}
		occurrences = append(occurrences, e.occurrence(core, vStart, vEnd))
	}
	return occurrences
}

// occurrence clones the entry as a virtual projection of one computed
// occurrence. An override component supplies its own start/end.
func (e *Entry) occurrence(core *ical.ComponentBase, vStart, vEnd temporal.Value) *Entry {
	clone := *e
	clone.virtual = true
	clone.core = core
	clone.overrides = nil
	clone.vStart, clone.vEnd = vStart, vEnd
	return &clone
}

// daysBetween counts the calendar days from one midnight to another.
func daysBetween(from, to time.Time) int {
	n := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// overrideFor finds the override component whose RECURRENCE-ID matches the
// given occurrence start.
func (e *Entry) overrideFor(occStart time.Time) (*ical.ComponentBase, bool) {
	for _, o := range e.overrides {
		p := o.GetProperty(propRecurrenceID)
		if p == nil {
			continue
		}
		rid, ok := decodeTime(p, e.loc).DateTime(e.loc)
		if ok && rid.Equal(occStart) {
			return o, true
		}
	}
	return nil, false
}

// timeList decodes every instance of a (possibly comma-separated) date-list
// property such as EXDATE or RDATE.
func (e *Entry) timeList(name ical.ComponentProperty) []time.Time {
	var out []time.Time
	for _, p := range e.core.GetProperties(name) {
		params := p.ICalParameters
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			single := ical.IANAProperty{
				BaseProperty: ical.BaseProperty{
					IANAToken:      string(name),
					ICalParameters: params,
					Value:          part,
				},
			}
			if t, ok := decodeTime(&single, e.loc).DateTime(e.loc); ok {
				out = append(out, t)
			}
		}
	}
	return out
}

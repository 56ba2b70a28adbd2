// Package quickadd turns free text like "Lunch from 12:30 for 1 hour at Joe's"
// into title/start/end/location fields for entry creation.
package quickadd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadInput marks malformed free-text input. It surfaces as a user-facing
// validation error, never a crash.
var ErrBadInput = errors.New("cannot understand input")

// escape prefixes a token that should be taken literally even when it
// collides with a keyword.
const escape = `\`

// DateParser is the external collaborator that resolves free-text dates.
// A non-match reports ok=false rather than an error.
type DateParser interface {
	ParseDate(text string, base time.Time) (time.Time, bool)
}

// Fields is the resolved result of a quick-add parse. Start and End are
// always set; AllDay callers should use only their date components.
type Fields struct {
	Title    string
	Location string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

type field int

const (
	fieldTitle field = iota
	fieldStart
	fieldEnd
	fieldDuration
	fieldLocation
)

// keywords map each recognized lowercase keyword to its candidate fields, in
// fall-through order: the first unfilled alternative wins, and a keyword with
// no unfilled alternative is literal text.
var keywords = map[string][]field{
	"start": {fieldStart},
	"from":  {fieldStart},
	"at":    {fieldStart, fieldLocation},
	"end":   {fieldEnd},
	"to":    {fieldEnd},
	"until": {fieldEnd},
	"for":   {fieldDuration},
	"in":    {fieldLocation},
}

// Parse tokenizes text and resolves its date fields against now. An input
// without both a resolvable start and end fails.
func Parse(text string, now time.Time, dates DateParser) (Fields, error) {
	parts := map[field][]string{}
	cursor := fieldTitle
	allDay := false

	tokens := strings.Fields(text)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if strings.HasPrefix(tok, escape) {
			parts[cursor] = append(parts[cursor], strings.TrimPrefix(tok, escape))
			continue
		}
		if strings.EqualFold(tok, "all") && i+1 < len(tokens) && strings.EqualFold(tokens[i+1], "day") {
			allDay = true
			i++
			continue
		}
		if alts, ok := keywords[strings.ToLower(tok)]; ok {
			if next, ok := firstUnfilled(parts, alts); ok {
				cursor = next
				continue
			}
		}
		parts[cursor] = append(parts[cursor], tok)
	}

	f := Fields{
		Title:    strings.Join(parts[fieldTitle], " "),
		Location: strings.Join(parts[fieldLocation], " "),
		AllDay:   allDay,
	}

	startText := strings.Join(parts[fieldStart], " ")
	if startText == "" {
		return f, fmt.Errorf("%w: no start given", ErrBadInput)
	}
	start, ok := dates.ParseDate(startText, now)
	if !ok {
		return f, fmt.Errorf("%w: cannot parse start %q", ErrBadInput, startText)
	}
	f.Start = start

	switch endText, durText := strings.Join(parts[fieldEnd], " "), strings.Join(parts[fieldDuration], " "); {
	case endText != "":
		end, ok := dates.ParseDate(endText, f.Start)
		if !ok {
			return f, fmt.Errorf("%w: cannot parse end %q", ErrBadInput, endText)
		}
		f.End = end
	case durText != "":
		dur, ok := parseDuration(durText)
		if !ok {
			return f, fmt.Errorf("%w: cannot parse duration %q", ErrBadInput, durText)
		}
		f.End = f.Start.Add(dur)
	default:
		return f, fmt.Errorf("%w: no end or duration given", ErrBadInput)
	}

	return f, nil
}

func firstUnfilled(parts map[field][]string, alts []field) (field, bool) {
	for _, f := range alts {
		if len(parts[f]) == 0 {
			return f, true
		}
	}
	return 0, false
}

// parseDuration accepts Go duration syntax ("1h30m") and simple English
// forms ("90 minutes", "2 days").
func parseDuration(text string) (time.Duration, bool) {
	if d, err := time.ParseDuration(strings.ReplaceAll(text, " ", "")); err == nil && d > 0 {
		return d, true
	}
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute", "min":
		return time.Duration(n * float64(time.Minute)), true
	case "hour", "hr":
		return time.Duration(n * float64(time.Hour)), true
	case "day":
		return time.Duration(n * 24 * float64(time.Hour)), true
	case "week":
		return time.Duration(n * 7 * 24 * float64(time.Hour)), true
	default:
		return 0, false
	}
}

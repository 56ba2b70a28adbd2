package quickadd

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// NaturalParser resolves free-text dates ("tomorrow", "friday at 5pm") with
// the when natural-language parser, trying a few fixed layouts first.
type NaturalParser struct {
	w   *when.Parser
	loc *time.Location
}

var fixedLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"15:04",
}

// NewNaturalParser builds a parser resolving dates in the given timezone.
func NewNaturalParser(loc *time.Location) *NaturalParser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &NaturalParser{w: w, loc: loc}
}

// ParseDate implements DateParser.
func (p *NaturalParser) ParseDate(text string, base time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	base = base.In(p.loc)
	for _, layout := range fixedLayouts {
		t, err := time.ParseInLocation(layout, text, p.loc)
		if err != nil {
			continue
		}
		if layout == "15:04" {
			// Bare time of day: today's date from the base moment.
			t = time.Date(base.Year(), base.Month(), base.Day(),
				t.Hour(), t.Minute(), 0, 0, p.loc)
		}
		return t, true
	}

	r, err := p.w.Parse(text, base)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

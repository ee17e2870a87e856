package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultTimestampLayout is ISO 8601 with a numeric UTC offset,
// e.g. 2025-05-26T02:12:22+02:00.
const DefaultTimestampLayout = "2006-01-02T15:04:05-07:00"

var errNoTimestamp = errors.New("no leading token")

// fraction matches a fractional second, which time.Parse accepts after the
// seconds field whether or not the layout has one.
var fraction = regexp.MustCompile(`(\d)[.,]\d+`)

// TimestampExtractor reads the leading timestamp token of a log line.
type TimestampExtractor struct {
	layout string
}

// NewTimestampExtractor creates a new timestamp extractor for the given Go
// time layout.
func NewTimestampExtractor(layout string) *TimestampExtractor {
	if layout == "" {
		layout = DefaultTimestampLayout
	}
	return &TimestampExtractor{layout: layout}
}

// Layout returns the time layout in use.
func (e *TimestampExtractor) Layout() string {
	return e.layout
}

// Extract parses the token running from the start of s up to the first
// whitespace. It returns the time and the length of the token.
func (e *TimestampExtractor) Extract(s string) (time.Time, int, error) {
	end := strings.IndexAny(s, " \t")
	if end == -1 {
		end = len(s)
	}
	if end == 0 {
		return time.Time{}, 0, errNoTimestamp
	}

	tsStr := s[:end]
	ts, err := time.Parse(e.layout, tsStr)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("parsing timestamp %q: %w", tsStr, err)
	}
	if !e.canonical(tsStr, ts) {
		return time.Time{}, 0, fmt.Errorf("parsing timestamp %q: field widths do not match layout %q", tsStr, e.layout)
	}

	return ts, end, nil
}

// canonical reports whether token is written the way the layout formats ts.
// time.Parse lets the "15" hour take one digit, so 2025-05-26T2:12:22+02:00
// would otherwise pass. Letter case and fractional seconds are not compared.
func (e *TimestampExtractor) canonical(token string, ts time.Time) bool {
	want := fraction.ReplaceAllString(token, "$1")
	if strings.EqualFold(want, fraction.ReplaceAllString(ts.Format(e.layout), "$1")) {
		return true
	}
	// Z07 layouts format a zero offset as Z but also parse +00:00.
	if strings.Contains(e.layout, "Z07") {
		numeric := strings.Replace(e.layout, "Z07", "-07", 1)
		return strings.EqualFold(want, fraction.ReplaceAllString(ts.Format(numeric), "$1"))
	}
	return false
}

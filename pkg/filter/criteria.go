// Package filter selects the subset of parsed records that satisfy a set of
// field-based criteria. All criteria combine with logical AND; the output
// keeps the input order and references the same records.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ccollicutt/acclog/pkg/record"
)

// Configuration errors returned by New.
var (
	ErrInvalidTimeRange = errors.New("time range lower bound is after upper bound")
	ErrEmptyKey         = errors.New("criterion key is empty")
	ErrInvalidPath      = errors.New("invalid body path")
	ErrInvalidExpr      = errors.New("invalid expression")
)

// TimeRange is an inclusive [Start, End] window. A zero bound is open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts lies inside the window.
func (r TimeRange) Contains(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}

// FieldMatch pairs a header key with the exact string it must equal.
type FieldMatch struct {
	Key   string
	Value string
}

// BodyMatch pairs a dotted body path with the value it must equal.
type BodyMatch struct {
	Path  string
	Value record.Value
}

// Criteria lists the recognized filter options. The zero value matches every
// record.
type Criteria struct {
	// TimeRange keeps records whose timestamp lies in the window.
	TimeRange *TimeRange

	// HeaderEquals keeps records whose header field equals the value.
	HeaderEquals []FieldMatch

	// BodyEquals keeps records whose body value at the path equals the value,
	// compared without type coercion.
	BodyEquals []BodyMatch

	// ExcludeHeader drops records whose header field equals the value.
	ExcludeHeader []FieldMatch

	// ExcludeBots drops records whose user agent looks automated.
	ExcludeBots bool

	// BotPatterns overrides DefaultBotPatterns when non-empty.
	BotPatterns []string

	// BotFields overrides DefaultBotFields when non-empty.
	BotFields []string

	// Expression is a boolean expr-lang expression evaluated against
	// timestamp, header, body and raw.
	Expression string
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.TimeRange == nil &&
		len(c.HeaderEquals) == 0 &&
		len(c.BodyEquals) == 0 &&
		len(c.ExcludeHeader) == 0 &&
		!c.ExcludeBots &&
		c.Expression == ""
}

// Validate checks the criteria without compiling them.
func (c Criteria) Validate() error {
	if c.TimeRange != nil {
		r := c.TimeRange
		if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
			return fmt.Errorf("%w: %s > %s", ErrInvalidTimeRange,
				r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
		}
	}
	for i, m := range c.HeaderEquals {
		if m.Key == "" {
			return fmt.Errorf("header_equals[%d]: %w", i, ErrEmptyKey)
		}
	}
	for i, m := range c.ExcludeHeader {
		if m.Key == "" {
			return fmt.Errorf("exclude_header[%d]: %w", i, ErrEmptyKey)
		}
	}
	for i, m := range c.BodyEquals {
		if err := record.ValidPath(m.Path); err != nil {
			return fmt.Errorf("body_equals[%d]: %w: %v", i, ErrInvalidPath, err)
		}
	}
	// An empty pattern would mark every user agent as a bot.
	for i, p := range c.BotPatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("bot_patterns[%d]: %w", i, ErrEmptyKey)
		}
	}
	for i, f := range c.BotFields {
		if f == "" {
			return fmt.Errorf("bot_fields[%d]: %w", i, ErrEmptyKey)
		}
	}
	return nil
}

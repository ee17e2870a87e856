// Package output provides formatting and output generation for parsed and
// filtered access-log records.
package output

import (
	"time"

	"github.com/ccollicutt/acclog/pkg/parser"
	"github.com/ccollicutt/acclog/pkg/record"
)

// MaxErrorSamples bounds how many skipped lines a report keeps verbatim.
const MaxErrorSamples = 20

// Report is the complete output of a parse or filter run.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Records are the records that passed the filter, in input order.
	Records []*record.LogRecord `json:"records"`

	// Errors samples the lines that failed to parse.
	Errors []ErrorSample `json:"errors,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// LinesRead is the number of lines consumed from all sources.
	LinesRead int `json:"lines_read"`

	// Parsed is the number of lines that produced a record.
	Parsed int `json:"parsed"`

	// Skipped is the number of lines that failed to parse.
	Skipped int `json:"skipped"`

	// SkippedByKind counts skipped lines per error kind.
	SkippedByKind map[string]int `json:"skipped_by_kind,omitempty"`

	// Sampled is the number of parsed records kept by random sampling. Zero
	// means every parsed record was considered.
	Sampled int `json:"sampled,omitempty"`

	// Matched is the number of records that passed the filter.
	Matched int `json:"matched"`
}

// ErrorSample describes one line that failed to parse.
type ErrorSample struct {
	Source  string `json:"source,omitempty"`
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Offset  int    `json:"offset"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the log files that were read.
	Sources []string `json:"sources"`

	// TimeRange is the time filter that was applied, if any.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// TimeRange represents a time window for filtering. Zero bounds are open.
type TimeRange struct {
	Start time.Time `json:"start,omitzero"`
	End   time.Time `json:"end,omitzero"`
}

// NewReport builds a Report from collected parse results and the records
// that passed the filter.
func NewReport(collected *parser.Collected, matched []*record.LogRecord, meta Metadata) *Report {
	report := &Report{
		Records:  matched,
		Metadata: meta,
		Summary: Summary{
			LinesRead: collected.Lines,
			Parsed:    len(collected.Records),
			Skipped:   len(collected.Errors),
			Matched:   len(matched),
		},
	}
	if report.Records == nil {
		report.Records = []*record.LogRecord{}
	}

	if len(collected.Errors) > 0 {
		report.Summary.SkippedByKind = make(map[string]int)
	}
	for _, perr := range collected.Errors {
		report.Summary.SkippedByKind[string(perr.Kind)]++
		if len(report.Errors) < MaxErrorSamples {
			report.Errors = append(report.Errors, newErrorSample(perr))
		}
	}

	return report
}

func newErrorSample(perr *parser.ParseError) ErrorSample {
	msg := ""
	if perr.Err != nil {
		msg = perr.Err.Error()
	}
	return ErrorSample{
		Source:  perr.Origin.Source,
		Line:    perr.Origin.LineNum,
		Kind:    string(perr.Kind),
		Offset:  perr.Offset,
		Message: msg,
		Raw:     perr.Raw,
	}
}

// HasMatches returns true if any record passed the filter.
func (r *Report) HasMatches() bool {
	return r.Summary.Matched > 0
}

// HasErrors returns true if any line failed to parse.
func (r *Report) HasErrors() bool {
	return r.Summary.Skipped > 0
}

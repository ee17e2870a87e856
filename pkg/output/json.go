package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ccollicutt/acclog/pkg/record"
)

// JSONFormatter formats reports as a single indented JSON document.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		// Quiet mode: just summary
		return encoder.Encode(report.Summary)
	}

	if !f.opts.ShowErrors {
		trimmed := *report
		trimmed.Errors = nil
		return encoder.Encode(&trimmed)
	}
	return encoder.Encode(report)
}

// WriteRecord renders rec as one compact JSON line.
func (f *JSONFormatter) WriteRecord(rec *record.LogRecord, w io.Writer) error {
	return json.NewEncoder(w).Encode(rec)
}

// JSONLFormatter writes one JSON object per matched record and nothing else,
// so the output can be piped to line-oriented tools.
type JSONLFormatter struct {
	opts FormatOptions
}

// NewJSONLFormatter creates a new JSON Lines formatter.
func NewJSONLFormatter(opts FormatOptions) *JSONLFormatter {
	return &JSONLFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONLFormatter) Name() string {
	return "jsonl"
}

// Format renders each record on its own line. Quiet mode prints the summary
// as a single line instead.
func (f *JSONLFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.opts.Quiet {
		return encoder.Encode(report.Summary)
	}
	for i, rec := range report.Records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	if f.opts.ShowErrors {
		for _, e := range report.Errors {
			if err := encoder.Encode(map[string]ErrorSample{"error": e}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteRecord renders rec as one JSON line.
func (f *JSONLFormatter) WriteRecord(rec *record.LogRecord, w io.Writer) error {
	return json.NewEncoder(w).Encode(rec)
}

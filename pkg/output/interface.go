package output

import (
	"context"
	"fmt"
	"io"

	"github.com/ccollicutt/acclog/pkg/record"
)

// Formatter renders run results in a specific format.
type Formatter interface {
	// Format renders the report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// WriteRecord renders a single record, for streaming output.
	WriteRecord(rec *record.LogRecord, w io.Writer) error

	// Name returns the format name (text, json, jsonl).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose adds source locations and run statistics.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool

	// ShowErrors lists sampled skipped lines.
	ShowErrors bool
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "jsonl"}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "text":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "jsonl":
		return NewJSONLFormatter(opts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text, json, or jsonl)", name)
	}
}

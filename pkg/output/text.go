package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/acclog/pkg/record"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(ctx, report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "acclog: %d lines, %d parsed, %d skipped, %d matched\n",
		report.Summary.LinesRead,
		report.Summary.Parsed,
		report.Summary.Skipped,
		report.Summary.Matched)
	return err
}

func (f *TextFormatter) formatFull(ctx context.Context, report *Report, w io.Writer) error {
	for i, rec := range report.Records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := f.WriteRecord(rec, w); err != nil {
			return err
		}
	}

	if f.opts.ShowErrors && len(report.Errors) > 0 {
		fmt.Fprintln(w, "---")
		fmt.Fprintf(w, "Skipped lines (first %d of %d):\n", len(report.Errors), report.Summary.Skipped)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s:%d [%s] at offset %d: %s\n", e.Source, e.Line, e.Kind, e.Offset, e.Message)
			fmt.Fprintf(w, "    %s\n", truncate(e.Raw, 120))
		}
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d lines read, %d parsed, %d skipped, %d matched\n",
		report.Summary.LinesRead,
		report.Summary.Parsed,
		report.Summary.Skipped,
		report.Summary.Matched)

	if report.Summary.Sampled > 0 {
		fmt.Fprintf(w, "Sampled: %d of %d parsed records\n", report.Summary.Sampled, report.Summary.Parsed)
	}

	if report.Summary.Skipped > 0 {
		kinds := make([]string, 0, len(report.Summary.SkippedByKind))
		for k := range report.Summary.SkippedByKind {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		parts := make([]string, len(kinds))
		for i, k := range kinds {
			parts[i] = fmt.Sprintf("%s=%d", k, report.Summary.SkippedByKind[k])
		}
		fmt.Fprintf(w, "Skipped by kind: %s\n", strings.Join(parts, ", "))
	}

	if f.opts.Verbose {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(report.Metadata.Sources, ", "))
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(time.Millisecond))
	}

	return nil
}

// WriteRecord renders rec as one line: timestamp, sorted header pairs and the
// compact JSON body. Verbose mode prefixes the source location.
func (f *TextFormatter) WriteRecord(rec *record.LogRecord, w io.Writer) error {
	var b strings.Builder
	if f.opts.Verbose {
		if o := rec.Origin(); o.Source != "" {
			fmt.Fprintf(&b, "%s:%d: ", o.Source, o.LineNum)
		}
	}
	b.WriteString(rec.Timestamp().Format(time.RFC3339Nano))

	header := rec.Header()
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(header[k]))
	}

	body, err := json.Marshal(rec.Body())
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}
	b.WriteByte(' ')
	b.Write(body)
	b.WriteByte('\n')

	_, err = io.WriteString(w, b.String())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

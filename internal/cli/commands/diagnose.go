package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/acclog/pkg/parser"
	"github.com/ccollicutt/acclog/pkg/record"
)

// DefaultDiagnoseLines is how many lines diagnose samples by default.
const DefaultDiagnoseLines = 20

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
	Lines   int
	Layout  string
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// candidateLayouts are tried against a rejected timestamp token to suggest a
// --layout value. Only layouts without spaces can match a single token.
var candidateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
	"02/Jan/2006:15:04:05",
	"20060102T150405Z0700",
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <log-file>",
		Short: "Explain why lines of a log file do or do not parse",
		Long: `Sample the first lines of a log file and report, stage by stage, how many
lines pass the timestamp, header block and JSON body checks. Failing stages
show a sample line and a hint.

Example:
  acclog diagnose access.log
  acclog diagnose -n 100 -v access.log.gz  # per-line verdicts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show per-line verdicts")
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", DefaultDiagnoseLines, "Number of lines to sample")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "Timestamp layout (default "+parser.DefaultTimestampLayout+")")

	return cmd
}

func runDiagnose(_ context.Context, w io.Writer, path string, opts *DiagnoseOptions) error {
	ExitCode = 0
	if opts.Lines <= 0 {
		return errors.New("--lines must be > 0")
	}

	results := []DiagnosticResult{}

	result := checkLogFile(path)
	results = append(results, result)
	if result.Status == "error" {
		ExitCode = printDiagnostics(w, results, opts)
		return nil
	}

	lines, err := parser.ReadLines(path, opts.Lines)
	if err != nil {
		results = append(results, DiagnosticResult{
			Check:    "Read Sample",
			Status:   "error",
			Message:  fmt.Sprintf("Cannot read file: %v", err),
			Suggests: []string{"Compressed files must end in .gz, .zst or .zstd"},
		})
		ExitCode = printDiagnostics(w, results, opts)
		return nil
	}

	p := parser.New(parser.WithTimestampLayout(opts.Layout))
	sample := make([]parser.Result, len(lines))
	for i, line := range lines {
		sample[i] = p.ParseLineResult(line, record.Origin{Source: path, LineNum: i + 1})
	}

	results = append(results, checkStages(sample)...)
	if opts.Verbose {
		results = append(results, lineVerdicts(sample))
	}

	ExitCode = printDiagnostics(w, results, opts)
	return nil
}

func checkLogFile(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Log File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Log file not found: %s", path)
		result.Suggests = []string{"Check the file path is correct"}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access log file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		result.Suggests = []string{"Diagnose one file at a time, e.g. /var/log/nginx/access.log"}
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Log file is empty"
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

// checkStages reports, for each parse stage, how many of the lines that
// reached it got through.
func checkStages(sample []parser.Result) []DiagnosticResult {
	failed := make(map[parser.ErrorKind][]*parser.ParseError)
	parsed := 0
	for _, r := range sample {
		if r.OK() {
			parsed++
			continue
		}
		failed[r.Err.Kind] = append(failed[r.Err.Kind], r.Err)
	}

	results := []DiagnosticResult{}

	if blanks := len(failed[parser.KindEmptyLine]); blanks > 0 {
		results = append(results, DiagnosticResult{
			Check:   "Blank Lines",
			Status:  "warning",
			Message: fmt.Sprintf("%d blank line(s) will be skipped", blanks),
		})
	}

	reached := len(sample) - len(failed[parser.KindEmptyLine])
	stages := []struct {
		check string
		kind  parser.ErrorKind
		hint  string
	}{
		{"Timestamp", parser.KindInvalidTimestamp, "Lines must start with a timestamp followed by whitespace"},
		{"Header Block", parser.KindInvalidHeader, `The header must look like {key="value", key2="value2"}`},
		{"JSON Body", parser.KindInvalidBody, "The rest of the line must be one JSON object"},
	}
	for _, stage := range stages {
		fails := failed[stage.kind]
		result := stageResult(stage.check, reached, fails)
		if len(fails) > 0 {
			result.Suggests = append(result.Suggests, stage.hint)
			if stage.kind == parser.KindInvalidTimestamp {
				result.Suggests = append(result.Suggests, suggestLayout(fails[0].Raw)...)
			}
		}
		results = append(results, result)
		reached -= len(fails)
	}

	summary := DiagnosticResult{
		Check:   "Sample",
		Message: fmt.Sprintf("Parsed %d of %d sampled line(s)", parsed, len(sample)),
	}
	switch {
	case parsed == 0:
		summary.Status = "error"
	case parsed < len(sample):
		summary.Status = "warning"
	default:
		summary.Status = "ok"
	}
	results = append(results, summary)

	return results
}

func stageResult(check string, reached int, fails []*parser.ParseError) DiagnosticResult {
	result := DiagnosticResult{Check: check}
	passed := reached - len(fails)

	switch {
	case reached == 0:
		result.Status = "warning"
		result.Message = "No lines reached this stage"
		return result
	case len(fails) == 0:
		result.Status = "ok"
	case passed >= len(fails):
		result.Status = "warning"
	default:
		result.Status = "error"
	}
	result.Message = fmt.Sprintf("%d/%d line(s) passed", passed, reached)

	if len(fails) > 0 {
		first := fails[0]
		result.Details = []string{
			fmt.Sprintf("Line %d failed at offset %d: %v", first.Origin.LineNum, first.Offset, first.Err),
			truncate(first.Raw, 80),
		}
	}
	return result
}

// suggestLayout returns hints naming layouts that accept the line's first
// token.
func suggestLayout(line string) []string {
	token, _, _ := strings.Cut(strings.TrimLeft(line, " \t"), " ")
	if token == "" {
		return nil
	}
	var hints []string
	for _, layout := range candidateLayouts {
		if _, err := time.Parse(layout, token); err == nil {
			hints = append(hints, fmt.Sprintf("Token %q parses with --layout %q", token, layout))
			break
		}
	}
	return hints
}

func lineVerdicts(sample []parser.Result) DiagnosticResult {
	result := DiagnosticResult{
		Check:   "Line Verdicts",
		Status:  "ok",
		Message: fmt.Sprintf("%d line(s)", len(sample)),
	}
	for i, r := range sample {
		if r.OK() {
			result.Details = append(result.Details, fmt.Sprintf("line %d: ok", i+1))
			continue
		}
		result.Details = append(result.Details, fmt.Sprintf("line %d: %s at offset %d", i+1, r.Err.Kind, r.Err.Offset))
	}
	return result
}

// printDiagnostics writes the results and returns the exit code they imply.
func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) int {
	fmt.Fprintln(w, "=== acclog Log Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	switch {
	case errCount > 0:
		fmt.Fprintln(w, "\nFix the errors above before parsing this file.")
		return 1
	case warnCount > 0:
		fmt.Fprintln(w, "\nThe file parses, but some lines will be skipped.")
	default:
		fmt.Fprintln(w, "\nEvery sampled line parses.")
	}
	return 0
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ccollicutt/acclog/internal/logger"
	"github.com/ccollicutt/acclog/pkg/filter"
	"github.com/ccollicutt/acclog/pkg/parser"
	"github.com/ccollicutt/acclog/pkg/record"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// maxLoggedSkips bounds how many skipped lines are logged individually.
const maxLoggedSkips = 10

// IngestOptions controls how log files are read and parsed.
type IngestOptions struct {
	Layout   string
	Workers  int
	MaxLines int
	// Merge interleaves multiple files by timestamp instead of reading them
	// one after another.
	Merge bool
}

// resolveFiles expands globs and directories and fails when nothing matches.
func resolveFiles(patterns []string) ([]string, error) {
	files, err := parser.ExpandGlobs(patterns)
	if err != nil {
		return nil, fmt.Errorf("expanding log sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no log files matched patterns: %v", patterns)
	}
	return files, nil
}

// ingest parses every line of files. Lines that fail to parse are counted and
// sampled in the result, never fatal.
func ingest(ctx context.Context, files []string, opts IngestOptions) (*parser.Collected, error) {
	p := parser.New(parser.WithTimestampLayout(opts.Layout))

	if opts.Merge && len(files) > 1 {
		sources := make([]parser.Source, len(files))
		for i, file := range files {
			sources[i] = parser.NewFileSource([]string{file}, p)
		}
		src := parser.NewMergedSource(sources...)
		defer src.Close()
		return parser.Collect(ctx, src, opts.MaxLines)
	}

	return p.ParseFiles(ctx, files, opts.Workers, opts.MaxLines)
}

// sampleRecords keeps n randomly chosen records when n is smaller than the
// input. The count is zero when nothing was dropped.
func sampleRecords(records []*record.LogRecord, n int, seed uint64) ([]*record.LogRecord, int) {
	if n <= 0 || n >= len(records) {
		return records, 0
	}
	kept := filter.Sample(records, n, filter.NewRand(seed))
	logger.Debug("sampled records", "kept", len(kept), "parsed", len(records), "seed", seed)
	return kept, len(kept)
}

// logIngest reports ingestion statistics and the first few skipped lines.
func logIngest(collected *parser.Collected, sources, matched int, elapsed time.Duration) {
	byKind := make(map[string]int)
	for i, perr := range collected.Errors {
		byKind[string(perr.Kind)]++
		if i < maxLoggedSkips {
			logger.LogSkippedLine(perr.Origin.Source, perr.Origin.LineNum, string(perr.Kind), perr.Offset, perr)
		}
	}
	logger.LogIngest(logger.IngestStats{
		Sources:  sources,
		Lines:    collected.Lines,
		Parsed:   len(collected.Records),
		Skipped:  len(collected.Errors),
		Matched:  matched,
		Duration: elapsed,
		ByKind:   byKind,
	})
}

// splitPair splits a key=value flag argument at the first '='.
func splitPair(flag, s string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("invalid --%s %q (want key=value)", flag, s)
	}
	return k, v, nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/acclog/internal/logger"
	"github.com/ccollicutt/acclog/pkg/output"
	"github.com/ccollicutt/acclog/pkg/parser"
)

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	Output     string
	Layout     string
	Workers    int
	MaxLines   int
	Sample     int
	Seed       uint64
	Merge      bool
	Follow     bool
	FromStart  bool
	Strict     bool
	ShowErrors bool
	Verbose    bool
	Quiet      bool
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [flags] <file...>",
		Short: "Parse access-log files into structured records",
		Long: `Parse access-log lines of the form

  <timestamp> {key="value", ...} {json body}

and print the resulting records. Arguments may be files, glob patterns or
directories; .gz and .zst files are decompressed on the fly. Lines that do
not parse are skipped and counted.

Exit codes:
  0 - Success
  1 - Lines were skipped and --strict was given
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|jsonl)")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "Timestamp layout (default "+parser.DefaultTimestampLayout+")")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Parallel parse workers (0 = number of CPUs)")
	cmd.Flags().IntVar(&opts.MaxLines, "max-lines", 0, "Stop after this many lines (0 = no limit)")
	cmd.Flags().IntVar(&opts.Sample, "sample", 0, "Keep this many parsed records chosen at random (0 = all)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed for --sample (0 = different every run)")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "Interleave multiple files by timestamp")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep reading a single file as it grows")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "With --follow, emit existing content first")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit 1 if any line was skipped")
	cmd.Flags().BoolVar(&opts.ShowErrors, "errors", false, "List skipped lines")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show source locations and statistics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no records")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	ExitCode = 0
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose:    opts.Verbose,
		Quiet:      opts.Quiet,
		ShowErrors: opts.ShowErrors,
	})
	if err != nil {
		return err
	}
	if opts.Workers < 0 || opts.MaxLines < 0 || opts.Sample < 0 {
		return errors.New("--workers, --max-lines and --sample must be >= 0")
	}

	if opts.Follow {
		if len(args) != 1 {
			return errors.New("--follow takes exactly one file")
		}
		if opts.Sample > 0 {
			return errors.New("--sample cannot be combined with --follow")
		}
		return runFollow(ctx, args[0], opts, formatter, cmd.OutOrStdout())
	}

	files, err := resolveFiles(args)
	if err != nil {
		return err
	}

	start := time.Now()
	collected, err := ingest(ctx, files, IngestOptions{
		Layout:   opts.Layout,
		Workers:  opts.Workers,
		MaxLines: opts.MaxLines,
		Merge:    opts.Merge,
	})
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}
	records, sampled := sampleRecords(collected.Records, opts.Sample, opts.Seed)
	elapsed := time.Since(start)
	logIngest(collected, len(files), len(records), elapsed)

	report := output.NewReport(collected, records, output.Metadata{
		Sources:     files,
		GeneratedAt: time.Now(),
		Duration:    elapsed,
	})
	report.Summary.Sampled = sampled

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if opts.Strict && report.HasErrors() {
		ExitCode = 1
	}
	return nil
}

// runFollow streams records from a growing file until interrupted.
func runFollow(ctx context.Context, path string, opts *ParseOptions, formatter output.Formatter, w io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := parser.New(parser.WithTimestampLayout(opts.Layout))
	src := parser.NewFollowSource(path, p, opts.FromStart)
	defer src.Close()

	log := logger.WithSource(path)
	log.Info("following file", "from_start", opts.FromStart)

	lines, skipped := 0, 0
	for {
		res, err := src.Next(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("stopped following", "lines", lines, "skipped", skipped)
			if opts.Strict && skipped > 0 {
				ExitCode = 1
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("following %s: %w", path, err)
		}
		lines++

		switch {
		case !res.OK():
			skipped++
			logger.LogSkippedLine(path, res.Err.Origin.LineNum, string(res.Err.Kind), res.Err.Offset, res.Err)
		case !opts.Quiet:
			if err := formatter.WriteRecord(res.Record, w); err != nil {
				return fmt.Errorf("formatting output: %w", err)
			}
		}

		if opts.MaxLines > 0 && lines >= opts.MaxLines {
			if opts.Strict && skipped > 0 {
				ExitCode = 1
			}
			return nil
		}
	}
}

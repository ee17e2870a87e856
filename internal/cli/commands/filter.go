package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/acclog/internal/logger"
	"github.com/ccollicutt/acclog/pkg/config"
	"github.com/ccollicutt/acclog/pkg/filter"
	"github.com/ccollicutt/acclog/pkg/output"
	"github.com/ccollicutt/acclog/pkg/record"
	"github.com/ccollicutt/acclog/pkg/webhook"
)

// FilterOptions holds command-line options for the filter command.
type FilterOptions struct {
	Output     string
	ShowErrors bool
	Verbose    bool
	Quiet      bool
	Merge      bool
	Sample     int
	Seed       uint64

	// Criteria added on top of the config file
	Header        []string
	Body          []string
	ExcludeHeader []string
	Since         string
	Until         string
	ExcludeBots   bool
	Expr          string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewFilterCommand creates the filter command.
func NewFilterCommand() *cobra.Command {
	opts := &FilterOptions{}

	cmd := &cobra.Command{
		Use:   "filter <config-file>",
		Short: "Select the records that match a set of criteria",
		Long: `Parse the log sources named in the configuration file and print the records
that satisfy every filter criterion.

Criteria from the config file and from flags are combined with AND:
  --header key=value          header field must equal value
  --body path=value           body value at a dotted path must equal value
                              (value is read as JSON when possible: 200, true, "200")
  --exclude-header key=value  drop records whose header field equals value
  --since / --until           inclusive timestamp window
  --exclude-bots              drop records from crawlers and scripted clients
  --expr                      boolean expression over timestamp, header, body, raw

Exit codes:
  0 - At least one record matched
  1 - No record matched
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|jsonl)")
	cmd.Flags().BoolVar(&opts.ShowErrors, "errors", false, "List skipped lines")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show source locations and statistics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no records")
	cmd.Flags().BoolVar(&opts.Merge, "merge", false, "Interleave multiple files by timestamp")
	cmd.Flags().IntVar(&opts.Sample, "sample", 0, "Filter only this many parsed records chosen at random (overrides config sample)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "Random seed for sampling (0 = different every run)")

	cmd.Flags().StringArrayVar(&opts.Header, "header", nil, "Header field must equal value (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&opts.Body, "body", nil, "Body path must equal value (path=value, repeatable)")
	cmd.Flags().StringArrayVar(&opts.ExcludeHeader, "exclude-header", nil, "Drop records whose header field equals value (key=value, repeatable)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Keep records at or after this time")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Keep records at or before this time (a bare date includes the whole day)")
	cmd.Flags().BoolVar(&opts.ExcludeBots, "exclude-bots", false, "Drop records from crawlers and scripted clients")
	cmd.Flags().StringVar(&opts.Expr, "expr", "", "Boolean expression every record must satisfy")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_matches", "When to fire webhook (on_matches|on_errors|always|never)")

	return cmd
}

func runFilter(cmd *cobra.Command, args []string, opts *FilterOptions) error {
	ExitCode = 0
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	criteria, err := buildCriteria(cfg, opts)
	if err != nil {
		return err
	}
	f, err := filter.New(criteria, filter.WithWorkers(cfg.Workers))
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	sample := cfg.Sample
	if cmd.Flags().Changed("sample") {
		sample = opts.Sample
	}
	if sample < 0 {
		return errors.New("--sample must be >= 0")
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose:    opts.Verbose,
		Quiet:      opts.Quiet,
		ShowErrors: opts.ShowErrors,
	})
	if err != nil {
		return err
	}

	files, err := resolveFiles(cfg.LogSources)
	if err != nil {
		return err
	}

	start := time.Now()
	collected, err := ingest(ctx, files, IngestOptions{
		Layout:   cfg.TimestampLayout,
		Workers:  cfg.Workers,
		MaxLines: cfg.MaxLines,
		Merge:    opts.Merge,
	})
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}

	records, sampled := sampleRecords(collected.Records, sample, opts.Seed)
	matched := f.Apply(records)
	elapsed := time.Since(start)
	logIngest(collected, len(files), len(matched), elapsed)

	meta := output.Metadata{
		ConfigFile:  configPath,
		Sources:     files,
		GeneratedAt: time.Now(),
		Duration:    elapsed,
	}
	if tr := criteria.TimeRange; tr != nil {
		meta.TimeRange = &output.TimeRange{Start: tr.Start, End: tr.End}
	}
	report := output.NewReport(collected, matched, meta)
	report.Summary.Sampled = sampled

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged but don't fail the run
	sendWebhooks(ctx, cfg, opts, report)

	if !report.HasMatches() {
		ExitCode = 1
	}

	return nil
}

// buildCriteria adds the flag criteria to the ones loaded from the config.
func buildCriteria(cfg *config.Config, opts *FilterOptions) (filter.Criteria, error) {
	c := cfg.Criteria()

	for _, s := range opts.Header {
		k, v, err := splitPair("header", s)
		if err != nil {
			return c, err
		}
		c.HeaderEquals = append(c.HeaderEquals, filter.FieldMatch{Key: k, Value: v})
	}
	for _, s := range opts.Body {
		k, v, err := splitPair("body", s)
		if err != nil {
			return c, err
		}
		c.BodyEquals = append(c.BodyEquals, filter.BodyMatch{Path: k, Value: record.ParseLiteral(v)})
	}
	for _, s := range opts.ExcludeHeader {
		k, v, err := splitPair("exclude-header", s)
		if err != nil {
			return c, err
		}
		c.ExcludeHeader = append(c.ExcludeHeader, filter.FieldMatch{Key: k, Value: v})
	}

	if opts.Since != "" || opts.Until != "" {
		var tr filter.TimeRange
		if c.TimeRange != nil {
			tr = *c.TimeRange
		}
		var err error
		if opts.Since != "" {
			if tr.Start, err = config.ParseTime(opts.Since, cfg.TimestampLayout); err != nil {
				return c, fmt.Errorf("invalid --since: %w", err)
			}
		}
		if opts.Until != "" {
			if tr.End, err = config.ParseEndTime(opts.Until, cfg.TimestampLayout); err != nil {
				return c, fmt.Errorf("invalid --until: %w", err)
			}
		}
		c.TimeRange = &tr
	}

	if opts.ExcludeBots {
		c.ExcludeBots = true
	}

	if opts.Expr != "" {
		if c.Expression != "" {
			c.Expression = "(" + c.Expression + ") && (" + opts.Expr + ")"
		} else {
			c.Expression = opts.Expr
		}
	}

	return c, nil
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged but don't fail the run.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *FilterOptions, report *output.Report) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, report) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:            wh.URL,
			Token:          wh.Token,
			Timeout:        wh.Timeout,
			IncludeRecords: wh.IncludeRecords,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			logger.Info("webhook sent", "webhook", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			logger.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *FilterOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnMatches
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire for report.
func shouldFireWebhook(trigger config.WebhookTrigger, report *output.Report) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	case config.WebhookTriggerOnErrors:
		return report.HasErrors()
	default:
		return report.HasMatches()
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/acclog/pkg/config"
	"github.com/ccollicutt/acclog/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate an acclog configuration file without reading any logs.

Checks:
  - YAML syntax
  - Required fields
  - Timestamp layout
  - Filter criteria (time range order, keys, body paths, expression)
  - Webhook settings
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Log sources:      %d pattern(s)\n", len(cfg.LogSources))
	fmt.Fprintf(w, "  Timestamp layout: %s\n", cfg.TimestampLayout)
	fmt.Fprintf(w, "  Webhooks:         %d\n", len(cfg.Webhooks))

	criteria := describeCriteria(cfg)
	if len(criteria) == 0 {
		fmt.Fprintf(w, "\nFilters: none (every parsed record is kept)\n")
	} else {
		fmt.Fprintf(w, "\nFilters:\n")
		for i, c := range criteria {
			fmt.Fprintf(w, "  %d. %s\n", i+1, c)
		}
	}

	// Check if log sources exist (warnings only)
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding log source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match log source patterns\n")
	} else {
		fmt.Fprintf(w, "\nLog files matched: %d\n", len(files))
		for _, f := range files {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	return nil
}

// describeCriteria renders the configured criteria one per line.
func describeCriteria(cfg *config.Config) []string {
	c := cfg.Criteria()
	var out []string
	if tr := c.TimeRange; tr != nil {
		start, end := "-inf", "+inf"
		if !tr.Start.IsZero() {
			start = tr.Start.Format("2006-01-02T15:04:05Z07:00")
		}
		if !tr.End.IsZero() {
			end = tr.End.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, fmt.Sprintf("time in [%s, %s]", start, end))
	}
	for _, m := range c.HeaderEquals {
		out = append(out, fmt.Sprintf("header %s == %q", m.Key, m.Value))
	}
	for _, m := range c.BodyEquals {
		out = append(out, fmt.Sprintf("body %s == %s (%s)", m.Path, m.Value, m.Value.Kind()))
	}
	for _, m := range c.ExcludeHeader {
		out = append(out, fmt.Sprintf("header %s != %q", m.Key, m.Value))
	}
	if c.ExcludeBots {
		out = append(out, "exclude bots")
	}
	if c.Expression != "" {
		out = append(out, "expr: "+c.Expression)
	}
	return out
}

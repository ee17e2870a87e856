package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/acclog/pkg/filter"
	"github.com/ccollicutt/acclog/pkg/record"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and builds its filter criteria.
func Validate(cfg *Config) error {
	if len(cfg.LogSources) == 0 {
		return errors.New("log_sources: at least one log source is required")
	}

	if err := validateLayout(cfg.TimestampLayout); err != nil {
		return fmt.Errorf("timestamp_layout: %w", err)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers: must be >= 0, got %d", cfg.Workers)
	}
	if cfg.MaxLines < 0 {
		return fmt.Errorf("max_lines: must be >= 0, got %d", cfg.MaxLines)
	}
	if cfg.Sample < 0 {
		return fmt.Errorf("sample: must be >= 0, got %d", cfg.Sample)
	}

	criteria, err := cfg.Filters.ToCriteria(cfg.TimestampLayout)
	if err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	// Compiling catches expression errors that Validate alone cannot.
	if _, err := filter.New(criteria); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	cfg.criteria = criteria

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

// validateLayout rejects layouts that cannot round-trip a reference time.
func validateLayout(layout string) error {
	if layout == "" {
		return errors.New("layout is required")
	}
	ref := time.Date(2025, 5, 26, 2, 12, 22, 0, time.FixedZone("", 2*60*60))
	if _, err := time.Parse(layout, ref.Format(layout)); err != nil {
		return fmt.Errorf("invalid layout %q: %w", layout, err)
	}
	if ref.Format(layout) == layout {
		return fmt.Errorf("invalid layout %q: contains no time fields", layout)
	}
	return nil
}

// ToCriteria converts the YAML filter section into filter criteria. Map keys
// are sorted so the result is deterministic.
func (fc FilterConfig) ToCriteria(layout string) (filter.Criteria, error) {
	var c filter.Criteria

	if fc.TimeRange != nil {
		var tr filter.TimeRange
		var err error
		if fc.TimeRange.Start != "" {
			if tr.Start, err = ParseTime(fc.TimeRange.Start, layout); err != nil {
				return c, fmt.Errorf("time_range.start: %w", err)
			}
		}
		if fc.TimeRange.End != "" {
			if tr.End, err = ParseEndTime(fc.TimeRange.End, layout); err != nil {
				return c, fmt.Errorf("time_range.end: %w", err)
			}
		}
		c.TimeRange = &tr
	}

	for _, k := range sortedKeys(fc.HeaderEquals) {
		c.HeaderEquals = append(c.HeaderEquals, filter.FieldMatch{Key: k, Value: fc.HeaderEquals[k]})
	}

	for _, k := range sortedKeys(fc.BodyEquals) {
		v, err := record.FromAny(fc.BodyEquals[k])
		if err != nil {
			return c, fmt.Errorf("body_equals.%s: %w", k, err)
		}
		c.BodyEquals = append(c.BodyEquals, filter.BodyMatch{Path: k, Value: v})
	}

	for _, k := range sortedKeys(fc.ExcludeHeader) {
		for _, v := range fc.ExcludeHeader[k] {
			c.ExcludeHeader = append(c.ExcludeHeader, filter.FieldMatch{Key: k, Value: v})
		}
	}

	c.ExcludeBots = fc.ExcludeBots
	c.BotPatterns = fc.BotPatterns
	c.BotFields = fc.BotFields
	c.Expression = strings.TrimSpace(fc.Expression)

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// ParseTime parses a lower time bound given in RFC 3339, in layout, or as a
// bare date (midnight UTC).
func ParseTime(s, layout string) (time.Time, error) {
	t, _, err := parseTime(s, layout)
	return t, err
}

// ParseEndTime is ParseTime for an inclusive upper bound: a bare date covers
// the whole day, up to the last nanosecond before the next midnight UTC.
func ParseEndTime(s, layout string) (time.Time, error) {
	t, dateOnly, err := parseTime(s, layout)
	if err != nil || !dateOnly {
		return t, err
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func parseTime(s, layout string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	for _, l := range []string{time.RFC3339Nano, layout} {
		if l == "" {
			continue
		}
		if t, err := time.Parse(l, s); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("cannot parse time %q", s)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnMatches, WebhookTriggerOnErrors, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_matches, on_errors, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnMatches
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	if wh.IncludeRecords < 0 {
		return fmt.Errorf("include_records must be >= 0, got %d", wh.IncludeRecords)
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}

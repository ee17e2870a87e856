// Package config provides configuration loading and validation for acclog.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/acclog/pkg/filter"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	LogSources []string `yaml:"log_sources"`

	// TimestampLayout is the Go time layout of the leading timestamp token.
	// See https://pkg.go.dev/time#pkg-constants for format.
	TimestampLayout string `yaml:"timestamp_layout"`

	// Workers bounds parse and filter parallelism. Zero means GOMAXPROCS.
	Workers int `yaml:"workers,omitempty"`

	// MaxLines stops ingestion after this many lines. Zero means no limit.
	MaxLines int `yaml:"max_lines,omitempty"`

	// Sample keeps this many parsed records, chosen at random, before
	// filtering. Zero keeps them all.
	Sample int `yaml:"sample,omitempty"`

	Filters  FilterConfig    `yaml:"filters,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`

	// criteria is the validated form of Filters (populated during validation).
	criteria filter.Criteria
}

// Criteria returns the filter criteria built from the filters section.
func (c *Config) Criteria() filter.Criteria {
	return c.criteria
}

// FilterConfig is the YAML form of filter.Criteria.
type FilterConfig struct {
	TimeRange     *TimeRangeConfig      `yaml:"time_range,omitempty"`
	HeaderEquals  map[string]string     `yaml:"header_equals,omitempty"`
	BodyEquals    map[string]any        `yaml:"body_equals,omitempty"`
	ExcludeHeader map[string]StringList `yaml:"exclude_header,omitempty"`
	ExcludeBots   bool                  `yaml:"exclude_bots,omitempty"`
	BotPatterns   []string              `yaml:"bot_patterns,omitempty"`
	BotFields     []string              `yaml:"bot_fields,omitempty"`
	Expression    string                `yaml:"expression,omitempty"`
}

// TimeRangeConfig bounds records by timestamp. Either bound may be omitted.
// Values use RFC 3339, the configured timestamp layout, or a bare date.
type TimeRangeConfig struct {
	Start string `yaml:"start,omitempty"`
	End   string `yaml:"end,omitempty"`
}

// StringList accepts either a single YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnMatches fires only when at least one record matched (default).
	WebhookTriggerOnMatches WebhookTrigger = "on_matches"
	// WebhookTriggerOnErrors fires when any line failed to parse.
	WebhookTriggerOnErrors WebhookTrigger = "on_errors"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending run results.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_matches" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// IncludeRecords adds up to this many matched records to the payload.
	IncludeRecords int `yaml:"include_records,omitempty"`
}

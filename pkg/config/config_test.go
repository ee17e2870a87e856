package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccollicutt/acclog/pkg/filter"
	"github.com/ccollicutt/acclog/pkg/record"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
log_sources:
  - /var/log/nginx/*.log
timestamp_layout: "2006-01-02T15:04:05-07:00"
workers: 4
max_lines: 1000
sample: 50
filters:
  time_range:
    start: "2025-05-26T00:00:00+02:00"
    end: "2025-05-27"
  header_equals:
    domain: www.dominio.com
    code: "200"
  body_equals:
    method: GET
    request.proto: HTTP/2
    code: 200
  exclude_header:
    domain:
      - cookie-consent.example.com
      - stats.example.com
    code: "304"
  exclude_bots: true
  expression: 'body.port == 443'
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.LogSources) != 1 {
		t.Errorf("LogSources = %d, want 1", len(cfg.LogSources))
	}
	if cfg.Sample != 50 {
		t.Errorf("Sample = %d, want 50", cfg.Sample)
	}
	if cfg.Workers != 4 || cfg.MaxLines != 1000 {
		t.Errorf("Workers, MaxLines = %d, %d, want 4, 1000", cfg.Workers, cfg.MaxLines)
	}

	c := cfg.Criteria()
	if c.TimeRange == nil {
		t.Fatal("TimeRange not set")
	}
	if !c.TimeRange.Start.Equal(time.Date(2025, 5, 25, 22, 0, 0, 0, time.UTC)) {
		t.Errorf("TimeRange.Start = %v", c.TimeRange.Start)
	}
	if !c.TimeRange.End.Equal(time.Date(2025, 5, 27, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("TimeRange.End = %v", c.TimeRange.End)
	}

	wantHeader := []filter.FieldMatch{{Key: "code", Value: "200"}, {Key: "domain", Value: "www.dominio.com"}}
	if len(c.HeaderEquals) != len(wantHeader) {
		t.Fatalf("HeaderEquals = %v, want %v", c.HeaderEquals, wantHeader)
	}
	for i := range wantHeader {
		if c.HeaderEquals[i] != wantHeader[i] {
			t.Errorf("HeaderEquals[%d] = %v, want %v", i, c.HeaderEquals[i], wantHeader[i])
		}
	}

	if len(c.BodyEquals) != 3 {
		t.Fatalf("BodyEquals = %d, want 3", len(c.BodyEquals))
	}
	if c.BodyEquals[0].Path != "code" || !c.BodyEquals[0].Value.Equal(record.Number(200)) {
		t.Errorf("BodyEquals[0] = %v %v, want code 200 as number", c.BodyEquals[0].Path, c.BodyEquals[0].Value)
	}
	if c.BodyEquals[2].Path != "request.proto" || !c.BodyEquals[2].Value.Equal(record.String("HTTP/2")) {
		t.Errorf("BodyEquals[2] = %v %v", c.BodyEquals[2].Path, c.BodyEquals[2].Value)
	}

	if len(c.ExcludeHeader) != 3 {
		t.Errorf("ExcludeHeader = %v, want 3 entries", c.ExcludeHeader)
	}
	if !c.ExcludeBots {
		t.Error("ExcludeBots = false, want true")
	}
	if c.Expression != "body.port == 443" {
		t.Errorf("Expression = %q", c.Expression)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	content := `invalid: yaml: content: [`
	path := writeTempFile(t, "invalid.yaml", content)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_ExcludeHeaderWrongShape(t *testing.T) {
	content := `
log_sources: [/var/log/*.log]
filters:
  exclude_header:
    domain:
      nested: map
`
	path := writeTempFile(t, "config.yaml", content)
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() expected error for a map under exclude_header")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvTimestampLayout, "2006-01-02 15:04:05")
	t.Setenv(EnvWorkers, "3")

	path := writeTempFile(t, "config.yaml", "log_sources: [/var/log/*.log]\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TimestampLayout != "2006-01-02 15:04:05" {
		t.Errorf("TimestampLayout = %q", cfg.TimestampLayout)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
}

func TestLoad_BadWorkersEnv(t *testing.T) {
	t.Setenv(EnvWorkers, "many")
	path := writeTempFile(t, "config.yaml", "log_sources: [/var/log/*.log]\n")
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() expected error for non-numeric workers override")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
		fail    bool
	}{
		{name: "defaults with source", mutate: func(*Config) {}},
		{name: "no log sources", mutate: func(c *Config) { c.LogSources = nil }, fail: true},
		{name: "empty layout", mutate: func(c *Config) { c.TimestampLayout = "" }, fail: true},
		{name: "layout without fields", mutate: func(c *Config) { c.TimestampLayout = "timestamp" }, fail: true},
		{name: "negative workers", mutate: func(c *Config) { c.Workers = -1 }, fail: true},
		{name: "negative max lines", mutate: func(c *Config) { c.MaxLines = -5 }, fail: true},
		{name: "negative sample", mutate: func(c *Config) { c.Sample = -1 }, fail: true},
		{
			name: "inverted time range",
			mutate: func(c *Config) {
				c.Filters.TimeRange = &TimeRangeConfig{Start: "2025-05-27", End: "2025-05-26"}
			},
			wantErr: filter.ErrInvalidTimeRange,
		},
		{
			name: "unparseable time",
			mutate: func(c *Config) {
				c.Filters.TimeRange = &TimeRangeConfig{Start: "yesterday"}
			},
			fail: true,
		},
		{
			name:    "empty header key",
			mutate:  func(c *Config) { c.Filters.HeaderEquals = map[string]string{"": "x"} },
			wantErr: filter.ErrEmptyKey,
		},
		{
			name:    "bad body path",
			mutate:  func(c *Config) { c.Filters.BodyEquals = map[string]any{"request..proto": "x"} },
			wantErr: filter.ErrInvalidPath,
		},
		{
			name:    "bad expression",
			mutate:  func(c *Config) { c.Filters.Expression = "body.code >" },
			wantErr: filter.ErrInvalidExpr,
		},
		{
			name:   "open time range",
			mutate: func(c *Config) { c.Filters.TimeRange = &TimeRangeConfig{End: "2025-05-26T10:00:00Z"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogSources = []string{"/var/log/*.log"}
			tt.mutate(cfg)
			err := Validate(cfg)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
				}
			case tt.fail:
				if err == nil {
					t.Error("Validate() expected error")
				}
			default:
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
			}
		})
	}
}

func TestValidate_NoFiltersIsIdentity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogSources = []string{"/var/log/*.log"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !cfg.Criteria().IsZero() {
		t.Errorf("Criteria() = %+v, want zero", cfg.Criteria())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TimestampLayout != DefaultTimestampLayout {
		t.Errorf("TimestampLayout = %q, want %q", cfg.TimestampLayout, DefaultTimestampLayout)
	}
	if cfg.Workers != 0 || cfg.MaxLines != 0 {
		t.Error("Workers and MaxLines should default to 0")
	}
}

func TestParseTime(t *testing.T) {
	layout := "02/Jan/2006:15:04:05 -0700"
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-05-26T02:12:22+02:00", time.Date(2025, 5, 26, 0, 12, 22, 0, time.UTC), true},
		{"26/May/2025:02:12:22 +0200", time.Date(2025, 5, 26, 0, 12, 22, 0, time.UTC), true},
		{"2025-05-26", time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC), true},
		{" 2025-05-26 ", time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC), true},
		{"last week", time.Time{}, false},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in, layout)
		if (err == nil) != tt.ok {
			t.Errorf("ParseTime(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseEndTime(t *testing.T) {
	layout := "02/Jan/2006:15:04:05 -0700"
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-05-26", time.Date(2025, 5, 26, 23, 59, 59, 999999999, time.UTC)},
		{"2024-02-28", time.Date(2024, 2, 28, 23, 59, 59, 999999999, time.UTC)},
		{"2025-05-26T02:12:22+02:00", time.Date(2025, 5, 26, 0, 12, 22, 0, time.UTC)},
		{"26/May/2025:02:12:22 +0200", time.Date(2025, 5, 26, 0, 12, 22, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := ParseEndTime(tt.in, layout)
		if err != nil {
			t.Errorf("ParseEndTime(%q) error = %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseEndTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseEndTime("tomorrow", layout); err == nil {
		t.Error("ParseEndTime(tomorrow) should fail")
	}
}

func TestToCriteria_SameDayRangeCoversDay(t *testing.T) {
	fc := FilterConfig{TimeRange: &TimeRangeConfig{Start: "2025-05-26", End: "2025-05-26"}}
	c, err := fc.ToCriteria("")
	if err != nil {
		t.Fatalf("ToCriteria() error = %v", err)
	}
	late := time.Date(2025, 5, 26, 23, 30, 0, 0, time.UTC)
	if !c.TimeRange.Contains(late) {
		t.Errorf("TimeRange %+v excludes %v", c.TimeRange, late)
	}
	if c.TimeRange.Contains(late.Add(time.Hour)) {
		t.Errorf("TimeRange %+v includes the next day", c.TimeRange)
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogSources = []string{"/var/log/*.log"}
	return cfg
}

func TestValidate_Webhook_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{
		Name:    "test-webhook",
		URL:     "https://example.com/webhook",
		Trigger: WebhookTriggerOnMatches,
		Timeout: 10 * time.Second,
	}}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Webhook_ValidHTTP(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "http://localhost:8080/webhook"}}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Webhook_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		webhook WebhookConfig
	}{
		{"missing url", WebhookConfig{Name: "no-url", Trigger: WebhookTriggerOnMatches}},
		{"non-http scheme", WebhookConfig{URL: "ftp://example.com/webhook"}},
		{"missing host", WebhookConfig{URL: "https:///webhook"}},
		{"invalid trigger", WebhookConfig{URL: "https://example.com/webhook", Trigger: "invalid_trigger"}},
		{"negative include_records", WebhookConfig{URL: "https://example.com/webhook", IncludeRecords: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Webhooks = []WebhookConfig{tt.webhook}
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_Webhook_AllTriggers(t *testing.T) {
	triggers := []WebhookTrigger{
		WebhookTriggerOnMatches,
		WebhookTriggerOnErrors,
		WebhookTriggerAlways,
		WebhookTriggerNever,
	}

	for _, trigger := range triggers {
		cfg := validConfig()
		cfg.Webhooks = []WebhookConfig{{URL: "https://example.com/webhook", Trigger: trigger}}
		if err := Validate(cfg); err != nil {
			t.Errorf("Validate() with trigger %q error = %v", trigger, err)
		}
	}
}

func TestValidate_Webhook_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "https://example.com/webhook"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerOnMatches {
		t.Errorf("Default trigger = %v, want %v", cfg.Webhooks[0].Trigger, WebhookTriggerOnMatches)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("Default timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "secret-value")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_WEBHOOK_TOKEN}", "secret-value"},
		{"$TEST_WEBHOOK_TOKEN", "secret-value"},
		{"plain-value", "plain-value"},
		{"", ""},
		{"${NONEXISTENT_VAR}", ""},
	}

	for _, tt := range tests {
		got := expandEnvVar(tt.input)
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_WithWebhooks(t *testing.T) {
	t.Setenv("ACCLOG_TEST_TOKEN", "s3cret")
	content := `
log_sources:
  - /var/log/*.log
webhooks:
  - name: test-webhook
    url: "https://example.com/webhook"
    token: "${ACCLOG_TEST_TOKEN}"
    trigger: on_errors
    timeout: 30s
    include_records: 5
  - url: "https://backup.example.com/webhook"
    trigger: always
`
	path := writeTempFile(t, "config-with-webhooks.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Webhooks) != 2 {
		t.Fatalf("Webhooks = %d, want 2", len(cfg.Webhooks))
	}
	wh := cfg.Webhooks[0]
	if wh.Name != "test-webhook" || wh.Token != "s3cret" || wh.IncludeRecords != 5 {
		t.Errorf("Webhook[0] = %+v", wh)
	}
	if wh.Trigger != WebhookTriggerOnErrors {
		t.Errorf("Webhook[0].Trigger = %v, want %v", wh.Trigger, WebhookTriggerOnErrors)
	}
	if wh.Timeout != 30*time.Second {
		t.Errorf("Webhook[0].Timeout = %v, want 30s", wh.Timeout)
	}
	if cfg.Webhooks[1].Trigger != WebhookTriggerAlways {
		t.Errorf("Webhook[1].Trigger = %v, want %v", cfg.Webhooks[1].Trigger, WebhookTriggerAlways)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

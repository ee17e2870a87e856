package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONFormatter(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	if f.Name() != "json" {
		t.Errorf("Name() = %q, want %q", f.Name(), "json")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	tests := []struct {
		name       string
		opts       FormatOptions
		wantErrors bool
	}{
		{name: "default", opts: FormatOptions{}},
		{name: "with errors", opts: FormatOptions{ShowErrors: true}, wantErrors: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONFormatter(tt.opts).Format(context.Background(), createTestReport(t), &buf); err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			var decoded struct {
				Summary struct {
					LinesRead     int            `json:"lines_read"`
					Matched       int            `json:"matched"`
					SkippedByKind map[string]int `json:"skipped_by_kind"`
				} `json:"summary"`
				Records []struct {
					Timestamp string            `json:"timestamp"`
					Header    map[string]string `json:"header"`
					Body      map[string]any    `json:"body"`
					Source    string            `json:"source"`
					Line      int               `json:"line"`
				} `json:"records"`
				Errors   []ErrorSample `json:"errors"`
				Metadata struct {
					Sources []string `json:"sources"`
				} `json:"metadata"`
			}
			if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
				t.Fatalf("Output is not valid JSON: %v\n%s", err, buf.String())
			}

			if decoded.Summary.LinesRead != 3 || decoded.Summary.Matched != 1 {
				t.Errorf("Summary = %+v", decoded.Summary)
			}
			if len(decoded.Records) != 1 {
				t.Fatalf("Records = %d, want 1", len(decoded.Records))
			}
			rec := decoded.Records[0]
			if rec.Header["domain"] != "www.dominio.com" || rec.Body["code"] != float64(200) {
				t.Errorf("Record = %+v", rec)
			}
			if rec.Source != "access.log" || rec.Line != 1 {
				t.Errorf("Record origin = %s:%d", rec.Source, rec.Line)
			}
			if (len(decoded.Errors) > 0) != tt.wantErrors {
				t.Errorf("Errors = %v, wantErrors %v", decoded.Errors, tt.wantErrors)
			}
		})
	}
}

func TestJSONFormatter_Format_Quiet(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(FormatOptions{Quiet: true}).Format(context.Background(), createTestReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var summary Summary
	if err := json.Unmarshal(buf.Bytes(), &summary); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if summary.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", summary.Skipped)
	}
	if strings.Contains(buf.String(), "records") {
		t.Error("Quiet output should not include records")
	}
}

func TestJSONLFormatter_Format(t *testing.T) {
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := NewJSONLFormatter(FormatOptions{ShowErrors: true}).Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 1 record + 2 errors:\n%s", len(lines), buf.String())
	}
	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not JSON: %v", err)
	}
	if first["raw"] != lineOK {
		t.Errorf("raw = %v, want %q", first["raw"], lineOK)
	}
	var second map[string]ErrorSample
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("line 2 is not JSON: %v", err)
	}
	if second["error"].Kind != "invalid_header" {
		t.Errorf("line 2 = %+v", second)
	}
}

func TestJSONLFormatter_WriteRecord(t *testing.T) {
	report := createTestReport(t)
	f := NewJSONLFormatter(FormatOptions{})

	var buf bytes.Buffer
	if err := f.WriteRecord(report.Records[0], &buf); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("WriteRecord() should emit exactly one line, got %q", buf.String())
	}
}

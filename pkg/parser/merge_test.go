package parser

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestMergedSource_Next(t *testing.T) {
	dir := t.TempDir()

	file1 := writeFile(t, dir, "a.log", []byte(`2024-01-15T10:00:00+00:00 {host="a"} {"n": 1}
2024-01-15T10:00:02+00:00 {host="a"} {"n": 3}
2024-01-15T10:00:04+00:00 {host="a"} {"n": 5}
`))
	// Same instants written with a different offset
	file2 := writeFile(t, dir, "b.log", []byte(`2024-01-15T12:00:01+02:00 {host="b"} {"n": 2}
2024-01-15T12:00:03+02:00 {host="b"} {"n": 4}
`))

	merged := NewMergedSource(NewFileSource([]string{file1}, nil), NewFileSource([]string{file2}, nil))
	defer merged.Close()

	results := drain(t, merged)
	if len(results) != 5 {
		t.Fatalf("Got %d results, want 5", len(results))
	}

	for i, res := range results {
		want := time.Date(2024, 1, 15, 10, 0, i, 0, time.UTC)
		if !res.Record.Timestamp().Equal(want) {
			t.Errorf("Result %d timestamp = %v, want %v", i, res.Record.Timestamp(), want)
		}
	}
}

func TestMergedSource_ErrorsPassThrough(t *testing.T) {
	dir := t.TempDir()
	file1 := writeFile(t, dir, "a.log", []byte("2024-01-15T10:00:05+00:00 {} {}\n"))
	file2 := writeFile(t, dir, "b.log", []byte("garbage\n2024-01-15T10:00:01+00:00 {} {}\n"))

	merged := NewMergedSource(NewFileSource([]string{file1}, nil), NewFileSource([]string{file2}, nil))
	defer merged.Close()

	results := drain(t, merged)
	if len(results) != 3 {
		t.Fatalf("Got %d results, want 3", len(results))
	}
	if results[0].OK() || results[0].Err.Kind != KindInvalidTimestamp {
		t.Errorf("first result should be the unparseable line, got %+v", results[0])
	}
	if !results[1].Record.Timestamp().Before(results[2].Record.Timestamp()) {
		t.Error("records not in chronological order")
	}
}

func TestMergedSource_EmptySources(t *testing.T) {
	merged := NewMergedSource()
	defer merged.Close()

	_, err := merged.Next(context.Background())
	if err != io.EOF {
		t.Errorf("Next() error = %v, want io.EOF", err)
	}
}

func TestMergedSource_OneEmptySource(t *testing.T) {
	dir := t.TempDir()
	file1 := writeFile(t, dir, "a.log", []byte("2024-01-15T10:00:00+00:00 {} {}\n"))
	file2 := writeFile(t, dir, "b.log", nil)

	merged := NewMergedSource(NewFileSource([]string{file1}, nil), NewFileSource([]string{file2}, nil))
	defer merged.Close()

	if got := drain(t, merged); len(got) != 1 {
		t.Errorf("Got %d results, want 1", len(got))
	}
}

func TestMergedSource_SameTimestamps(t *testing.T) {
	dir := t.TempDir()
	content := []byte("2024-01-15T10:00:00+00:00 {} {}\n")
	file1 := writeFile(t, dir, "a.log", content)
	file2 := writeFile(t, dir, "b.log", content)

	merged := NewMergedSource(NewFileSource([]string{file1}, nil), NewFileSource([]string{file2}, nil))
	defer merged.Close()

	results := drain(t, merged)
	if len(results) != 2 {
		t.Fatalf("Got %d results, want 2", len(results))
	}
	// Ties resolve in source order
	if results[0].Record.Origin().Source != file1 {
		t.Errorf("first tie from %s, want %s", results[0].Record.Origin().Source, file1)
	}
}

func TestMergedSource_Close(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "test.log", []byte("2024-01-15T10:00:00+00:00 {} {}\n"))

	merged := NewMergedSource(NewFileSource([]string{file}, nil))
	_, _ = merged.Next(context.Background())

	if err := merged.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

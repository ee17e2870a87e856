// Package record defines the normalized access-log record produced by the
// line parser and consumed by the filter and output layers.
package record

import (
	"encoding/json"
	"maps"
	"time"
)

// Origin locates a line in its source.
type Origin struct {
	// Source is the file path the line came from.
	Source string

	// LineNum is the 1-based line number in the source file.
	LineNum int
}

// LogRecord is one parsed access-log line. It is immutable: accessors return
// copies, and there are no setters.
type LogRecord struct {
	timestamp time.Time
	header    map[string]string
	body      map[string]Value
	raw       string
	origin    Origin
}

// New builds a LogRecord. Ownership of header and body passes to the record.
func New(ts time.Time, header map[string]string, body map[string]Value, raw string, origin Origin) *LogRecord {
	if header == nil {
		header = map[string]string{}
	}
	if body == nil {
		body = map[string]Value{}
	}
	return &LogRecord{
		timestamp: ts,
		header:    header,
		body:      body,
		raw:       raw,
		origin:    origin,
	}
}

// Timestamp returns the time the request was logged, with its original offset.
func (r *LogRecord) Timestamp() time.Time { return r.timestamp }

// Raw returns the original line.
func (r *LogRecord) Raw() string { return r.raw }

// Origin returns where the line was read from, if known.
func (r *LogRecord) Origin() Origin { return r.origin }

// Header returns a copy of the header block fields.
func (r *LogRecord) Header() map[string]string { return maps.Clone(r.header) }

// HeaderField returns a single header block field.
func (r *LogRecord) HeaderField(key string) (string, bool) {
	v, ok := r.header[key]
	return v, ok
}

// Body returns a copy of the top level of the decoded JSON body.
func (r *LogRecord) Body() map[string]Value { return maps.Clone(r.body) }

// BodyField resolves a dotted path into the body, e.g. "request.method".
func (r *LogRecord) BodyField(path string) (Value, bool) {
	if v, ok := r.body[path]; ok {
		return v, true
	}
	return Value{kind: KindObject, obj: r.body}.Lookup(path)
}

// Env exposes the record as plain Go values for expression evaluation.
func (r *LogRecord) Env() map[string]any {
	header := make(map[string]any, len(r.header))
	for k, v := range r.header {
		header[k] = v
	}
	return map[string]any{
		"timestamp": r.timestamp,
		"header":    header,
		"body":      Value{kind: KindObject, obj: r.body}.Interface(),
		"raw":       r.raw,
	}
}

type recordJSON struct {
	Timestamp time.Time         `json:"timestamp"`
	Header    map[string]string `json:"header"`
	Body      map[string]Value  `json:"body"`
	Raw       string            `json:"raw"`
	Source    string            `json:"source,omitempty"`
	Line      int               `json:"line,omitempty"`
}

// MarshalJSON encodes the record with its timestamp in RFC 3339 form.
func (r *LogRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Timestamp: r.timestamp,
		Header:    r.header,
		Body:      r.body,
		Raw:       r.raw,
		Source:    r.origin.Source,
		Line:      r.origin.LineNum,
	})
}

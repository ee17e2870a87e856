// Package parser turns raw access-log lines into records.
//
// A line has three parts separated by whitespace:
//
//	2025-05-26T02:12:22+02:00 {code="200", port="443"} {"code": 200, "port": 443}
//
// a timestamp with a numeric offset, a header block of quoted key/value pairs,
// and a JSON object body. Each part must parse before the next is attempted.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/ccollicutt/acclog/pkg/record"
)

// Parser converts single lines into records. It is safe for concurrent use.
type Parser struct {
	timestamps *TimestampExtractor
	json       fastjson.ParserPool
}

// Option configures a Parser.
type Option func(*Parser)

// WithTimestampLayout overrides the Go time layout of the leading token.
func WithTimestampLayout(layout string) Option {
	return func(p *Parser) {
		p.timestamps = NewTimestampExtractor(layout)
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{timestamps: NewTimestampExtractor(DefaultTimestampLayout)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// ParseLine parses one newline-stripped line with the default layout.
// A non-nil error is always a *ParseError.
func ParseLine(raw string) (*record.LogRecord, error) {
	return defaultParser.Parse(raw)
}

// Parse parses one newline-stripped line. A non-nil error is always a
// *ParseError.
func (p *Parser) Parse(raw string) (*record.LogRecord, error) {
	return p.ParseAt(raw, record.Origin{})
}

// ParseAt is Parse for a line whose location is known.
func (p *Parser) ParseAt(raw string, origin record.Origin) (*record.LogRecord, error) {
	rec, perr := p.parse(raw, origin)
	if perr != nil {
		return nil, perr
	}
	return rec, nil
}

func (p *Parser) parse(raw string, origin record.Origin) (*record.LogRecord, *ParseError) {
	if strings.TrimSpace(raw) == "" {
		return nil, newParseError(raw, KindEmptyLine, -1, origin, nil)
	}

	pos := skipSpace(raw, 0)

	ts, n, err := p.timestamps.Extract(raw[pos:])
	if err != nil {
		return nil, newParseError(raw, KindInvalidTimestamp, pos, origin, err)
	}
	pos += n

	next := skipSpace(raw, pos)
	if next == pos {
		return nil, newParseError(raw, KindInvalidHeader, pos, origin, errors.New("missing header block"))
	}
	pos = next

	header, end, err := parseHeader(raw, pos)
	if err != nil {
		return nil, newParseError(raw, KindInvalidHeader, end, origin, err)
	}
	pos = end

	bodyStart := skipSpace(raw, pos)
	body, err := p.parseBody(strings.TrimRight(raw[bodyStart:], " \t\r"))
	if err != nil {
		return nil, newParseError(raw, KindInvalidBody, bodyStart, origin, err)
	}

	return record.New(ts, header, body, raw, origin), nil
}

// parseHeader reads a {key="value", ...} block starting at s[pos]. It returns
// the fields and the offset just past the closing brace, or the offset of the
// failure.
func parseHeader(s string, pos int) (map[string]string, int, error) {
	if pos >= len(s) || s[pos] != '{' {
		return nil, pos, errors.New("missing header block")
	}
	pos++

	fields := make(map[string]string)
	expectPair := false
	for {
		pos = skipSpace(s, pos)
		if pos >= len(s) {
			return nil, pos, errors.New("unterminated header block")
		}
		if s[pos] == '}' {
			if expectPair {
				return nil, pos, errors.New("trailing comma in header block")
			}
			return fields, pos + 1, nil
		}
		if len(fields) > 0 && !expectPair {
			return nil, pos, fmt.Errorf("expected ',' or '}', got %q", s[pos])
		}

		key, value, end, err := parsePair(s, pos)
		if err != nil {
			return nil, end, err
		}
		fields[key] = value
		pos = skipSpace(s, end)
		expectPair = false

		if pos < len(s) && s[pos] == ',' {
			pos++
			expectPair = true
		}
	}
}

// parsePair reads key="value" at s[pos].
func parsePair(s string, pos int) (string, string, int, error) {
	start := pos
	if !isIdentStart(s[pos]) {
		return "", "", pos, fmt.Errorf("invalid key start %q", s[pos])
	}
	for pos < len(s) && isIdentPart(s[pos]) {
		pos++
	}
	key := s[start:pos]

	if pos >= len(s) || s[pos] != '=' {
		return "", "", pos, fmt.Errorf("expected '=' after key %q", key)
	}
	pos++
	if pos >= len(s) || s[pos] != '"' {
		return "", "", pos, fmt.Errorf("value of %q is not a quoted string", key)
	}
	pos++

	var b strings.Builder
	for pos < len(s) {
		c := s[pos]
		switch {
		case c == '"':
			return key, b.String(), pos + 1, nil
		case c == '\\' && pos+1 < len(s) && (s[pos+1] == '"' || s[pos+1] == '\\'):
			b.WriteByte(s[pos+1])
			pos += 2
		default:
			b.WriteByte(c)
			pos++
		}
	}
	return "", "", pos, fmt.Errorf("unterminated value for %q", key)
}

// parseBody decodes s, which must be exactly one JSON object.
func (p *Parser) parseBody(s string) (map[string]record.Value, error) {
	if s == "" {
		return nil, errors.New("missing body")
	}

	if err := fastjson.Validate(s); err != nil {
		return nil, err
	}

	jp := p.json.Get()
	defer p.json.Put(jp)

	v, err := jp.Parse(s)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("body is a JSON %s, not an object", v.Type())
	}

	// Values from jp are only valid until it is returned to the pool, so the
	// whole tree is copied out here.
	val, err := convertJSON(v)
	if err != nil {
		return nil, err
	}
	body, ok := val.AsObject()
	if !ok {
		return nil, errors.New("body is not an object")
	}
	return body, nil
}

func convertJSON(v *fastjson.Value) (record.Value, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		obj := make(map[string]record.Value, o.Len())
		var err error
		o.Visit(func(key []byte, item *fastjson.Value) {
			if err != nil {
				return
			}
			var cv record.Value
			if cv, err = convertJSON(item); err != nil {
				err = fmt.Errorf("%s: %w", key, err)
				return
			}
			obj[string(key)] = cv
		})
		if err != nil {
			return record.Value{}, err
		}
		return record.Object(obj), nil
	case fastjson.TypeArray:
		items, _ := v.Array()
		arr := make([]record.Value, len(items))
		for i, item := range items {
			cv, err := convertJSON(item)
			if err != nil {
				return record.Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = cv
		}
		return record.Array(arr), nil
	case fastjson.TypeString:
		return record.String(string(v.GetStringBytes())), nil
	case fastjson.TypeNumber:
		// The literal text is kept so integers wider than a float64 mantissa
		// survive intact.
		return record.NumberLiteral(string(v.MarshalTo(nil)))
	case fastjson.TypeTrue:
		return record.Bool(true), nil
	case fastjson.TypeFalse:
		return record.Bool(false), nil
	default:
		return record.Null(), nil
	}
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t') {
		pos++
	}
	return pos
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9') || c == '-' || c == '.'
}

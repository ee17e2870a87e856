package parser

import (
	"errors"
	"fmt"

	"github.com/ccollicutt/acclog/pkg/record"
)

// ErrorKind classifies why a line could not be parsed.
type ErrorKind string

const (
	// KindEmptyLine is a blank or whitespace-only line.
	KindEmptyLine ErrorKind = "empty_line"

	// KindInvalidTimestamp is a leading token that is not a date-time with offset.
	KindInvalidTimestamp ErrorKind = "invalid_timestamp"

	// KindInvalidHeader is a missing, unterminated or malformed {key="value"} block.
	KindInvalidHeader ErrorKind = "invalid_header"

	// KindInvalidBody is a remainder that is not a single JSON object.
	KindInvalidBody ErrorKind = "invalid_body"
)

// Sentinel errors matched by errors.Is against a *ParseError.
var (
	ErrEmptyLine        = errors.New("empty line")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidHeader    = errors.New("invalid header block")
	ErrInvalidBody      = errors.New("invalid body")
)

// Kinds lists every error kind in stage order.
var Kinds = []ErrorKind{KindEmptyLine, KindInvalidTimestamp, KindInvalidHeader, KindInvalidBody}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindEmptyLine:
		return ErrEmptyLine
	case KindInvalidTimestamp:
		return ErrInvalidTimestamp
	case KindInvalidHeader:
		return ErrInvalidHeader
	case KindInvalidBody:
		return ErrInvalidBody
	}
	return nil
}

// ParseError describes a line that could not be converted into a record.
type ParseError struct {
	// Raw is the original line.
	Raw string

	// Kind is the stage that rejected the line.
	Kind ErrorKind

	// Offset is the byte offset in Raw where parsing failed, or -1.
	Offset int

	// Origin locates the line in its source, if known.
	Origin record.Origin

	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Offset >= 0 {
		msg = fmt.Sprintf("%s at offset %d", msg, e.Offset)
	}
	if e.Origin.Source != "" {
		msg = fmt.Sprintf("%s:%d: %s", e.Origin.Source, e.Origin.LineNum, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *ParseError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newParseError(raw string, kind ErrorKind, offset int, origin record.Origin, cause error) *ParseError {
	return &ParseError{
		Raw:    raw,
		Kind:   kind,
		Offset: offset,
		Origin: origin,
		Err:    cause,
	}
}

package parser

import (
	"context"
	"errors"
	"io"

	"github.com/ccollicutt/acclog/pkg/record"
)

// Source provides an iterator over parsed log lines.
// Implementations must be safe for sequential access (not concurrent).
type Source interface {
	// Next returns the result for the next line, including lines that
	// failed to parse. Returns io.EOF when no more lines are available.
	Next(ctx context.Context) (*Result, error)

	// Close releases any resources held by the source.
	Close() error
}

// Collected is everything drained from a Source.
type Collected struct {
	Records []*record.LogRecord
	Errors  []*ParseError
	Lines   int
}

// Collect drains src, stopping after limit lines when limit > 0.
func Collect(ctx context.Context, src Source, limit int) (*Collected, error) {
	out := &Collected{}
	for limit <= 0 || out.Lines < limit {
		res, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		out.Lines++
		if res.Record != nil {
			out.Records = append(out.Records, res.Record)
		} else if res.Err != nil {
			out.Errors = append(out.Errors, res.Err)
		}
	}
	return out, nil
}

package parser

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/acclog/pkg/record"
)

// Result is the outcome of parsing one line: exactly one of Record and Err
// is set.
type Result struct {
	Record *record.LogRecord
	Err    *ParseError
}

// OK reports whether the line produced a record.
func (r Result) OK() bool {
	return r.Record != nil
}

// ParseResult parses a line into a Result.
func (p *Parser) ParseResult(raw string, origin record.Origin) Result {
	rec, perr := p.parse(raw, origin)
	if perr != nil {
		return Result{Err: perr}
	}
	return Result{Record: rec}
}

// ParseLineResult is ParseResult for a line read from a file. A line over
// MaxLineSize is reported as an invalid body caused by ErrLineTooLong.
func (p *Parser) ParseLineResult(l Line, origin record.Origin) Result {
	if l.TooLong {
		cause := fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, MaxLineSize)
		return Result{Err: newParseError(l.Text, KindInvalidBody, -1, origin, cause)}
	}
	return p.ParseResult(l.Text, origin)
}

// ParseBatch parses lines concurrently on up to workers goroutines
// (GOMAXPROCS when workers <= 0). Result i always belongs to lines[i]. If ctx
// is cancelled, lines not yet parsed are left as zero Results and the context
// error is returned.
func (p *Parser) ParseBatch(ctx context.Context, lines []string, workers int) ([]Result, error) {
	return parseBatch(ctx, len(lines), workers, func(i int) Result {
		return p.ParseResult(lines[i], record.Origin{LineNum: i + 1})
	})
}

// parseBatch fills n results by calling parse for each index.
func parseBatch(ctx context.Context, n, workers int, parse func(i int) Result) ([]Result, error) {
	results := make([]Result, n)
	if n == 0 {
		return results, nil
	}

	chunks := chunkBounds(n, workers)
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			for i := c.start; i < c.end; i++ {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				results[i] = parse(i)
			}
			return nil
		})
	}

	return results, g.Wait()
}

// ParseBatch parses lines with the default parser.
func ParseBatch(ctx context.Context, lines []string, workers int) ([]Result, error) {
	return defaultParser.ParseBatch(ctx, lines, workers)
}

// ParseFiles reads each file whole and parses its lines concurrently, files
// in order. It stops after limit lines in total when limit > 0.
func (p *Parser) ParseFiles(ctx context.Context, files []string, workers, limit int) (*Collected, error) {
	out := &Collected{}
	for _, path := range files {
		remaining := 0
		if limit > 0 {
			remaining = limit - out.Lines
			if remaining <= 0 {
				break
			}
		}
		lines, err := ReadLines(path, remaining)
		if err != nil {
			return out, err
		}
		results, err := parseBatch(ctx, len(lines), workers, func(i int) Result {
			return p.ParseLineResult(lines[i], record.Origin{Source: path, LineNum: i + 1})
		})
		if err != nil {
			return out, err
		}
		records, errs := Split(results)
		out.Records = append(out.Records, records...)
		out.Errors = append(out.Errors, errs...)
		out.Lines += len(lines)
	}
	return out, nil
}

// Split separates results into records and errors, keeping input order.
func Split(results []Result) ([]*record.LogRecord, []*ParseError) {
	var (
		records []*record.LogRecord
		errs    []*ParseError
	)
	for _, r := range results {
		switch {
		case r.Record != nil:
			records = append(records, r.Record)
		case r.Err != nil:
			errs = append(errs, r.Err)
		}
	}
	return records, errs
}

type bounds struct {
	start, end int
}

// chunkBounds divides n items into at most workers contiguous ranges.
func chunkBounds(n, workers int) []bounds {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers
	out := make([]bounds, 0, workers)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		out = append(out, bounds{start: start, end: end})
	}
	return out
}

package filter

import (
	"fmt"
	"runtime"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/acclog/pkg/record"
)

// parallelThreshold is the input size below which Apply stays on one
// goroutine.
const parallelThreshold = 4096

type predicate func(rec *record.LogRecord) bool

// Filter is a compiled, validated set of criteria. It holds no mutable state
// and is safe for concurrent use.
type Filter struct {
	criteria   Criteria
	predicates []predicate
	workers    int
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// WithWorkers sets how many goroutines Apply may use on large inputs
// (GOMAXPROCS when n <= 0, the default).
func WithWorkers(n int) FilterOption {
	return func(f *Filter) {
		f.workers = n
	}
}

// New validates and compiles criteria. It is the only place a malformed
// configuration is reported; Apply never fails.
func New(c Criteria, opts ...FilterOption) (*Filter, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	f := &Filter{criteria: c}
	for _, opt := range opts {
		opt(f)
	}

	if c.TimeRange != nil {
		window := *c.TimeRange
		f.predicates = append(f.predicates, func(rec *record.LogRecord) bool {
			return window.Contains(rec.Timestamp())
		})
	}

	for _, m := range c.HeaderEquals {
		f.predicates = append(f.predicates, func(rec *record.LogRecord) bool {
			v, ok := rec.HeaderField(m.Key)
			return ok && v == m.Value
		})
	}

	for _, m := range c.BodyEquals {
		f.predicates = append(f.predicates, func(rec *record.LogRecord) bool {
			v, ok := rec.BodyField(m.Path)
			return ok && v.Equal(m.Value)
		})
	}

	for _, m := range c.ExcludeHeader {
		f.predicates = append(f.predicates, func(rec *record.LogRecord) bool {
			v, ok := rec.HeaderField(m.Key)
			return !ok || v != m.Value
		})
	}

	if c.ExcludeBots {
		bots := newBotMatcher(c.BotPatterns, c.BotFields)
		f.predicates = append(f.predicates, func(rec *record.LogRecord) bool {
			return !bots.IsBot(rec)
		})
	}

	if c.Expression != "" {
		program, err := expr.Compile(c.Expression, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidExpr, err)
		}
		f.predicates = append(f.predicates, exprPredicate(program))
	}

	return f, nil
}

// exprPredicate evaluates program per record. Evaluation errors exclude the
// record.
func exprPredicate(program *vm.Program) predicate {
	return func(rec *record.LogRecord) bool {
		out, err := expr.Run(program, rec.Env())
		if err != nil {
			return false
		}
		b, ok := out.(bool)
		return ok && b
	}
}

// Criteria returns the criteria the filter was built from.
func (f *Filter) Criteria() Criteria {
	return f.criteria
}

// Match reports whether rec satisfies every criterion.
func (f *Filter) Match(rec *record.LogRecord) bool {
	for _, p := range f.predicates {
		if !p(rec) {
			return false
		}
	}
	return true
}

// Apply returns the records that satisfy every criterion, in input order.
// The result is a new slice; records and the input slice are not modified.
func (f *Filter) Apply(records []*record.LogRecord) []*record.LogRecord {
	workers := f.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || len(records) < parallelThreshold {
		return f.applySerial(records)
	}
	return f.applyParallel(records, workers)
}

func (f *Filter) applySerial(records []*record.LogRecord) []*record.LogRecord {
	out := make([]*record.LogRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// applyParallel filters contiguous partitions concurrently and concatenates
// them in partition order.
func (f *Filter) applyParallel(records []*record.LogRecord, workers int) []*record.LogRecord {
	size := (len(records) + workers - 1) / workers
	parts := make([][]*record.LogRecord, 0, workers)
	for start := 0; start < len(records); start += size {
		parts = append(parts, records[start:min(start+size, len(records))])
	}

	matched := make([][]*record.LogRecord, len(parts))
	var g errgroup.Group
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			matched[i] = f.applySerial(part)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, m := range matched {
		total += len(m)
	}
	out := make([]*record.LogRecord, 0, total)
	for _, m := range matched {
		out = append(out, m...)
	}
	return out
}

// Apply validates criteria and filters records in one step.
func Apply(records []*record.LogRecord, c Criteria) ([]*record.LogRecord, error) {
	f, err := New(c)
	if err != nil {
		return nil, err
	}
	return f.Apply(records), nil
}

package parser

import (
	"container/heap"
	"context"
	"io"
	"time"
)

// MergedSource combines multiple Sources into a single stream ordered by
// record timestamp (oldest first), so several rotated or per-host access logs
// read as one timeline. Lines that failed to parse carry no timestamp and are
// emitted as soon as they reach the head of their source.
type MergedSource struct {
	sources []Source
	heap    *lineHeap
	seq     int
	started bool
	closed  bool
}

// NewMergedSource creates a Source that merges multiple sources by timestamp.
// Records are returned in chronological order across all sources; ties keep
// source order.
func NewMergedSource(sources ...Source) *MergedSource {
	return &MergedSource{
		sources: sources,
		heap:    &lineHeap{},
	}
}

// Next returns the next result in timestamp order across all sources.
// Returns io.EOF when all sources are exhausted.
func (m *MergedSource) Next(ctx context.Context) (*Result, error) {
	if !m.started && !m.closed {
		m.started = true
		if err := m.initHeap(ctx); err != nil {
			return nil, err
		}
	}

	if m.heap.Len() == 0 {
		return nil, io.EOF
	}

	item := heap.Pop(m.heap).(*heapItem)

	// Refill from the same source
	if next, err := m.sources[item.sourceIdx].Next(ctx); err == nil {
		m.push(next, item.sourceIdx)
	} else if err != io.EOF {
		return nil, err
	}

	return item.result, nil
}

func (m *MergedSource) push(res *Result, sourceIdx int) {
	m.seq++
	heap.Push(m.heap, &heapItem{
		result:    res,
		sourceIdx: sourceIdx,
		seq:       m.seq,
	})
}

// initHeap reads the first line from each source to initialize the heap.
func (m *MergedSource) initHeap(ctx context.Context) error {
	heap.Init(m.heap)

	for i, src := range m.sources {
		res, err := src.Next(ctx)
		if err == io.EOF {
			continue // Empty source
		}
		if err != nil {
			return err
		}
		m.push(res, i)
	}

	return nil
}

// Close releases all source resources.
func (m *MergedSource) Close() error {
	m.closed = true
	var firstErr error
	for _, src := range m.sources {
		if err := src.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// heapItem wraps a Result with its source index for the priority queue.
type heapItem struct {
	result    *Result
	sourceIdx int
	seq       int
}

// sortKey is the record timestamp; failed lines sort first.
func (it *heapItem) sortKey() time.Time {
	if it.result.Record == nil {
		return time.Time{}
	}
	return it.result.Record.Timestamp()
}

// lineHeap implements heap.Interface for timestamp-ordered merging.
type lineHeap []*heapItem

func (h lineHeap) Len() int { return len(h) }

func (h lineHeap) Less(i, j int) bool {
	ti, tj := h[i].sortKey(), h[j].sortKey()
	if ti.Equal(tj) {
		if h[i].sourceIdx != h[j].sourceIdx {
			return h[i].sourceIdx < h[j].sourceIdx
		}
		return h[i].seq < h[j].seq
	}
	return ti.Before(tj)
}

func (h lineHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *lineHeap) Push(x interface{}) {
	*h = append(*h, x.(*heapItem))
}

func (h *lineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

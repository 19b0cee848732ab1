// Package table implements the local source contract the sampling engine
// consumes (spec.md §6, "local source contract"): a Table with
// SampleFlexibleBatch, DefaultFlexibleBatchSize and Name.
//
// MemTable is a reference in-memory implementation generalized from the
// teacher's internal/buffer.ReplayBuffer: same FIFO/"freshness" policy
// naming (here a selection policy), same capacity-check-then-append shape, now storing
// reverbpb items plus ref-counted chunks instead of flat JSON
// trajectories, and gating concurrent batch-sample lock acquisition with
// a golang.org/x/sync/semaphore.Weighted the way
// juju/internal/resource.ResourceDownloadLock gates concurrent downloads.
package table

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/codeaudit/reverb-1/internal/chunkstore"
	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reverbpb"
)

// Table is the contract a worker samples from (spec.md §6).
type Table interface {
	SampleFlexibleBatch(ctx context.Context, batchSize int) ([]reverbpb.SampledItem, error)
	DefaultFlexibleBatchSize() int
	Name() string
}

var (
	// ErrTableFull is returned by Push when the table is at capacity.
	ErrTableFull = errors.New("table: at capacity")
)

type entry struct {
	meta   reverbpb.ItemMetadata
	chunks []*chunkstore.Chunk
}

// MemTable is an in-memory Table backed by a chunkstore.Store.
type MemTable struct {
	name             string
	capacity         int
	policy           string // "fifo" or "freshness"
	defaultBatchSize int

	mu      sync.Mutex
	items   []*entry
	cursor  int
	notify  chan struct{}
	store   *chunkstore.Store
	sem     *semaphore.Weighted
	maxLock int64
}

// Option configures a MemTable.
type Option func(*MemTable)

// WithMaxConcurrentBatches bounds how many SampleFlexibleBatch calls may
// hold the table's sampling lock concurrently.
func WithMaxConcurrentBatches(n int64) Option {
	return func(t *MemTable) {
		t.maxLock = n
	}
}

// NewMemTable builds an empty table. policy must be "fifo" or
// "freshness".
func NewMemTable(name string, capacity int, policy string, defaultBatchSize int, opts ...Option) (*MemTable, error) {
	if capacity <= 0 {
		return nil, errors.New("table: capacity must be greater than zero")
	}
	if policy != "fifo" && policy != "freshness" {
		return nil, errors.New("table: policy must be 'fifo' or 'freshness'")
	}
	if defaultBatchSize < 1 {
		defaultBatchSize = 1
	}
	t := &MemTable{
		name:             name,
		capacity:         capacity,
		policy:           policy,
		defaultBatchSize: defaultBatchSize,
		notify:           make(chan struct{}),
		store:            chunkstore.NewStore(),
		maxLock:          4,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sem = semaphore.NewWeighted(t.maxLock)
	return t, nil
}

func (t *MemTable) Name() string                   { return t.name }
func (t *MemTable) DefaultFlexibleBatchSize() int  { return t.defaultBatchSize }
func (t *MemTable) Capacity() int                  { return t.capacity }
func (t *MemTable) Policy() string                 { t.mu.Lock(); defer t.mu.Unlock(); return t.policy }

// Size returns the number of items currently stored.
func (t *MemTable) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Push inserts one item (metadata plus the chunks it references) into
// the table, taking a reference on each chunk. Returns ErrTableFull once
// capacity is reached.
func (t *MemTable) Push(meta reverbpb.ItemMetadata, chunks []*reverbpb.ChunkData) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.items) >= t.capacity {
		return ErrTableFull
	}

	refs := make([]*chunkstore.Chunk, len(chunks))
	for i, c := range chunks {
		refs[i] = t.store.Put(c)
	}
	t.items = append(t.items, &entry{meta: meta, chunks: refs})
	t.wakeLocked()
	return nil
}

func (t *MemTable) wakeLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

// SampleFlexibleBatch blocks until at least one item is available or ctx
// is done, then returns up to batchSize sampled items under a single
// lock acquisition (spec.md §6, "Flexible batch").
func (t *MemTable) SampleFlexibleBatch(ctx context.Context, batchSize int) ([]reverbpb.SampledItem, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, mapCtxErr(ctx, err)
	}
	defer t.sem.Release(1)

	for {
		t.mu.Lock()
		if len(t.items) == 0 {
			notify := t.notify
			t.mu.Unlock()
			select {
			case <-notify:
				continue
			case <-ctx.Done():
				return nil, mapCtxErr(ctx, ctx.Err())
			}
		}

		n := batchSize
		if n > len(t.items) {
			n = len(t.items)
		}
		selected := t.selectLocked(n)
		tableSize := len(t.items)
		t.mu.Unlock()

		out := make([]reverbpb.SampledItem, len(selected))
		probability := 1.0 / float64(tableSize)
		for i, e := range selected {
			chunks := make([]*reverbpb.ChunkData, len(e.chunks))
			for j, c := range e.chunks {
				chunks[j] = c.Data()
			}
			out[i] = reverbpb.SampledItem{
				Item:        e.meta,
				Probability: probability,
				TableSize:   int64(tableSize),
				Chunks:      chunks,
			}
		}
		return out, nil
	}
}

// selectLocked picks n entries according to the table's policy. "fifo"
// walks the table round-robin in insertion order; "freshness" always
// serves the most recently inserted entries first. Sampling does not
// remove entries, and nothing evicts them: Push rejects new items with
// ErrTableFull once capacity is reached.
func (t *MemTable) selectLocked(n int) []*entry {
	out := make([]*entry, 0, n)
	switch t.policy {
	case "freshness":
		for i := 0; i < n; i++ {
			out = append(out, t.items[len(t.items)-1-(i%len(t.items))])
		}
	default: // "fifo"
		for i := 0; i < n; i++ {
			out = append(out, t.items[t.cursor%len(t.items)])
			t.cursor++
		}
	}
	return out
}

func mapCtxErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.New(errkind.DeadlineExceeded, "rate limiter timeout")
	}
	if errors.Is(err, context.Canceled) {
		return errkind.New(errkind.Cancelled, "sampling cancelled")
	}
	return errkind.New(errkind.Unknown, "%v", err)
}

package worker

import (
	"context"
	"sync"
	"time"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/reassemble"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/squeue"
	"github.com/codeaudit/reverb-1/internal/table"
)

// wakeupTimeout bounds how long a local worker will wait on a single
// SampleFlexibleBatch call before re-checking cancellation, even when the
// caller-supplied rate limiter timeout is much longer (spec.md §4.4).
const wakeupTimeout = 3 * time.Second

// LocalWorker samples an in-process table.Table directly, with no
// network involved.
type LocalWorker struct {
	table             table.Table
	flexibleBatchSize int

	mu     sync.Mutex
	closed bool
}

// NewLocalWorker builds a worker bound to t. flexibleBatchSize must be
// >= 1.
func NewLocalWorker(t table.Table, flexibleBatchSize int) *LocalWorker {
	if flexibleBatchSize < 1 {
		flexibleBatchSize = 1
	}
	return &LocalWorker{table: t, flexibleBatchSize: flexibleBatchSize}
}

func (w *LocalWorker) Cancel() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

func (w *LocalWorker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *LocalWorker) FetchSamples(ctx context.Context, queue *squeue.Queue[*sampledata.Sample], n int64, rateLimiterTimeout time.Duration) (int64, error) {
	finalDeadline := time.Now().Add(rateLimiterTimeout)
	var delivered int64

	for delivered < n {
		if w.isClosed() {
			return delivered, errkind.New(errkind.Cancelled, "`Close` called on Sampler")
		}

		timeout := wakeupTimeout
		if remaining := time.Until(finalDeadline); remaining < timeout {
			timeout = remaining
		}

		batchSize := w.flexibleBatchSize
		if remaining := n - delivered; int64(batchSize) > remaining {
			batchSize = int(remaining)
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		items, err := w.table.SampleFlexibleBatch(callCtx, batchSize)
		cancel()

		if err != nil {
			if errkind.IsKind(err, errkind.DeadlineExceeded) && time.Now().Before(finalDeadline) {
				// Woke up only to check cancellation; the real deadline is
				// still ahead, so keep going.
				continue
			}
			return delivered, err
		}

		for _, item := range items {
			sample, err := reassemble.FromSampledItem(item)
			if err != nil {
				return delivered, err
			}
			if !queue.Push(sample) {
				return delivered, errkind.New(errkind.Cancelled, "`Close` called on Sampler")
			}
			delivered++
		}
	}

	return delivered, nil
}

// Package worker implements the two worker variants described in
// spec.md §4.4 (component C4): a remote-stream worker that pulls samples
// over a gRPC SampleStream, and a local-table worker that samples an
// in-process table directly. Both satisfy the same Worker contract so
// the coordinator in package sampler never needs to know which one it is
// driving.
package worker

import (
	"context"
	"time"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/squeue"
)

// Worker is the contract the coordinator (package sampler) drives.
type Worker interface {
	// FetchSamples repeatedly obtains samples from the worker's source
	// and pushes reassembled Samples onto queue, until n have been
	// delivered or a terminal condition is hit. It returns the number of
	// samples actually delivered and a non-nil error whenever delivered
	// < n.
	FetchSamples(ctx context.Context, queue *squeue.Queue[*sampledata.Sample], n int64, rateLimiterTimeout time.Duration) (int64, error)

	// Cancel causes future FetchSamples calls to return immediately with
	// a Cancelled error. RemoteWorker also aborts its in-flight stream at
	// once; LocalWorker's in-flight fetch notices the cancellation on its
	// next wakeup (at most wakeupTimeout later).
	Cancel()
}

// sampleIsDone reports whether the accumulated responses for one logical
// sample have covered every chunk key its descriptor references
// (spec.md §6, "a logical sample is the maximal prefix of responses...").
func sampleIsDone(responses []reverbpb.SampleStreamResponse) bool {
	if len(responses) == 0 {
		return false
	}
	received := make(map[uint64]struct{})
	for _, r := range responses {
		if r.Data != nil {
			received[r.Data.ChunkKey] = struct{}{}
		}
	}
	for _, key := range responses[0].Info.Item.FlatTrajectory.ChunkKeys() {
		if _, ok := received[key]; !ok {
			return false
		}
	}
	return true
}

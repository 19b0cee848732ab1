package sampler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/sampledata"
	"github.com/codeaudit/reverb-1/internal/squeue"
	"github.com/codeaudit/reverb-1/internal/tensor"
	"github.com/codeaudit/reverb-1/internal/worker"
)

// Sampler is the coordinator described in spec.md §4.5 (component C5):
// it owns a pool of workers, bounds how many samples may be in flight at
// once, and exposes a consumer-facing pull API over the results.
type Sampler struct {
	opts      Options
	signature []OutputSpec
	log       *zap.SugaredLogger

	queue   *squeue.Queue[*sampledata.Sample]
	workers []worker.Worker
	wg      sync.WaitGroup

	mu           sync.Mutex
	cond         *sync.Cond
	requested    int64 // samples requested of workers so far, across the pool
	returned     int64 // samples handed to the consumer so far
	workerStatus error // first fatal (non-Unavailable) worker error, latched
	closed       bool  // Close has been called
	activeSample *sampledata.Sample
}

func newSampler(workers []worker.Worker, opts Options, signature []OutputSpec, log *zap.Logger) *Sampler {
	if log == nil {
		log = zap.NewNop()
	}
	// Queue capacity bounds how many fully reassembled samples may sit
	// ahead of the consumer (spec.md §4.1, component C1): max(numWorkers, 1),
	// so at most one ready sample per worker waits for the consumer.
	// Workers block on Push once it fills.
	queueCapacity := len(workers)
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	s := &Sampler{
		opts:      opts,
		signature: signature,
		log:       log.Sugar(),
		queue:     squeue.New[*sampledata.Sample](queueCapacity),
		workers:   workers,
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(len(workers))
	for _, w := range workers {
		go s.runWorker(w)
	}
	return s
}

// shouldStopLocked reports whether the dispatch loop should stop
// requesting more work: either the consumer closed the Sampler, or a
// worker hit a fatal (non-Unavailable) error that has already been
// latched (spec.md §4.5, "should_stop_workers").
func (s *Sampler) shouldStopLocked() bool {
	return s.closed || s.workerStatus != nil
}

// runWorker is the per-worker dispatch loop: request a bounded batch,
// block until it (or a failure) comes back, update the shared budget,
// repeat until told to stop (spec.md §4.5, "RunWorker").
func (s *Sampler) runWorker(w worker.Worker) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for !s.shouldStopLocked() && s.requested >= s.opts.effectiveMaxSamples() {
			s.cond.Wait()
		}
		if s.shouldStopLocked() {
			s.mu.Unlock()
			return
		}

		batch := s.opts.effectiveMaxSamplesPerStream()
		if remaining := s.opts.effectiveMaxSamples() - s.requested; batch > remaining {
			batch = remaining
		}
		s.requested += batch
		s.mu.Unlock()

		delivered, err := w.FetchSamples(context.Background(), s.queue, batch, s.opts.RateLimiterTimeout)

		s.mu.Lock()
		if delivered < batch {
			s.requested -= batch - delivered
		}
		if err != nil && s.workerStatus == nil && !errkind.IsKind(err, errkind.Unavailable) {
			s.workerStatus = err
			s.log.Errorw("worker failed, latching sampler error", "error", err)
			s.cond.Broadcast()
			s.mu.Unlock()
			s.queue.Close()
			return
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

// Close stops every worker, unblocks anything waiting on the sample
// queue, and waits for the dispatch loops to exit. Idempotent.
func (s *Sampler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, w := range s.workers {
		w.Cancel()
	}
	s.queue.Close()
	s.wg.Wait()
}

// popNextSample pulls the next fully reassembled sample off the queue,
// translating queue closure into the right terminal error: OutOfRange
// once the sampler has delivered its configured MaxSamples, Cancelled
// once Close has been called, or the latched worker error otherwise
// (spec.md §4.5, "PopNextSample").
func (s *Sampler) popNextSample() (*sampledata.Sample, error) {
	sample, ok := s.queue.Pop()
	if ok {
		return sample, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.returned >= s.opts.effectiveMaxSamples() {
		return nil, errkind.New(errkind.OutOfRange, "sampler exhausted after %d samples", s.returned)
	}
	if s.workerStatus != nil {
		return nil, s.workerStatus
	}
	if s.closed {
		return nil, errkind.New(errkind.Cancelled, "`Close` called on Sampler")
	}
	return nil, errkind.New(errkind.Unknown, "sample queue closed unexpectedly")
}

// takeFromQueue pops the next sample and accounts for it against
// returned, waking any worker blocked on the in-flight budget. Once
// returned reaches MaxSamples the queue is closed, so the next pop
// reports OutOfRange instead of blocking.
func (s *Sampler) takeFromQueue() (*sampledata.Sample, error) {
	sample, err := s.popNextSample()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.returned++
	exhausted := s.returned >= s.opts.effectiveMaxSamples()
	s.cond.Broadcast()
	s.mu.Unlock()
	if exhausted {
		s.queue.Close()
	}
	return sample, nil
}

// nextTimestepSample returns the sample GetNextTimestep should read
// from next: the in-progress one if it still has timesteps left,
// otherwise a fresh one off the queue.
func (s *Sampler) nextTimestepSample() (*sampledata.Sample, error) {
	s.mu.Lock()
	active := s.activeSample
	s.mu.Unlock()
	if active != nil && !active.IsEndOfSample() {
		return active, nil
	}

	sample, err := s.takeFromQueue()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.activeSample = sample
	s.mu.Unlock()
	return sample, nil
}

// GetNextTimestep returns the next timestep of the current sample,
// pulling a new sample off the queue once the previous one is
// exhausted. The returned bool reports whether this was the sample's
// last timestep (spec.md §4.5, "GetNextTimestep").
func (s *Sampler) GetNextTimestep() (data []tensor.Tensor, endOfSample bool, err error) {
	sample, err := s.nextTimestepSample()
	if err != nil {
		return nil, false, err
	}
	data, err = sample.NextTimestep()
	if err != nil {
		return nil, false, err
	}
	if err := ValidateAgainstOutputSpec(data, s.signature, ModeTimestep); err != nil {
		return nil, false, err
	}
	return data, sample.IsEndOfSample(), nil
}

// GetNextSample returns a whole sample with its timesteps stacked along
// a leading batch dimension (spec.md §4.5, "GetNextSample").
func (s *Sampler) GetNextSample() ([]tensor.Tensor, error) {
	sample, err := s.takeFromQueue()
	if err != nil {
		return nil, err
	}
	data, err := sample.AsBatchedTimesteps()
	if err != nil {
		return nil, err
	}
	if err := ValidateAgainstOutputSpec(data, s.signature, ModeBatchedTimesteps); err != nil {
		return nil, err
	}
	return data, nil
}

// GetNextTrajectory returns a whole sample in its native column-concat
// form, with squeeze columns reduced (spec.md §4.5, "GetNextTrajectory").
func (s *Sampler) GetNextTrajectory() ([]tensor.Tensor, error) {
	sample, err := s.takeFromQueue()
	if err != nil {
		return nil, err
	}
	data, err := sample.AsTrajectory()
	if err != nil {
		return nil, err
	}
	if err := ValidateAgainstOutputSpec(data, s.signature, ModeTrajectory); err != nil {
		return nil, err
	}
	return data, nil
}

// NumWorkers reports how many workers were actually spawned, after the
// auto-select and in-flight-budget adjustments (spec.md §4.5,
// "GetNumWorkers").
func (s *Sampler) NumWorkers() int { return len(s.workers) }

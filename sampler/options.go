// Package sampler implements the sampler coordinator (spec.md §4.5,
// component C5): it owns the workers, enforces the global caps, and
// exposes the consumer API.
package sampler

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Sentinel values for Options fields that accept "unlimited" or
// "auto-select" in place of a concrete positive value (spec.md §6).
const (
	UnlimitedMaxSamples int64 = -1
	AutoSelectValue     int64 = -1

	defaultNumWorkers int64 = 1
)

// Options configures a Sampler (spec.md §6, "Configuration (Options)").
type Options struct {
	// MaxSamples is the total number of samples the sampler will return,
	// or UnlimitedMaxSamples.
	MaxSamples int64
	// MaxInFlightSamplesPerWorker caps how many samples a remote worker
	// asks for per SampleStreamRequest, and bounds the worker count.
	// Local workers batch by FlexibleBatchSize instead.
	MaxInFlightSamplesPerWorker int64
	// NumWorkers is the worker count, or AutoSelectValue.
	NumWorkers int64
	// MaxSamplesPerStream caps how many samples a worker fetches before
	// its stream/session is rotated, or UnlimitedMaxSamples.
	MaxSamplesPerStream int64
	// RateLimiterTimeout is the per-batch deadline passed to the source.
	RateLimiterTimeout time.Duration
	// FlexibleBatchSize caps a local table's per-lock-acquisition batch
	// size, or AutoSelectValue.
	FlexibleBatchSize int32
}

// Validate checks every field against its constraint (spec.md §6),
// aggregating every violation instead of stopping at the first: a caller
// iterating on a config file benefits from seeing all of it at once.
func (o Options) Validate() error {
	var errs *multierror.Error

	if o.MaxSamples < 1 && o.MaxSamples != UnlimitedMaxSamples {
		errs = multierror.Append(errs, fmt.Errorf("max_samples (%d): must be -1 (unlimited) or >= 1", o.MaxSamples))
	}
	if o.MaxInFlightSamplesPerWorker < 1 {
		errs = multierror.Append(errs, fmt.Errorf("max_in_flight_samples_per_worker (%d): must be >= 1", o.MaxInFlightSamplesPerWorker))
	}
	if o.NumWorkers < 1 && o.NumWorkers != AutoSelectValue {
		errs = multierror.Append(errs, fmt.Errorf("num_workers (%d): must be -1 (auto) or >= 1", o.NumWorkers))
	}
	if o.MaxSamplesPerStream < 1 && o.MaxSamplesPerStream != UnlimitedMaxSamples {
		errs = multierror.Append(errs, fmt.Errorf("max_samples_per_stream (%d): must be -1 (unlimited) or >= 1", o.MaxSamplesPerStream))
	}
	if o.RateLimiterTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf("rate_limiter_timeout (%s): must not be negative", o.RateLimiterTimeout))
	}
	if o.FlexibleBatchSize < 1 && o.FlexibleBatchSize != int32(AutoSelectValue) {
		errs = multierror.Append(errs, fmt.Errorf("flexible_batch_size (%d): must be -1 (auto) or >= 1", o.FlexibleBatchSize))
	}

	if errs != nil {
		errs.ErrorFormat = multierror.ListFormatFunc
		return errs.ErrorOrNil()
	}
	return nil
}

// effectiveMaxSamples resolves UnlimitedMaxSamples to an effectively
// infinite bound for arithmetic (the original C++ uses INT64_MAX).
func (o Options) effectiveMaxSamples() int64 {
	if o.MaxSamples == UnlimitedMaxSamples {
		return 1<<62 - 1
	}
	return o.MaxSamples
}

func (o Options) effectiveMaxSamplesPerStream() int64 {
	if o.MaxSamplesPerStream == UnlimitedMaxSamples {
		return 1<<62 - 1
	}
	return o.MaxSamplesPerStream
}

func (o Options) effectiveNumWorkers() int64 {
	if o.NumWorkers == AutoSelectValue {
		return defaultNumWorkers
	}
	return o.NumWorkers
}

// numWorkers implements spec.md §4.5 "Worker count selection": avoid
// spawning workers that can never contribute a batch.
func (o Options) numWorkers() int64 {
	n := o.effectiveNumWorkers()
	cap := o.effectiveMaxSamples() / o.MaxInFlightSamplesPerWorker
	if cap < 1 {
		cap = 1
	}
	if n < cap {
		return n
	}
	return cap
}

package sampler

import (
	"go.uber.org/zap"

	"github.com/codeaudit/reverb-1/internal/table"
	"github.com/codeaudit/reverb-1/internal/transport/grpcstream"
	"github.com/codeaudit/reverb-1/internal/worker"
)

// New builds a Sampler that pulls tableName's samples over client, one
// gRPC SampleStream per worker (spec.md §4.4, "remote-stream variant").
func New(client grpcstream.ReverbServiceClient, tableName string, opts Options, signature []OutputSpec, log *zap.Logger) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	flexibleBatchSize := opts.FlexibleBatchSize
	if opts.FlexibleBatchSize == int32(AutoSelectValue) {
		flexibleBatchSize = defaultRemoteFlexibleBatchSize
	}

	workers := make([]worker.Worker, opts.numWorkers())
	for i := range workers {
		workers[i] = worker.NewRemoteWorker(client, tableName, opts.MaxInFlightSamplesPerWorker, flexibleBatchSize)
	}
	return newSampler(workers, opts, signature, log), nil
}

// NewLocal builds a Sampler that samples t in-process, with no network
// involved (spec.md §4.4, "local-table variant").
func NewLocal(t table.Table, opts Options, signature []OutputSpec, log *zap.Logger) (*Sampler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	batchSize := int(opts.FlexibleBatchSize)
	if opts.FlexibleBatchSize == int32(AutoSelectValue) {
		batchSize = t.DefaultFlexibleBatchSize()
	}

	workers := make([]worker.Worker, opts.numWorkers())
	for i := range workers {
		workers[i] = worker.NewLocalWorker(t, batchSize)
	}
	return newSampler(workers, opts, signature, log), nil
}

// defaultRemoteFlexibleBatchSize is used when FlexibleBatchSize is
// AutoSelectValue and there is no local table to ask for its own
// default; the server-side table picks its own internal batch size
// regardless, so this only bounds how many samples one SampleStream
// response batch may ask for at once.
const defaultRemoteFlexibleBatchSize = 64

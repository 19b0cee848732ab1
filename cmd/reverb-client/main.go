// Command reverb-client drives a Sampler against a running reverb-server
// and logs each trajectory it receives, adapted from the teacher's
// cmd/rollout-worker (which drove a Runner against an HTTP replay
// buffer) into a cobra CLI over the gRPC SampleStream sampler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/codeaudit/reverb-1/internal/errkind"
	"github.com/codeaudit/reverb-1/internal/transport/grpcstream"
	"github.com/codeaudit/reverb-1/sampler"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("reverb_client")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "reverb-client",
		Short: "Sample trajectories from a reverb-server and log each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "localhost:9090", "reverb-server address")
	flags.String("table", "default_table", "table name to sample from")
	flags.Int64("max-samples", sampler.UnlimitedMaxSamples, "stop after this many samples, or -1 for unlimited")
	flags.Int64("num-workers", sampler.AutoSelectValue, "worker goroutines, or -1 to auto-select")
	flags.Int64("max-in-flight-per-worker", 16, "samples a single worker may request per fetch")
	flags.Int64("max-samples-per-stream", 100, "samples fetched per stream rotation")
	flags.Duration("rate-limiter-timeout", 10*time.Second, "per-batch deadline on the table's rate limiter")
	flags.Int32("flexible-batch-size", int32(sampler.AutoSelectValue), "server-side flexible batch size, or -1 to auto-select")

	_ = v.BindPFlags(flags)
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()
	sugar := log.Sugar()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(v.GetString("addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dialing %s: %w", v.GetString("addr"), err)
	}
	defer conn.Close()

	client := grpcstream.NewReverbServiceClient(conn)

	opts := sampler.Options{
		MaxSamples:                  v.GetInt64("max-samples"),
		MaxInFlightSamplesPerWorker: v.GetInt64("max-in-flight-per-worker"),
		NumWorkers:                  v.GetInt64("num-workers"),
		MaxSamplesPerStream:         v.GetInt64("max-samples-per-stream"),
		RateLimiterTimeout:          v.GetDuration("rate-limiter-timeout"),
		FlexibleBatchSize:           v.GetInt32("flexible-batch-size"),
	}

	s, err := sampler.New(client, v.GetString("table"), opts, nil, log)
	if err != nil {
		return fmt.Errorf("building sampler: %w", err)
	}
	defer s.Close()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	var n int64
	for {
		data, err := s.GetNextTrajectory()
		if err != nil {
			if errkind.IsKind(err, errkind.OutOfRange) || errkind.IsKind(err, errkind.Cancelled) {
				sugar.Infow("sampling finished", "samples_received", n, "reason", err)
				return nil
			}
			return fmt.Errorf("sampling: %w", err)
		}
		n++
		sugar.Infow("received sample", "index", n, "columns", len(data))
	}
}

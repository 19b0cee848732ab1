// Command reverb-server hosts a local table over the SampleStream gRPC
// service, adapted from the teacher's cmd/replay-buffer (net/http
// handlers over a ReplayBuffer) into a cobra/viper CLI over a gRPC
// server and a table.MemTable.
package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/codeaudit/reverb-1/internal/synthetic"
	"github.com/codeaudit/reverb-1/internal/table"
	"github.com/codeaudit/reverb-1/internal/transport/grpcstream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("reverb_server")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "reverb-server",
		Short: "Serve a sample table over the SampleStream RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":9090", "listen address")
	flags.String("table", "default_table", "table name")
	flags.Int("capacity", 2048, "maximum items held by the table")
	flags.String("policy", "fifo", "selection policy: fifo or freshness")
	flags.Int("default-batch-size", 64, "default flexible batch size")
	flags.Int64("max-concurrent-batches", 4, "max concurrent SampleFlexibleBatch lock holders")
	flags.Int("seed-episodes", 0, "number of synthetic cartpole episodes to preload")
	flags.Int64("seed", 0, "RNG seed for synthetic data generation")

	_ = v.BindPFlags(flags)
	return cmd
}

func run(v *viper.Viper) error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()
	sugar := log.Sugar()

	mt, err := table.NewMemTable(
		v.GetString("table"),
		v.GetInt("capacity"),
		v.GetString("policy"),
		v.GetInt("default-batch-size"),
		table.WithMaxConcurrentBatches(v.GetInt64("max-concurrent-batches")),
	)
	if err != nil {
		return fmt.Errorf("building table: %w", err)
	}

	if n := v.GetInt("seed-episodes"); n > 0 {
		rng := rand.New(rand.NewSource(v.GetInt64("seed")))
		if err := synthetic.SeedTable(mt, n, rng); err != nil {
			return fmt.Errorf("seeding table: %w", err)
		}
		sugar.Infow("preloaded synthetic episodes", "count", n, "table", mt.Name())
	}

	lis, err := net.Listen("tcp", v.GetString("addr"))
	if err != nil {
		return fmt.Errorf("listening on %s: %w", v.GetString("addr"), err)
	}

	server := grpc.NewServer()
	grpcstream.RegisterReverbServiceServer(server, &grpcstream.TableServer{Table: mt})

	sugar.Infow("reverb-server listening", "addr", v.GetString("addr"), "table", mt.Name(), "capacity", mt.Capacity())
	return server.Serve(lis)
}

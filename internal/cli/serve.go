package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/trainwatch/internal/config"
	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/server"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

func newServeCmd(g *globals) *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a mock training service",
		Long: `Run a local training service that produces synthetic metrics over
server-sent events. Useful for trying the dashboard and for exercising
reconnects: --drop-after closes every stream after that many frames.
--abort-after ends each run with an {"error"} frame, which the dashboard
treats as terminal.

Endpoints:
  POST /api/training/start
  GET  /api/training/status
  GET  /api/training/subscribe
  POST /api/training/abort
  GET  /healthz
  GET  /metrics

Examples:
  trainwatch serve
  trainwatch serve --addr :9000 --interval 100ms
  trainwatch serve --drop-after 25
  trainwatch serve --abort-after 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := serveOptions(cmd, g.cfg.Serve)
			if err != nil {
				return err
			}
			opts.Seed = seed
			opts.Logger = logger.NewEnvLogger("server")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ui.PrintHeader(cmd.ErrOrStderr(), ui.HeaderInfo{
				Version: formatVersion(GetVersion()),
				Tagline: "mock training service",
				Detail:  fmt.Sprintf("listening on %s, %s per batch", opts.Addr, opts.Interval),
			})
			return server.New(opts).ListenAndServe(ctx)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	cmd.Flags().Duration("interval", 0, "time between batches (default from serve.interval)")
	cmd.Flags().Int("batches-per-epoch", 0, "batches per epoch (default from serve.batches_per_epoch)")
	cmd.Flags().Int("drop-after", 0, "close each stream after N frames, 0 never")
	cmd.Flags().Int("abort-after", 0, "end each run with an error frame after N batches, 0 never")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed for synthetic metrics")
	return cmd
}

// serveOptions merges serve flags over the config section.
func serveOptions(cmd *cobra.Command, sc config.ServeConfig) (server.Options, error) {
	if err := overrideString(cmd, "addr", &sc.Addr); err != nil {
		return server.Options{}, err
	}
	if err := overrideDuration(cmd, "interval", &sc.Interval); err != nil {
		return server.Options{}, err
	}
	if err := overrideInt(cmd, "batches-per-epoch", &sc.BatchesPerEpoch); err != nil {
		return server.Options{}, err
	}
	if err := overrideInt(cmd, "drop-after", &sc.DropAfter); err != nil {
		return server.Options{}, err
	}
	if err := overrideInt(cmd, "abort-after", &sc.AbortAfter); err != nil {
		return server.Options{}, err
	}
	return server.Options{
		Addr:            sc.Addr,
		Interval:        sc.Interval,
		BatchesPerEpoch: sc.BatchesPerEpoch,
		DropAfter:       sc.DropAfter,
		AbortAfter:      sc.AbortAfter,
	}, nil
}

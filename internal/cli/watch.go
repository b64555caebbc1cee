package cli

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rileyhilliard/trainwatch/internal/config"
	"github.com/rileyhilliard/trainwatch/internal/dashboard"
	twerrors "github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/session"
	"github.com/rileyhilliard/trainwatch/internal/simulate"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/telemetry"
	"github.com/rileyhilliard/trainwatch/internal/training"
	"github.com/rileyhilliard/trainwatch/internal/ui"
)

type watchOptions struct {
	simulate bool
	plain    bool
	every    int
	seed     int64
}

func newWatchCmd(g *globals) *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Start training and watch its metrics live",
		Long: `Start a training run and follow its metric stream in a terminal dashboard.

If the stream drops, trainwatch reconnects with exponential backoff
(reconnect.* in the config) and shows one warning per outage. Use
--simulate to watch synthetic metrics without a server.

When stdout is not a terminal, or with --plain, events are printed one
per line instead.

Keyboard shortcuts:
  s           Start training
  x           Stop monitoring
  r           Reset loss history
  ?           Show help
  q / Ctrl+C  Quit

Examples:
  trainwatch watch
  trainwatch watch --epochs 10
  trainwatch watch --simulate
  trainwatch watch --plain | tee training.log`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, g, o)
		},
	}
	cmd.Flags().BoolVar(&o.simulate, "simulate", false, "use synthetic metrics instead of the training service")
	cmd.Flags().BoolVar(&o.plain, "plain", false, "print one line per event instead of the dashboard")
	cmd.Flags().IntVar(&o.every, "every", 1, "in plain mode, print every Nth metric")
	cmd.Flags().Int("epochs", 0, "number of epochs (default from training.epochs)")
	cmd.Flags().Int64Var(&o.seed, "seed", 0, "random seed for --simulate (default: time based)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runWatch(cmd *cobra.Command, g *globals, o *watchOptions) error {
	cfg := *g.cfg
	if err := overrideInt(cmd, "epochs", &cfg.Training.Epochs); err != nil {
		return err
	}
	if err := validateEpochs(cfg.Training.Epochs); err != nil {
		return err
	}
	if err := overrideString(cmd, "metrics-addr", &cfg.Metrics.Addr); err != nil {
		return err
	}
	if o.simulate {
		cfg.Training.Source = config.SourceSimulated
	}
	if o.seed == 0 {
		o.seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	plain := o.plain || !isTerminal(out)

	var (
		sink   session.Sink
		plainW *plainWatch
		bridge *dashboard.Bridge
	)
	if plain {
		plainW = newPlainWatch(ui.NewPlainOutput(out, o.every, cfg.Reconnect.MaxRetries), cfg.Training.Source)
		sink = plainW
	} else {
		closeLog, err := redirectLogs(g, cfg.Log.File)
		if err != nil {
			return err
		}
		defer closeLog()
		bridge = dashboard.NewBridge(nil)
		sink = bridge
	}

	history := metrics.NewHistory(cfg.Dashboard.HistorySize)
	src, err := newSource(&cfg, o.seed, history, sink)
	if err != nil {
		return err
	}
	defer src.Close()

	if cfg.Metrics.Addr != "" {
		shutdown, err := serveTelemetry(cfg.Metrics.Addr)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if plain {
		return plainW.run(ctx, src)
	}

	model := dashboard.NewModel(ctx, src, history, dashboard.Options{
		AutoStart:     true,
		ToastDuration: cfg.Dashboard.ToastDuration,
		FPSSamples:    cfg.Dashboard.FPSSamples,
		MaxRetries:    cfg.Reconnect.MaxRetries,
	})
	return dashboard.Run(ctx, model, bridge)
}

// newSource builds the live or simulated source named by cfg.
func newSource(cfg *config.Config, seed int64, history *metrics.History, sink session.Sink) (session.Source, error) {
	if cfg.Training.Source == config.SourceSimulated {
		gen := simulate.New(cfg.Simulate.Options(seed))
		return session.NewSimulated(gen, history, sink, logger.NewEnvLogger("simulate")), nil
	}

	client, err := training.NewClient(cfg.Server.ClientOptions())
	if err != nil {
		return nil, err
	}
	dialer := stream.NewSSEDialer(stream.SSEOptions{URL: client.SubscribeURL()})
	manager := stream.NewManager(dialer,
		stream.WithPolicy(cfg.Reconnect.Policy()),
		stream.WithHistory(history),
		stream.WithLogger(logger.NewEnvLogger("stream")),
	)
	return session.NewLive(client, manager, cfg.Training.Epochs, sink, logger.NewEnvLogger("session")), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// redirectLogs keeps log lines off the dashboard: they go to path, or
// nowhere when path is empty.
func redirectLogs(g *globals, path string) (func(), error) {
	if path == "" {
		logger.Setup(g.logOptions(io.Discard))
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, twerrors.WrapWithCode(err, twerrors.ErrConfig,
			"Couldn't open log file "+path,
			"Check log.file in your config")
	}
	opts := g.logOptions(f)
	opts.NoColor = true
	logger.Setup(opts)
	return func() {
		logger.Setup(g.logOptions(os.Stderr))
		_ = f.Close()
	}, nil
}

// serveTelemetry exposes client metrics on addr until the returned func runs.
func serveTelemetry(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, twerrors.WrapWithCode(err, twerrors.ErrServer,
			"Couldn't listen on "+addr,
			"Pick another address with --metrics-addr")
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", telemetry.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	log := logger.NewEnvLogger("telemetry")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics endpoint stopped: %v", err)
		}
	}()
	log.Debug("metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// plainWatch forwards events to the plain printer and ends the watch once
// the source can make no further progress.
type plainWatch struct {
	*ui.PlainOutput
	source string

	once sync.Once
	done chan struct{}
	err  error
}

func newPlainWatch(out *ui.PlainOutput, source string) *plainWatch {
	return &plainWatch{PlainOutput: out, source: source, done: make(chan struct{})}
}

// Status prints c and detects terminal transitions: Failed for any source,
// and Idle after a finished simulation. A failure's error becomes the
// result of run.
func (p *plainWatch) Status(c stream.StatusChange) {
	p.PlainOutput.Status(c)
	switch {
	case c.To == stream.StateFailed:
		p.finish(c.Err)
	case c.To == stream.StateIdle && p.source == config.SourceSimulated && c.From == stream.StateLive:
		p.finish(nil)
	}
}

func (p *plainWatch) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

func (p *plainWatch) run(ctx context.Context, src session.Source) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		src.Stop()
		return nil
	case <-p.done:
		return p.err
	}
}

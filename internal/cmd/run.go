package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/giantswarm/browserenv"
	"github.com/giantswarm/browserenv/internal/config"
	"github.com/giantswarm/browserenv/internal/fileutil"
	"github.com/giantswarm/browserenv/internal/ledger"
	"github.com/giantswarm/browserenv/internal/metrics"
	"github.com/giantswarm/browserenv/internal/slogger"
)

type runOptions struct {
	id          string
	browser     string
	headless    bool
	extraArgs   []string
	env         []string
	timeout     time.Duration
	output      string
	metricsAddr string
	noLedger    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [flags] [-- browser-flags...]",
		Short: "Start one browser and keep it running until interrupted",
		Long: `Start one browser, print its connection descriptor, and block until
SIGINT or SIGTERM. On exit every browser and the shared display are stopped.

Arguments after -- are passed to the browser before the flags browserenv adds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			cfg := ConfigFromContext(cmd.Context())
			if cfg == nil {
				return errors.New("configuration not loaded")
			}
			return runInstance(cmd, cfg, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.id, "id", "", "instance id (default: random UUID)")
	f.StringVar(&opts.browser, "browser", "", "browser executable (default from config)")
	f.BoolVar(&opts.headless, "headless", false, "run without a display")
	f.StringArrayVar(&opts.extraArgs, "extra-arg", nil, "flag appended after the browserenv flags (repeatable)")
	f.StringArrayVar(&opts.env, "env", nil, "KEY=VALUE added to the browser environment (repeatable)")
	f.DurationVar(&opts.timeout, "timeout", 0, "readiness timeout (default from config)")
	f.StringVarP(&opts.output, "output", "o", FormatJSON, "descriptor format: json or yaml")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port")
	f.BoolVar(&opts.noLedger, "no-ledger", false, "do not record the instance in the ledger")
	return cmd
}

// parseEnv turns KEY=VALUE pairs into a map. A later key wins.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q: want KEY=VALUE", p)
		}
		env[k] = v
	}
	return env, nil
}

// poolOptions maps the CLI configuration to pool options.
func poolOptions(cfg *config.Config) []browserenv.Option {
	opts := []browserenv.Option{
		browserenv.WithPortRange(cfg.Ports.Start, cfg.Ports.End),
		browserenv.WithStartTimeout(cfg.StartTimeout),
		browserenv.WithStopTimeout(cfg.StopTimeout),
		browserenv.WithLockDir(cfg.DataDir),
	}
	if cfg.Display.Disabled {
		return append(opts, browserenv.WithoutDisplay())
	}
	return append(opts,
		browserenv.WithDisplayBinary(cfg.Display.Binary),
		browserenv.WithDisplayNumber(cfg.Display.Number),
		browserenv.WithDisplayResolution(cfg.Display.Resolution),
	)
}

func runInstance(cmd *cobra.Command, cfg *config.Config, opts runOptions, browserFlags []string) error {
	ctx := cmd.Context()
	log := slogger.FromContext(ctx)

	env, err := parseEnv(opts.env)
	if err != nil {
		return err
	}
	id := opts.id
	if id == "" {
		id = uuid.NewString()
	}
	bin := opts.browser
	if bin == "" {
		bin = cfg.BrowserBin
	}

	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return err
	}

	collector := metrics.New("")
	poolOpts := append(poolOptions(cfg), browserenv.WithHooks(collector))

	if !opts.noLedger {
		l, err := ledger.Open(ctx, cfg.Ledger, log)
		if err != nil {
			return err
		}
		defer l.Close()
		poolOpts = append(poolOpts, browserenv.WithHooks(l))
	}

	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, collector, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	pool := browserenv.NewPool(poolOpts...)
	defer func() {
		if err := pool.StopAll(); err != nil {
			log.Warn("stop browsers", "error", err)
		}
	}()

	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	info, err := pool.Start(sigCtx, id, browserenv.LaunchSpec{
		Args:      append([]string{bin}, browserFlags...),
		Env:       env,
		Headless:  opts.headless,
		ExtraArgs: opts.extraArgs,
		Timeout:   opts.timeout,
	})
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), opts.output, info); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}

	log.Info("browser running; press Ctrl-C to stop", "id", id, "pid", info.PID)
	<-sigCtx.Done()
	log.Info("shutting down", "id", id)
	return nil
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, c *metrics.Collector, log *slog.Logger) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("serving metrics", "addr", lis.Addr().String())

	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown metrics server", "error", err)
		}
	}, nil
}

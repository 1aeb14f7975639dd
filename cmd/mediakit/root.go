package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AltairaLabs/mediakit/config"
	"github.com/AltairaLabs/mediakit/images"
	"github.com/AltairaLabs/mediakit/logger"
	"github.com/AltairaLabs/mediakit/metrics"
	"github.com/AltairaLabs/mediakit/multipart"
	"github.com/AltairaLabs/mediakit/playback"
	"github.com/AltairaLabs/mediakit/telemetry"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// exitError carries the process exit code for an error. A reported error
// has already been described on stderr.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// usageErrorf reports bad input. The process exits with status 2.
func usageErrorf(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// reported marks err as already printed so execute only sets the exit code.
func reported(err error) error {
	return &exitError{code: exitFailure, err: err, reported: true}
}

// asUsage converts request validation failures, including file names the
// upload form cannot carry, into usage errors.
func asUsage(err error) error {
	if errors.Is(err, images.ErrInvalidRequest) || errors.Is(err, multipart.ErrInvalidInput) {
		return &exitError{code: exitUsage, err: err}
	}
	return err
}

// app holds the dependencies shared by every subcommand. Tests replace the
// fields after newApp returns.
type app struct {
	stdout io.Writer
	stderr io.Writer

	loader *config.Loader
	cfg    *config.Config

	now        func() time.Time
	rng        *rand.Rand
	httpClient func(timeout time.Duration) *http.Client
	player     playback.Player

	shutdownTracing func(context.Context) error
	endSpan         func(error)
	started         bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		loader:     config.NewLoader(),
		now:        time.Now,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		httpClient: telemetry.NewHTTPClient,
	}
}

func (a *app) rootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "mediakit",
		Short:         "Generate images, edit images and synthesize speech",
		Version:       GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), configPath, verbose)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetVersionTemplate(GetVersionInfo() + "\n")

	pf := root.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default "+config.DefaultFile+" if present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging, including API requests")
	pf.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	pf.String("log-format", "", "Log format: text or json")
	a.bind(pf.Lookup("metrics-file"), "telemetry.metrics_file")
	a.bind(pf.Lookup("log-format"), "log.format")

	root.AddCommand(a.genCmd(), a.editCmd(), a.speakCmd(), versionCmd())
	return root
}

// setup loads configuration and starts logging and tracing. It runs before
// every subcommand.
func (a *app) setup(ctx context.Context, configPath string, verbose bool) error {
	cfg, err := a.loader.Load(configPath)
	if err != nil {
		return usageErrorf("%w", err)
	}
	a.cfg = cfg

	if cfg.Log.Level != "" {
		logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	}
	if cfg.Log.Format != "" {
		logger.SetFormat(cfg.Log.Format)
	}
	if verbose {
		logger.SetVerbose(true)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
		shutdown = nil
	}
	a.shutdownTracing = shutdown
	return nil
}

// bind ties a flag to a config key. Flags are defined in code, so a
// failure here is a programming error.
func (a *app) bind(flag *pflag.Flag, key string) {
	if err := a.loader.BindFlag(key, flag); err != nil {
		panic(err)
	}
}

// begin marks that argument parsing succeeded and returns the command
// context tagged with its name and carrying the command span.
func (a *app) begin(cmd *cobra.Command) context.Context {
	a.started = true
	ctx, end := telemetry.StartCommand(cmd.Context(), cmd.Name())
	a.endSpan = end
	return logger.WithCommand(ctx, cmd.Name())
}

// execute runs the command line and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if a.endSpan != nil {
		a.endSpan(err)
	}
	a.finish()

	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(a.stderr, "\nStopped.")
		return exitInterrupted
	}

	var exitErr *exitError
	isExitErr := errors.As(err, &exitErr)
	if !isExitErr || !exitErr.reported {
		_, _ = fmt.Fprintf(a.stderr, "error: %v\n", err)
	}
	switch {
	case isExitErr:
		return exitErr.code
	case !a.started:
		// cobra rejected the flags or arguments before RunE.
		return exitUsage
	default:
		return exitFailure
	}
}

func (a *app) finish() {
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTracing(ctx); err != nil {
			logger.Warn("Failed to flush traces", "error", err)
		}
		cancel()
	}
	if a.cfg != nil && a.cfg.Telemetry.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.Telemetry.MetricsFile); err != nil {
			logger.Warn("Failed to write metrics", "error", err)
		}
	}
}

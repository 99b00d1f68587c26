package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/surveyrecon/internal/config"
	"github.com/dshills/surveyrecon/internal/httpapi"
	"github.com/dshills/surveyrecon/internal/ingest"
	"github.com/dshills/surveyrecon/internal/outcome"
	"github.com/dshills/surveyrecon/internal/pipeline"
	"github.com/dshills/surveyrecon/internal/render"
)

// Exit codes.
const (
	exitCodeFatal    = 1 // the run could not produce a questionnaire or responses
	exitCodeFailOn   = 2 // the outcome reached the --fail-on threshold
	exitCodeBadInput = 3 // unreadable files, bad flags or bad config
)

// exitError carries a process exit code alongside the error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func badInput(format string, args ...any) error {
	return &exitError{code: exitCodeBadInput, err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configFile string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	stdout io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "surveyrecon",
		Short:         "Normalize survey definitions and reconcile response spreadsheets against them",
		Version:       pipeline.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.OutOrStdout())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newNormalizeCmd(a), newProcessCmd(a), newServeCmd(a))
	return root
}

// init loads the config and builds the logger.
func (a *app) init(stdout io.Writer) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return &exitError{code: exitCodeBadInput, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitCodeBadInput, err: err}
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(cfg.LogLevel())
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg, a.logger, a.stdout = cfg, logger, stdout
	return nil
}

// write sends data to path, or to stdout when path is empty.
func (a *app) write(path string, data []byte) error {
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	if path == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

type normalizeFlags struct {
	schemaFile string
	format     string
	out        string
}

func newNormalizeCmd(a *app) *cobra.Command {
	var f normalizeFlags
	cmd := &cobra.Command{
		Use:   "normalize SCHEMA",
		Short: "Turn a survey definition into the canonical questionnaire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.schemaFile = args[0]
			return runNormalize(a, f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json or markdown")
	cmd.Flags().StringVar(&f.out, "out", "", "output file (default stdout)")
	return cmd
}

func runNormalize(a *app, f normalizeFlags) error {
	if f.format != "json" && f.format != "markdown" {
		return badInput("normalize: unknown format %q", f.format)
	}
	src, err := os.ReadFile(f.schemaFile)
	if err != nil {
		return badInput("normalize: %w", err)
	}
	res, err := pipeline.New(a.cfg, a.logger).Normalize(string(src))
	if err != nil {
		return &exitError{code: exitCodeFatal, err: err}
	}
	if f.format == "markdown" {
		return a.write(f.out, []byte(render.RenderQuestionnaireMarkdown(res)))
	}
	b, err := render.RenderJSON(res)
	if err != nil {
		return err
	}
	return a.write(f.out, b)
}

type processFlags struct {
	schemaFile    string
	responsesFile string
	format        string
	out           string
	failOn        string
}

func newProcessCmd(a *app) *cobra.Command {
	var f processFlags
	cmd := &cobra.Command{
		Use:   "process SCHEMA RESPONSES",
		Short: "Reconcile a response file (csv, xlsx or json) against a survey definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.schemaFile, f.responsesFile = args[0], args[1]
			return runProcess(cmd.Context(), a, f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "json", "output format: json, markdown or csv")
	cmd.Flags().StringVar(&f.out, "out", "", "output file (default stdout)")
	cmd.Flags().StringVar(&f.failOn, "fail-on", "", "exit 2 when the status is at least warnings or failed")
	return cmd
}

func runProcess(ctx context.Context, a *app, f processFlags) error {
	switch f.format {
	case "json", "markdown", "csv":
	default:
		return badInput("process: unknown format %q", f.format)
	}
	var threshold outcome.Status
	if f.failOn != "" {
		s, err := outcome.ParseStatus(f.failOn)
		if err != nil {
			return badInput("process: --fail-on: %w", err)
		}
		threshold = s
	}
	src, err := os.ReadFile(f.schemaFile)
	if err != nil {
		return badInput("process: %w", err)
	}
	table, err := ingest.Read(f.responsesFile)
	if err != nil {
		return badInput("process: %w", err)
	}

	rep, runErr := pipeline.New(a.cfg, a.logger).Run(ctx, string(src), table)
	rep.Input.Responses = f.responsesFile
	if runErr == nil || f.format != "csv" {
		if err := a.writeReport(rep, f); err != nil {
			return err
		}
	}
	if runErr != nil {
		return &exitError{code: exitCodeFatal, err: runErr}
	}
	if threshold != "" && outcome.Ordinal(rep.Summary.Status) >= outcome.Ordinal(threshold) {
		return &exitError{
			code: exitCodeFailOn,
			err:  fmt.Errorf("process: %s (fail-on %s)", outcome.Headline(rep.Summary), threshold),
		}
	}
	return nil
}

func (a *app) writeReport(rep *pipeline.Report, f processFlags) error {
	var (
		data []byte
		err  error
	)
	switch f.format {
	case "markdown":
		data = []byte(render.RenderMarkdown(rep))
	case "csv":
		data, err = render.RenderCSV(rep)
	default:
		data, err = render.RenderJSON(rep)
	}
	if err != nil {
		return err
	}
	return a.write(f.out, data)
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return httpapi.New(a.cfg, a.logger).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

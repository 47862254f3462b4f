package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/ashwch/syntaxpilot/internal/audit"
	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/gate"
	"github.com/ashwch/syntaxpilot/internal/logging"
	"github.com/ashwch/syntaxpilot/internal/pipeline"
	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/shell"
	"github.com/ashwch/syntaxpilot/internal/ui"
	"go.uber.org/zap"
)

var version = "dev"

const usageLine = "usage: pilot [flags] <describe the command you want>"

type options struct {
	ConfigPath string
	Resolver   string
	Index      string
	UI         string
	TopK       int
	JSON       bool
	DryRun     bool
	Verbose    bool
	Version    bool
	Copy       bool
	Quiet      bool
	NoAudit    bool
}

type response struct {
	Query       string  `json:"query"`
	State       string  `json:"state"`
	Command     string  `json:"command,omitempty"`
	Confidence  float32 `json:"confidence,omitempty"`
	Source      string  `json:"source,omitempty"`
	Executed    bool    `json:"executed"`
	ExitCode    int     `json:"exit_code"`
	Interrupted bool    `json:"interrupted,omitempty"`
	AuditID     string  `json:"audit_id,omitempty"`
	Error       string  `json:"error,omitempty"`
}

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}))
}

func run(args []string, std streams) int {
	opts, query, err := parseArgs(args, std.err)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(std.err, "pilot: %v\n", err)
		return exitUsage
	}
	if opts.Version {
		fmt.Fprintln(std.out, version)
		return exitOK
	}
	if query == "" {
		fmt.Fprintln(std.err, usageLine)
		fmt.Fprintln(std.err, "example: pilot please give me a nextjs boilerplate")
		return exitUsage
	}

	logger := logging.New(logging.Options{Verbose: opts.Verbose, JSON: !ui.IsTerminal(os.Stderr), Output: std.err})
	defer logging.Sync(logger)

	cfg, err := loadConfig(opts, logger)
	if err != nil {
		fmt.Fprintf(std.err, "pilot: %v\n", err)
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strategy, err := withLoader(opts, std.err, "loading model", func() (resolver.Strategy, error) {
		return resolver.NewRegistry().Build(ctx, cfg.Resolver, resolver.Deps{Config: cfg, Logger: logger})
	})
	if err != nil {
		err = asConfigError(err)
		fmt.Fprintf(std.err, "pilot: could not start %s resolver: %v\n", cfg.Resolver, err)
		return exitCode(err)
	}
	defer strategy.Close() //nolint:errcheck

	p, err := buildPipeline(cfg, opts, std, loaderStrategy{Strategy: strategy, opts: opts, w: std.err}, logger)
	if err != nil {
		fmt.Fprintf(std.err, "pilot: %v\n", err)
		return exitInternal
	}

	res, err := p.Run(ctx, query)
	report(std, opts, res, err)
	return exitCode(err)
}

func parseArgs(args []string, output io.Writer) (options, string, error) {
	fs := flag.NewFlagSet("pilot", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, usageLine)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.ConfigPath, "config", "", "read settings from this config.toml instead of the default")
	fs.StringVar(&opts.Resolver, "resolver", "", "override resolver: retrieval|suggest")
	fs.StringVar(&opts.Index, "index", "", "override index backend: pinecone|pgvector|sqlite")
	fs.StringVar(&opts.UI, "ui", "", "override ui backend: plain|auto|bubbletea|huh|tview")
	fs.IntVar(&opts.TopK, "top-k", 0, "number of neighbours to retrieve (first one is used)")
	fs.BoolVar(&opts.JSON, "json", false, "output JSON")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "show the command without running it")
	fs.BoolVar(&opts.Verbose, "verbose", false, "debug logging on stderr")
	fs.BoolVar(&opts.Version, "version", false, "print version")
	fs.BoolVar(&opts.Copy, "copy", false, "copy the suggested command to the clipboard when possible")
	fs.BoolVar(&opts.Quiet, "quiet", false, "print only the suggested command (implies --dry-run)")
	fs.BoolVar(&opts.NoAudit, "no-audit", false, "do not append to the audit log for this run")

	if err := fs.Parse(args); err != nil {
		return options{}, "", err
	}
	if opts.TopK < 0 {
		return options{}, "", fmt.Errorf("--top-k must be at least 1")
	}
	if opts.UI != "" {
		backend, err := ui.ParseBackend(opts.UI)
		if err != nil {
			return options{}, "", err
		}
		opts.UI = backend
	}
	if opts.Quiet {
		opts.DryRun = true
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	return opts, query, nil
}

func loadConfig(opts options, logger *zap.Logger) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Warn("ignoring .env", zap.Error(err))
	}

	var (
		cfg config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.LoadFile(opts.ConfigPath)
		cfg.ApplyEnv(os.LookupEnv)
	} else {
		cfg, _, err = config.LoadOrCreate()
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}

	overrides := map[string]string{
		"resolver":      opts.Resolver,
		"index.backend": opts.Index,
		"ui.backend":    opts.UI,
	}
	if opts.TopK > 0 {
		overrides["index.top_k"] = strconv.Itoa(opts.TopK)
	}
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := cfg.Set(key, value); err != nil {
			return config.Config{}, fmt.Errorf("%w: invalid override %s=%s: %v", errConfig, key, value, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("%w: %v", errConfig, err)
	}
	return cfg, nil
}

func buildPipeline(cfg config.Config, opts options, std streams, strategy resolver.Strategy, logger *zap.Logger) (*pipeline.Pipeline, error) {
	confirmOut := std.out
	if opts.JSON {
		// Keep stdout parseable; the prompt and the child's output go to stderr.
		confirmOut = std.err
	}
	g, err := gate.New(gate.Options{
		Confirmer: ui.Confirmer{Backend: cfg.UI.Backend, In: std.in, Out: confirmOut, Logger: logger},
		Executor:  gate.ShellExecutor{Stdio: shell.Stdio{Stdin: std.in, Stdout: confirmOut, Stderr: std.err}},
		DryRun:    opts.DryRun,
		Preview: func(c resolver.Candidate) {
			if opts.Copy {
				copySuggestedCommand(std.err, c.Command)
			}
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	var recorder pipeline.Recorder
	if cfg.Audit.Enabled && !opts.NoAudit {
		r, err := audit.DefaultRecorder()
		if err != nil {
			logger.Warn("audit disabled", zap.Error(err))
		} else {
			recorder = r
		}
	}
	return pipeline.New(pipeline.Options{Strategy: strategy, Gate: g, Recorder: recorder, Logger: logger})
}

func report(std streams, opts options, res pipeline.Result, err error) {
	out := res.Outcome
	payload := response{
		Query:       res.Query,
		State:       out.State.String(),
		Executed:    out.State == gate.Done && !errors.Is(err, gate.ErrSpawn),
		ExitCode:    out.ExitCode,
		Interrupted: out.Interrupted,
		AuditID:     res.AuditID,
	}
	if out.HasMatch {
		payload.Command = out.Candidate.Command
		payload.Confidence = out.Candidate.Confidence
		payload.Source = out.Candidate.Source
	}
	if err != nil {
		payload.Error = err.Error()
	}

	if opts.JSON {
		if len(out.Path) == 0 {
			// the lookup failed before the gate was entered
			payload.State = "error"
			payload.ExitCode = -1
		}
		encoded, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Fprintln(std.out, string(encoded))
		return
	}

	switch {
	case errors.Is(err, resolver.ErrNoMatch):
		fmt.Fprintln(std.err, "pilot: no matching command found")
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(std.err, "Cancelled.")
	case err != nil:
		var exitErr *gate.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintf(std.err, "pilot: command exited with status %d\n", exitErr.Code)
			return
		}
		fmt.Fprintf(std.err, "pilot: %v\n", err)
	case out.State == gate.Previewed:
		if opts.Quiet {
			fmt.Fprintln(std.out, payload.Command)
			return
		}
		fmt.Fprint(std.out, gate.PlainRender(out.Candidate))
	case out.State == gate.Rejected, out.State == gate.Cancelled:
		fmt.Fprintln(std.out, "Cancelled. Command not executed.")
		fmt.Fprintf(std.out, "command: %s\n", payload.Command)
	case out.Interrupted:
		fmt.Fprintln(std.err, "pilot: command was interrupted")
	}
}

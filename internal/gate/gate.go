// Package gate is the only place a suggested command can turn into a
// running process. It presents the candidate, waits for a single decision,
// and runs the command at most once.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/ashwch/syntaxpilot/internal/shell"
	"go.uber.org/zap"
)

var (
	ErrSpawn       = errors.New("failed to start command")
	ErrNonZeroExit = errors.New("command exited with non-zero status")
)

// ExitError reports a child that ran but did not exit cleanly.
type ExitError struct {
	Code        int
	Interrupted bool
}

func (e *ExitError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("%v: %d (interrupted)", ErrNonZeroExit, e.Code)
	}
	return fmt.Sprintf("%v: %d", ErrNonZeroExit, e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrNonZeroExit
}

type State int

const (
	AwaitingCandidate State = iota
	AwaitingConfirmation
	Executing
	Done
	Rejected
	NoMatch
	// Cancelled is the rejection-equivalent state for a context that ends
	// before the child is spawned.
	Cancelled
	// Previewed ends a dry run after the candidate is shown.
	Previewed
)

func (s State) String() string {
	switch s {
	case AwaitingCandidate:
		return "awaiting_candidate"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Executing:
		return "executing"
	case Done:
		return "done"
	case Rejected:
		return "rejected"
	case NoMatch:
		return "no_match"
	case Cancelled:
		return "cancelled"
	case Previewed:
		return "previewed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Terminal() bool {
	switch s {
	case Done, Rejected, NoMatch, Cancelled, Previewed:
		return true
	default:
		return false
	}
}

type Decision int

const (
	DecisionRejected Decision = iota
	DecisionAccepted
)

func (d Decision) String() string {
	if d == DecisionAccepted {
		return "accepted"
	}
	return "rejected"
}

// Confirmer presents a candidate and blocks for the user's decision.
type Confirmer interface {
	Confirm(ctx context.Context, candidate resolver.Candidate) (Decision, error)
}

type ConfirmerFunc func(ctx context.Context, candidate resolver.Candidate) (Decision, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, candidate resolver.Candidate) (Decision, error) {
	return f(ctx, candidate)
}

// Executor runs an accepted command and reports how it ended.
type Executor interface {
	Execute(ctx context.Context, command string) (shell.Result, error)
}

type ShellExecutor struct {
	Stdio shell.Stdio
}

func (e ShellExecutor) Execute(ctx context.Context, command string) (shell.Result, error) {
	return shell.Run(ctx, command, e.Stdio)
}

// Outcome describes how one pass through the gate ended. Path lists every
// state visited, terminal state last.
type Outcome struct {
	State       State              `json:"state"`
	Path        []State            `json:"path"`
	Candidate   resolver.Candidate `json:"candidate"`
	HasMatch    bool               `json:"has_match"`
	Decision    Decision           `json:"-"`
	ExitCode    int                `json:"exit_code"`
	Interrupted bool               `json:"interrupted,omitempty"`
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Path = append(o.Path, s)
}

type Options struct {
	Confirmer Confirmer
	Executor  Executor
	// DryRun stops after the candidate has been presented.
	DryRun  bool
	Preview func(resolver.Candidate)
	Logger  *zap.Logger
}

type Gate struct {
	confirmer Confirmer
	executor  Executor
	dryRun    bool
	preview   func(resolver.Candidate)
	logger    *zap.Logger
}

func New(opts Options) (*Gate, error) {
	if opts.Confirmer == nil && !opts.DryRun {
		return nil, errors.New("gate: confirmer is required")
	}
	executor := opts.Executor
	if executor == nil {
		executor = ShellExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		confirmer: opts.Confirmer,
		executor:  executor,
		dryRun:    opts.DryRun,
		preview:   opts.Preview,
		logger:    logger.Named("gate"),
	}, nil
}

// Run drives one candidate (or its absence) to a terminal state.
//
// The returned error is resolver.ErrNoMatch for NoMatch, wraps ErrSpawn when
// the shell could not start, and is an *ExitError for a non-zero exit.
// Rejection and cancellation before spawn return a nil error. Once the child
// is running, cancellation interrupts it and Run still waits for it to exit.
func (g *Gate) Run(ctx context.Context, candidate resolver.Candidate, ok bool) (Outcome, error) {
	out := Outcome{Candidate: candidate, HasMatch: ok, ExitCode: -1}
	out.enter(AwaitingCandidate)

	if !ok {
		out.enter(NoMatch)
		g.logger.Debug("no candidate")
		return out, resolver.ErrNoMatch
	}
	if ctx.Err() != nil {
		out.enter(Cancelled)
		return out, nil
	}

	if g.dryRun {
		if g.preview != nil {
			g.preview(candidate)
		}
		out.enter(Previewed)
		out.ExitCode = 0
		return out, nil
	}

	out.enter(AwaitingConfirmation)
	decision, err := g.confirmer.Confirm(ctx, candidate)
	switch {
	case ctx.Err() != nil:
		out.enter(Cancelled)
		g.logger.Debug("cancelled during confirmation")
		return out, nil
	case err != nil:
		out.enter(Rejected)
		return out, fmt.Errorf("read confirmation: %w", err)
	}
	out.Decision = decision
	if decision != DecisionAccepted {
		out.enter(Rejected)
		out.ExitCode = 0
		g.logger.Debug("rejected by user")
		return out, nil
	}

	// A context that ends between the decision and spawn still counts as
	// a cancellation; nothing has been started yet.
	if ctx.Err() != nil {
		out.enter(Cancelled)
		return out, nil
	}

	out.enter(Executing)
	g.logger.Debug("executing", zap.String("command", safety.RedactText(candidate.Command)))
	result, err := g.executor.Execute(ctx, candidate.Command)
	if err != nil {
		out.enter(Done)
		return out, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	out.enter(Done)
	out.ExitCode = result.ExitCode
	out.Interrupted = result.Interrupted
	g.logger.Debug("command finished",
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("interrupted", result.Interrupted),
	)
	if result.ExitCode != 0 {
		return out, &ExitError{Code: result.ExitCode, Interrupted: result.Interrupted}
	}
	return out, nil
}

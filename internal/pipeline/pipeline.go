// Package pipeline wires one query through candidate lookup and the
// execution gate, and records how it ended.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ashwch/syntaxpilot/internal/audit"
	"github.com/ashwch/syntaxpilot/internal/gate"
	"github.com/ashwch/syntaxpilot/internal/resolver"
	"go.uber.org/zap"
)

type Recorder interface {
	Record(rec audit.Record) (audit.Record, error)
}

type Options struct {
	Strategy resolver.Strategy
	Gate     *gate.Gate
	// Recorder is optional; nil disables auditing.
	Recorder Recorder
	Logger   *zap.Logger
}

type Pipeline struct {
	strategy resolver.Strategy
	gate     *gate.Gate
	recorder Recorder
	logger   *zap.Logger
}

type Result struct {
	Query   string       `json:"query"`
	Outcome gate.Outcome `json:"outcome"`
	AuditID string       `json:"audit_id,omitempty"`
	Elapsed string       `json:"elapsed"`
}

func New(opts Options) (*Pipeline, error) {
	if opts.Strategy == nil {
		return nil, errors.New("pipeline: strategy is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("pipeline: gate is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		strategy: opts.Strategy,
		gate:     opts.Gate,
		recorder: opts.Recorder,
		logger:   logger,
	}, nil
}

// Run looks up a candidate and hands it to the gate. Lookup failures return
// before the gate is entered and are not audited; every gate outcome is.
func (p *Pipeline) Run(ctx context.Context, query string) (Result, error) {
	start := time.Now()
	result := Result{Query: query}

	candidate, ok, err := p.strategy.Lookup(ctx, query)
	if err != nil {
		result.Elapsed = time.Since(start).String()
		return result, err
	}

	outcome, gateErr := p.gate.Run(ctx, candidate, ok)
	result.Outcome = outcome
	result.Elapsed = time.Since(start).String()
	result.AuditID = p.record(query, outcome, gateErr)

	p.logger.Debug("query finished",
		zap.String("resolver", p.strategy.Name()),
		zap.Stringer("state", outcome.State),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, gateErr
}

// record never fails the query; a broken audit file is only logged.
func (p *Pipeline) record(query string, outcome gate.Outcome, gateErr error) string {
	if p.recorder == nil {
		return ""
	}
	rec := audit.Record{
		Query:       query,
		State:       outcome.State.String(),
		ExitCode:    outcome.ExitCode,
		Interrupted: outcome.Interrupted,
	}
	if outcome.HasMatch {
		rec.Command = outcome.Candidate.Command
		rec.Source = outcome.Candidate.Source
		rec.Confidence = outcome.Candidate.Confidence
	}
	if gateErr != nil {
		rec.Error = gateErr.Error()
	}
	written, err := p.recorder.Record(rec)
	if err != nil {
		p.logger.Warn("could not write audit record", zap.Error(err))
		return ""
	}
	return written.ID
}

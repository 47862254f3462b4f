package main

import (
	"context"
	"errors"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/gate"
	"github.com/ashwch/syntaxpilot/internal/inference"
	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/tokenizer"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/ashwch/syntaxpilot/internal/vectorindex"
)

// Process exit codes. A rejected or cancelled command is not a failure.
const (
	exitOK         = 0
	exitInternal   = 1
	exitUsage      = 2
	exitConfig     = 3
	exitTokenize   = 4
	exitInference  = 5
	exitConnection = 6
	exitAuth       = 7
	exitStatus     = 8
	exitResponse   = 9
	exitNoMatch    = 10
	exitSpawn      = 11
	exitNonZero    = 12
)

var errConfig = errors.New("configuration error")

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, resolver.ErrEmptyQuery):
		return exitUsage
	case errors.Is(err, errConfig),
		errors.Is(err, config.ErrMissingSetting),
		errors.Is(err, vectorindex.ErrInvalidTopK):
		return exitConfig
	case errors.Is(err, tokenizer.ErrTokenize):
		return exitTokenize
	case errors.Is(err, inference.ErrInference):
		return exitInference
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, transport.ErrConnection):
		return exitConnection
	case errors.Is(err, transport.ErrAuth):
		return exitAuth
	case errors.Is(err, transport.ErrStatus):
		return exitStatus
	case errors.Is(err, transport.ErrResponse):
		return exitResponse
	case errors.Is(err, resolver.ErrNoMatch):
		return exitNoMatch
	case errors.Is(err, gate.ErrSpawn):
		return exitSpawn
	case errors.Is(err, gate.ErrNonZeroExit):
		return exitNonZero
	default:
		return exitInternal
	}
}

// asConfigError marks a strategy build failure that none of the runtime
// classes claim as a configuration problem, e.g. a missing model file.
func asConfigError(err error) error {
	if exitCode(err) != exitInternal {
		return err
	}
	return errors.Join(errConfig, err)
}

// Package ui holds the terminal prompts that confirm a suggested command.
package ui

import (
	"fmt"
	"strings"
)

const (
	BackendAuto      = "auto"
	BackendBubbleTea = "bubbletea"
	BackendHuh       = "huh"
	BackendTView     = "tview"
	BackendPlain     = "plain"
)

var backends = []string{BackendPlain, BackendAuto, BackendBubbleTea, BackendHuh, BackendTView}

// Backends lists the accepted --ui values, plain first.
func Backends() []string {
	return append([]string(nil), backends...)
}

// ParseBackend is the strict form used for flags.
func ParseBackend(backend string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(backend))
	if value == "" {
		return BackendPlain, nil
	}
	for _, known := range backends {
		if value == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown ui backend %q (want one of %s)", backend, strings.Join(backends, ", "))
}

// NormalizeBackend maps unknown values to plain.
func NormalizeBackend(backend string) string {
	parsed, err := ParseBackend(backend)
	if err != nil {
		return BackendPlain
	}
	return parsed
}

func IsInteractiveBackend(backend string) bool {
	return NormalizeBackend(backend) != BackendPlain
}

func backendCandidates(backend string) []string {
	switch NormalizeBackend(backend) {
	case BackendBubbleTea, BackendAuto:
		return []string{BackendBubbleTea, BackendHuh, BackendTView}
	case BackendHuh:
		return []string{BackendHuh, BackendBubbleTea, BackendTView}
	case BackendTView:
		return []string{BackendTView, BackendBubbleTea, BackendHuh}
	default:
		return []string{BackendPlain}
	}
}

// Package resolver turns a free-text query into at most one candidate shell
// command. How matches are interpreted lives here, separate from how they
// were retrieved.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/vectorindex"
)

var (
	ErrNoMatch    = errors.New("no matching command")
	ErrEmptyQuery = errors.New("query cannot be empty")
)

type Candidate struct {
	Command    string  `json:"command"`
	Confidence float32 `json:"confidence"`
	Source     string  `json:"source,omitempty"`
}

// Resolve picks the first match and reads its "command" metadata. The score
// is carried through untouched; no threshold is applied here.
func Resolve(matches []vectorindex.Match) (Candidate, bool) {
	if len(matches) == 0 {
		return Candidate{}, false
	}
	first := matches[0]
	command, ok := first.Metadata[vectorindex.MetadataCommand].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return Candidate{}, false
	}
	return Candidate{Command: command, Confidence: first.Score}, true
}

// Strategy produces a candidate for a query. A false second return with a nil
// error means nothing matched.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, query string) (Candidate, bool, error)
	Close() error
}

func cleanQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	return query, nil
}

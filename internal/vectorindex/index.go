// Package vectorindex queries a nearest-neighbour store for the commands
// closest to an embedding. Backends only read; populating an index is done
// out of band.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"go.uber.org/zap"
)

// MetadataCommand is the metadata key holding the indexed shell command.
const MetadataCommand = "command"

var ErrInvalidTopK = errors.New("top_k must be at least 1")

// Match is one neighbour as reported by the backend. Backends return matches
// in descending score order.
type Match struct {
	ID       string         `json:"id,omitempty"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Close() error
}

// Open builds the backend selected by cfg. The HTTP client is only used by
// remote backends and may be nil for the SQL ones.
func Open(ctx context.Context, cfg config.IndexConfig, client *http.Client, logger *zap.Logger) (Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		idx Index
		err error
	)
	// idx stays a nil interface on failure, never a typed nil.
	switch cfg.Backend {
	case config.BackendPinecone:
		var p *PineconeIndex
		if p, err = NewPinecone(PineconeOptions{
			URL:       cfg.URL,
			APIKey:    cfg.APIKey,
			Namespace: cfg.Namespace,
			Client:    client,
			Logger:    logger,
		}); err == nil {
			idx = p
		}
	case config.BackendPGVector:
		var p *PGVectorIndex
		if p, err = OpenPGVector(ctx, cfg.PostgresDSN, cfg.Table, logger); err == nil {
			idx = p
		}
	case config.BackendSQLite:
		var s *SQLiteIndex
		if s, err = OpenSQLite(ctx, cfg.SQLitePath, cfg.Table, logger); err == nil {
			idx = s
		}
	default:
		err = fmt.Errorf("unsupported index backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func checkQuery(vector []float32, topK int) error {
	if topK < 1 {
		return ErrInvalidTopK
	}
	if len(vector) == 0 {
		return errors.New("query vector is empty")
	}
	return nil
}

// storeError classifies a database failure on the retrieval path. Context
// errors pass through unchanged.
func storeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", transport.ErrConnection, op, err)
}

func commandMetadata(id, command string) map[string]any {
	meta := map[string]any{MetadataCommand: command}
	if id != "" {
		meta["id"] = id
	}
	return meta
}

package resolver

import (
	"context"
	"errors"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/embedder"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/ashwch/syntaxpilot/internal/vectorindex"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, text string) (embedder.Vector, error)
}

// Retrieval embeds the query locally and asks the vector index for its
// nearest neighbours.
type Retrieval struct {
	embedder Embedder
	index    vectorindex.Index
	topK     int
	logger   *zap.Logger
	closers  []func() error
}

func NewRetrieval(e Embedder, idx vectorindex.Index, topK int, logger *zap.Logger) (*Retrieval, error) {
	if e == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if idx == nil {
		return nil, errors.New("retrieval: index is required")
	}
	if topK < 1 {
		return nil, vectorindex.ErrInvalidTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrieval{embedder: e, index: idx, topK: topK, logger: logger.Named("retrieval")}, nil
}

func newRetrievalFromDeps(ctx context.Context, deps Deps) (Strategy, error) {
	cfg := deps.Config
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	emb := deps.Embedder
	if emb == nil {
		loaded, err := embedder.Load(embedder.LoadOptions{
			TokenizerPath: cfg.TokenizerPath(),
			ModelPath:     cfg.ModelPath(),
			LibraryPath:   cfg.Model.RuntimeLibrary,
			OutputName:    cfg.Model.OutputName,
			HiddenSize:    cfg.Model.HiddenSize,
		}, deps.Logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, loaded.Close)
		emb = loaded
	}

	idx := deps.Index
	if idx == nil {
		opened, err := vectorindex.Open(ctx, cfg.Index, httpClientFor(deps, cfg.Index.TimeoutSeconds), deps.Logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		closers = append(closers, opened.Close)
		idx = opened
	}

	r, err := NewRetrieval(emb, idx, cfg.Index.TopK, deps.Logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	r.closers = closers
	return r, nil
}

func (r *Retrieval) Name() string {
	return config.ResolverRetrieval
}

// Lookup runs tokenize, infer, pool, then query. The index call only starts
// once the vector exists.
func (r *Retrieval) Lookup(ctx context.Context, query string) (Candidate, bool, error) {
	query, err := cleanQuery(query)
	if err != nil {
		return Candidate{}, false, err
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Candidate{}, false, err
	}
	matches, err := r.index.Query(ctx, vec, r.topK)
	if err != nil {
		return Candidate{}, false, err
	}

	candidate, ok := Resolve(matches)
	if !ok {
		r.logger.Debug("no candidate", zap.Int("matches", len(matches)))
		return Candidate{}, false, nil
	}
	candidate.Source = r.Name()
	r.logger.Debug("resolved candidate",
		zap.String("command", safety.RedactText(candidate.Command)),
		zap.Float32("confidence", candidate.Confidence),
		zap.Int("matches", len(matches)),
	)
	return candidate, true, nil
}

func (r *Retrieval) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

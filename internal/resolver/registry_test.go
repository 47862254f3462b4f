package resolver

import (
	"context"
	"testing"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/embedder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNames(t *testing.T) {
	assert.Equal(t, []string{"retrieval", "suggest"}, NewRegistry().Names())
}

func TestRegistryRejectsUnknownResolver(t *testing.T) {
	_, err := NewRegistry().Build(context.Background(), "oracle", Deps{Config: config.Default()})
	assert.Error(t, err)
}

func TestRegistryBuildsSuggestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Resolver = config.ResolverSuggest

	s, err := NewRegistry().Build(context.Background(), cfg.Resolver, Deps{Config: cfg})
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	assert.Equal(t, "suggest", s.Name())
}

func TestRegistryBuildsRetrievalWithInjectedHandles(t *testing.T) {
	cfg := config.Default()
	cfg.Index.TopK = 4
	idx := &fakeIndex{}

	s, err := NewRegistry().Build(context.Background(), "", Deps{
		Config:   cfg,
		Embedder: &fakeEmbedder{vec: embedder.Vector{1}},
		Index:    idx,
	})
	require.NoError(t, err)
	assert.Equal(t, "retrieval", s.Name())

	_, _, err = s.Lookup(context.Background(), "list files")
	require.NoError(t, err)
	assert.Equal(t, 4, idx.gotTopK)

	require.NoError(t, s.Close())
	assert.False(t, idx.closed)
}

func TestRegistryCustomFactory(t *testing.T) {
	r := NewRegistry()
	r.Register("fixed", func(context.Context, Deps) (Strategy, error) {
		return NewRetrieval(&fakeEmbedder{vec: embedder.Vector{1}}, &fakeIndex{}, 1, nil)
	})
	assert.Contains(t, r.Names(), "fixed")
	_, err := r.Build(context.Background(), "fixed", Deps{})
	assert.NoError(t, err)
}

package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/ashwch/syntaxpilot/internal/embedder"
	"github.com/ashwch/syntaxpilot/internal/inference"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/ashwch/syntaxpilot/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec   embedder.Vector
	err   error
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (embedder.Vector, error) {
	f.calls = append(f.calls, text)
	return f.vec, f.err
}

type fakeIndex struct {
	matches []vectorindex.Match
	err     error
	gotVec  []float32
	gotTopK int
	calls   int
	closed  bool
}

func (f *fakeIndex) Query(_ context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
	f.calls++
	f.gotVec = vector
	f.gotTopK = topK
	return f.matches, f.err
}

func (f *fakeIndex) Close() error {
	f.closed = true
	return nil
}

func TestRetrievalLookupNextJSExample(t *testing.T) {
	emb := &fakeEmbedder{vec: embedder.Vector{0.1, 0.2}}
	idx := &fakeIndex{matches: []vectorindex.Match{
		{ID: "nextjs", Score: 0.93, Metadata: map[string]any{"command": "npx create-next-app"}},
	}}

	r, err := NewRetrieval(emb, idx, 3, nil)
	require.NoError(t, err)

	got, ok, err := r.Lookup(context.Background(), "  please give me a nextjs boilerplate ")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, Candidate{Command: "npx create-next-app", Confidence: 0.93, Source: "retrieval"}, got)
	assert.Equal(t, []string{"please give me a nextjs boilerplate"}, emb.calls)
	assert.Equal(t, []float32{0.1, 0.2}, idx.gotVec)
	assert.Equal(t, 3, idx.gotTopK)
}

func TestRetrievalLookupEmptyMatchesIsNoCandidate(t *testing.T) {
	r, err := NewRetrieval(&fakeEmbedder{vec: embedder.Vector{1}}, &fakeIndex{}, 1, nil)
	require.NoError(t, err)

	_, ok, err := r.Lookup(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetrievalLookupStopsOnEmbedFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.Join(inference.ErrInference, errors.New("boom"))}
	idx := &fakeIndex{}
	r, err := NewRetrieval(emb, idx, 1, nil)
	require.NoError(t, err)

	_, _, err = r.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, inference.ErrInference)
	assert.Zero(t, idx.calls, "index must not be queried before pooling succeeds")
}

func TestRetrievalLookupPropagatesIndexErrors(t *testing.T) {
	idx := &fakeIndex{err: transport.ErrAuth}
	r, err := NewRetrieval(&fakeEmbedder{vec: embedder.Vector{1}}, idx, 1, nil)
	require.NoError(t, err)

	_, _, err = r.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, transport.ErrAuth)
}

func TestRetrievalLookupRejectsEmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	r, err := NewRetrieval(emb, &fakeIndex{}, 1, nil)
	require.NoError(t, err)

	_, _, err = r.Lookup(context.Background(), " \t ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, emb.calls)
}

func TestNewRetrievalValidatesArguments(t *testing.T) {
	_, err := NewRetrieval(nil, &fakeIndex{}, 1, nil)
	assert.Error(t, err)
	_, err = NewRetrieval(&fakeEmbedder{}, nil, 1, nil)
	assert.Error(t, err)
	_, err = NewRetrieval(&fakeEmbedder{}, &fakeIndex{}, 0, nil)
	assert.ErrorIs(t, err, vectorindex.ErrInvalidTopK)
}

func TestRetrievalCloseLeavesInjectedHandlesOpen(t *testing.T) {
	idx := &fakeIndex{}
	r, err := NewRetrieval(&fakeEmbedder{}, idx, 1, nil)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.False(t, idx.closed)
}

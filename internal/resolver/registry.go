package resolver

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/ashwch/syntaxpilot/internal/vectorindex"
	"go.uber.org/zap"
)

// Deps carries shared handles into a factory. Nil fields are built from
// Config; handles passed in stay owned by the caller.
type Deps struct {
	Config     config.Config
	Logger     *zap.Logger
	HTTPClient *http.Client
	Embedder   Embedder
	Index      vectorindex.Index
}

type Factory func(ctx context.Context, deps Deps) (Strategy, error)

type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(config.ResolverRetrieval, newRetrievalFromDeps)
	r.Register(config.ResolverSuggest, newSuggestFromDeps)
	return r
}

func (r *Registry) Register(name string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[name] = factory
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Build(ctx context.Context, name string, deps Deps) (Strategy, error) {
	if name == "" {
		name = config.ResolverRetrieval
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported resolver: %s", name)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return factory(ctx, deps)
}

func httpClientFor(deps Deps, timeoutSeconds int) *http.Client {
	if deps.HTTPClient != nil {
		return deps.HTTPClient
	}
	return transport.NewClient(transport.Options{
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
		RetryMax: deps.Config.Index.RetryMax,
		Logger:   deps.Logger,
	})
}

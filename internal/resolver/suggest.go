package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/safety"
	"github.com/ashwch/syntaxpilot/internal/shell"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"go.uber.org/zap"
)

// SuggestRequest and SuggestResponse are the wire types of the suggestion
// service; internal/server speaks the same shapes.
type SuggestRequest struct {
	Query string `json:"query"`
}

type SuggestResponse struct {
	Response string `json:"response"`
}

// Suggest delegates the whole lookup to a remote suggestion service. The
// service reports no score, so candidates carry confidence 1.
type Suggest struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewSuggest(url string, client *http.Client, logger *zap.Logger) (*Suggest, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: suggest.url", config.ErrMissingSetting)
	}
	if client == nil {
		return nil, errors.New("suggest: http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suggest{url: url, client: client, logger: logger.Named("suggest")}, nil
}

func newSuggestFromDeps(_ context.Context, deps Deps) (Strategy, error) {
	cfg := deps.Config.Suggest
	return NewSuggest(cfg.URL, httpClientFor(deps, cfg.TimeoutSeconds), deps.Logger)
}

func (s *Suggest) Name() string {
	return config.ResolverSuggest
}

func (s *Suggest) Lookup(ctx context.Context, query string) (Candidate, bool, error) {
	query, err := cleanQuery(query)
	if err != nil {
		return Candidate{}, false, err
	}

	body, err := json.Marshal(SuggestRequest{Query: query})
	if err != nil {
		return Candidate{}, false, fmt.Errorf("encode suggest request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Candidate{}, false, fmt.Errorf("build suggest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Candidate{}, false, transport.Wrap(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := transport.CheckStatus(resp); err != nil {
		return Candidate{}, false, err
	}

	var decoded struct {
		Response *string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Candidate{}, false, transport.Decode(err)
	}
	if decoded.Response == nil {
		return Candidate{}, false, transport.Decode(errors.New(`missing "response" field`))
	}

	command, err := shell.NormalizeCommand(*decoded.Response)
	switch {
	case errors.Is(err, shell.ErrEmptyCommand):
		s.logger.Debug("service returned no command")
		return Candidate{}, false, nil
	case err != nil:
		return Candidate{}, false, transport.Decode(err)
	}

	s.logger.Debug("resolved candidate", zap.String("command", safety.RedactText(command)))
	return Candidate{Command: command, Confidence: 1, Source: s.Name()}, true, nil
}

func (s *Suggest) Close() error {
	return nil
}

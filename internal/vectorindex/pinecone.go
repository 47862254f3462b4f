package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ashwch/syntaxpilot/internal/transport"
	"go.uber.org/zap"
)

type PineconeOptions struct {
	// URL is the full query endpoint, e.g. https://<index>.svc.<env>.pinecone.io/query.
	URL       string
	APIKey    string
	Namespace string
	Client    *http.Client
	Logger    *zap.Logger
}

type PineconeIndex struct {
	url       string
	apiKey    string
	namespace string
	client    *http.Client
	logger    *zap.Logger
}

type pineconeQuery struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type pineconeResponse struct {
	Matches *[]Match `json:"matches"`
}

func NewPinecone(opts PineconeOptions) (*PineconeIndex, error) {
	if opts.URL == "" {
		return nil, errors.New("pinecone: index URL is required")
	}
	parsed, err := url.Parse(opts.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return nil, fmt.Errorf("pinecone: invalid index URL %q", opts.URL)
	}
	if opts.APIKey == "" {
		return nil, errors.New("pinecone: API key is required")
	}
	client := opts.Client
	if client == nil {
		client = transport.NewClient(transport.Options{Timeout: 15 * time.Second, Logger: opts.Logger})
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PineconeIndex{
		url:       opts.URL,
		apiKey:    opts.APIKey,
		namespace: opts.Namespace,
		client:    client,
		logger:    logger.Named("pinecone"),
	}, nil
}

// Query issues exactly one request. An empty match list is a valid answer.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if err := checkQuery(vector, topK); err != nil {
		return nil, err
	}

	body, err := json.Marshal(pineconeQuery{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       p.namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("encode pinecone query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pinecone request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transport.Wrap(ctx, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	p.logger.Debug("query finished",
		zap.Int("status", resp.StatusCode),
		zap.Int("top_k", topK),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := transport.CheckStatus(resp); err != nil {
		return nil, err
	}

	var decoded pineconeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, transport.Decode(err)
	}
	if decoded.Matches == nil {
		return nil, transport.Decode(errors.New(`missing "matches" field`))
	}
	return *decoded.Matches, nil
}

func (p *PineconeIndex) Close() error {
	return nil
}

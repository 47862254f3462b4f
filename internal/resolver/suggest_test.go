package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashwch/syntaxpilot/internal/config"
	"github.com/ashwch/syntaxpilot/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSuggest(t *testing.T, handler http.HandlerFunc) *Suggest {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewSuggest(srv.URL+"/suggest", transport.NewClient(transport.Options{Timeout: 5 * time.Second}), nil)
	require.NoError(t, err)
	return s
}

func TestSuggestLookup(t *testing.T) {
	tests := map[string]struct {
		response  string
		want      Candidate
		wantOK    bool
		wantError error
	}{
		"plain command": {
			response: `{"response":"npx create-next-app"}`,
			want:     Candidate{Command: "npx create-next-app", Confidence: 1, Source: "suggest"},
			wantOK:   true,
		},
		"fenced command": {
			response: "{\"response\":\"```bash\\n$ git status\\n```\"}",
			want:     Candidate{Command: "git status", Confidence: 1, Source: "suggest"},
			wantOK:   true,
		},
		"empty response":   {response: `{"response":""}`},
		"blank response":   {response: `{"response":"   "}`},
		"missing response": {response: `{"command":"ls"}`, wantError: transport.ErrResponse},
		"not json":         {response: `npx create-next-app`, wantError: transport.ErrResponse},
		"null byte":        {response: `{"response":"ls\u0000"}`, wantError: transport.ErrResponse},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var gotReq SuggestRequest
			s := newTestSuggest(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/suggest", r.URL.Path)
				_ = json.NewDecoder(r.Body).Decode(&gotReq)
				_, _ = w.Write([]byte(tt.response))
			})

			got, ok, err := s.Lookup(context.Background(), "show git status")
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "show git status", gotReq.Query)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggestLookupHTTPFailures(t *testing.T) {
	tests := map[string]struct {
		status int
		want   error
	}{
		"auth":   {status: http.StatusUnauthorized, want: transport.ErrAuth},
		"status": {status: http.StatusBadGateway, want: transport.ErrStatus},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := newTestSuggest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, _, err := s.Lookup(context.Background(), "anything")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSuggestLookupConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewSuggest(url, transport.NewClient(transport.Options{Timeout: time.Second}), nil)
	require.NoError(t, err)
	_, _, err = s.Lookup(context.Background(), "anything")
	assert.ErrorIs(t, err, transport.ErrConnection)
}

func TestNewSuggestRequiresURL(t *testing.T) {
	_, err := NewSuggest("", http.DefaultClient, nil)
	assert.ErrorIs(t, err, config.ErrMissingSetting)
}

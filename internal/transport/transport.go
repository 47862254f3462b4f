// Package transport builds the HTTP client used for remote lookups and maps
// HTTP failures onto the error classes the CLI reports.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashwch/syntaxpilot/internal/logging"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

var (
	// ErrConnection: the request never produced an HTTP response.
	ErrConnection = errors.New("connection failed")
	// ErrAuth: the server rejected the credentials (401/403).
	ErrAuth = errors.New("authentication rejected")
	// ErrStatus: any other non-2xx response.
	ErrStatus = errors.New("unexpected HTTP status")
	// ErrResponse: a 2xx response whose body could not be decoded.
	ErrResponse = errors.New("malformed response")
)

const maxErrorBody = 512

// StatusError carries the status and a bounded prefix of the body.
type StatusError struct {
	Code int
	Body string
	kind error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %d %s", e.kind, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%v: %d %s: %s", e.kind, e.Code, http.StatusText(e.Code), e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

type Options struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *zap.Logger
}

// NewClient returns a plain *http.Client backed by go-retryablehttp. With
// RetryMax 0 (the default) every request is attempted exactly once; retries
// are an operator opt-in and only ever happen on connection errors and 429/503.
func NewClient(opts Options) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.CheckRetry = retryConnectionAndThrottle
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = logging.NewRetryableLogger(opts.Logger)

	client := retryClient.StandardClient()
	client.Timeout = opts.Timeout
	return client
}

func retryConnectionAndThrottle(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true, nil
	default:
		return false, nil
	}
}

// Wrap classifies an error returned by http.Client.Do. Context cancellation
// is passed through so callers can tell an abort from an outage.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// CheckStatus returns nil for 2xx responses and a *StatusError otherwise.
// The body is drained up to a small limit for the error message; the caller
// still owns closing it.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	kind := ErrStatus
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = ErrAuth
	}
	return &StatusError{Code: resp.StatusCode, Body: string(body), kind: kind}
}

// Decode wraps body decoding failures as ErrResponse.
func Decode(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrResponse, err)
}

// HTTP transport shared by the Spotify and Plex clients
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/shared"
	"golang.org/x/time/rate"
)

const defaultRetryWait = 500 * time.Millisecond

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// APIOpts configures an [APIService].
type APIOpts struct {
	BaseURL           string
	Client            *http.Client
	Header            http.Header
	RequestsPerSecond float64
	MaxRetries        int
	Logger            *log.Logger
}

// APIService performs throttled HTTP requests against one base URL.
//
// Transport failures, 429 and 5xx responses are retried with exponential backoff; anything else fails fast.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	header     http.Header
	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	logger     *log.Logger
}

// NewAPIService creates a new API service instance.
func NewAPIService(opts APIOpts) *APIService {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &APIService{
		baseURL:    opts.BaseURL,
		httpClient: client,
		header:     opts.Header,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: max(opts.MaxRetries, 0),
		retryWait:  defaultRetryWait,
		logger:     logger,
	}
}

// Endpoint joins path and query onto the base URL.
func (a *APIService) Endpoint(path string, query url.Values) string {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Do sends a request to rawURL and hands the body of a 2xx response to decode.
func (a *APIService) Do(ctx context.Context, method, rawURL string, decode func(io.Reader) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := a.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		for k, v := range a.header {
			req.Header[k] = v
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp, redact(rawURL)); err != nil {
			return err
		}

		if decode == nil {
			return nil
		}
		if err := decode(resp.Body); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		a.logger.Warn("retrying request", "method", method, "url", redact(rawURL), "attempt", attempt, "wait", wait, "err", err)
	}

	return backoff.RetryNotify(op, a.newBackOff(ctx), notify)
}

func (a *APIService) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryWait
	b.MaxInterval = 30 * a.retryWait
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(a.maxRetries)), ctx)
}

// classifyStatus maps a response onto nil, a retryable error or a permanent error.
func classifyStatus(resp *http.Response, u string) error {
	code := resp.StatusCode
	statusErr := &StatusError{Code: code, URL: u}

	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return errors.Join(shared.ErrRateLimited, statusErr)
	case code >= 500:
		return errors.Join(shared.ErrServiceUnavailable, statusErr)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return backoff.Permanent(errors.Join(shared.ErrNotAuthenticated, statusErr))
	default:
		return backoff.Permanent(errors.Join(shared.ErrAPIRequest, statusErr))
	}
}

// redact strips credentials carried in the query string before a URL is logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("X-Plex-Token") {
		q.Set("X-Plex-Token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

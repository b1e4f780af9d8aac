package diary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imec-int/monument-plwd-sub001/internal"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 10 * time.Second
	maxResponseBody = 4 << 20

	headerTraceID = "X-Trace-ID"
)

// ErrResponseTooLarge is returned instead of a truncated upstream body.
var ErrResponseTooLarge = errors.New("diary: response exceeds size limit")

// HTTPError is a non-2xx answer from the diary service.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("diary: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("diary: status=%d body=%s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	APIToken       string
	RatePerSecond  float64
	RateBurst      int
	ForwardTraceID bool
}

// Client talks to the diary service. Calls made on behalf of a user carry
// that user's bearer token; background calls use the service token.
type Client struct {
	HTTP           *http.Client
	BaseURL        string
	apiToken       string
	forwardTraceID bool
	limiter        *rate.Limiter
	logger         *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid diary base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Client{
		HTTP:           &http.Client{Timeout: timeout},
		BaseURL:        base,
		apiToken:       cfg.APIToken,
		forwardTraceID: cfg.ForwardTraceID,
		limiter:        limiter,
		logger:         logger,
	}, nil
}

// Request is one call to the diary service.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Token  string
	Body   []byte
}

// Response is the raw upstream answer of a successful call.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Do sends the request and returns the upstream body untouched. Non-2xx
// answers come back as *HTTPError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("diary: rate limit wait: %w", err)
	}

	target := c.BaseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("diary: new request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	token := req.Token
	if token == "" {
		token = c.apiToken
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.forwardTraceID {
		if traceID := internal.TraceIDFromContext(ctx); traceID != "" {
			httpReq.Header.Set(headerTraceID, traceID)
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diary: do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("diary: read response: %w", err)
	}
	if len(raw) > maxResponseBody {
		c.logger.WarnContext(ctx, "diary response too large", "method", req.Method, "path", req.Path, "limit", maxResponseBody)
		return nil, ErrResponseTooLarge
	}

	c.logger.DebugContext(ctx, "diary call",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
	}, nil
}

// PostJSON sends in as JSON with the service token and decodes the answer
// into out when out is not nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("diary: marshal json: %w", err)
	}

	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: payload})
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("diary: unmarshal json: %w", err)
	}
	return nil
}

// Ping checks that the diary service answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/health"})
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return nil
	}
	return err
}

// AsAppError maps a client error to the response the proxy should send.
func AsAppError(err error) *internal.AppError {
	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return internal.NewExternalError("Diary service rejected the request", httpErr.StatusCode, err)
	case errors.Is(err, ErrResponseTooLarge):
		return internal.NewExternalError("Diary response too large", 0, err)
	}
	return internal.NewExternalError("Diary service unavailable", 0, err)
}

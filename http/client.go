package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/randalmurphal/trackerkit/cache"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of attempts per call.
const DefaultMaxRetries = 3

// DefaultRetryWait is the default initial wait between retries.
const DefaultRetryWait = 1 * time.Second

// DefaultMaxRetryWait caps the backoff and any server Retry-After.
const DefaultMaxRetryWait = 30 * time.Second

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 8 << 10

const tracerName = "github.com/randalmurphal/trackerkit/http"

// Authenticator sets credentials on an outgoing request.
type Authenticator interface {
	Apply(req *http.Request) error
}

// Client executes tracker API calls. It is safe for concurrent use.
type Client struct {
	client       *http.Client
	baseURL      string
	serviceName  string
	userAgent    string
	maxRetries   int
	retryWait    time.Duration
	maxRetryWait time.Duration
	limiter      *rate.Limiter
	cache        *cache.Cache
	logger       *slog.Logger
	tracer       trace.Tracer

	mu    sync.RWMutex
	auth  Authenticator
	scope string
}

// identifier is implemented by authenticators that can name their
// credential set; the name scopes cache entries.
type identifier interface {
	Fingerprint() string
}

func identityOf(a Authenticator) string {
	if id, ok := a.(identifier); ok {
		return id.Fingerprint()
	}
	return "anonymous"
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	Client       *http.Client
	BaseURL      string
	ServiceName  string
	UserAgent    string
	MaxRetries   int
	RetryWait    time.Duration
	MaxRetryWait time.Duration

	// RateLimit is the sustained request rate per second. Zero disables
	// client-side limiting.
	RateLimit float64
	Burst     int

	Auth   Authenticator
	Cache  *cache.Cache
	Logger *slog.Logger
	Tracer trace.Tracer
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		client:       cfg.Client,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceName:  cfg.ServiceName,
		userAgent:    cfg.UserAgent,
		maxRetries:   cfg.MaxRetries,
		retryWait:    cfg.RetryWait,
		maxRetryWait: cfg.MaxRetryWait,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		tracer:       cfg.Tracer,
		auth:         cfg.Auth,
	}
	c.scope = cache.Scope(c.baseURL, identityOf(cfg.Auth))

	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	if c.serviceName == "" {
		c.serviceName = "tracker"
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	if c.maxRetryWait <= 0 {
		c.maxRetryWait = DefaultMaxRetryWait
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	c.limiter = rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c
}

// BaseURL returns the tracker base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cache returns the response cache, which may be nil.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// SetAuth swaps the authenticator used for subsequent requests. Cached
// entries of the previous identity stay in the cache but are no longer
// visible to this client.
func (c *Client) SetAuth(a Authenticator) {
	c.mu.Lock()
	c.auth = a
	c.scope = cache.Scope(c.baseURL, identityOf(a))
	c.mu.Unlock()
}

func (c *Client) cacheScope() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scope
}

// InvalidateCache drops this client's cached entries under the path prefix
// and returns how many were removed. An empty prefix drops every entry of
// the current server and identity.
func (c *Client) InvalidateCache(prefix string) int {
	return c.cache.Invalidate(c.cacheScope() + prefix)
}

func (c *Client) authenticator() Authenticator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// Response is a completed call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string

	// Cached is true when the body came from the response cache.
	Cached bool
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

type requestOptions struct {
	ttl       time.Duration
	tier      cache.Tier
	tierSet   bool
	skipCache bool
	cacheRead bool
	anonymous bool
	headers   map[string]string
}

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

// WithTTL caches a successful read for d.
func WithTTL(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.ttl = d
	}
}

// WithTier caches a successful read for the tier's configured TTL.
func WithTier(t cache.Tier) RequestOption {
	return func(o *requestOptions) {
		o.tier = t
		o.tierSet = true
	}
}

// SkipCache bypasses the cache for both lookup and store.
func SkipCache() RequestOption {
	return func(o *requestOptions) {
		o.skipCache = true
	}
}

// CacheRead marks a POST as a read whose response may be cached, as
// used by search endpoints that take a JSON body.
func CacheRead() RequestOption {
	return func(o *requestOptions) {
		o.cacheRead = true
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[key] = value
	}
}

// Anonymous sends the request without credentials.
func Anonymous() RequestOption {
	return func(o *requestOptions) {
		o.anonymous = true
	}
}

// Execute performs a call and returns the response. Non-2xx statuses are
// returned as *HTTPError.
func (c *Client) Execute(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	cacheable := c.cache != nil && !o.skipCache &&
		(method == http.MethodGet || method == http.MethodHead || (method == http.MethodPost && o.cacheRead))
	key := cache.Key(method, c.cacheScope()+path, payload)

	if cacheable {
		if data, ok := c.cache.Get(key); ok {
			c.logger.Debug("cache hit", "service", c.serviceName, "method", method, "path", path, "cached", true)
			return &Response{StatusCode: http.StatusOK, Body: data, Cached: true}, nil
		}
	}

	resp, err := c.do(ctx, method, path, payload, o)
	if err != nil {
		return nil, err
	}

	if cacheable && json.Valid(resp.Body) {
		ttl := o.ttl
		if ttl <= 0 {
			tier := cache.TierShort
			if o.tierSet {
				tier = o.tier
			}
			ttl = c.cache.TTL(tier)
		}
		c.cache.Set(key, resp.Body, ttl)
	}

	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, o requestOptions) (*Response, error) {
	requestID, err := nanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate request id: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, c.serviceName+" "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("trackerkit.request_id", requestID),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.send(ctx, method, path, payload, requestID, o)
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	} else if sc := StatusCode(err); sc != 0 {
		status = strconv.Itoa(sc)
	}
	requestsTotal.WithLabelValues(c.serviceName, method, status).Inc()
	requestDuration.WithLabelValues(c.serviceName, method).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug("request failed",
			"service", c.serviceName,
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("request complete",
		"service", c.serviceName,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	return resp, nil
}

// send runs the attempt loop with retries for transient failures.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, requestID string, o requestOptions) (*Response, error) {
	url := c.baseURL + path
	idempotent := isIdempotent(method)

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		req.Header.Set("X-Request-Id", requestID)
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		if a := c.authenticator(); a != nil && !o.anonymous {
			if err := a.Apply(req); err != nil {
				return nil, fmt.Errorf("%s auth: %w", c.serviceName, err)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			lastErr = &NetworkError{Service: c.serviceName, Method: method, Endpoint: path, Err: err}
			if idempotent && attempt < c.maxRetries-1 {
				if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, lastErr
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			lastErr = &NetworkError{Service: c.serviceName, Method: method, Endpoint: path, Err: readErr}
			if idempotent && attempt < c.maxRetries-1 {
				if werr := c.wait(ctx, c.backoff(attempt)); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode >= 400 {
			httpErr := c.parseError(resp, data, method, path, requestID)
			lastErr = httpErr
			retry := resp.StatusCode == http.StatusTooManyRequests ||
				(idempotent && resp.StatusCode >= 500)
			if retry && attempt < c.maxRetries-1 {
				wait := c.backoff(attempt)
				if httpErr.RetryAfter > 0 {
					wait = min(httpErr.RetryAfter, c.maxRetryWait)
				}
				c.logger.Debug("retrying request",
					"service", c.serviceName,
					"method", method,
					"path", path,
					"status", resp.StatusCode,
					"attempt", attempt+1,
					"wait", wait,
				)
				if werr := c.wait(ctx, wait); werr != nil {
					return nil, werr
				}
				continue
			}
			return nil, httpErr
		}

		if len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) && method != http.MethodHead {
			return nil, &DecodeError{
				Service:  c.serviceName,
				Endpoint: path,
				Err:      errors.New("response body is not valid JSON"),
			}
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
			RequestID:  requestID,
		}, nil
	}

	return nil, lastErr
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-t.C:
		return nil
	}
}

// backoff returns the exponential wait for an attempt, capped.
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.retryWait * time.Duration(1<<attempt)
	if wait <= 0 || wait > c.maxRetryWait {
		return c.maxRetryWait
	}
	return wait
}

// Get performs a GET request and decodes the response into result.
func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodGet, path, nil, result, opts)
}

// Post performs a POST request and decodes the response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPost, path, body, result, opts)
}

// Put performs a PUT request and decodes the response into result.
func (c *Client) Put(ctx context.Context, path string, body, result any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPut, path, body, result, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil, opts)
}

// GetRaw performs a GET request and returns the raw response body.
func (c *Client) GetRaw(ctx context.Context, path string, opts ...RequestOption) ([]byte, error) {
	resp, err := c.Execute(ctx, http.MethodGet, path, nil, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, result any, opts []RequestOption) error {
	resp, err := c.Execute(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if err := resp.Decode(result); err != nil {
		return &DecodeError{Service: c.serviceName, Endpoint: path, Err: err}
	}
	return nil
}

// parseError builds an HTTPError from an error response.
func (c *Client) parseError(resp *http.Response, body []byte, method, path, requestID string) *HTTPError {
	httpErr := &HTTPError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Method:     method,
		Endpoint:   path,
		RequestID:  requestID,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
	if len(body) > maxErrorBody {
		httpErr.Body = body[:maxErrorBody]
	} else {
		httpErr.Body = body
	}

	// Jira returns {"errorMessages": [...], "errors": {field: msg}};
	// gateways and other services use message/error.
	var errResp struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
		Error         string            `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		httpErr.Messages = errResp.ErrorMessages
		httpErr.FieldErrors = errResp.Errors
		if len(httpErr.Messages) == 0 {
			switch {
			case errResp.Message != "":
				httpErr.Messages = []string{errResp.Message}
			case errResp.Error != "":
				httpErr.Messages = []string{errResp.Error}
			}
		}
	}

	return httpErr
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func statusText(code int) string {
	return http.StatusText(code)
}

package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/cache"
	"github.com/randalmurphal/trackerkit/capability"
	"github.com/randalmurphal/trackerkit/document"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
	"github.com/randalmurphal/trackerkit/schema"
)

const serviceName = "jira"

// agileProbePath is the cheapest call that only succeeds when Jira
// Software is installed and licensed.
const agileProbePath = "/rest/agile/1.0/board?maxResults=1"

// Client provides access to the Jira REST API. It is safe for concurrent
// use; the only state shared between calls is the response cache, the
// memoized capabilities and the detected deployment.
type Client struct {
	http   *trackerhttp.Client
	cache  *cache.Cache
	shapes *schema.Validator
	probe  *capability.Prober
	logger *slog.Logger

	httpClient *http.Client
	basePath   string

	mu             sync.RWMutex
	cfg            *Config
	apiVersion     APIVersion
	deploymentType DeploymentType
	serverInfo     *ServerInfo
	norm           *Normalizer

	// issueKeys maps issue ids to keys for every issue read so far.
	issueKeys sync.Map
}

type clientOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	cache      *cache.Cache
	clock      func() time.Time
}

// Option configures the client.
type Option func(*clientOptions)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *clientOptions) {
		o.tracer = tracer
	}
}

// WithCache shares a response cache between clients. Entries are scoped
// by server URL and credentials, so clients only see their own responses.
// By default each client owns a cache built from Config.Cache.
func WithCache(c *cache.Cache) Option {
	return func(o *clientOptions) {
		o.cache = c
	}
}

// WithClock overrides the clock of the client-owned cache.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.clock = now
	}
}

// New creates a new Jira client.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigURLRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout: cfg.HTTP.Timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    cfg.HTTP.MaxIdleConns,
				IdleConnTimeout: cfg.HTTP.IdleConnTimeout,
			},
		}
	}
	if o.cache == nil {
		cacheOpts := []cache.Option{cache.WithTTLs(cfg.Cache)}
		if o.clock != nil {
			cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
		}
		o.cache = cache.New(cacheOpts...)
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigURLInvalid, err)
	}

	c := &Client{
		cache:      o.cache,
		shapes:     newShapeValidator(),
		probe:      capability.NewProber(o.logger),
		logger:     o.logger,
		httpClient: o.httpClient,
		basePath:   u.Path,
		cfg:        cfg,
		apiVersion: cfg.GetAPIVersion(),
	}

	authCtx, err := c.newAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}

	c.http = trackerhttp.NewClient(trackerhttp.ClientConfig{
		Client:       o.httpClient,
		BaseURL:      baseURL,
		ServiceName:  serviceName,
		UserAgent:    cfg.HTTP.UserAgent,
		MaxRetries:   cfg.RateLimit.MaxRetries,
		RetryWait:    cfg.RateLimit.RetryWaitMin,
		MaxRetryWait: cfg.RateLimit.RetryWaitMax,
		RateLimit:    cfg.RateLimit.RequestsPerSecond,
		Burst:        cfg.RateLimit.Burst,
		Auth:         authCtx,
		Cache:        o.cache,
		Logger:       o.logger,
		Tracer:       o.tracer,
	})
	c.norm = NewNormalizer(baseURL, c.apiVersion, o.logger)
	c.probe.Register(capability.Agile, capability.GetCheck(c.http, agileProbePath))

	return c, nil
}

func (c *Client) newAuth(creds auth.Credentials) (*auth.Context, error) {
	return auth.New(creds,
		auth.WithHTTPClient(c.httpClient),
		auth.WithBasePath(c.basePath),
	)
}

// Reload swaps the credentials. Cached responses and memoized capabilities
// belong to the previous identity and are discarded.
func (c *Client) Reload(creds auth.Credentials) error {
	authCtx, err := c.newAuth(creds)
	if err != nil {
		return err
	}
	c.http.InvalidateCache("")
	c.http.SetAuth(authCtx)

	c.mu.Lock()
	c.cfg.Auth = creds
	c.mu.Unlock()

	c.probe.Reset()
	c.logger.Debug("jira credentials reloaded", "scheme", string(creds.Scheme))
	return nil
}

// DetectDeployment detects the Jira deployment type by calling serverInfo.
func (c *Client) DetectDeployment(ctx context.Context) (DeploymentType, error) {
	info, err := c.serverInfoRaw(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverInfo = info
	c.deploymentType = DeploymentType(info.DeploymentType)
	if c.deploymentType == "" {
		c.deploymentType = DeploymentServer
	}

	// Update API version if auto-detected
	if c.cfg.APIVersion == "" || c.cfg.APIVersion == APIVersionAuto {
		if c.deploymentType == DeploymentCloud {
			c.apiVersion = APIVersionV3
		} else {
			c.apiVersion = APIVersionV2
		}
		c.norm = NewNormalizer(c.http.BaseURL(), c.apiVersion, c.logger)
	}

	c.logger.Info("jira deployment detected",
		"deployment", string(c.deploymentType),
		"version", info.Version,
		"api_version", string(c.apiVersion),
	)
	return c.deploymentType, nil
}

// GetServerInfo fetches server information. The call is anonymous and
// tries v3 before v2.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	return c.serverInfoRaw(ctx)
}

func (c *Client) serverInfoRaw(ctx context.Context) (*ServerInfo, error) {
	var lastErr error
	for _, version := range []string{"3", "2"} {
		var info ServerInfo
		path := "/rest/api/" + version + "/serverInfo"
		err := c.fetch(ctx, http.MethodGet, path, nil, shapeServerInfo, &info,
			trackerhttp.Anonymous(), trackerhttp.WithTier(cache.TierVeryLong))
		if err == nil {
			return &info, nil
		}
		if trackerhttp.IsCancelled(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("get server info from %s: %w", c.http.BaseURL(), lastErr)
}

// Capabilities returns the memoized optional-subsystem probes.
func (c *Client) Capabilities() map[string]capability.Status {
	return c.probe.Snapshot()
}

// Cache returns the response cache.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// IsCloud returns true if connected to Jira Cloud.
func (c *Client) IsCloud() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deploymentType == DeploymentCloud
}

// APIVersionInUse returns the API version being used.
func (c *Client) APIVersionInUse() APIVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion
}

// DeploymentTypeDetected returns the detected deployment type.
func (c *Client) DeploymentTypeDetected() DeploymentType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deploymentType
}

// ServerInfoCached returns the server info from the last detection, if any.
func (c *Client) ServerInfoCached() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func (c *Client) normalizer() *Normalizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.norm
}

// apiPath returns the full API path for the given endpoint.
func (c *Client) apiPath(endpoint string) string {
	return apiPathFor(c.APIVersionInUse(), endpoint)
}

func apiPathFor(version APIVersion, endpoint string) string {
	if version == APIVersionAuto || version == "" {
		version = APIVersionV3
	}
	return "/rest/api/" + strings.TrimPrefix(string(version), "v") + endpoint
}

// fetch executes a call, validates the body against shape and decodes it
// into out. A body that fails validation is evicted from the cache.
func (c *Client) fetch(ctx context.Context, method, path string, body any, shape string, out any, opts ...trackerhttp.RequestOption) error {
	if issueIDPath.MatchString(path) {
		opts = append(opts, trackerhttp.SkipCache())
	}
	resp, err := c.http.Execute(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := c.shapes.Validate(shape, resp.Body); err != nil {
		c.http.InvalidateCache(path)
		c.logger.Warn("unexpected response shape",
			"method", method,
			"path", path,
			"request_id", resp.RequestID,
			"error", err,
		)
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &trackerhttp.DecodeError{Service: serviceName, Endpoint: path, Err: err}
	}
	return nil
}

// send executes a write. Writes are never cached.
func (c *Client) send(ctx context.Context, method, path string, body any) (*trackerhttp.Response, error) {
	return c.http.Execute(ctx, method, path, body, trackerhttp.SkipCache())
}

// issueIDPath matches issue resources addressed by numeric id. Reads
// through them bypass the cache, so every cached issue entry is keyed by
// issue key.
var issueIDPath = regexp.MustCompile(`/issue/\d+(?:[/?]|$)`)

// rememberIssue records the id of a key seen in a response.
func (c *Client) rememberIssue(id, key string) {
	if id != "" && key != "" {
		c.issueKeys.Store(id, key)
	}
}

// invalidateIssues drops cached reads for the given issue keys or ids and
// every cached search, under both API versions. An id whose key was never
// seen drops every cached issue read.
func (c *Client) invalidateIssues(refs ...string) {
	dropped := 0
	for _, v := range []APIVersion{APIVersionV2, APIVersionV3} {
		for _, ref := range refs {
			if ref == "" {
				continue
			}
			key := ref
			if !ValidateIssueKey(ref) {
				known, ok := c.issueKeys.Load(ref)
				if !ok {
					dropped += c.http.InvalidateCache(apiPathFor(v, "/issue"))
					continue
				}
				key = known.(string)
			}
			dropped += c.http.InvalidateCache(apiPathFor(v, "/issue/"+key))
		}
		dropped += c.http.InvalidateCache(apiPathFor(v, "/search"))
	}
	c.logger.Debug("cache invalidated", "issues", refs, "entries", dropped)
}

// encodeRichText renders a document for the wire: ADF on v3, wiki markup
// on v2.
func (c *Client) encodeRichText(n document.Node) (any, error) {
	if c.APIVersionInUse() == APIVersionV2 {
		return document.ToWiki(n), nil
	}
	return document.Serialize(n)
}

// userRef addresses a user for the active API version.
func (c *Client) userRef(id string) map[string]any {
	if c.APIVersionInUse() == APIVersionV2 {
		return map[string]any{"name": id}
	}
	return map[string]any{"accountId": id}
}

// pageConfig builds a paginator config. limit narrows the configured item
// ceiling when positive; it can never raise or disable it.
func (c *Client) pageConfig(name string, style trackerhttp.Style, limit int) trackerhttp.PaginatorConfig {
	c.mu.RLock()
	p := c.cfg.Pagination
	c.mu.RUnlock()

	ceiling := p.ItemCeiling
	if ceiling == 0 {
		ceiling = trackerhttp.DefaultItemCeiling
	}
	if limit > 0 && (ceiling < 0 || limit < ceiling) {
		ceiling = limit
	}
	size := p.PageSize
	if size <= 0 {
		size = trackerhttp.DefaultPageSize
	}
	if ceiling > 0 && ceiling < size {
		size = ceiling
	}
	return trackerhttp.PaginatorConfig{
		Style:    style,
		PageSize: size,
		Ceiling:  ceiling,
		Name:     name,
		Logger:   c.logger,
	}
}

func offsetQuery(req trackerhttp.PageRequest) string {
	return fmt.Sprintf("startAt=%d&maxResults=%d", req.StartAt, req.MaxResults)
}

// validIssueRef accepts an issue key (PROJ-123) or a numeric issue id.
func validIssueRef(ref string) bool {
	if ValidateIssueKey(ref) {
		return true
	}
	if ref == "" {
		return false
	}
	for _, r := range ref {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func checkIssueRef(ref string) error {
	if ref == "" {
		return ErrIssueKeyRequired
	}
	if !validIssueRef(ref) {
		return fmt.Errorf("%w: %q", ErrIssueKeyInvalid, ref)
	}
	return nil
}

// Context key type for storing Jira client in context.
type jiraClientKey struct{}

// ClientFromContext extracts a Jira Client from a context.
// Returns nil if no Client is present.
func ClientFromContext(ctx context.Context) *Client {
	if c, ok := ctx.Value(jiraClientKey{}).(*Client); ok {
		return c
	}
	return nil
}

// ContextWithClient adds a Jira Client to a context.
func ContextWithClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, jiraClientKey{}, c)
}

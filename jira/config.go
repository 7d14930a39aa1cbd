package jira

import (
	"net/url"
	"time"

	"github.com/randalmurphal/trackerkit/auth"
	"github.com/randalmurphal/trackerkit/cache"
	trackerhttp "github.com/randalmurphal/trackerkit/http"
)

// Config holds the configuration for the Jira client.
type Config struct {
	// URL is the base URL of the Jira instance.
	// For Cloud: https://your-domain.atlassian.net
	// For Server: https://jira.your-company.com
	URL string `yaml:"url"`

	// APIVersion specifies which API version to use.
	// "auto" (default) detects based on deployment type.
	// "v3" for Cloud, "v2" for Server/DC.
	APIVersion APIVersion `yaml:"api_version"`

	// Auth holds the credentials. Secrets normally come from the caller's
	// secret store rather than the config file.
	Auth auth.Credentials `yaml:"auth"`

	// HTTP contains HTTP client configuration.
	HTTP HTTPConfig `yaml:"http"`

	// RateLimit contains rate limiting and retry configuration.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Cache sets the TTL of each cache tier. Zero fields use the defaults.
	Cache cache.TTLs `yaml:"cache"`

	// Pagination bounds listing calls.
	Pagination PaginationConfig `yaml:"pagination"`
}

// HTTPConfig holds HTTP client configuration.
type HTTPConfig struct {
	// Timeout is the per-request timeout. It applies to each call
	// separately; a paginated listing has no overall budget.
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long to keep idle connections open.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// MaxRetries is the maximum number of attempts per call.
	MaxRetries int `yaml:"max_retries"`

	// RetryWaitMin is the initial wait between retries.
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`

	// RetryWaitMax caps the backoff and any server Retry-After.
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`

	// RequestsPerSecond is the sustained client-side request rate.
	// Zero disables client-side limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the limiter burst size.
	Burst int `yaml:"burst"`
}

// PaginationConfig bounds listing calls.
type PaginationConfig struct {
	// PageSize is the maxResults sent with each page request.
	PageSize int `yaml:"page_size"`

	// ItemCeiling stops a listing after this many items. Negative
	// disables the ceiling.
	ItemCeiling int `yaml:"item_ceiling"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIVersion: APIVersionAuto,
		HTTP: HTTPConfig{
			Timeout:         trackerhttp.DefaultTimeout,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
			UserAgent:       "trackerkit",
		},
		RateLimit: RateLimitConfig{
			MaxRetries:        trackerhttp.DefaultMaxRetries,
			RetryWaitMin:      trackerhttp.DefaultRetryWait,
			RetryWaitMax:      trackerhttp.DefaultMaxRetryWait,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Cache: cache.TTLs{
			Short:    cache.DefaultShortTTL,
			Medium:   cache.DefaultMediumTTL,
			Long:     cache.DefaultLongTTL,
			VeryLong: cache.DefaultVeryLongTTL,
		},
		Pagination: PaginationConfig{
			PageSize:    trackerhttp.DefaultPageSize,
			ItemCeiling: trackerhttp.DefaultItemCeiling,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrConfigURLRequired
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigURLInvalid
	}

	if err := c.Auth.Validate(); err != nil {
		return err
	}

	if c.APIVersion != "" && c.APIVersion != APIVersionAuto &&
		c.APIVersion != APIVersionV2 && c.APIVersion != APIVersionV3 {
		return ErrConfigAPIVersionInvalid
	}

	if c.HTTP.Timeout < 0 || c.RateLimit.RetryWaitMin < 0 || c.RateLimit.RetryWaitMax < 0 {
		return ErrConfigNegativeDuration
	}
	if c.Pagination.PageSize < 0 || c.Pagination.PageSize > maxPageSize {
		return ErrConfigPageSize
	}

	return nil
}

// GetAPIVersion returns the effective API version.
// If APIVersion is "auto" or empty, returns v3 until detection says otherwise.
func (c *Config) GetAPIVersion() APIVersion {
	if c.APIVersion == "" || c.APIVersion == APIVersionAuto {
		return APIVersionV3
	}
	return c.APIVersion
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// maxPageSize is the largest maxResults Jira honours.
const maxPageSize = 100

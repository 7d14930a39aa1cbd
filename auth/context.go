package auth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/oauth2"
)

// Context produces the Authorization header for a fixed credential set.
// It is safe for concurrent use.
type Context struct {
	creds    Credentials
	source   oauth2.TokenSource
	basePath string
	jwtTTL   time.Duration
	now      func() time.Time
}

// Option configures a Context.
type Option func(*contextOptions)

type contextOptions struct {
	basePath   string
	httpClient *http.Client
	jwtTTL     time.Duration
	now        func() time.Time
}

// WithBasePath sets the path prefix of the tracker base URL. JWT query
// hashes are computed over the request path relative to this prefix.
func WithBasePath(p string) Option {
	return func(o *contextOptions) {
		o.basePath = strings.TrimSuffix(p, "/")
	}
}

// WithHTTPClient sets the HTTP client used for OAuth2 token refreshes.
func WithHTTPClient(c *http.Client) Option {
	return func(o *contextOptions) {
		o.httpClient = c
	}
}

// WithJWTLifetime sets how long per-request JWTs are valid.
func WithJWTLifetime(d time.Duration) Option {
	return func(o *contextOptions) {
		o.jwtTTL = d
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *contextOptions) {
		o.now = now
	}
}

// New validates creds and builds a Context for them.
func New(creds Credentials, opts ...Option) (*Context, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	o := contextOptions{jwtTTL: DefaultJWTLifetime, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Context{
		creds:    creds,
		basePath: o.basePath,
		jwtTTL:   o.jwtTTL,
		now:      o.now,
	}

	if creds.Scheme == SchemeOAuth2 {
		c.source = newOAuth2Source(creds, o.httpClient)
	}

	return c, nil
}

// Scheme returns the configured scheme.
func (c *Context) Scheme() Scheme {
	return c.creds.Scheme
}

// Anonymous reports whether requests go out without credentials.
func (c *Context) Anonymous() bool {
	return c == nil || c.creds.Scheme == SchemeNone
}

// Fingerprint identifies the credential set without revealing it. Two
// contexts share a fingerprint only when every credential field matches.
func (c *Context) Fingerprint() string {
	if c.Anonymous() {
		return "anonymous"
	}
	cr := c.creds
	h, _ := blake2b.New(16, nil)
	for _, f := range []string{
		string(cr.Scheme), cr.Email, cr.Username, cr.Password, cr.Token,
		cr.ClientID, cr.ClientSecret, cr.TokenURL, cr.AccessToken, cr.RefreshToken,
		cr.Issuer, cr.SharedSecret,
	} {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Apply sets the Authorization header on req.
func (c *Context) Apply(req *http.Request) error {
	if c.Anonymous() {
		return nil
	}

	switch c.creds.Scheme {
	case SchemeAPIToken:
		req.Header.Set("Authorization", basicHeader(c.creds.Email, c.creds.Token))

	case SchemeBasic:
		req.Header.Set("Authorization", basicHeader(c.creds.Username, c.creds.Password))

	case SchemePAT, SchemeBearer:
		req.Header.Set("Authorization", "Bearer "+c.creds.Token)

	case SchemeOAuth2:
		tok, err := c.source.Token()
		if err != nil {
			return fmt.Errorf("oauth2 token: %w", err)
		}
		tok.SetAuthHeader(req)

	case SchemeJWT:
		token, err := c.connectToken(req)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "JWT "+token)
	}

	return nil
}

func (c *Context) connectToken(req *http.Request) (string, error) {
	path := strings.TrimPrefix(req.URL.Path, c.basePath)
	qsh := QueryStringHash(req.Method, path, req.URL.Query())
	return SignConnectToken(ConnectConfig{
		Issuer:       c.creds.Issuer,
		SharedSecret: []byte(c.creds.SharedSecret),
		Lifetime:     c.jwtTTL,
		Now:          c.now,
	}, qsh)
}

func basicHeader(user, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+secret))
}

// newOAuth2Source returns a token source that refreshes through the
// configured token endpoint when a refresh token is present.
func newOAuth2Source(creds Credentials, hc *http.Client) oauth2.TokenSource {
	tok := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       creds.Expiry,
	}

	if creds.RefreshToken == "" || creds.TokenURL == "" {
		return oauth2.StaticTokenSource(tok)
	}

	ctx := context.Background()
	if hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
	}

	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  creds.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok))
}

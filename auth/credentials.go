package auth

import "time"

// Scheme identifies how requests are authenticated.
type Scheme string

// Authentication schemes supported by the tracker client.
const (
	SchemeNone     Scheme = "none"
	SchemeBasic    Scheme = "basic"     // Server: username + password
	SchemeAPIToken Scheme = "api_token" // Cloud: email + API token
	SchemePAT      Scheme = "pat"       // Server/DC: personal access token
	SchemeBearer   Scheme = "bearer"    // Any pre-issued bearer token
	SchemeOAuth2   Scheme = "oauth2"    // Cloud: OAuth 2.0 (3LO)
	SchemeJWT      Scheme = "jwt"       // Connect apps: shared-secret JWT
)

// Credentials holds the values needed by a Scheme. Secret fields are
// supplied by the caller's secret store and are never logged.
type Credentials struct {
	Scheme Scheme `yaml:"type"`

	// Email is required for api_token auth.
	Email string `yaml:"email,omitempty"`

	// Username and Password are required for basic auth.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Token is the API token (api_token), PAT (pat) or raw bearer token.
	Token string `yaml:"token,omitempty"`

	// OAuth2 configuration.
	ClientID     string    `yaml:"client_id,omitempty"`
	ClientSecret string    `yaml:"client_secret,omitempty"`
	TokenURL     string    `yaml:"token_url,omitempty"`
	AccessToken  string    `yaml:"access_token,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	Expiry       time.Time `yaml:"expiry,omitempty"`

	// Issuer (the app key) and SharedSecret sign jwt auth tokens.
	Issuer       string `yaml:"issuer,omitempty"`
	SharedSecret string `yaml:"shared_secret,omitempty"`
}

// Validate reports the first missing value for the configured scheme.
func (c Credentials) Validate() error {
	switch c.Scheme {
	case "":
		return ErrSchemeRequired
	case SchemeNone:
		return nil
	case SchemeBasic:
		if c.Username == "" || c.Password == "" {
			return ErrBasicAuth
		}
	case SchemeAPIToken:
		if c.Email == "" || c.Token == "" {
			return ErrAPITokenAuth
		}
	case SchemePAT:
		if c.Token == "" {
			return ErrPATAuth
		}
	case SchemeBearer:
		if c.Token == "" {
			return ErrBearerAuth
		}
	case SchemeOAuth2:
		if c.AccessToken != "" {
			return nil
		}
		if c.RefreshToken == "" || c.ClientID == "" || c.TokenURL == "" {
			return ErrOAuth2Auth
		}
	case SchemeJWT:
		if c.Issuer == "" || c.SharedSecret == "" {
			return ErrJWTAuth
		}
		if len(c.SharedSecret) < 32 {
			return ErrSecretTooShort
		}
	default:
		return ErrSchemeInvalid
	}
	return nil
}

// Redacted returns a copy with every secret replaced, for logging.
func (c Credentials) Redacted() Credentials {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	c.Password = mask(c.Password)
	c.Token = mask(c.Token)
	c.ClientSecret = mask(c.ClientSecret)
	c.AccessToken = mask(c.AccessToken)
	c.RefreshToken = mask(c.RefreshToken)
	c.SharedSecret = mask(c.SharedSecret)
	return c
}

package auth

import "errors"

// Credential errors.
var (
	ErrSchemeRequired = errors.New("auth scheme is required")
	ErrSchemeInvalid  = errors.New("auth scheme must be none, basic, api_token, pat, bearer, oauth2, or jwt")
	ErrBasicAuth      = errors.New("basic auth requires username and password")
	ErrAPITokenAuth   = errors.New("api_token auth requires email and token")
	ErrPATAuth        = errors.New("pat auth requires token")
	ErrBearerAuth     = errors.New("bearer auth requires token")
	ErrOAuth2Auth     = errors.New("oauth2 auth requires an access token or a refresh token with client_id and token_url")
	ErrJWTAuth        = errors.New("jwt auth requires issuer and shared_secret")
)

// Token errors.
var (
	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrSecretTooShort indicates the JWT shared secret is too short.
	ErrSecretTooShort = errors.New("JWT shared secret must be at least 32 bytes")

	// ErrQueryHashMismatch indicates a JWT was issued for a different request.
	ErrQueryHashMismatch = errors.New("JWT query hash does not match request")
)

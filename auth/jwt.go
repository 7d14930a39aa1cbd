package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultJWTLifetime is how long a per-request Connect token stays valid.
const DefaultJWTLifetime = 3 * time.Minute

// ConnectConfig holds the signing parameters for Connect JWTs.
type ConnectConfig struct {
	// Issuer is the app key registered with the tracker.
	Issuer string

	// SharedSecret is the HMAC signing key (must be at least 32 bytes).
	SharedSecret []byte

	// Lifetime defaults to DefaultJWTLifetime if zero.
	Lifetime time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c ConnectConfig) lifetime() time.Duration {
	if c.Lifetime == 0 {
		return DefaultJWTLifetime
	}
	return c.Lifetime
}

func (c ConnectConfig) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// ConnectClaims are the claims carried by a Connect request token.
type ConnectClaims struct {
	jwt.RegisteredClaims
	QSH string `json:"qsh"`
}

// SignConnectToken issues an HS256 token bound to one request via qsh.
func SignConnectToken(cfg ConnectConfig, qsh string) (string, error) {
	if len(cfg.SharedSecret) < 32 {
		return "", ErrSecretTooShort
	}

	tokenID, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate token ID: %w", err)
	}

	now := cfg.now()
	claims := ConnectClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.lifetime())),
			ID:        tokenID,
		},
		QSH: qsh,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.SharedSecret)
}

// VerifyConnectToken validates a token's signature, expiry and issuer.
// An empty Issuer in cfg accepts any issuer.
func VerifyConnectToken(cfg ConnectConfig, tokenString string) (*ConnectClaims, error) {
	claims := &ConnectClaims{}
	parserOpts := []jwt.ParserOption{jwt.WithTimeFunc(cfg.now)}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return cfg.SharedSecret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyRequest checks an incoming request signed with a Connect JWT, for
// example a webhook delivered to a Connect app. basePath is stripped from
// the request path before the query hash is recomputed.
func VerifyRequest(cfg ConnectConfig, req *http.Request, basePath string) (*ConnectClaims, error) {
	tokenString := strings.TrimPrefix(req.Header.Get("Authorization"), "JWT ")
	if tokenString == "" {
		tokenString = req.URL.Query().Get("jwt")
	}
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims, err := VerifyConnectToken(cfg, tokenString)
	if err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(req.URL.Path, strings.TrimSuffix(basePath, "/"))
	if claims.QSH != QueryStringHash(req.Method, path, req.URL.Query()) {
		return nil, ErrQueryHashMismatch
	}

	return claims, nil
}

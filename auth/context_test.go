package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
	}{
		{"missing scheme", Credentials{}, ErrSchemeRequired},
		{"unknown scheme", Credentials{Scheme: "kerberos"}, ErrSchemeInvalid},
		{"anonymous", Credentials{Scheme: SchemeNone}, nil},
		{"api token ok", Credentials{Scheme: SchemeAPIToken, Email: "a@b.c", Token: "t"}, nil},
		{"api token missing email", Credentials{Scheme: SchemeAPIToken, Token: "t"}, ErrAPITokenAuth},
		{"basic missing password", Credentials{Scheme: SchemeBasic, Username: "u"}, ErrBasicAuth},
		{"pat missing token", Credentials{Scheme: SchemePAT}, ErrPATAuth},
		{"bearer missing token", Credentials{Scheme: SchemeBearer}, ErrBearerAuth},
		{"oauth2 access token", Credentials{Scheme: SchemeOAuth2, AccessToken: "a"}, nil},
		{"oauth2 refresh incomplete", Credentials{Scheme: SchemeOAuth2, RefreshToken: "r"}, ErrOAuth2Auth},
		{"jwt short secret", Credentials{Scheme: SchemeJWT, Issuer: "app", SharedSecret: "short"}, ErrSecretTooShort},
		{"jwt ok", Credentials{Scheme: SchemeJWT, Issuer: "app", SharedSecret: string(testSecret)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestContextApply(t *testing.T) {
	basic := func(user, secret string) string {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+secret))
	}

	tests := []struct {
		name  string
		creds Credentials
		want  string
	}{
		{"api token", Credentials{Scheme: SchemeAPIToken, Email: "me@example.com", Token: "tok"}, basic("me@example.com", "tok")},
		{"basic", Credentials{Scheme: SchemeBasic, Username: "admin", Password: "pw"}, basic("admin", "pw")},
		{"pat", Credentials{Scheme: SchemePAT, Token: "pat-1"}, "Bearer pat-1"},
		{"bearer", Credentials{Scheme: SchemeBearer, Token: "raw"}, "Bearer raw"},
		{"oauth2 static", Credentials{Scheme: SchemeOAuth2, AccessToken: "access"}, "Bearer access"},
		{"anonymous", Credentials{Scheme: SchemeNone}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.creds)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			req := httptest.NewRequest(http.MethodGet, "https://example.atlassian.net/rest/api/3/myself", nil)
			if err := c.Apply(req); err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got := req.Header.Get("Authorization"); got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContextApplyJWT(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	c, err := New(Credentials{
		Scheme:       SchemeJWT,
		Issuer:       "com.example.app",
		SharedSecret: string(testSecret),
	}, WithBasePath("/jira/"), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "https://example.com/jira/rest/api/2/issue/AB-1?expand=names", nil)
	if err := c.Apply(req); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "JWT ") {
		t.Fatalf("Authorization = %q, want JWT prefix", header)
	}

	claims, err := VerifyConnectToken(ConnectConfig{
		SharedSecret: testSecret,
		Now:          func() time.Time { return fixed },
	}, strings.TrimPrefix(header, "JWT "))
	if err != nil {
		t.Fatalf("VerifyConnectToken() error = %v", err)
	}

	want := QueryStringHash(http.MethodGet, "/rest/api/2/issue/AB-1", req.URL.Query())
	if claims.QSH != want {
		t.Errorf("QSH = %q, want %q", claims.QSH, want)
	}
}

func TestContextApplyOAuth2Refresh(t *testing.T) {
	var calls int
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	c, err := New(Credentials{
		Scheme:       SchemeOAuth2,
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
		RefreshToken: "refresh",
	}, WithHTTPClient(tokenServer.Client()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "https://api.atlassian.com/ex/jira/x/rest/api/3/myself", nil)
		if err := c.Apply(req); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer fresh" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer fresh")
		}
	}

	if calls != 1 {
		t.Errorf("token endpoint calls = %d, want 1", calls)
	}
}

func TestCredentialsRedacted(t *testing.T) {
	c := Credentials{Scheme: SchemeAPIToken, Email: "me@example.com", Token: "secret"}
	r := c.Redacted()
	if r.Token != "***" {
		t.Errorf("Token = %q, want masked", r.Token)
	}
	if r.Email != "me@example.com" {
		t.Errorf("Email = %q, want unchanged", r.Email)
	}
	if c.Token != "secret" {
		t.Error("Redacted() mutated the receiver")
	}
}

func TestContextFingerprint(t *testing.T) {
	mustNew := func(creds Credentials) *Context {
		t.Helper()
		c, err := New(creds)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	a := mustNew(Credentials{Scheme: SchemeBearer, Token: "one"})
	b := mustNew(Credentials{Scheme: SchemeBearer, Token: "one"})
	other := mustNew(Credentials{Scheme: SchemeBearer, Token: "two"})
	pat := mustNew(Credentials{Scheme: SchemePAT, Token: "one"})

	if a.Fingerprint() != b.Fingerprint() {
		t.Errorf("equal credentials: %q != %q", a.Fingerprint(), b.Fingerprint())
	}
	if a.Fingerprint() == other.Fingerprint() {
		t.Error("different tokens share a fingerprint")
	}
	if a.Fingerprint() == pat.Fingerprint() {
		t.Error("different schemes share a fingerprint")
	}
	if strings.Contains(a.Fingerprint(), "one") {
		t.Errorf("fingerprint %q leaks the token", a.Fingerprint())
	}
	if got := mustNew(Credentials{Scheme: SchemeNone}).Fingerprint(); got != "anonymous" {
		t.Errorf("anonymous fingerprint = %q", got)
	}
}

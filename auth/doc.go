// Package auth turns tracker credentials into request authentication.
//
// Credentials are opaque values handed in by the caller (typically read
// from an OS keyring or the environment); this package never prompts for
// or stores them. A Context is built once per credential set and applied
// to every outgoing request.
//
// # Schemes
//
//   - basic: username + password (Server/Data Center)
//   - api_token: email + API token, sent as Basic (Cloud)
//   - pat: personal access token, sent as Bearer (Data Center)
//   - bearer: any pre-issued bearer token
//   - oauth2: access/refresh token pair, refreshed through golang.org/x/oauth2
//   - jwt: Connect-app HS256 tokens signed per request with a query hash
//   - none: anonymous access
//
// # Usage
//
//	authCtx, err := auth.New(auth.Credentials{
//		Scheme: auth.SchemeAPIToken,
//		Email:  "you@example.com",
//		Token:  token,
//	})
//	if err != nil {
//		return err
//	}
//	err = authCtx.Apply(req)
//
// Rotating credentials means building a new Context; a Context is never
// mutated after construction.
package auth

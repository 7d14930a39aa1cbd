package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// QueryStringHash computes the query string hash (qsh) claim for a request:
// the hex SHA-256 of METHOD&path&sorted-query. The "jwt" query parameter is
// excluded so a token can travel in the URL it signs.
func QueryStringHash(method, path string, query url.Values) string {
	return hashString(CanonicalRequest(method, path, query))
}

// CanonicalRequest renders the string that QueryStringHash digests.
func CanonicalRequest(method, path string, query url.Values) string {
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	path = strings.ReplaceAll(path, "&", "%26")

	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "jwt" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for i, v := range values {
			values[i] = percentEncode(v)
		}
		pairs = append(pairs, percentEncode(k)+"="+strings.Join(values, ","))
	}

	return strings.ToUpper(method) + "&" + path + "&" + strings.Join(pairs, "&")
}

// percentEncode applies RFC 3986 encoding; spaces become %20, not '+'.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

package auth

import (
	"net/url"
	"strings"
)

// DefaultRedirect is where a signed-in user lands when no usable next path
// was supplied.
const DefaultRedirect = "/dashboard"

// SafeRedirect returns next if it is a same-origin path, otherwise fallback.
//
// Accepted: "/dashboard", "/summaries/abc?tab=report".
// Rejected: anything with a scheme or host, protocol-relative "//host",
// backslashes (browsers treat "/\host" as "//host") and control characters.
// The checks run on the raw value and again after percent-decoding.
func SafeRedirect(next, fallback string) string {
	if !isLocalPath(next) {
		return fallback
	}
	decoded, err := url.PathUnescape(next)
	if err != nil || !isLocalPath(decoded) {
		return fallback
	}
	return next
}

func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	if strings.ContainsRune(p, '\\') {
		return false
	}
	for _, r := range p {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

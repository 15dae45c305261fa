package auth

import (
	"net/http"
	"time"

	"github.com/sakif/aligned/internal/model"
)

const (
	AccessCookie   = "aligned_access"
	RefreshCookie  = "aligned_refresh"
	VerifierCookie = "aligned_pkce"

	refreshTTL  = 30 * 24 * time.Hour
	verifierTTL = 15 * time.Minute
)

// Cookies writes the session cookies. Secure is set in production only so
// local development works over plain http.
type Cookies struct {
	Secure bool
}

func (c Cookies) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSession stores both tokens. The access cookie lives exactly as long as
// the token inside it.
func (c Cookies) SetSession(w http.ResponseWriter, s *model.Session) {
	accessAge := int(time.Until(s.ExpiresAt).Seconds())
	if accessAge < 1 {
		accessAge = 1
	}
	http.SetCookie(w, c.cookie(AccessCookie, s.AccessToken, accessAge))
	if s.RefreshToken != "" {
		http.SetCookie(w, c.cookie(RefreshCookie, s.RefreshToken, int(refreshTTL.Seconds())))
	}
}

func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshCookie, "", -1))
}

// SetVerifier keeps the PKCE verifier until the magic link is clicked.
func (c Cookies) SetVerifier(w http.ResponseWriter, verifier string) {
	http.SetCookie(w, c.cookie(VerifierCookie, verifier, int(verifierTTL.Seconds())))
}

// Verifier returns the stored PKCE verifier, or "" when there is none.
func (c Cookies) Verifier(r *http.Request) string {
	cookie, err := r.Cookie(VerifierCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearVerifier deletes the verifier once its code has been settled.
func (c Cookies) ClearVerifier(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(VerifierCookie, "", -1))
}

// Tokens reads the raw access and refresh tokens from the request.
func Tokens(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(AccessCookie); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		refresh = c.Value
	}
	return access, refresh
}

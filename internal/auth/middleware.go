package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

// contextKey keeps our context values private to this package.
type contextKey string

const userKey contextKey = "user"

// Refresher renews a session from its refresh token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
}

// Authenticator resolves the user behind the session cookies. An expired
// access token is renewed transparently when a refresh cookie is present.
type Authenticator struct {
	verifier  *TokenVerifier
	refresher Refresher
	cookies   Cookies
	logger    *slog.Logger
}

func NewAuthenticator(verifier *TokenVerifier, refresher Refresher, cookies Cookies, logger *slog.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, refresher: refresher, cookies: cookies, logger: logger}
}

// RequireAuth guards JSON routes: no session means 401.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.authenticate(w, r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequirePageAuth guards HTML pages: no session redirects to the login page,
// which sends the user back here afterwards.
func (a *Authenticator) RequirePageAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.authenticate(w, r)
		if !ok {
			target := "/login"
			if r.Method == http.MethodGet {
				target += "?next=" + url.QueryEscape(r.URL.RequestURI())
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the user when there is one and never blocks.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := a.authenticate(w, r); ok {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	access, refresh := Tokens(r)

	if access != "" {
		user, err := a.verifier.Verify(access)
		if err == nil {
			return user, true
		}
		if !errors.Is(err, ErrTokenExpired) {
			a.logger.Debug("rejected access token", "error", err)
		}
	}
	if refresh == "" || a.refresher == nil {
		return nil, false
	}

	session, err := a.refresher.Refresh(r.Context(), refresh)
	if err != nil {
		a.logger.Info("session refresh failed", "error", err)
		// Only a rejected refresh token ends the session; an outage keeps
		// the cookies for the next request.
		if errors.Is(err, apperror.ErrUnauthorized) || errors.Is(err, apperror.ErrCodeUsed) {
			a.cookies.Clear(w)
		}
		return nil, false
	}
	a.cookies.SetSession(w, session)

	user, err := a.verifier.Verify(session.AccessToken)
	if err != nil {
		a.logger.Warn("refreshed token failed verification", "error", err)
		return nil, false
	}
	return user, true
}

// WithUser returns a context carrying the signed-in user.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the signed-in user, or nil and false for an
// anonymous request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// UserIDFromContext is a shorthand for handlers that only need the owner ID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}

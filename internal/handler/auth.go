package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/auth"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/service"
)

// AuthHandler serves the magic-link sign-in flow.
//
//   - HandleLoginPage     → GET  /login
//   - HandleMagicLinkForm → POST /auth/magic-link (HTML form)
//   - HandleMagicLinkAPI  → POST /api/auth/magic-link (JSON)
//   - HandleLogout        → POST /auth/logout
//   - HandleMe            → GET  /api/me
//
// The callback itself (GET /auth/callback) is auth.Bridge.
type AuthHandler struct {
	auth    *service.AuthService
	cookies auth.Cookies
	pages   *Pages
	logger  *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, cookies auth.Cookies, pages *Pages, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies, pages: pages, logger: logger}
}

// HandleLoginPage renders the sign-in form. A user who is already signed in
// goes straight to next.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := auth.SafeRedirect(q.Get("next"), auth.DefaultRedirect)

	if _, ok := userFrom(r); ok {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	data := pageData{
		Title: "Sign in",
		Error: auth.LoginMessage(q.Get("error")),
		Sent:  q.Get("sent") == "1",
	}
	if next != auth.DefaultRedirect {
		data.Next = next
	}
	if data.Sent {
		data.Notice = "Check your email for a sign-in link."
	}
	h.pages.render(w, http.StatusOK, "login", data)
}

// HandleMagicLinkForm requests a link for the submitted email and keeps the
// PKCE verifier in a cookie until the link is opened.
func (h *AuthHandler) HandleMagicLinkForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.pages.render(w, http.StatusBadRequest, "login", pageData{Title: "Sign in", Error: "invalid form submission"})
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	next := auth.SafeRedirect(r.PostForm.Get("next"), auth.DefaultRedirect)

	verifier, err := h.auth.RequestLink(r.Context(), email, next)
	if err != nil {
		h.logger.Warn("magic link request failed", slog.String("error", err.Error()))
		data := pageData{Title: "Sign in", Email: email, Error: userMessage(err)}
		if next != auth.DefaultRedirect {
			data.Next = next
		}
		h.pages.render(w, statusFor(err), "login", data)
		return
	}

	h.cookies.SetVerifier(w, verifier)
	q := url.Values{"sent": {"1"}}
	if next != auth.DefaultRedirect {
		q.Set("next", next)
	}
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}

type magicLinkRequest struct {
	Email string `json:"email"`
	Next  string `json:"next"`
}

// HandleMagicLinkAPI is the JSON twin of HandleMagicLinkForm.
//
// HTTP: POST /api/auth/magic-link
// REQUEST BODY: {"email": "ava@example.com", "next": "/summaries/abc"}
//
// The response is the same whether or not the address has an account.
func (h *AuthHandler) HandleMagicLinkAPI(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	verifier, err := h.auth.RequestLink(r.Context(), req.Email, req.Next)
	if err != nil {
		h.logger.Warn("magic link request failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.cookies.SetVerifier(w, verifier)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "check your email for a sign-in link"})
}

// HandleLogout revokes the session at the provider and clears the cookies.
// The cookies are cleared even when the provider call fails.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if access, _ := auth.Tokens(r); access != "" {
		h.auth.SignOut(r.Context(), access)
	}
	h.cookies.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		writeError(w, errNoSession())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func userFrom(r *http.Request) (*model.User, bool) {
	return auth.UserFromContext(r.Context())
}

// ownerID is only called behind RequireAuth or RequirePageAuth.
func ownerID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", errNoSession()
	}
	return id, nil
}

func errNoSession() error {
	return apperror.Unauthorized("valid authentication required")
}


package auth

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

// StepKind is what the callback query carries.
type StepKind int

const (
	NoCredential StepKind = iota
	CodeExchange
	TokenExchange
	ProviderError
)

func (k StepKind) String() string {
	switch k {
	case CodeExchange:
		return "code"
	case TokenExchange:
		return "token"
	case ProviderError:
		return "provider_error"
	default:
		return "none"
	}
}

// Step is the parsed callback request.
type Step struct {
	Kind         StepKind
	Code         string
	AccessToken  string
	RefreshToken string
	Error        string // provider text, for logs only
	ErrorCode    string
	Next         string // already passed through SafeRedirect
	Bridged      bool   // second hop, credentials were lifted out of the fragment
}

// Resolve classifies callback query parameters. It has no side effects.
//
// A provider error wins over any credential sent alongside it, and a PKCE
// code wins over a token pair.
func Resolve(q url.Values) Step {
	step := Step{
		Next:    SafeRedirect(q.Get("next"), DefaultRedirect),
		Bridged: q.Get("bridged") == "1",
	}

	switch {
	case q.Get("error") != "" || q.Get("error_description") != "":
		step.Kind = ProviderError
		step.Error = q.Get("error_description")
		if step.Error == "" {
			step.Error = q.Get("error")
		}
		step.ErrorCode = q.Get("error_code")
		if step.ErrorCode == "" {
			step.ErrorCode = q.Get("error")
		}
	case q.Get("code") != "":
		step.Kind = CodeExchange
		step.Code = q.Get("code")
	case q.Get("access_token") != "":
		step.Kind = TokenExchange
		step.AccessToken = q.Get("access_token")
		step.RefreshToken = q.Get("refresh_token")
	default:
		step.Kind = NoCredential
	}
	return step
}

// SessionCompleter turns a credential into a signed-in session.
type SessionCompleter interface {
	CompleteCode(ctx context.Context, code, verifier string) (*model.Session, error)
	CompleteTokens(ctx context.Context, accessToken, refreshToken string) (*model.Session, error)
}

// OutcomeKind is what the callback responds with.
type OutcomeKind int

const (
	SignedIn OutcomeKind = iota
	RenderBridge
	Failed
)

type Outcome struct {
	Kind     OutcomeKind
	Session  *model.Session
	Location string // SignedIn: safe next path. Failed: login URL with the error code.
	Reason   string
	// Retryable failures leave the link usable, so the PKCE verifier is kept.
	Retryable bool
}

// Bridge completes magic-link sign-in at GET /auth/callback.
//
// The provider may deliver a PKCE code in the query or a token pair in the
// URL fragment, which never reaches the server. When nothing usable is in the
// query the first response is a tiny page that copies the fragment into the
// query and reloads with bridged=1. The second hop then either finds a
// credential or fails with "missing auth parameters"; it never loops.
type Bridge struct {
	sessions SessionCompleter
	cookies  Cookies
	logger   *slog.Logger
}

func NewBridge(sessions SessionCompleter, cookies Cookies, logger *slog.Logger) *Bridge {
	return &Bridge{sessions: sessions, cookies: cookies, logger: logger}
}

// Decide runs the state machine for one callback request.
func (b *Bridge) Decide(ctx context.Context, step Step, verifier string) Outcome {
	var (
		session *model.Session
		err     error
	)

	switch step.Kind {
	case NoCredential:
		if !step.Bridged {
			return Outcome{Kind: RenderBridge}
		}
		return failed(LoginMissingParams, step.Next)
	case ProviderError:
		b.logger.Info("provider reported a sign-in error", "code", step.ErrorCode, "description", step.Error)
		return failed(providerErrorCode(step), step.Next)
	case CodeExchange:
		if verifier == "" {
			return failed(LoginOtherBrowser, step.Next)
		}
		session, err = b.sessions.CompleteCode(ctx, step.Code, verifier)
	case TokenExchange:
		session, err = b.sessions.CompleteTokens(ctx, step.AccessToken, step.RefreshToken)
	}

	if err != nil {
		b.logger.Warn("sign-in callback failed", "step", step.Kind.String(), "error", err)
		out := failed(codeFor(err), step.Next)
		out.Retryable = errors.Is(err, apperror.ErrUpstream)
		return out
	}
	return Outcome{Kind: SignedIn, Session: session, Location: step.Next}
}

// Complete is the http.HandlerFunc for the callback route.
func (b *Bridge) Complete(w http.ResponseWriter, r *http.Request) {
	step := Resolve(r.URL.Query())

	var verifier string
	if step.Kind == CodeExchange {
		verifier = b.cookies.Verifier(r)
	}

	out := b.Decide(r.Context(), step, verifier)
	if step.Kind == CodeExchange && !out.Retryable {
		b.cookies.ClearVerifier(w)
	}
	switch out.Kind {
	case RenderBridge:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if err := bridgePage.Execute(w, nil); err != nil {
			b.logger.Error("rendering bridge page", "error", err)
		}
	case SignedIn:
		b.cookies.SetSession(w, out.Session)
		http.Redirect(w, r, out.Location, http.StatusSeeOther)
	default:
		http.Redirect(w, r, out.Location, http.StatusSeeOther)
	}
}

func failed(code, next string) Outcome {
	q := url.Values{"error": {code}}
	if next != DefaultRedirect {
		q.Set("next", next)
	}
	return Outcome{Kind: Failed, Reason: LoginMessage(code), Location: "/login?" + q.Encode()}
}

// codeFor maps an exchange error onto a login error code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, apperror.ErrCodeUsed):
		return LoginLinkUsed
	case errors.Is(err, apperror.ErrUnauthorized):
		return LoginLinkInvalid
	case errors.Is(err, apperror.ErrUpstream):
		return LoginUnavailable
	default:
		return LoginFailed
	}
}

// providerErrorCode maps what the provider put in the redirect onto a login
// error code.
func providerErrorCode(step Step) string {
	desc := strings.ToLower(step.Error)
	switch {
	case step.ErrorCode == "otp_expired" || consumedFlow(step.ErrorCode),
		strings.Contains(desc, "expired"), strings.Contains(desc, "invalid"):
		return LoginLinkInvalid
	case step.ErrorCode == "access_denied":
		return LoginCancelled
	case step.ErrorCode == "server_error" || step.ErrorCode == "temporarily_unavailable":
		return LoginUnavailable
	default:
		return LoginFailed
	}
}

func consumedFlow(code string) bool {
	return code == "flow_state_not_found" || code == "flow_state_expired"
}

var bridgePage = template.Must(template.New("bridge").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="robots" content="noindex">
<title>Signing you in…</title>
</head>
<body>
<p>Signing you in…</p>
<noscript><p>JavaScript is required to finish signing in. <a href="/login">Back to sign in</a></p></noscript>
<script>
(function () {
  var hash = new URLSearchParams(window.location.hash.slice(1));
  var query = new URLSearchParams(window.location.search);
  var out = new URLSearchParams();
  ["access_token", "refresh_token", "error", "error_description", "next"].forEach(function (key) {
    var value = hash.get(key) || query.get(key);
    if (value) { out.set(key, value); }
  });
  out.set("bridged", "1");
  window.location.replace(window.location.pathname + "?" + out.toString());
})();
</script>
</body>
</html>
`))

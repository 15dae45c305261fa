package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

type fakeCompleter struct {
	err          error
	codeCalls    int
	tokenCalls   int
	lastVerifier string
}

func (f *fakeCompleter) session() *model.Session {
	return &model.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         testUser,
	}
}

func (f *fakeCompleter) CompleteCode(_ context.Context, _, verifier string) (*model.Session, error) {
	f.codeCalls++
	f.lastVerifier = verifier
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func (f *fakeCompleter) CompleteTokens(_ context.Context, _, _ string) (*model.Session, error) {
	f.tokenCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session(), nil
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name  string
		query string
		kind  StepKind
		next  string
	}{
		{"code", "code=abc&next=/summaries/1", CodeExchange, "/summaries/1"},
		{"token pair", "access_token=a&refresh_token=r&bridged=1", TokenExchange, DefaultRedirect},
		{"provider error", "error=access_denied&error_description=Email+link+is+invalid", ProviderError, DefaultRedirect},
		{"error beats code", "code=abc&error=server_error", ProviderError, DefaultRedirect},
		{"nothing", "", NoCredential, DefaultRedirect},
		{"unsafe next", "code=abc&next=//evil.com", CodeExchange, DefaultRedirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			step := Resolve(q)
			assert.Equal(t, tt.kind, step.Kind)
			assert.Equal(t, tt.next, step.Next)
		})
	}

	q, _ := url.ParseQuery("error=access_denied&error_description=Email+link+is+invalid")
	assert.Equal(t, "Email link is invalid", Resolve(q).Error)
}

func TestBridge_CodeExchange(t *testing.T) {
	completer := &fakeCompleter{}
	b := NewBridge(completer, Cookies{}, discardLogger())

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&next=/summaries/1", nil)
	r.AddCookie(&http.Cookie{Name: VerifierCookie, Value: "verifier-1"})
	rec := httptest.NewRecorder()
	b.Complete(rec, r)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/summaries/1", rec.Header().Get("Location"))
	assert.Equal(t, "verifier-1", completer.lastVerifier)

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = c.Value != ""
	}
	assert.True(t, names[AccessCookie])
	assert.True(t, names[RefreshCookie])
	assert.False(t, names[VerifierCookie], "verifier cookie is cleared after use")
}

func TestBridge_CodeReuseFails(t *testing.T) {
	completer := &fakeCompleter{err: apperror.CodeUsed()}
	b := NewBridge(completer, Cookies{}, discardLogger())

	out := b.Decide(context.Background(), Step{Kind: CodeExchange, Code: "abc", Next: DefaultRedirect}, "v")

	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, "this sign-in link has already been used", out.Reason)
	assert.True(t, strings.HasPrefix(out.Location, "/login?error="))
}

func TestBridge_CodeWithoutVerifier(t *testing.T) {
	completer := &fakeCompleter{}
	b := NewBridge(completer, Cookies{}, discardLogger())

	out := b.Decide(context.Background(), Step{Kind: CodeExchange, Code: "abc", Next: DefaultRedirect}, "")

	assert.Equal(t, Failed, out.Kind)
	assert.Zero(t, completer.codeCalls)
}

func TestBridge_TwoHopFragment(t *testing.T) {
	completer := &fakeCompleter{}
	b := NewBridge(completer, Cookies{}, discardLogger())

	// Hop 1: tokens are in the fragment, which the server never sees.
	rec := httptest.NewRecorder()
	b.Complete(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?next=/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "location.hash")
	assert.Contains(t, rec.Body.String(), `out.set("bridged", "1")`)
	assert.Zero(t, completer.tokenCalls)

	// Hop 2: the page forwarded them as query parameters.
	rec = httptest.NewRecorder()
	b.Complete(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?access_token=a&refresh_token=r&next=/settings&bridged=1", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/settings", rec.Header().Get("Location"))
	assert.Equal(t, 1, completer.tokenCalls)
}

func TestBridge_SecondHopWithoutCredentialFails(t *testing.T) {
	b := NewBridge(&fakeCompleter{}, Cookies{}, discardLogger())

	rec := httptest.NewRecorder()
	b.Complete(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?bridged=1", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=missing_params", rec.Header().Get("Location"))
}

func TestBridge_ProviderErrorsMapToFixedMessages(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"expired link", "error=access_denied&error_code=otp_expired&error_description=Email+link+is+invalid+or+has+expired", LoginLinkInvalid},
		{"cancelled", "error=access_denied", LoginCancelled},
		{"provider outage", "error=server_error", LoginUnavailable},
		{"crafted text", "error=x&error_description=Call+support+at+555-0100+to+restore+your+account", LoginFailed},
		{"multi-byte text", "error=x&error_description=" + url.QueryEscape(strings.Repeat("ошибка ", 60)), LoginFailed},
	}
	b := NewBridge(&fakeCompleter{}, Cookies{}, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			b.Complete(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query+"&bridged=1", nil))

			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/login", loc.Path)
			assert.Equal(t, tt.code, loc.Query().Get("error"))
			assert.NotContains(t, rec.Header().Get("Location"), "555")

			q, _ := url.ParseQuery(tt.query)
			out := b.Decide(context.Background(), Resolve(q), "")
			assert.Equal(t, LoginMessage(tt.code), out.Reason)
			assert.True(t, utf8.ValidString(out.Reason))
		})
	}
}

func TestBridge_VerifierSurvivesProviderOutage(t *testing.T) {
	callback := func(b *Bridge) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil)
		r.AddCookie(&http.Cookie{Name: VerifierCookie, Value: "verifier-1"})
		rec := httptest.NewRecorder()
		b.Complete(rec, r)
		return rec
	}
	verifierCleared := func(rec *httptest.ResponseRecorder) bool {
		for _, c := range rec.Result().Cookies() {
			if c.Name == VerifierCookie && c.MaxAge < 0 {
				return true
			}
		}
		return false
	}

	completer := &fakeCompleter{err: apperror.Upstream("sign-in service is unavailable", errors.New("503"))}
	rec := callback(NewBridge(completer, Cookies{}, discardLogger()))
	assert.Equal(t, "/login?error=unavailable", rec.Header().Get("Location"))
	assert.False(t, verifierCleared(rec), "the link can be retried with the same verifier")

	completer.err = nil
	rec = callback(NewBridge(completer, Cookies{}, discardLogger()))
	assert.Equal(t, DefaultRedirect, rec.Header().Get("Location"))
	assert.True(t, verifierCleared(rec))
	assert.Equal(t, "verifier-1", completer.lastVerifier)

	completer.err = apperror.Unauthorized("this sign-in link is invalid or has expired")
	rec = callback(NewBridge(completer, Cookies{}, discardLogger()))
	assert.Equal(t, "/login?error=link_invalid", rec.Header().Get("Location"))
	assert.True(t, verifierCleared(rec), "a rejected code is final")
}

func TestBridge_GenericErrorsDoNotLeak(t *testing.T) {
	completer := &fakeCompleter{err: context.DeadlineExceeded}
	b := NewBridge(completer, Cookies{}, discardLogger())

	out := b.Decide(context.Background(), Step{Kind: TokenExchange, AccessToken: "a", Next: "/settings"}, "")

	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, "sign-in failed, please request a new link", out.Reason)
	assert.Contains(t, out.Location, "next=%2Fsettings")
}

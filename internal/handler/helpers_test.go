package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/auth"
	"github.com/sakif/aligned/internal/generator"
	"github.com/sakif/aligned/internal/handler"
	"github.com/sakif/aligned/internal/identity"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository/sqlite"
	"github.com/sakif/aligned/internal/service"
	"github.com/sakif/aligned/web"
)

const (
	siteURL = "https://aligned.test"
	ownerA  = "6f1c2d8e-0000-4000-8000-00000000000a"
	ownerB  = "6f1c2d8e-0000-4000-8000-00000000000b"

	// testUserHeader stands in for the session cookies: the test router
	// turns it into an authenticated user.
	testUserHeader = "X-Test-User"
)

// =========================================================================
// FAKES
// =========================================================================

type fakeGenerator struct {
	calls int
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, in generator.Input) (*generator.Result, error) {
	f.calls++
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &generator.Result{
		Report: &model.Report{
			CandidateHeader: model.CandidateHeader{Name: in.CandidateName, Role: in.RoleTitle, Company: in.CompanyName},
			EvidenceSummary: []string{"Ran Airflow at scale"},
		},
		Raw: "{}",
	}, nil
}

type fakeIdentity struct {
	requests  int
	signOuts  int
	lastEmail string
	err       error
}

func (f *fakeIdentity) RequestLink(_ context.Context, email, _ string) (string, error) {
	f.requests++
	f.lastEmail = email
	if !identity.ValidEmail(strings.ToLower(strings.TrimSpace(email))) {
		return "", apperror.ValidationFailed("email", "enter a valid email address")
	}
	if f.err != nil {
		return "", f.err
	}
	return "test-verifier", nil
}

func (f *fakeIdentity) ExchangeCode(context.Context, string, string) (*model.Session, error) {
	return nil, apperror.Unauthorized("this sign-in link is invalid or has expired")
}

func (f *fakeIdentity) ExchangeTokenPair(context.Context, string, string) (*model.Session, error) {
	return nil, apperror.Unauthorized("this sign-in link is invalid or has expired")
}

func (f *fakeIdentity) Refresh(context.Context, string) (*model.Session, error) {
	return nil, apperror.Unauthorized("session expired")
}

func (f *fakeIdentity) SignOut(context.Context, string) error {
	f.signOuts++
	return nil
}

// =========================================================================
// TEST APP
// =========================================================================

type testApp struct {
	router    http.Handler
	gen       *fakeGenerator
	idp       *fakeIdentity
	summaries *service.SummaryService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen := &fakeGenerator{}
	idp := &fakeIdentity{}
	summaries := service.NewSummaryService(db, gen, siteURL, logger)
	profiles := service.NewProfileService(db, logger)
	authService := service.NewAuthService(idp, db, siteURL, logger)

	pages, err := handler.NewPages(web.Templates, logger)
	require.NoError(t, err)

	authHandler := handler.NewAuthHandler(authService, auth.Cookies{}, pages, logger)
	summaryHandler := handler.NewSummaryHandler(summaries, logger)
	profileHandler := handler.NewProfileHandler(profiles, logger)
	pageHandler := handler.NewPageHandler(pages, summaries, profiles, logger)

	r := chi.NewRouter()
	r.Use(withTestUser)

	r.Get("/login", authHandler.HandleLoginPage)
	r.Post("/auth/magic-link", authHandler.HandleMagicLinkForm)
	r.Post("/auth/logout", authHandler.HandleLogout)
	r.Get("/share/{token}", pageHandler.HandleShared)

	r.Get("/dashboard", pageHandler.HandleDashboard)
	r.Get("/summaries/new", pageHandler.HandleNewSummary)
	r.Post("/summaries", pageHandler.HandleCreateSummary)
	r.Get("/summaries/{id}", pageHandler.HandleSummary)
	r.Post("/summaries/{id}/generate", pageHandler.HandleGenerate)
	r.Post("/summaries/{id}/share", pageHandler.HandleShare)
	r.Get("/settings", pageHandler.HandleSettings)
	r.Post("/settings", pageHandler.HandleUpdateSettings)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/magic-link", authHandler.HandleMagicLinkAPI)
		r.Get("/share/{token}", summaryHandler.HandleGetShared)
		r.Get("/me", authHandler.HandleMe)
		r.Get("/profile", profileHandler.HandleGet)
		r.Put("/profile", profileHandler.HandleUpdate)
		r.Get("/summaries", summaryHandler.HandleList)
		r.Post("/summaries", summaryHandler.HandleCreate)
		r.Post("/summaries/generate", summaryHandler.HandleCreateAndGenerate)
		r.Get("/summaries/{id}", summaryHandler.HandleGet)
		r.Patch("/summaries/{id}", summaryHandler.HandleUpdate)
		r.Post("/summaries/{id}/generate", summaryHandler.HandleGenerate)
		r.Post("/summaries/{id}/share", summaryHandler.HandleShare)
	})

	return &testApp{router: r, gen: gen, idp: idp, summaries: summaries}
}

func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(testUserHeader); id != "" {
			user := &model.User{ID: id, Email: "user-" + id[len(id)-1:] + "@example.com"}
			r = r.WithContext(auth.WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// do sends a request as owner ("" for anonymous).
func (a *testApp) do(method, target, owner, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if owner != "" {
		req.Header.Set(testUserHeader, owner)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doJSON(method, target, owner, body string) *httptest.ResponseRecorder {
	return a.do(method, target, owner, "application/json", strings.NewReader(body))
}

func (a *testApp) doForm(target, owner string, form url.Values) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, target, owner, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

const validSummaryJSON = `{
	"candidateName": "Ava Patel",
	"roleTitle": "Data Engineer",
	"companyName": "Acme",
	"hmNotes": "Needs Airflow experience"
}`

func validSummaryForm() url.Values {
	return url.Values{
		"candidateName": {"Ava Patel"},
		"roleTitle":     {"Data Engineer"},
		"companyName":   {"Acme"},
		"hmNotes":       {"Needs Airflow experience"},
	}
}

func httptestRequestWithCookies(method, target string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func serve(a *testApp, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// Package identity is a client for the hosted passwordless identity provider
// (a GoTrue-compatible HTTP API). It sends magic links and turns whatever the
// provider hands back (a PKCE code or a token pair) into a model.Session.
//
// Errors returned to callers never contain codes, tokens or API keys.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

// codeTTL bounds how long a consumed code is remembered. Provider codes
// expire well before this.
const codeTTL = 24 * time.Hour

// Provider error codes that mean "no such user / sign-ups closed". They are
// not reported to the caller so addresses cannot be enumerated.
var unknownUserCodes = map[string]bool{
	"user_not_found":  true,
	"signup_disabled": true,
	"otp_disabled":    true,
	"email_not_found": true,
}

// Provider error codes for a PKCE flow that was already completed or expired.
var consumedFlowCodes = map[string]bool{
	"flow_state_not_found": true,
	"flow_state_expired":   true,
}

type Config struct {
	URL        string // e.g. https://<project>.supabase.co/auth/v1
	AnonKey    string
	HTTPClient *http.Client
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	ledger  Ledger
	logger  *slog.Logger
}

func New(cfg Config, ledger Ledger, logger *slog.Logger) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.AnonKey,
		http:    hc,
		ledger:  ledger,
		logger:  logger,
	}
}

// APIError is a non-2xx reply from the provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: provider returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: provider returned %d: %s", e.Status, e.Message)
}

// ValidEmail reports whether s is a bare address like "a@b.co".
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

// RequestLink asks the provider to email a magic link that lands on
// redirectTo. It returns the PKCE verifier the callback must present.
//
// For any well-formed address the call succeeds unless the provider itself is
// failing; "unknown user" replies are logged and swallowed.
func (c *Client) RequestLink(ctx context.Context, email, redirectTo string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !ValidEmail(email) {
		return "", apperror.ValidationFailed("email", "enter a valid email address")
	}

	verifier := oauth2.GenerateVerifier()
	body := map[string]any{
		"email":                 email,
		"create_user":           true,
		"code_challenge":        oauth2.S256ChallengeFromVerifier(verifier),
		"code_challenge_method": "s256",
	}
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}

	err := c.do(ctx, http.MethodPost, "/otp", q, "", body, nil)
	if err == nil {
		return verifier, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests && isUnknownUser(apiErr) {
			c.logger.Info("magic link not sent", "reason", apiErr.Code, "status", apiErr.Status)
			return verifier, nil
		}
		if apiErr.Status == http.StatusTooManyRequests {
			return "", apperror.Upstream("too many sign-in attempts, try again in a minute", err)
		}
	}
	return "", apperror.Upstream("could not send the sign-in link", err)
}

// ExchangeCode trades a one-time PKCE code for a session. Each code is
// accepted at most once; a repeat gets apperror.ErrCodeUsed without a
// network round trip.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error) {
	if code == "" {
		return nil, apperror.Unauthorized("missing authorization code")
	}
	first, err := c.ledger.Consume(ctx, code, codeTTL)
	if err != nil {
		return nil, apperror.Upstream("sign-in is temporarily unavailable", err)
	}
	if !first {
		return nil, apperror.CodeUsed()
	}

	var tr tokenResponse
	err = c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"pkce"}}, "",
		map[string]string{"auth_code": code, "code_verifier": verifier}, &tr)
	if err != nil {
		grantErr := c.grantError(err)
		if errors.Is(grantErr, apperror.ErrUpstream) {
			// The provider did not take the code, so the link stays usable.
			if relErr := c.ledger.Release(context.WithoutCancel(ctx), code); relErr != nil {
				c.logger.Warn("could not release authorization code", "error", relErr)
			}
		}
		return nil, grantErr
	}
	return tr.session(time.Now())
}

// ExchangeTokenPair verifies an access token that arrived in a URL fragment by
// asking the provider who it belongs to.
func (c *Client) ExchangeTokenPair(ctx context.Context, accessToken, refreshToken string) (*model.Session, error) {
	if accessToken == "" {
		return nil, apperror.Unauthorized("missing access token")
	}
	var u userResponse
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, nil, &u); err != nil {
		return nil, c.grantError(err)
	}
	if u.ID == "" {
		return nil, apperror.Unauthorized("session could not be verified")
	}
	return &model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    tokenExpiry(accessToken, time.Now()),
		User:         model.User{ID: u.ID, Email: u.Email},
	}, nil
}

// tokenExpiry reads exp from an access token the provider has just vouched
// for. The signature is not checked here; that is TokenVerifier's job on
// every later request. Without a readable exp the session gets an hour.
func tokenExpiry(accessToken string, now time.Time) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil || claims.ExpiresAt == nil {
		return now.Add(time.Hour)
	}
	return claims.ExpiresAt.Time
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthorized("session expired")
	}
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, "",
		map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		return nil, c.grantError(err)
	}
	return tr.session(time.Now())
}

// SignOut revokes the session at the provider.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil, nil); err != nil {
		return apperror.Upstream("could not sign out", err)
	}
	return nil
}

// Ping checks that the provider answers. Used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil, nil)
}

// grantError maps a failed token or user call onto the domain errors.
func (c *Client) grantError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return apperror.Upstream("sign-in service is unavailable", err)
	}
	switch {
	case consumedFlowCodes[apiErr.Code]:
		return apperror.CodeUsed()
	case apiErr.Status >= 500:
		return apperror.Upstream("sign-in service is unavailable", err)
	case apiErr.Status == http.StatusTooManyRequests:
		return apperror.Upstream("too many sign-in attempts, try again in a minute", err)
	default:
		c.logger.Info("credential rejected by provider", "status", apiErr.Status, "code", apiErr.Code)
		return apperror.Unauthorized("this sign-in link is invalid or has expired")
	}
}

func isUnknownUser(e *APIError) bool {
	if unknownUserCodes[e.Code] {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "signups not allowed") || strings.Contains(msg, "user not found")
}

// do sends one request. A non-nil body is JSON encoded; a non-nil out is
// decoded from a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("identity: encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("identity: building request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("identity: decoding %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &body)

	apiErr := &APIError{Status: resp.StatusCode, Code: body.ErrorCode}
	if apiErr.Code == "" {
		apiErr.Code = body.Error
	}
	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

func (t *tokenResponse) session(now time.Time) (*model.Session, error) {
	if t.AccessToken == "" || t.User.ID == "" {
		return nil, apperror.Upstream("sign-in service returned an incomplete session", errors.New("identity: token response missing access token or user"))
	}
	expires := now.Add(time.Hour)
	switch {
	case t.ExpiresAt > 0:
		expires = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		expires = now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return &model.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expires,
		User:         model.User{ID: t.User.ID, Email: t.User.Email},
	}, nil
}

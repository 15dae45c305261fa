package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sakif/aligned/internal/auth"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

// IdentityProvider is the hosted passwordless service (see package identity).
type IdentityProvider interface {
	RequestLink(ctx context.Context, email, redirectTo string) (string, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*model.Session, error)
	ExchangeTokenPair(ctx context.Context, accessToken, refreshToken string) (*model.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AuthService drives magic-link sign-in and makes sure every signed-in user
// has a profile row.
//
//	AuthHandler → AuthService → IdentityProvider (HTTP)
//	                          ↘ ProfileRepository (DB)
type AuthService struct {
	identity IdentityProvider
	profiles repository.ProfileRepository
	siteURL  string
	logger   *slog.Logger
}

func NewAuthService(identity IdentityProvider, profiles repository.ProfileRepository, siteURL string, logger *slog.Logger) *AuthService {
	return &AuthService{
		identity: identity,
		profiles: profiles,
		siteURL:  strings.TrimRight(siteURL, "/"),
		logger:   logger,
	}
}

// RequestLink emails a magic link that returns to next after sign-in. The
// returned PKCE verifier must be kept until the callback.
func (s *AuthService) RequestLink(ctx context.Context, email, next string) (string, error) {
	return s.identity.RequestLink(ctx, email, s.CallbackURL(next))
}

// CallbackURL is the absolute callback address, carrying next only when it is
// a safe local path other than the default.
func (s *AuthService) CallbackURL(next string) string {
	callback := s.siteURL + "/auth/callback"
	if next = auth.SafeRedirect(next, auth.DefaultRedirect); next != auth.DefaultRedirect {
		callback += "?next=" + url.QueryEscape(next)
	}
	return callback
}

func (s *AuthService) CompleteCode(ctx context.Context, code, verifier string) (*model.Session, error) {
	session, err := s.identity.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, session)
}

func (s *AuthService) CompleteTokens(ctx context.Context, accessToken, refreshToken string) (*model.Session, error) {
	session, err := s.identity.ExchangeTokenPair(ctx, accessToken, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.signedIn(ctx, session)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	return s.identity.Refresh(ctx, refreshToken)
}

// SignOut revokes the session at the provider. Failures are logged only; the
// caller clears cookies either way.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) {
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		s.logger.Warn("provider sign-out failed", "error", err)
	}
}

func (s *AuthService) signedIn(ctx context.Context, session *model.Session) (*model.Session, error) {
	profile := &model.Profile{ID: session.User.ID, Email: session.User.Email}
	if err := s.profiles.EnsureProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/auth: ensuring profile for %s: %w", session.User.ID, err)
	}
	s.logger.Info("user signed in", "user_id", session.User.ID)
	return session, nil
}

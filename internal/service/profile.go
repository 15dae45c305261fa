package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

const (
	MaxFullNameLength  = 120
	MaxAvatarURLLength = 2048
)

type ProfileService struct {
	repo   repository.ProfileRepository
	logger *slog.Logger
}

func NewProfileService(repo repository.ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{repo: repo, logger: logger}
}

// Get returns the user's profile, creating it if sign-in did not.
func (s *ProfileService) Get(ctx context.Context, user model.User) (*model.Profile, error) {
	p, err := s.repo.GetProfile(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	p = &model.Profile{ID: user.ID, Email: user.Email}
	if err := s.repo.EnsureProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return p, nil
}

// Update edits the settings-form fields.
func (s *ProfileService) Update(ctx context.Context, user model.User, fullName, avatarURL string) (*model.Profile, error) {
	fullName = strings.TrimSpace(fullName)
	avatarURL = strings.TrimSpace(avatarURL)

	if utf8.RuneCountInString(fullName) > MaxFullNameLength {
		return nil, apperror.ValidationFailed("fullName",
			fmt.Sprintf("name must be %d characters or less", MaxFullNameLength))
	}
	if avatarURL != "" {
		if len(avatarURL) > MaxAvatarURLLength || !isHTTPURL(avatarURL) {
			return nil, apperror.ValidationFailed("avatarUrl", "avatar must be an http or https URL")
		}
	}

	p, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	p.FullName = fullName
	p.AvatarURL = avatarURL
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.logger.Info("profile updated", "user_id", user.ID)
	return p, nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

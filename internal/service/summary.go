// Package service holds the business rules between the HTTP handlers and the
// repositories: validation, ownership, report generation and sharing.
//
// Services accept plain values, never *http.Request, and return apperror
// values that the handler layer maps to status codes.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/generator"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

const (
	MaxShortFieldLength = 200
	MaxNotesLength      = 20000
	DefaultListLimit    = 20
	MaxListLimit        = 100

	shareTokenBytes = 24
)

// ReportGenerator is the part of generator.Generator the service needs.
type ReportGenerator interface {
	Generate(ctx context.Context, in generator.Input) (*generator.Result, error)
}

type SummaryService struct {
	repo      repository.SummaryRepository
	generator ReportGenerator
	siteURL   string
	logger    *slog.Logger
}

func NewSummaryService(repo repository.SummaryRepository, gen ReportGenerator, siteURL string, logger *slog.Logger) *SummaryService {
	return &SummaryService{
		repo:      repo,
		generator: gen,
		siteURL:   strings.TrimRight(siteURL, "/"),
		logger:    logger,
	}
}

// Create stores a new draft. Candidate, role and company are required.
func (s *SummaryService) Create(ctx context.Context, ownerID string, f model.SummaryFields) (*model.Summary, error) {
	f = trimFields(f)
	if err := validateFields(f); err != nil {
		return nil, err
	}

	summary := &model.Summary{
		OwnerID:        ownerID,
		CandidateName:  f.CandidateName,
		RoleTitle:      f.RoleTitle,
		CompanyName:    f.CompanyName,
		JobDescription: f.JobDescription,
		HMNotes:        f.HMNotes,
		RecruiterNotes: f.RecruiterNotes,
		Status:         model.StatusDraft,
	}
	if err := s.repo.Create(ctx, summary); err != nil {
		s.logger.Error("failed to create summary", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("creating summary: %w", err)
	}

	s.logger.Info("summary created", "id", summary.ID, "owner_id", ownerID)
	return summary, nil
}

// CreateAndGenerate is the one-step form flow. Generation input is checked
// before anything is stored, so a rejected form leaves no draft behind.
//
// If generation itself fails the created record is returned alongside the
// error, in status failed.
func (s *SummaryService) CreateAndGenerate(ctx context.Context, ownerID string, f model.SummaryFields) (*model.Summary, error) {
	f = trimFields(f)
	if err := validateFields(f); err != nil {
		return nil, err
	}
	if err := inputFromFields(f).Validate(); err != nil {
		return nil, err
	}

	summary, err := s.Create(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	return s.generate(ctx, summary)
}

func (s *SummaryService) Get(ctx context.Context, ownerID, id string) (*model.Summary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "summary ID is required")
	}
	return s.repo.GetByID(ctx, id, ownerID)
}

// GetShared returns a summary by its public token. No owner is involved.
func (s *SummaryService) GetShared(ctx context.Context, token string) (*model.Summary, error) {
	return s.repo.GetByShareToken(ctx, token)
}

func (s *SummaryService) List(ctx context.Context, ownerID string, limit, offset int) ([]model.SummaryHeader, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	headers, err := s.repo.ListByOwner(ctx, ownerID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list summaries", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	return headers, nil
}

// Update applies an inline edit. Nil patch fields are left alone; the
// required fields cannot be blanked.
func (s *SummaryService) Update(ctx context.Context, ownerID, id string, p model.SummaryPatch) (*model.Summary, error) {
	summary, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	f := model.SummaryFields{
		CandidateName:  pick(p.CandidateName, summary.CandidateName),
		RoleTitle:      pick(p.RoleTitle, summary.RoleTitle),
		CompanyName:    pick(p.CompanyName, summary.CompanyName),
		JobDescription: pick(p.JobDescription, summary.JobDescription),
		HMNotes:        pick(p.HMNotes, summary.HMNotes),
		RecruiterNotes: pick(p.RecruiterNotes, summary.RecruiterNotes),
	}
	f = trimFields(f)
	if err := validateFields(f); err != nil {
		return nil, err
	}

	summary.CandidateName = f.CandidateName
	summary.RoleTitle = f.RoleTitle
	summary.CompanyName = f.CompanyName
	summary.JobDescription = f.JobDescription
	summary.HMNotes = f.HMNotes
	summary.RecruiterNotes = f.RecruiterNotes

	if err := s.repo.Update(ctx, summary); err != nil {
		return nil, fmt.Errorf("updating summary: %w", err)
	}
	return summary, nil
}

// Generate (re)builds the report of an owned summary.
//
// On success the summary becomes ready and any previous error is cleared. On
// an upstream, timeout or parse failure it becomes failed with a message the
// recruiter can read; for parse failures the raw reply is kept. Invalid input
// is rejected without touching the record.
func (s *SummaryService) Generate(ctx context.Context, ownerID, id string) (*model.Summary, error) {
	summary, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := generator.InputFromSummary(summary).Validate(); err != nil {
		return nil, err
	}
	return s.generate(ctx, summary)
}

func (s *SummaryService) generate(ctx context.Context, summary *model.Summary) (*model.Summary, error) {
	result, genErr := s.generator.Generate(ctx, generator.InputFromSummary(summary))
	if genErr != nil {
		if errors.Is(genErr, apperror.ErrValidation) {
			return nil, genErr
		}

		message := failureMessage(genErr)
		summary.Status = model.StatusFailed
		summary.ErrorMessage = message
		summary.RawOutput = ""
		var perr *generator.ParseError
		if errors.As(genErr, &perr) {
			summary.RawOutput = perr.Raw
		}

		s.logger.Warn("report generation failed", "id", summary.ID, "error", genErr)
		// The request context may already be cancelled.
		if err := s.repo.SaveGeneration(context.WithoutCancel(ctx), summary); err != nil {
			s.logger.Error("failed to record generation failure", "id", summary.ID, "error", err)
		}
		return summary, apperror.Upstream(message, genErr)
	}

	summary.Status = model.StatusReady
	summary.Report = result.Report
	summary.ErrorMessage = ""
	summary.RawOutput = ""
	if err := s.repo.SaveGeneration(ctx, summary); err != nil {
		s.logger.Error("failed to store report", "id", summary.ID, "error", err)
		return nil, fmt.Errorf("storing report: %w", err)
	}
	s.logger.Info("report stored", "id", summary.ID)

	// Inputs may have been edited while the completion ran.
	stored, err := s.repo.GetByID(ctx, summary.ID, summary.OwnerID)
	if err != nil {
		return summary, nil
	}
	return stored, nil
}

// Share returns the public URL of an owned, ready summary. Calling it again
// returns the same URL.
func (s *SummaryService) Share(ctx context.Context, ownerID, id string) (string, error) {
	summary, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return "", err
	}
	if summary.ShareToken != "" {
		return s.ShareURL(summary.ShareToken), nil
	}
	if summary.Status != model.StatusReady {
		return "", apperror.ValidationFailed("status", "generate the report before sharing it")
	}

	for attempt := 0; attempt < 2; attempt++ {
		token, err := newShareToken()
		if err != nil {
			return "", fmt.Errorf("generating share token: %w", err)
		}
		err = s.repo.SetShareToken(ctx, summary.ID, ownerID, token)
		if err == nil {
			s.logger.Info("summary shared", "id", summary.ID)
			return s.ShareURL(token), nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return "", fmt.Errorf("sharing summary: %w", err)
		}
	}
	return "", apperror.Conflict("share token", summary.ID)
}

func (s *SummaryService) ShareURL(token string) string {
	return s.siteURL + "/share/" + token
}

// newShareToken returns 24 random bytes as unpadded base64url (32 chars).
func newShareToken() (string, error) {
	b := make([]byte, shareTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func failureMessage(err error) string {
	var (
		upstream *generator.UpstreamError
		perr     *generator.ParseError
	)
	switch {
	case errors.Is(err, generator.ErrTimeout):
		return "report generation timed out, please try again"
	case errors.As(err, &upstream):
		return fmt.Sprintf("the report service returned an error (status %d), please try again", upstream.Status)
	case errors.As(err, &perr):
		return "the report came back in an unexpected format, please try again"
	case errors.Is(err, generator.ErrEmptyCompletion):
		return "the report service returned an empty reply, please try again"
	default:
		return "report generation failed, please try again"
	}
}

func trimFields(f model.SummaryFields) model.SummaryFields {
	return model.SummaryFields{
		CandidateName:  strings.TrimSpace(f.CandidateName),
		RoleTitle:      strings.TrimSpace(f.RoleTitle),
		CompanyName:    strings.TrimSpace(f.CompanyName),
		JobDescription: strings.TrimSpace(f.JobDescription),
		HMNotes:        strings.TrimSpace(f.HMNotes),
		RecruiterNotes: strings.TrimSpace(f.RecruiterNotes),
	}
}

func validateFields(f model.SummaryFields) error {
	required := []struct{ field, label, value string }{
		{"candidateName", "candidate name", f.CandidateName},
		{"roleTitle", "role title", f.RoleTitle},
		{"companyName", "company name", f.CompanyName},
	}
	for _, r := range required {
		if r.value == "" {
			return apperror.ValidationFailed(r.field, r.label+" is required")
		}
		if len(r.value) > MaxShortFieldLength {
			return apperror.ValidationFailed(r.field,
				fmt.Sprintf("%s must be %d characters or less", r.label, MaxShortFieldLength))
		}
	}

	notes := []struct{ field, value string }{
		{"jobDescription", f.JobDescription},
		{"hmNotes", f.HMNotes},
		{"recruiterNotes", f.RecruiterNotes},
	}
	for _, n := range notes {
		if len(n.value) > MaxNotesLength {
			return apperror.ValidationFailed(n.field,
				fmt.Sprintf("text must be %d characters or less", MaxNotesLength))
		}
	}
	return nil
}

func inputFromFields(f model.SummaryFields) generator.Input {
	return generator.Input{
		CandidateName:  f.CandidateName,
		RoleTitle:      f.RoleTitle,
		CompanyName:    f.CompanyName,
		JobDescription: f.JobDescription,
		HMNotes:        f.HMNotes,
		RecruiterNotes: f.RecruiterNotes,
	}
}

func pick(p *string, current string) string {
	if p == nil {
		return current
	}
	return *p
}

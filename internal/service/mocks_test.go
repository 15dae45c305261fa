package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/generator"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// In-memory stand-ins that follow the same owner-scoping rules as the SQL
// implementations.

type mockSummaryRepo struct {
	summaries   map[string]*model.Summary
	nextID      int
	updateErr   error
	conflictFor int // SetShareToken reports a conflict this many times
}

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{summaries: make(map[string]*model.Summary)}
}

func (m *mockSummaryRepo) Create(_ context.Context, s *model.Summary) error {
	m.nextID++
	s.ID = fmt.Sprintf("mock-%d", m.nextID)
	stored := *s
	m.summaries[s.ID] = &stored
	return nil
}

func (m *mockSummaryRepo) GetByID(_ context.Context, id, ownerID string) (*model.Summary, error) {
	s, ok := m.summaries[id]
	if !ok || s.OwnerID != ownerID {
		return nil, apperror.NotFound("summary", id)
	}
	result := *s
	return &result, nil
}

func (m *mockSummaryRepo) GetByShareToken(_ context.Context, token string) (*model.Summary, error) {
	if token == "" {
		return nil, apperror.NotFound("shared summary", "(empty)")
	}
	for _, s := range m.summaries {
		if s.ShareToken == token {
			result := *s
			return &result, nil
		}
	}
	return nil, apperror.NotFound("shared summary", "(token)")
}

func (m *mockSummaryRepo) Update(_ context.Context, s *model.Summary) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.summaries[s.ID]
	if !ok || existing.OwnerID != s.OwnerID {
		return apperror.NotFound("summary", s.ID)
	}
	existing.CandidateName = s.CandidateName
	existing.RoleTitle = s.RoleTitle
	existing.CompanyName = s.CompanyName
	existing.JobDescription = s.JobDescription
	existing.HMNotes = s.HMNotes
	existing.RecruiterNotes = s.RecruiterNotes
	return nil
}

func (m *mockSummaryRepo) SaveGeneration(_ context.Context, s *model.Summary) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	existing, ok := m.summaries[s.ID]
	if !ok || existing.OwnerID != s.OwnerID {
		return apperror.NotFound("summary", s.ID)
	}
	existing.Status = s.Status
	existing.Report = s.Report
	existing.RawOutput = s.RawOutput
	existing.ErrorMessage = s.ErrorMessage
	return nil
}

func (m *mockSummaryRepo) SetShareToken(_ context.Context, id, ownerID, token string) error {
	if m.conflictFor > 0 {
		m.conflictFor--
		return apperror.Conflict("share token", id)
	}
	s, ok := m.summaries[id]
	if !ok || s.OwnerID != ownerID {
		return apperror.NotFound("summary", id)
	}
	s.ShareToken = token
	return nil
}

func (m *mockSummaryRepo) ListByOwner(_ context.Context, ownerID string, opts repository.ListOptions) ([]model.SummaryHeader, error) {
	var out []model.SummaryHeader
	for _, s := range m.summaries {
		if s.OwnerID == ownerID {
			out = append(out, s.Header())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Offset >= len(out) {
		return []model.SummaryHeader{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

type mockProfileRepo struct {
	profiles  map[string]*model.Profile
	ensureErr error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) EnsureProfile(_ context.Context, p *model.Profile) error {
	if m.ensureErr != nil {
		return m.ensureErr
	}
	if existing, ok := m.profiles[p.ID]; ok {
		existing.Email = p.Email
		*p = *existing
		return nil
	}
	stored := *p
	m.profiles[p.ID] = &stored
	return nil
}

func (m *mockProfileRepo) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	result := *p
	return &result, nil
}

func (m *mockProfileRepo) UpdateProfile(_ context.Context, p *model.Profile) error {
	if _, ok := m.profiles[p.ID]; !ok {
		return apperror.NotFound("profile", p.ID)
	}
	stored := *p
	m.profiles[p.ID] = &stored
	return nil
}

// =========================================================================
// FAKE GENERATOR
// =========================================================================

type fakeGenerator struct {
	result *generator.Result
	err    error
	calls  int
	during func() // runs while the completion is in flight
}

func (f *fakeGenerator) Generate(_ context.Context, in generator.Input) (*generator.Result, error) {
	f.calls++
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if f.during != nil {
		f.during()
	}
	return f.result, f.err
}

func readyResult() *generator.Result {
	return &generator.Result{
		Report: &model.Report{
			CandidateHeader: model.CandidateHeader{Name: "Ava Patel", Role: "Data Engineer", Company: "Acme"},
			EvidenceSummary: []string{"Ran Airflow at scale"},
		},
		Raw: "{}",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

func validFields() model.SummaryFields {
	return model.SummaryFields{
		CandidateName: "Ava Patel",
		RoleTitle:     "Data Engineer",
		CompanyName:   "Acme",
		HMNotes:       "Needs Airflow experience",
	}
}

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/generator"
	"github.com/sakif/aligned/internal/model"
)

func newTestSummaryService(gen *fakeGenerator) (*SummaryService, *mockSummaryRepo) {
	repo := newMockSummaryRepo()
	return NewSummaryService(repo, gen, "https://aligned.example.com/", testLogger()), repo
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_Draft(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{})

	s, err := svc.Create(context.Background(), ownerA, validFields())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Status != model.StatusDraft {
		t.Errorf("Status = %q, want draft", s.Status)
	}
	if s.OwnerID != ownerA {
		t.Errorf("OwnerID = %q, want %q", s.OwnerID, ownerA)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{})

	tests := []struct {
		name      string
		modify    func(*model.SummaryFields)
		wantField string
	}{
		{"missing candidate", func(f *model.SummaryFields) { f.CandidateName = "   " }, "candidateName"},
		{"missing role", func(f *model.SummaryFields) { f.RoleTitle = "" }, "roleTitle"},
		{"missing company", func(f *model.SummaryFields) { f.CompanyName = "" }, "companyName"},
		{"long candidate", func(f *model.SummaryFields) { f.CandidateName = strings.Repeat("a", MaxShortFieldLength+1) }, "candidateName"},
		{"long notes", func(f *model.SummaryFields) { f.HMNotes = strings.Repeat("a", MaxNotesLength+1) }, "hmNotes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.modify(&f)
			_, err := svc.Create(context.Background(), ownerA, f)

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want validation error", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

// =========================================================================
// GENERATE
// =========================================================================

func TestCreateThenGenerate_EndToEnd(t *testing.T) {
	gen := &fakeGenerator{result: readyResult()}
	svc, _ := newTestSummaryService(gen)
	ctx := context.Background()

	created, err := svc.Create(ctx, ownerA, validFields())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != model.StatusDraft {
		t.Fatalf("Status = %q, want draft", created.Status)
	}

	generated, err := svc.Generate(ctx, ownerA, created.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if generated.Status != model.StatusReady {
		t.Errorf("Status = %q, want ready", generated.Status)
	}
	if generated.Report.IsEmpty() {
		t.Error("ready summary has an empty report")
	}

	stored, _ := svc.Get(ctx, ownerA, created.ID)
	if stored.Status != model.StatusReady || stored.Report == nil {
		t.Errorf("stored summary = %+v, want ready with report", stored)
	}
}

func TestGenerate_InvalidInputMakesNoUpstreamCall(t *testing.T) {
	gen := &fakeGenerator{result: readyResult()}
	svc, repo := newTestSummaryService(gen)
	ctx := context.Background()

	f := validFields()
	f.HMNotes = ""
	created, err := svc.Create(ctx, ownerA, f)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Generate(ctx, ownerA, created.ID)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Generate() error = %v, want ErrValidation", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls)
	}
	if repo.summaries[created.ID].Status != model.StatusDraft {
		t.Error("a validation failure must not change the status")
	}
}

func TestGenerate_ParseFailureKeepsRawOutput(t *testing.T) {
	gen := &fakeGenerator{err: &generator.ParseError{Raw: "not json", Err: errors.New("bad")}}
	svc, repo := newTestSummaryService(gen)
	ctx := context.Background()
	created, _ := svc.Create(ctx, ownerA, validFields())

	s, err := svc.Generate(ctx, ownerA, created.ID)
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("Generate() error = %v, want ErrUpstream", err)
	}
	if s == nil || s.Status != model.StatusFailed {
		t.Fatalf("Generate() summary = %+v, want failed", s)
	}

	stored := repo.summaries[created.ID]
	if stored.Status != model.StatusFailed {
		t.Errorf("stored Status = %q, want failed", stored.Status)
	}
	if stored.RawOutput != "not json" {
		t.Errorf("RawOutput = %q, want the raw reply", stored.RawOutput)
	}
	if stored.ErrorMessage == "" {
		t.Error("ErrorMessage should explain the failure")
	}
}

func TestGenerate_FailureMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{generator.ErrTimeout, "timed out"},
		{&generator.UpstreamError{Status: 503, Body: "secret upstream detail"}, "status 503"},
		{generator.ErrEmptyCompletion, "empty reply"},
		{errors.New("dial tcp: refused"), "report generation failed"},
	}
	for _, tt := range tests {
		svc, repo := newTestSummaryService(&fakeGenerator{err: tt.err})
		created, _ := svc.Create(context.Background(), ownerA, validFields())

		_, err := svc.Generate(context.Background(), ownerA, created.ID)
		if err == nil {
			t.Fatalf("Generate() with %v: expected error", tt.err)
		}
		msg := repo.summaries[created.ID].ErrorMessage
		if !strings.Contains(msg, tt.want) {
			t.Errorf("ErrorMessage = %q, want it to contain %q", msg, tt.want)
		}
		if strings.Contains(msg, "secret upstream detail") {
			t.Errorf("ErrorMessage leaks the upstream body: %q", msg)
		}
	}
}

func TestGenerate_RegenerateClearsFailure(t *testing.T) {
	gen := &fakeGenerator{err: generator.ErrTimeout}
	svc, repo := newTestSummaryService(gen)
	ctx := context.Background()
	created, _ := svc.Create(ctx, ownerA, validFields())

	svc.Generate(ctx, ownerA, created.ID)

	gen.err = nil
	gen.result = readyResult()
	s, err := svc.Generate(ctx, ownerA, created.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if s.Status != model.StatusReady || repo.summaries[created.ID].ErrorMessage != "" {
		t.Errorf("summary = %+v, want ready with no error", repo.summaries[created.ID])
	}
}

func TestGenerate_KeepsEditsMadeDuringGeneration(t *testing.T) {
	gen := &fakeGenerator{result: readyResult()}
	svc, repo := newTestSummaryService(gen)
	ctx := context.Background()
	created, _ := svc.Create(ctx, ownerA, validFields())

	notes := "Prefers a remote-first team"
	gen.during = func() {
		if _, err := svc.Update(ctx, ownerA, created.ID, model.SummaryPatch{RecruiterNotes: &notes}); err != nil {
			t.Errorf("Update() during generation: error = %v", err)
		}
	}

	s, err := svc.Generate(ctx, ownerA, created.ID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	stored := repo.summaries[created.ID]
	if stored.RecruiterNotes != notes {
		t.Errorf("stored RecruiterNotes = %q, the edit was overwritten", stored.RecruiterNotes)
	}
	if stored.Status != model.StatusReady || stored.Report == nil {
		t.Errorf("stored summary = %+v, want ready with a report", stored)
	}
	if s.RecruiterNotes != notes {
		t.Errorf("returned RecruiterNotes = %q, want the edited notes", s.RecruiterNotes)
	}
}

func TestGenerate_FailureKeepsEditsMadeDuringGeneration(t *testing.T) {
	gen := &fakeGenerator{err: generator.ErrTimeout}
	svc, repo := newTestSummaryService(gen)
	ctx := context.Background()
	created, _ := svc.Create(ctx, ownerA, validFields())

	name := "Ava R. Patel"
	gen.during = func() {
		svc.Update(ctx, ownerA, created.ID, model.SummaryPatch{CandidateName: &name})
	}

	if _, err := svc.Generate(ctx, ownerA, created.ID); !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("Generate() error = %v, want ErrUpstream", err)
	}

	stored := repo.summaries[created.ID]
	if stored.CandidateName != name {
		t.Errorf("stored CandidateName = %q, the edit was overwritten", stored.CandidateName)
	}
	if stored.Status != model.StatusFailed {
		t.Errorf("stored Status = %q, want failed", stored.Status)
	}
}

func TestGenerate_OtherOwnerIsNotFound(t *testing.T) {
	gen := &fakeGenerator{result: readyResult()}
	svc, _ := newTestSummaryService(gen)
	created, _ := svc.Create(context.Background(), ownerA, validFields())

	_, err := svc.Generate(context.Background(), ownerB, created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Generate() error = %v, want ErrNotFound", err)
	}
	if gen.calls != 0 {
		t.Error("generator must not run for a foreign summary")
	}
}

func TestCreateAndGenerate(t *testing.T) {
	gen := &fakeGenerator{result: readyResult()}
	svc, repo := newTestSummaryService(gen)

	s, err := svc.CreateAndGenerate(context.Background(), ownerA, validFields())
	if err != nil {
		t.Fatalf("CreateAndGenerate() error = %v", err)
	}
	if s.Status != model.StatusReady {
		t.Errorf("Status = %q, want ready", s.Status)
	}

	f := validFields()
	f.HMNotes = ""
	if _, err := svc.CreateAndGenerate(context.Background(), ownerA, f); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CreateAndGenerate() error = %v, want ErrValidation", err)
	}
	if len(repo.summaries) != 1 {
		t.Errorf("a rejected form stored %d summaries, want 1 total", len(repo.summaries))
	}
}

// =========================================================================
// UPDATE / LIST
// =========================================================================

func TestUpdate_Patch(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{})
	created, _ := svc.Create(context.Background(), ownerA, validFields())

	notes := "  Referred by the platform team  "
	updated, err := svc.Update(context.Background(), ownerA, created.ID, model.SummaryPatch{RecruiterNotes: &notes})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.RecruiterNotes != "Referred by the platform team" {
		t.Errorf("RecruiterNotes = %q", updated.RecruiterNotes)
	}
	if updated.CandidateName != "Ava Patel" {
		t.Errorf("CandidateName = %q, nil patch fields must be kept", updated.CandidateName)
	}

	empty := ""
	_, err = svc.Update(context.Background(), ownerA, created.ID, model.SummaryPatch{CandidateName: &empty})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("blanking a required field: error = %v, want ErrValidation", err)
	}

	_, err = svc.Update(context.Background(), ownerB, created.ID, model.SummaryPatch{RecruiterNotes: &notes})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("foreign update: error = %v, want ErrNotFound", err)
	}
}

func TestList_ScopedToOwner(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{})
	ctx := context.Background()
	svc.Create(ctx, ownerA, validFields())
	svc.Create(ctx, ownerA, validFields())
	svc.Create(ctx, ownerB, validFields())

	headers, err := svc.List(ctx, ownerA, 0, -5)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(headers) != 2 {
		t.Errorf("List() returned %d, want 2", len(headers))
	}
}

// =========================================================================
// SHARE
// =========================================================================

func TestShare(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{result: readyResult()})
	ctx := context.Background()
	s, _ := svc.CreateAndGenerate(ctx, ownerA, validFields())

	url, err := svc.Share(ctx, ownerA, s.ID)
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	const prefix = "https://aligned.example.com/share/"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("Share() = %q, want prefix %q", url, prefix)
	}
	token := strings.TrimPrefix(url, prefix)
	if len(token) != 32 {
		t.Errorf("token length = %d, want 32", len(token))
	}

	again, _ := svc.Share(ctx, ownerA, s.ID)
	if again != url {
		t.Errorf("Share() is not idempotent: %q then %q", url, again)
	}

	shared, err := svc.GetShared(ctx, token)
	if err != nil || shared.ID != s.ID {
		t.Errorf("GetShared() = %v, %v", shared, err)
	}
	if _, err := svc.GetShared(ctx, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetShared(record id) error = %v, want ErrNotFound", err)
	}
}

func TestShare_RequiresReadyReport(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{})
	s, _ := svc.Create(context.Background(), ownerA, validFields())

	_, err := svc.Share(context.Background(), ownerA, s.ID)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Share() of a draft: error = %v, want ErrValidation", err)
	}
}

func TestShare_RetriesTokenCollision(t *testing.T) {
	svc, repo := newTestSummaryService(&fakeGenerator{result: readyResult()})
	s, _ := svc.CreateAndGenerate(context.Background(), ownerA, validFields())
	repo.conflictFor = 1

	if _, err := svc.Share(context.Background(), ownerA, s.ID); err != nil {
		t.Errorf("Share() error = %v, one collision should be retried", err)
	}
}

func TestShare_OtherOwner(t *testing.T) {
	svc, _ := newTestSummaryService(&fakeGenerator{result: readyResult()})
	s, _ := svc.CreateAndGenerate(context.Background(), ownerA, validFields())

	if _, err := svc.Share(context.Background(), ownerB, s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Share() by non-owner: error = %v, want ErrNotFound", err)
	}
}

package generator

import (
	"errors"
	"testing"

	"github.com/sakif/aligned/internal/apperror"
)

func TestInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Input)
		wantField string
	}{
		{"valid", func(*Input) {}, ""},
		{"only recruiter notes", func(in *Input) { in.JobDescription, in.HMNotes, in.RecruiterNotes = "", "", "Strong referral" }, ""},
		{"no company is fine", func(in *Input) { in.CompanyName = "" }, ""},
		{"missing candidate", func(in *Input) { in.CandidateName = "  " }, "candidateName"},
		{"missing role", func(in *Input) { in.RoleTitle = "" }, "roleTitle"},
		{"no context at all", func(in *Input) { in.JobDescription, in.HMNotes, in.RecruiterNotes = "", " ", "" }, "jobDescription"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput
			tt.modify(&in)
			err := in.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Validate() error = %v, want validation error", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

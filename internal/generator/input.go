// Package generator turns recruiter input into a structured trust report by
// prompting a hosted completion API and parsing its JSON reply.
package generator

import (
	"strings"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
)

// Input is everything the prompt is built from.
type Input struct {
	CandidateName  string
	RoleTitle      string
	CompanyName    string
	JobDescription string
	HMNotes        string
	RecruiterNotes string
}

// InputFromSummary copies the recruiter-entered fields of s.
func InputFromSummary(s *model.Summary) Input {
	return Input{
		CandidateName:  s.CandidateName,
		RoleTitle:      s.RoleTitle,
		CompanyName:    s.CompanyName,
		JobDescription: s.JobDescription,
		HMNotes:        s.HMNotes,
		RecruiterNotes: s.RecruiterNotes,
	}
}

// Validate rejects input that cannot produce a meaningful report. It runs
// before any upstream call.
func (in Input) Validate() error {
	if strings.TrimSpace(in.CandidateName) == "" {
		return apperror.ValidationFailed("candidateName", "candidate name is required")
	}
	if strings.TrimSpace(in.RoleTitle) == "" {
		return apperror.ValidationFailed("roleTitle", "role title is required")
	}
	if strings.TrimSpace(in.JobDescription) == "" &&
		strings.TrimSpace(in.HMNotes) == "" &&
		strings.TrimSpace(in.RecruiterNotes) == "" {
		return apperror.ValidationFailed("jobDescription",
			"add a job description, hiring manager notes or recruiter notes")
	}
	return nil
}

// Package model defines the data structures used throughout the application.
package model

import "time"

// SummaryStatus tracks where a candidate report is in its lifecycle.
//
//	draft ──generate ok──▶ ready
//	  │                      ▲
//	  └──generate fail──▶ failed ──regenerate ok──┘
type SummaryStatus string

const (
	StatusDraft  SummaryStatus = "draft"
	StatusReady  SummaryStatus = "ready"
	StatusFailed SummaryStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s SummaryStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Summary is a candidate trust report: the recruiter's raw input, the
// generated report, and the optional public share token.
//
// Every summary has exactly one owner. The only unauthenticated way to read
// one is through ShareToken.
type Summary struct {
	ID      string `json:"id"      db:"id"`
	OwnerID string `json:"ownerId" db:"owner_id"`

	CandidateName string `json:"candidateName" db:"candidate_name"`
	RoleTitle     string `json:"roleTitle"     db:"role_title"`
	CompanyName   string `json:"companyName"   db:"company_name"`

	JobDescription string `json:"jobDescription" db:"job_description"`
	HMNotes        string `json:"hmNotes"        db:"hm_notes"`
	RecruiterNotes string `json:"recruiterNotes" db:"recruiter_notes"`

	Status SummaryStatus `json:"status" db:"status"`
	Report *Report       `json:"report,omitempty" db:"report"`

	// RawOutput holds the completion text when it could not be parsed, so a
	// malformed reply is never silently dropped.
	RawOutput    string `json:"-"                      db:"raw_output"`
	ErrorMessage string `json:"errorMessage,omitempty" db:"error_message"`

	ShareToken string `json:"shareToken,omitempty" db:"share_token"` // empty = not shared

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Header returns the list-view projection of s.
func (s *Summary) Header() SummaryHeader {
	return SummaryHeader{
		ID:            s.ID,
		CandidateName: s.CandidateName,
		RoleTitle:     s.RoleTitle,
		CompanyName:   s.CompanyName,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
	}
}

// SummaryHeader is the lightweight row shown on the dashboard.
type SummaryHeader struct {
	ID            string        `json:"id"`
	CandidateName string        `json:"candidateName"`
	RoleTitle     string        `json:"roleTitle"`
	CompanyName   string        `json:"companyName"`
	Status        SummaryStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// SummaryFields are the recruiter-editable inputs of a summary.
type SummaryFields struct {
	CandidateName  string `json:"candidateName"`
	RoleTitle      string `json:"roleTitle"`
	CompanyName    string `json:"companyName"`
	JobDescription string `json:"jobDescription"`
	HMNotes        string `json:"hmNotes"`
	RecruiterNotes string `json:"recruiterNotes"`
}

// SummaryPatch is a partial update. Nil fields are left unchanged.
type SummaryPatch struct {
	CandidateName  *string `json:"candidateName,omitempty"`
	RoleTitle      *string `json:"roleTitle,omitempty"`
	CompanyName    *string `json:"companyName,omitempty"`
	JobDescription *string `json:"jobDescription,omitempty"`
	HMNotes        *string `json:"hmNotes,omitempty"`
	RecruiterNotes *string `json:"recruiterNotes,omitempty"`
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

var _ repository.SummaryRepository = (*DB)(nil)

const summaryColumns = `id, owner_id, candidate_name, role_title, company_name,
	job_description, hm_notes, recruiter_notes, status, report, raw_output,
	error_message, share_token, created_at, updated_at`

// Create inserts a new summary. The ID (an xid: 20 URL-safe chars, sortable
// by creation time) and both timestamps are assigned here.
func (db *DB) Create(ctx context.Context, s *model.Summary) error {
	report, err := repository.EncodeReport(s.Report)
	if err != nil {
		return fmt.Errorf("sqlite: creating summary: %w", err)
	}

	s.ID = xid.New().String()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.StatusDraft
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO summaries (`+summaryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.OwnerID, s.CandidateName, s.RoleTitle, s.CompanyName,
		s.JobDescription, s.HMNotes, s.RecruiterNotes, string(s.Status), report, s.RawOutput,
		s.ErrorMessage, repository.NullableToken(s.ShareToken), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating summary: %w", err)
	}
	return nil
}

// GetByID returns the summary only if ownerID owns it. A summary that exists
// under another owner is reported exactly like a missing one.
func (db *DB) GetByID(ctx context.Context, id, ownerID string) (*model.Summary, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("summary", id)
		}
		return nil, fmt.Errorf("sqlite: getting summary %s: %w", id, err)
	}
	return s, nil
}

// GetByShareToken looks a summary up by its public token, across owners.
func (db *DB) GetByShareToken(ctx context.Context, token string) (*model.Summary, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.NotFound("shared summary", "(empty)")
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE share_token = ?`,
		token,
	)
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("shared summary", "(token)")
		}
		return nil, fmt.Errorf("sqlite: getting shared summary: %w", err)
	}
	return s, nil
}

// Update writes every mutable column. The owner filter is part of the WHERE
// clause, so updating someone else's row affects zero rows → NotFound.
func (db *DB) Update(ctx context.Context, s *model.Summary) error {
	s.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE summaries
		 SET candidate_name = ?, role_title = ?, company_name = ?,
		     job_description = ?, hm_notes = ?, recruiter_notes = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		s.CandidateName, s.RoleTitle, s.CompanyName,
		s.JobDescription, s.HMNotes, s.RecruiterNotes, s.UpdatedAt,
		s.ID, s.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating summary %s: %w", s.ID, err)
	}
	return expectOneRow(result, "summary", s.ID)
}

func (db *DB) SaveGeneration(ctx context.Context, s *model.Summary) error {
	report, err := repository.EncodeReport(s.Report)
	if err != nil {
		return fmt.Errorf("sqlite: saving generation for %s: %w", s.ID, err)
	}
	s.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE summaries
		 SET status = ?, report = ?, raw_output = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		string(s.Status), report, s.RawOutput, s.ErrorMessage, s.UpdatedAt,
		s.ID, s.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving generation for %s: %w", s.ID, err)
	}
	return expectOneRow(result, "summary", s.ID)
}

// SetShareToken attaches a public token to an owned summary.
func (db *DB) SetShareToken(ctx context.Context, id, ownerID, token string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE summaries SET share_token = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		repository.NullableToken(token), time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("share token", id)
		}
		return fmt.Errorf("sqlite: setting share token on %s: %w", id, err)
	}
	return expectOneRow(result, "summary", id)
}

// ListByOwner returns the owner's summaries, newest first.
func (db *DB) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.SummaryHeader, error) {
	opts = repository.ClampList(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, candidate_name, role_title, company_name, status, created_at
		 FROM summaries
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		ownerID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing summaries: %w", err)
	}
	defer rows.Close()

	headers := make([]model.SummaryHeader, 0, opts.Limit)
	for rows.Next() {
		var h model.SummaryHeader
		var status string
		if err := rows.Scan(&h.ID, &h.CandidateName, &h.RoleTitle, &h.CompanyName, &status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning summary row: %w", err)
		}
		h.Status = model.SummaryStatus(status)
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating summaries: %w", err)
	}
	return headers, nil
}

func scanSummary(row *sql.Row) (*model.Summary, error) {
	var (
		s          model.Summary
		status     string
		report     sql.NullString
		shareToken sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.CandidateName, &s.RoleTitle, &s.CompanyName,
		&s.JobDescription, &s.HMNotes, &s.RecruiterNotes, &status, &report, &s.RawOutput,
		&s.ErrorMessage, &shareToken, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.SummaryStatus(status)
	s.ShareToken = shareToken.String
	if report.Valid {
		r, err := repository.DecodeReport(&report.String)
		if err != nil {
			return nil, err
		}
		s.Report = r
	}
	return &s, nil
}

func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

var _ repository.SummaryRepository = (*DB)(nil)

const summaryColumns = `id, owner_id, candidate_name, role_title, company_name,
	job_description, hm_notes, recruiter_notes, status, report, raw_output,
	error_message, share_token, created_at, updated_at`

// uniqueViolation is the SQLSTATE for a UNIQUE constraint failure.
const uniqueViolation = "23505"

func (db *DB) Create(ctx context.Context, s *model.Summary) error {
	report, err := repository.EncodeReport(s.Report)
	if err != nil {
		return fmt.Errorf("postgres: creating summary: %w", err)
	}

	s.ID = xid.New().String()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = model.StatusDraft
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO summaries (`+summaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, s.ID, s.OwnerID, s.CandidateName, s.RoleTitle, s.CompanyName,
		s.JobDescription, s.HMNotes, s.RecruiterNotes, string(s.Status), report, s.RawOutput,
		s.ErrorMessage, repository.NullableToken(s.ShareToken), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: creating summary: %w", err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id, ownerID string) (*model.Summary, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("summary", id)
		}
		return nil, fmt.Errorf("postgres: getting summary %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) GetByShareToken(ctx context.Context, token string) (*model.Summary, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.NotFound("shared summary", "(empty)")
	}

	row := db.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE share_token = $1`,
		token,
	)
	s, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("shared summary", "(token)")
		}
		return nil, fmt.Errorf("postgres: getting shared summary: %w", err)
	}
	return s, nil
}

func (db *DB) Update(ctx context.Context, s *model.Summary) error {
	s.UpdatedAt = time.Now().UTC()

	tag, err := db.pool.Exec(ctx, `
		UPDATE summaries
		SET candidate_name = $1, role_title = $2, company_name = $3,
		    job_description = $4, hm_notes = $5, recruiter_notes = $6, updated_at = $7
		WHERE id = $8 AND owner_id = $9
	`, s.CandidateName, s.RoleTitle, s.CompanyName,
		s.JobDescription, s.HMNotes, s.RecruiterNotes, s.UpdatedAt,
		s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("postgres: updating summary %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("summary", s.ID)
	}
	return nil
}

func (db *DB) SaveGeneration(ctx context.Context, s *model.Summary) error {
	report, err := repository.EncodeReport(s.Report)
	if err != nil {
		return fmt.Errorf("postgres: saving generation for %s: %w", s.ID, err)
	}
	s.UpdatedAt = time.Now().UTC()

	tag, err := db.pool.Exec(ctx, `
		UPDATE summaries
		SET status = $1, report = $2, raw_output = $3, error_message = $4, updated_at = $5
		WHERE id = $6 AND owner_id = $7
	`, string(s.Status), report, s.RawOutput, s.ErrorMessage, s.UpdatedAt,
		s.ID, s.OwnerID)
	if err != nil {
		return fmt.Errorf("postgres: saving generation for %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("summary", s.ID)
	}
	return nil
}

func (db *DB) SetShareToken(ctx context.Context, id, ownerID, token string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE summaries SET share_token = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4`,
		repository.NullableToken(token), time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.Conflict("share token", id)
		}
		return fmt.Errorf("postgres: setting share token on %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("summary", id)
	}
	return nil
}

func (db *DB) ListByOwner(ctx context.Context, ownerID string, opts repository.ListOptions) ([]model.SummaryHeader, error) {
	opts = repository.ClampList(opts)

	rows, err := db.pool.Query(ctx, `
		SELECT id, candidate_name, role_title, company_name, status, created_at
		FROM summaries
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ownerID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing summaries: %w", err)
	}
	defer rows.Close()

	headers := make([]model.SummaryHeader, 0, opts.Limit)
	for rows.Next() {
		var h model.SummaryHeader
		var status string
		if err := rows.Scan(&h.ID, &h.CandidateName, &h.RoleTitle, &h.CompanyName, &status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning summary row: %w", err)
		}
		h.Status = model.SummaryStatus(status)
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating summaries: %w", err)
	}
	return headers, nil
}

func scanSummary(row pgx.Row) (*model.Summary, error) {
	var (
		s          model.Summary
		status     string
		report     *string
		shareToken *string
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
	if shareToken != nil {
		s.ShareToken = *shareToken
	}
	s.Report, err = repository.DecodeReport(report)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// EnsureProfile creates the profile on first sign-in. On later sign-ins only
// the email is refreshed; the name and avatar the user edited are kept.
func (db *DB) EnsureProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET email = excluded.email`,
		p.ID, p.Email, p.FullName, p.AvatarURL, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: ensuring profile %s: %w", p.ID, err)
	}

	stored, err := db.GetProfile(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, full_name, avatar_url, created_at, updated_at
		 FROM profiles WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return &p, nil
}

func (db *DB) UpdateProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE profiles SET full_name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		p.FullName, p.AvatarURL, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", p.ID, err)
	}
	return expectOneRow(result, "profile", p.ID)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/aligned/internal/apperror"
	"github.com/sakif/aligned/internal/model"
	"github.com/sakif/aligned/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

// EnsureProfile upserts on sign-in, refreshing only the email.
func (db *DB) EnsureProfile(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	row := db.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, email, full_name, avatar_url, created_at, updated_at
	`, p.ID, p.Email, p.FullName, p.AvatarURL, now)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: ensuring profile %s: %w", p.ID, err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := db.pool.QueryRow(ctx, `
		SELECT id, email, full_name, avatar_url, created_at, updated_at
		FROM profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("profile", id)
		}
		return nil, fmt.Errorf("postgres: getting profile %s: %w", id, err)
	}
	return &p, nil
}

func (db *DB) UpdateProfile(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE profiles SET full_name = $1, avatar_url = $2, updated_at = $3 WHERE id = $4`,
		p.FullName, p.AvatarURL, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating profile %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("profile", p.ID)
	}
	return nil
}

// Package repository declares the storage contracts the service layer depends on.
//
// Every summary read or write except GetByShareToken takes the owner ID and
// implementations must filter on it in SQL, even when the database also
// enforces row-level security.
package repository

import (
	"context"

	"github.com/sakif/aligned/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type SummaryRepository interface {
	Create(ctx context.Context, summary *model.Summary) error
	GetByID(ctx context.Context, id, ownerID string) (*model.Summary, error)
	// GetByShareToken is the one lookup that is not owner-scoped.
	GetByShareToken(ctx context.Context, token string) (*model.Summary, error)
	// Update writes the editable input fields only.
	Update(ctx context.Context, summary *model.Summary) error
	// SaveGeneration writes the outcome of a generation run: status, report,
	// raw output and error message. Input fields are left as stored.
	SaveGeneration(ctx context.Context, summary *model.Summary) error
	SetShareToken(ctx context.Context, id, ownerID, token string) error
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]model.SummaryHeader, error)
}

type ProfileRepository interface {
	// EnsureProfile inserts the profile if it does not exist yet and always
	// loads the stored row back into p.
	EnsureProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, p *model.Profile) error
}

// Store is what a storage backend provides to the server.
type Store interface {
	SummaryRepository
	ProfileRepository
	Ping(ctx context.Context) error
	Close() error
}

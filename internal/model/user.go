package model

import "time"

// User is the identity the passwordless provider vouches for.
// ID is the provider's UUID and doubles as the Profile primary key.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the provider-issued token pair plus the identity it belongs to.
// The application only ever holds it in cookies.
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"user"`
}

// Profile is the application's own record for a user, created on first
// sign-in and edited from the settings page.
type Profile struct {
	ID        string    `json:"id"        db:"id"`
	Email     string    `json:"email"     db:"email"`
	FullName  string    `json:"fullName"  db:"full_name"`
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName prefers the full name and falls back to the email address.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

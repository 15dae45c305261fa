// Package auth holds everything between the browser and the identity
// provider: access-token verification, session cookies, safe redirects, the
// magic-link callback bridge and the authentication middleware.
//
// Access tokens are minted by the provider, not by this service. They are
// HS256 JWTs signed with the project's JWT secret, so they can be verified
// locally without a network call:
//
//	{"sub":"<user uuid>","email":"…","aud":"authenticated","exp":…}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sakif/aligned/internal/model"
)

// Audience the provider stamps on tokens of signed-in users.
const Audience = "authenticated"

// ErrTokenExpired lets the middleware tell an expired token (try a refresh)
// from a forged one.
var ErrTokenExpired = errors.New("auth: token expired")

// TokenVerifier checks provider-issued access tokens.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, errors.New("auth: JWT secret must be at least 32 characters")
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verify returns the user an access token belongs to.
//
// Besides the signature it requires an expiry, the "authenticated" audience
// and a UUID subject. Pinning the method list to HS256 rejects "alg: none".
func (v *TokenVerifier) Verify(tokenStr string) (*model.User, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth: token subject is not a user id")
	}

	return &model.User{ID: id.String(), Email: c.Email}, nil
}

// Sign mints a token the way the provider does. Production code never calls
// it; it exists for tests and local tooling that need a valid session.
func (v *TokenVerifier) Sign(user model.User, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Package credstore persists user credential records.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quatton/qtube/pkg/db/models"
)

var (
	ErrNotFound  = errors.New("credstore: user not found")
	ErrDuplicate = errors.New("credstore: username or email already taken")
	ErrInvalid   = errors.New("credstore: invalid user record")
)

// Identity selects a user by username, email, or either. Empty fields are
// ignored; a match on any non-empty field is enough.
type Identity struct {
	Username string
	Email    string
}

func (i Identity) normalized() Identity {
	return Identity{
		Username: strings.ToLower(strings.TrimSpace(i.Username)),
		Email:    strings.ToLower(strings.TrimSpace(i.Email)),
	}
}

func (i Identity) empty() bool {
	return i.Username == "" && i.Email == ""
}

// SaveOptions controls Save. Validate runs the full record validation before
// writing; token rotation skips it because only the refresh token changed.
type SaveOptions struct {
	Validate bool
}

type Store interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIdentity(ctx context.Context, identity Identity) (*models.User, error)
	// Create inserts user and returns the stored record with its generated
	// id. Uniqueness violations are reported as ErrDuplicate.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Save(ctx context.Context, user *models.User, opts SaveOptions) error
}

// Validate checks the invariants every stored user must satisfy.
func Validate(u *models.User) error {
	var missing []string
	if strings.TrimSpace(u.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(u.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(u.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if u.PasswordHash == "" {
		missing = append(missing, "password_hash")
	}
	if u.AvatarURL == "" {
		missing = append(missing, "avatar_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if u.Username != strings.ToLower(u.Username) {
		return fmt.Errorf("%w: username must be lowercase", ErrInvalid)
	}
	return nil
}

// normalize lowercases the identity fields in place.
func normalize(u *models.User) {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
}

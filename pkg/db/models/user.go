package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the credential record. RefreshToken holds the one refresh token
// that is currently valid for the user; empty means logged out.
type User struct {
	bun.BaseModel `bun:"table:accounts.users,alias:u"`

	ID            uuid.UUID `bun:"type:uuid,default:gen_random_uuid(),pk"`
	Username      string    `bun:"username,unique,notnull"`
	Email         string    `bun:"email,unique,notnull"`
	FullName      string    `bun:"full_name,notnull"`
	PasswordHash  string    `bun:"password_hash,notnull"`
	AvatarURL     string    `bun:"avatar_url,notnull"`
	CoverImageURL string    `bun:"cover_image_url,nullzero"`
	RefreshToken  string    `bun:"refresh_token,nullzero"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qtube/pkg/db/models"
	"github.com/uptrace/bun"
)

// uniqueViolation is the postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// BunStore implements Store on postgres through bun.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var user models.User
	err = s.db.NewSelect().
		Model(&user).
		Where("u.id = ?", uid).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &user, nil
}

func (s *BunStore) FindByIdentity(ctx context.Context, identity Identity) (*models.User, error) {
	identity = identity.normalized()
	if identity.empty() {
		return nil, ErrNotFound
	}

	var user models.User
	err := s.db.NewSelect().
		Model(&user).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if identity.Username != "" {
				q = q.WhereOr("u.username = ?", identity.Username)
			}
			if identity.Email != "" {
				q = q.WhereOr("lower(u.email) = ?", identity.Email)
			}
			return q
		}).
		OrderExpr("u.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &user, nil
}

func (s *BunStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	normalize(user)
	if err := Validate(user); err != nil {
		return nil, err
	}

	created := *user
	_, err := s.db.NewInsert().
		Model(&created).
		ExcludeColumn("id", "created_at", "updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &created, nil
}

func (s *BunStore) Save(ctx context.Context, user *models.User, opts SaveOptions) error {
	if opts.Validate {
		normalize(user)
		if err := Validate(user); err != nil {
			return err
		}
	}

	user.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().
		Model(user).
		ExcludeColumn("id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation matches pgdriver.Error without importing the driver
// into callers' error handling.
func isUniqueViolation(err error) bool {
	var pgErr interface{ Field(byte) string }
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolation
	}
	return false
}

var _ Store = (*BunStore)(nil)

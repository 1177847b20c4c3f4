package credstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/qtube/pkg/db/models"
)

// MemoryStore is an in-process Store for tests and `run --memory`.
// Records are copied on the way in and out so callers never share state.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]*models.User
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[uuid.UUID]*models.User),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[uid]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) FindByIdentity(_ context.Context, identity Identity) (*models.User, error) {
	identity = identity.normalized()
	if identity.empty() {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Same rule as the SQL store: when username and email name different
	// users, the oldest account wins.
	var found *models.User
	for _, id := range s.identityMatches(identity) {
		u := s.byID[id]
		if found == nil || u.CreatedAt.Before(found.CreatedAt) {
			found = u
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	cp := *found
	return &cp, nil
}

func (s *MemoryStore) identityMatches(identity Identity) []uuid.UUID {
	var ids []uuid.UUID
	if identity.Username != "" {
		if id, ok := s.byUsername[identity.Username]; ok {
			ids = append(ids, id)
		}
	}
	if identity.Email != "" {
		if id, ok := s.byEmail[identity.Email]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *MemoryStore) Create(_ context.Context, user *models.User) (*models.User, error) {
	normalize(user)
	if err := Validate(user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[user.Username]; ok {
		return nil, ErrDuplicate
	}
	if _, ok := s.byEmail[user.Email]; ok {
		return nil, ErrDuplicate
	}

	now := time.Now()
	stored := *user
	stored.ID = uuid.New()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	s.byEmail[stored.Email] = stored.ID

	cp := stored
	return &cp, nil
}

func (s *MemoryStore) Save(_ context.Context, user *models.User, opts SaveOptions) error {
	if opts.Validate {
		normalize(user)
		if err := Validate(user); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	if id, taken := s.byUsername[user.Username]; taken && id != user.ID {
		return ErrDuplicate
	}
	if id, taken := s.byEmail[user.Email]; taken && id != user.ID {
		return ErrDuplicate
	}

	delete(s.byUsername, old.Username)
	delete(s.byEmail, old.Email)

	stored := *user
	stored.CreatedAt = old.CreatedAt
	stored.UpdatedAt = time.Now()
	s.byID[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	s.byEmail[stored.Email] = stored.ID
	return nil
}

var _ Store = (*MemoryStore)(nil)

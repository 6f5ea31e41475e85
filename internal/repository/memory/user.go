// Package memory holds in-process implementations of the repository interfaces.
// They honour the same atomicity contract as the SQL repositories.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

type UserStore struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*model.User
	byEmail map[string]int64
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[int64]*model.User),
		byEmail: make(map[string]int64),
	}
}

func (s *UserStore) Create(ctx context.Context, draft model.UserDraft) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[draft.Email]; exists {
		return nil, fmt.Errorf("failed to create user: %w: email %q", repository.ErrDuplicate, draft.Email)
	}

	s.nextID++
	user := draft.Commit(s.nextID, time.Now().UTC())
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID

	cp := *user
	return &cp, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

var _ repository.UserRepository = (*UserStore)(nil)

package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

// MovementStore keeps the movement log in memory.
//
// Writers serialize per user through a lock channel per user id, so waiting for a
// lock can be abandoned through the context. Appends are staged inside a unit of
// work and published under mu in one step, so readers never observe half of a
// transfer.
type MovementStore struct {
	mu        sync.RWMutex
	movements map[int64][]*model.Movement
	byID      map[uuid.UUID]*model.Movement

	locksMu sync.Mutex
	locks   map[int64]chan struct{}
}

func NewMovementStore() *MovementStore {
	return &MovementStore{
		movements: make(map[int64][]*model.Movement),
		byID:      make(map[uuid.UUID]*model.Movement),
		locks:     make(map[int64]chan struct{}),
	}
}

func (s *MovementStore) userLock(userID int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[userID] = l
	}
	return l
}

func (s *MovementStore) Atomic(ctx context.Context, userIDs []int64, fn func(ctx context.Context, tx repository.MovementTx) error) error {
	ids := repository.LockOrder(userIDs)

	held := make([]chan struct{}, 0, len(ids))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}()

	for _, id := range ids {
		l := s.userLock(id)
		select {
		case l <- struct{}{}:
			held = append(held, l)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tx := &movementTx{store: s, locked: make(map[int64]bool, len(ids)), now: time.Now().UTC()}
	for _, id := range ids {
		tx.locked[id] = true
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range tx.staged {
		s.movements[m.UserID] = append(s.movements[m.UserID], m)
		s.byID[m.ID] = m
	}
	return nil
}

func (s *MovementStore) ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMovements(s.movements[userID]), nil
}

func (s *MovementStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

// movementTx stamps every append with the time the unit of work started, so
// both halves of a transfer carry the same timestamp.
type movementTx struct {
	store  *MovementStore
	locked map[int64]bool
	staged []*model.Movement
	now    time.Time
}

func (t *movementTx) ListByUser(ctx context.Context, userID int64) ([]*model.Movement, error) {
	out, err := t.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range t.staged {
		if m.UserID == userID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *movementTx) Append(ctx context.Context, draft model.MovementDraft) (*model.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !t.locked[draft.UserID] {
		return nil, fmt.Errorf("failed to append movement: user %d is not locked by this unit of work", draft.UserID)
	}

	m := draft.Commit(uuid.New(), t.now)
	t.staged = append(t.staged, m)

	cp := *m
	return &cp, nil
}

func copyMovements(in []*model.Movement) []*model.Movement {
	out := make([]*model.Movement, 0, len(in))
	for _, m := range in {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

var _ repository.MovementRepository = (*MovementStore)(nil)

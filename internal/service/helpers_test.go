package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/events"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
	"github.com/Evgen-Mutagen/finledger/internal/repository/memory"
)

type fixture struct {
	users     *memory.UserStore
	movements *memory.MovementStore
	published *recordingPublisher
	ledger    core.LedgerService
	balance   core.BalanceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     memory.NewUserStore(),
		movements: memory.NewMovementStore(),
		published: &recordingPublisher{},
	}
	f.ledger = NewLedgerService(f.users, f.movements, f.published, DefaultMaxRetries, zap.NewNop())
	f.balance = NewBalanceService(f.users, f.movements)
	return f
}

func (f *fixture) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), model.UserDraft{
		Email:        email,
		Name:         "Gabriel Gamboa",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) record(t *testing.T, userID int64, kind model.Kind, amount string) (*model.Recorded, error) {
	t.Helper()
	return f.ledger.RecordMovement(context.Background(), userID, kind, dec(amount), "Statement example", nil)
}

func (f *fixture) mustRecord(t *testing.T, userID int64, kind model.Kind, amount string) *model.Recorded {
	t.Helper()
	recorded, err := f.record(t, userID, kind, amount)
	require.NoError(t, err)
	return recorded
}

func (f *fixture) statement(t *testing.T, userID int64) *model.Statement {
	t.Helper()
	st, err := f.balance.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return st
}

func (f *fixture) logLen(t *testing.T, userID int64) int {
	t.Helper()
	movements, err := f.movements.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	return len(movements)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(v int64) *int64 {
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.MovementRecorded
	calls  int
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, batch ...events.MovementRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, batch...)
	return nil
}

func (p *recordingPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// stalledPublisher never reaches a broker; it returns when ctx ends.
type stalledPublisher struct {
	mu    sync.Mutex
	calls int
}

func (p *stalledPublisher) Publish(ctx context.Context, _ ...events.MovementRecorded) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (p *stalledPublisher) Close() error { return nil }

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []events.MovementRecorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.MovementRecorded(nil), p.events...)
}

// conflictingRepository fails the first n units of work with a write conflict.
type conflictingRepository struct {
	repository.MovementRepository
	mu       sync.Mutex
	failures int
	attempts int
}

func (r *conflictingRepository) Atomic(ctx context.Context, userIDs []int64, fn func(ctx context.Context, tx repository.MovementTx) error) error {
	r.mu.Lock()
	r.attempts++
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()

	if fail {
		return fmt.Errorf("failed to commit transaction: %w: could not serialize access", repository.ErrConflict)
	}
	return r.MovementRepository.Atomic(ctx, userIDs, fn)
}

var errBrokerDown = errors.New("broker down")

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Evgen-Mutagen/finledger/internal/model"
)

func createTestUser(t *testing.T, repo UserRepository, email string) *model.User {
	t.Helper()
	user, err := repo.Create(context.Background(), model.UserDraft{Email: email, Name: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return user
}

func TestMovementRepository_AppendAndList(t *testing.T) {
	db := newTestDatabase(t)
	users := NewUserRepository(db)
	repo := NewMovementRepository(db)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice@email.com")
	bob := createTestUser(t, users, "bob@email.com")

	var deposit, out, in *model.Movement
	err := repo.Atomic(ctx, []int64{bob.ID, alice.ID}, func(ctx context.Context, tx MovementTx) error {
		var err error
		deposit, err = tx.Append(ctx, model.MovementDraft{
			UserID: alice.ID, Kind: model.KindDeposit, Amount: decimal.RequireFromString("100.50"), Description: "salary",
		})
		if err != nil {
			return err
		}

		history, err := tx.ListByUser(ctx, alice.ID)
		if err != nil {
			return err
		}
		if len(history) != 1 {
			return errors.New("uncommitted append is not visible inside the unit of work")
		}

		bobID, aliceID := bob.ID, alice.ID
		out, err = tx.Append(ctx, model.MovementDraft{
			UserID: alice.ID, Kind: model.KindTransferOut, Amount: decimal.RequireFromString("20"), CounterpartID: &bobID,
		})
		if err != nil {
			return err
		}
		in, err = tx.Append(ctx, model.MovementDraft{
			UserID: bob.ID, Kind: model.KindTransferIn, Amount: decimal.RequireFromString("20"), CounterpartID: &aliceID,
		})
		return err
	})
	require.NoError(t, err)

	aliceLog, err := repo.ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceLog, 2)
	assert.Equal(t, deposit.ID, aliceLog[0].ID)
	assert.Equal(t, out.ID, aliceLog[1].ID)
	assert.True(t, decimal.RequireFromString("100.5").Equal(aliceLog[0].Amount))
	assert.Equal(t, "salary", aliceLog[0].Description)
	assert.Nil(t, aliceLog[0].CounterpartID)
	require.NotNil(t, aliceLog[1].CounterpartID)
	assert.Equal(t, bob.ID, *aliceLog[1].CounterpartID)
	assert.True(t, decimal.RequireFromString("80.5").Equal(model.Fold(aliceLog)))

	got, err := repo.GetByID(ctx, in.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, bob.ID, got.UserID)
	assert.Equal(t, model.KindTransferIn, got.Kind)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt), "appends of one unit of work share a timestamp")
	assert.True(t, deposit.CreatedAt.Equal(aliceLog[1].CreatedAt))
}

func TestMovementRepository_RollbackOnError(t *testing.T) {
	db := newTestDatabase(t)
	users := NewUserRepository(db)
	repo := NewMovementRepository(db)
	ctx := context.Background()
	alice := createTestUser(t, users, "alice@email.com")

	errAbort := errors.New("abort")
	err := repo.Atomic(ctx, []int64{alice.ID}, func(ctx context.Context, tx MovementTx) error {
		_, err := tx.Append(ctx, model.MovementDraft{
			UserID: alice.ID, Kind: model.KindDeposit, Amount: decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	log, err := repo.ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Empty(t, log)
}

func TestMovementRepository_GetByIDMissing(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewMovementRepository(db)

	m, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, m)
}

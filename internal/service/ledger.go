package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/events"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

const (
	opRecordMovement = "record movement"

	DefaultMaxRetries     = 3
	defaultPublishTimeout = 5 * time.Second
)

type ledgerService struct {
	userRepo       repository.UserRepository
	movementRepo   repository.MovementRepository
	publisher      events.Publisher
	maxRetries     int
	publishTimeout time.Duration
	logger         *zap.Logger
}

func NewLedgerService(
	userRepo repository.UserRepository,
	movementRepo repository.MovementRepository,
	publisher events.Publisher,
	maxRetries int,
	logger *zap.Logger,
) core.LedgerService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &ledgerService{
		userRepo:       userRepo,
		movementRepo:   movementRepo,
		publisher:      publisher,
		maxRetries:     maxRetries,
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
}

// RecordMovement validates and appends a movement for userID. Transfers also
// append the mirrored movement on the counterpart in the same unit of work.
func (s *ledgerService) RecordMovement(
	ctx context.Context,
	userID int64,
	kind model.Kind,
	amount decimal.Decimal,
	description string,
	counterpartID *int64,
) (*model.Recorded, error) {
	if !model.ValidAmount(amount) {
		return nil, newError(KindInvalidAmount, opRecordMovement,
			fmt.Errorf("%s is not a positive amount up to %s with at most %d decimals",
				amount, model.MaxAmount, model.MinorUnitDigits))
	}
	if err := validateMovement(userID, kind, counterpartID); err != nil {
		return nil, err
	}

	draft := model.MovementDraft{
		UserID:        userID,
		Kind:          kind,
		Amount:        amount,
		Description:   description,
		CounterpartID: counterpartID,
	}

	involved := lockSet(draft)
	for _, id := range involved {
		if err := s.ensureUser(ctx, id); err != nil {
			return nil, err
		}
	}

	var (
		recorded *model.Recorded
		err      error
	)
	for attempt := 1; ; attempt++ {
		recorded, err = s.commit(ctx, draft, involved)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		if attempt >= s.maxRetries {
			return nil, newError(KindConcurrentModification, opRecordMovement, err)
		}
		s.logger.Warn("Ledger write conflict, retrying",
			zap.Int64("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s.logger.Info("Movement recorded",
		zap.Int64("user_id", userID),
		zap.String("movement_id", recorded.Movement.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("amount", amount.String()))

	s.publish(ctx, recorded)
	return recorded, nil
}

func (s *ledgerService) ensureUser(ctx context.Context, id int64) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check user %d: %w", id, err)
	}
	if user == nil {
		return newError(KindUserNotFound, opRecordMovement, fmt.Errorf("user %d", id))
	}
	return nil
}

// commit runs the sufficiency check and the appends as one unit of work.
func (s *ledgerService) commit(ctx context.Context, draft model.MovementDraft, involved []int64) (*model.Recorded, error) {
	var recorded *model.Recorded
	err := s.movementRepo.Atomic(ctx, involved, func(ctx context.Context, tx repository.MovementTx) error {
		if debtor, ok := debitedAccount(draft); ok {
			history, err := tx.ListByUser(ctx, debtor)
			if err != nil {
				return fmt.Errorf("failed to load movements of user %d: %w", debtor, err)
			}
			if balance := model.Fold(history); draft.Amount.GreaterThan(balance) {
				return newError(KindInsufficientFunds, opRecordMovement,
					fmt.Errorf("user %d has %s, needs %s", debtor, balance, draft.Amount))
			}
		}

		movement, err := tx.Append(ctx, draft)
		if err != nil {
			return err
		}
		recorded = &model.Recorded{Movement: movement}

		if draft.Kind.IsTransfer() {
			mirror, err := tx.Append(ctx, mirrorOf(draft))
			if err != nil {
				return err
			}
			recorded.Mirror = mirror
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recorded, nil
}

// publish announces committed movements in one call bounded by publishTimeout.
// The ledger is the source of truth, so a failed publish is logged and not
// reported to the caller.
func (s *ledgerService) publish(ctx context.Context, recorded *model.Recorded) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	batch := []events.MovementRecorded{events.NewMovementRecorded(recorded.Movement)}
	if recorded.Mirror != nil {
		batch = append(batch, events.NewMovementRecorded(recorded.Mirror))
	}

	if err := s.publisher.Publish(ctx, batch...); err != nil {
		s.logger.Error("Failed to publish movement",
			zap.String("movement_id", recorded.Movement.ID.String()),
			zap.Int64("user_id", recorded.Movement.UserID),
			zap.Int("events", len(batch)),
			zap.Error(err))
	}
}

func validateMovement(userID int64, kind model.Kind, counterpartID *int64) error {
	switch {
	case !kind.Valid():
		return newError(KindInvalidMovement, opRecordMovement, fmt.Errorf("unknown movement type %q", kind))
	case kind.IsTransfer() && counterpartID == nil:
		return newError(KindInvalidMovement, opRecordMovement, errors.New("transfer requires a counterpart"))
	case kind.IsTransfer() && *counterpartID == userID:
		return newError(KindInvalidMovement, opRecordMovement, errors.New("cannot transfer to the same account"))
	case !kind.IsTransfer() && counterpartID != nil:
		return newError(KindInvalidMovement, opRecordMovement, fmt.Errorf("%s cannot have a counterpart", kind))
	}
	return nil
}

func lockSet(draft model.MovementDraft) []int64 {
	ids := []int64{draft.UserID}
	if draft.CounterpartID != nil {
		ids = append(ids, *draft.CounterpartID)
	}
	return repository.LockOrder(ids)
}

// debitedAccount returns the account whose balance the movement lowers.
func debitedAccount(draft model.MovementDraft) (int64, bool) {
	switch draft.Kind {
	case model.KindWithdraw, model.KindTransferOut:
		return draft.UserID, true
	case model.KindTransferIn:
		return *draft.CounterpartID, true
	}
	return 0, false
}

func mirrorOf(draft model.MovementDraft) model.MovementDraft {
	owner := draft.UserID
	return model.MovementDraft{
		UserID:        *draft.CounterpartID,
		Kind:          draft.Kind.Mirror(),
		Amount:        draft.Amount,
		Description:   draft.Description,
		CounterpartID: &owner,
	}
}

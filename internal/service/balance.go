package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Evgen-Mutagen/finledger/internal/core"
	"github.com/Evgen-Mutagen/finledger/internal/model"
	"github.com/Evgen-Mutagen/finledger/internal/repository"
)

const (
	opGetBalance  = "get balance"
	opGetMovement = "get statement operation"
)

type balanceService struct {
	userRepo     repository.UserRepository
	movementRepo repository.MovementRepository
}

func NewBalanceService(
	userRepo repository.UserRepository,
	movementRepo repository.MovementRepository,
) core.BalanceService {
	return &balanceService{
		userRepo:     userRepo,
		movementRepo: movementRepo,
	}
}

// GetBalance folds the user's committed movements and returns them newest first.
func (s *balanceService) GetBalance(ctx context.Context, userID int64) (*model.Statement, error) {
	if err := s.ensureUser(ctx, opGetBalance, userID); err != nil {
		return nil, err
	}

	movements, err := s.movementRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	return &model.Statement{
		Balance:   model.Fold(movements),
		Movements: model.NewestFirst(movements),
	}, nil
}

func (s *balanceService) GetMovement(ctx context.Context, userID int64, movementID uuid.UUID) (*model.Movement, error) {
	if err := s.ensureUser(ctx, opGetMovement, userID); err != nil {
		return nil, err
	}

	movement, err := s.movementRepo.GetByID(ctx, movementID)
	if err != nil {
		return nil, fmt.Errorf("failed to get movement: %w", err)
	}
	if movement == nil || movement.UserID != userID {
		return nil, newError(KindMovementNotFound, opGetMovement, fmt.Errorf("movement %s", movementID))
	}
	return movement, nil
}

func (s *balanceService) ensureUser(ctx context.Context, op string, userID int64) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return newError(KindUserNotFound, op, fmt.Errorf("user %d", userID))
	}
	return nil
}

package core

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Evgen-Mutagen/finledger/internal/model"
)

type (
	AuthService interface {
		Register(ctx context.Context, name, email, password string) (*model.User, string, error)
		Authenticate(ctx context.Context, email, password string) (*model.User, string, error)
		ValidateToken(tokenString string) (int64, error)
	}

	LedgerService interface {
		RecordMovement(ctx context.Context, userID int64, kind model.Kind, amount decimal.Decimal, description string, counterpartID *int64) (*model.Recorded, error)
	}

	BalanceService interface {
		GetBalance(ctx context.Context, userID int64) (*model.Statement, error)
		GetMovement(ctx context.Context, userID int64, movementID uuid.UUID) (*model.Movement, error)
	}

	ProfileService interface {
		GetProfile(ctx context.Context, userID int64) (*model.Profile, error)
	}
)

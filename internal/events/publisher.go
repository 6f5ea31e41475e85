// Package events announces committed ledger movements to other systems.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Evgen-Mutagen/finledger/internal/model"
)

const TopicMovementRecorded = "movement.recorded"

type MovementRecorded struct {
	MovementID    string          `json:"movement_id"`
	UserID        int64           `json:"user_id"`
	Kind          model.Kind      `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CounterpartID *int64          `json:"counterpart_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewMovementRecorded(m *model.Movement) MovementRecorded {
	return MovementRecorded{
		MovementID:    m.ID.String(),
		UserID:        m.UserID,
		Kind:          m.Kind,
		Amount:        m.Amount,
		Description:   m.Description,
		CounterpartID: m.CounterpartID,
		OccurredAt:    m.CreatedAt,
	}
}

// Publisher delivers the events of one committed unit of work in a single call.
type Publisher interface {
	Publish(ctx context.Context, events ...MovementRecorded) error
	Close() error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, ...MovementRecorded) error { return nil }

func (Noop) Close() error { return nil }

package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdraw    Kind = "withdraw"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

// MinorUnitDigits is the number of fractional digits an amount may carry.
const MinorUnitDigits = 2

// MaxAmount is the largest amount a single movement may carry. It is the
// widest value the NUMERIC(20, 2) amount column holds.
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindTransferIn, KindTransferOut:
		return true
	}
	return false
}

func (k Kind) IsTransfer() bool {
	return k == KindTransferIn || k == KindTransferOut
}

// Debits reports whether a movement of this kind lowers its owner's balance.
func (k Kind) Debits() bool {
	return k == KindWithdraw || k == KindTransferOut
}

// Mirror returns the kind recorded on the counterpart account of a transfer.
func (k Kind) Mirror() Kind {
	switch k {
	case KindTransferOut:
		return KindTransferIn
	case KindTransferIn:
		return KindTransferOut
	}
	return k
}

// MovementDraft is a movement that has passed validation but has not been
// appended to the ledger yet.
type MovementDraft struct {
	UserID        int64
	Kind          Kind
	Amount        decimal.Decimal
	Description   string
	CounterpartID *int64
}

// Commit stamps the draft with its identity. Stores call it exactly once per append.
func (d MovementDraft) Commit(id uuid.UUID, createdAt time.Time) *Movement {
	m := &Movement{
		ID:          id,
		UserID:      d.UserID,
		Kind:        d.Kind,
		Amount:      d.Amount,
		Description: d.Description,
		CreatedAt:   createdAt,
	}
	if d.CounterpartID != nil {
		cp := *d.CounterpartID
		m.CounterpartID = &cp
	}
	return m
}

type Movement struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	Kind          Kind            `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CounterpartID *int64          `json:"counterpart_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign the movement applies to the balance.
func (m *Movement) Signed() decimal.Decimal {
	if m.Kind.Debits() {
		return m.Amount.Neg()
	}
	return m.Amount
}

// Recorded is the outcome of a ledger write. Mirror is set for transfers only.
type Recorded struct {
	Movement *Movement `json:"movement"`
	Mirror   *Movement `json:"mirror,omitempty"`
}

// ValidAmount reports whether d is a strictly positive amount expressible in
// minor currency units and no larger than MaxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() &&
		d.LessThanOrEqual(MaxAmount) &&
		d.Equal(d.Truncate(MinorUnitDigits))
}

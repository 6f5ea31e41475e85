package model

import "github.com/shopspring/decimal"

// Statement is a user's balance together with the movements it was folded from,
// newest first.
type Statement struct {
	Balance   decimal.Decimal `json:"balance"`
	Movements []*Movement     `json:"statement"`
}

// Fold sums the signed amounts of movements.
func Fold(movements []*Movement) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range movements {
		balance = balance.Add(m.Signed())
	}
	return balance
}

// NewestFirst returns a reversed copy of movements stored oldest first.
func NewestFirst(movements []*Movement) []*Movement {
	out := make([]*Movement, len(movements))
	for i, m := range movements {
		out[len(movements)-1-i] = m
	}
	return out
}

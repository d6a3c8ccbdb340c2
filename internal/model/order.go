package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementState is the settlement status of an order. Progression is
// NOT_DRAWN → WON_PENDING → PAID for winners, NOT_DRAWN → NOT_WON for the
// rest. PAID and NOT_WON are terminal.
type SettlementState string

const (
	StateNotDrawn   SettlementState = "NOT_DRAWN"
	StateWonPending SettlementState = "WON_PENDING"
	StateNotWon     SettlementState = "NOT_WON"
	StatePaid       SettlementState = "PAID"
)

// Order records the purchase of a ticket by a user together with its
// settlement outcome. Rank and the prize columns are only meaningful once
// the state has left NOT_DRAWN.
type Order struct {
	ID          uint64          `gorm:"primaryKey"`
	UserID      uint64          `gorm:"not null;index"`
	TicketID    uint64          `gorm:"not null;index"`
	Amount      int64           `gorm:"not null;default:1"`
	State       SettlementState `gorm:"size:16;not null;default:'NOT_DRAWN'"`
	Rank        string          `gorm:"size:8"`
	PrizeEach   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	PrizeTotal  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	PurchasedAt time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// StatusText renders the human-readable settlement status carried by API
// responses. The state itself is stored structured; this string is display
// only.
func (o *Order) StatusText() string {
	switch o.State {
	case StateWonPending:
		return fmt.Sprintf("won %s ได้ %s x %d = %s (pending payout)",
			o.Rank, o.PrizeEach, o.Amount, o.PrizeTotal)
	case StateNotWon:
		return "not won"
	case StatePaid:
		return fmt.Sprintf("paid %s ได้ %s x %d = %s",
			o.Rank, o.PrizeEach, o.Amount, o.PrizeTotal)
	default:
		return "not yet drawn"
	}
}

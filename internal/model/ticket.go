package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TicketStatusHave = "have"
	TicketStatusSold = "sold"
)

// Ticket is a sellable lottery entry. Number is a fixed-width decimal-digit
// string; prize suffix matching compares string suffixes, never numeric values.
type Ticket struct {
	ID        uint64          `gorm:"primaryKey"`
	UserID    uint64          `gorm:"not null;index"`
	Number    string          `gorm:"size:6;not null;index"`
	Price     decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	StartDate time.Time
	EndDate   time.Time
	Status    string `gorm:"size:16;not null;default:'have'"`
}

func (Ticket) TableName() string { return "tickets" }

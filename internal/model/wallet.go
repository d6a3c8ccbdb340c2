package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user money account. Balance never goes below zero;
// every mutation runs under a row lock plus the Version check.
type Wallet struct {
	ID        uint64          `gorm:"primaryKey"`
	UserID    uint64          `gorm:"not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	AccountID *string         `gorm:"size:64"`
	Version   uint64          `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }

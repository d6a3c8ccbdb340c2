package model

import "time"

// Reward assigns a prize rank to a ticket. A ticket may carry several rows
// (a top-tier number can also match a suffix tier); settlement resolves the
// numerically smallest rank.
type Reward struct {
	ID        uint64    `gorm:"primaryKey"`
	TicketID  uint64    `gorm:"not null;index"`
	Rank      string    `gorm:"size:8;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Reward) TableName() string { return "rewards" }

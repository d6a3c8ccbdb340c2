package model

import "time"

type User struct {
	ID        uint64 `gorm:"primaryKey"`
	Email     string `gorm:"size:128;not null;uniqueIndex"`
	Password  string `gorm:"size:128;not null"`
	Fullname  string `gorm:"size:128;not null"`
	Birthday  *time.Time
	Phone     string    `gorm:"size:32"`
	Role      string    `gorm:"size:16;not null;default:'user'"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }

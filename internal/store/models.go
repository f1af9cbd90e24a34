package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type BookModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	Author    string    `gorm:"not null"`
	Genre     string    `gorm:"not null"`
	Price     float64   `gorm:"not null"`
	Image     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type OrderModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	ProductID string    `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	Price     float64   `gorm:"not null"`
	Author    string    `gorm:"not null"`
	Genre     string    `gorm:"not null"`
	Image     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type AdminModel struct {
	Username     string    `gorm:"primaryKey"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type SessionModel struct {
	ID        string         `gorm:"primaryKey"`
	Data      datatypes.JSON `gorm:"type:jsonb"`
	ExpiresAt time.Time      `gorm:"not null;index"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Name         string    `gorm:"not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type CreationModel struct {
	ID          string         `gorm:"primaryKey"`
	OwnerID     string         `gorm:"not null;index"`
	Title       string         `gorm:"not null"`
	Photos      datatypes.JSON `gorm:"type:jsonb"`
	Description string
	Rating      float64
	LegoFamily  string
	CreatedAt   time.Time      `gorm:"not null"`
	UpdatedAt   time.Time      `gorm:"not null"`
}

type PhotoModel struct {
	ID        string    `gorm:"primaryKey"`
	URL       string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

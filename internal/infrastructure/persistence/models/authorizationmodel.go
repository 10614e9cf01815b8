package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuthorizationModel represents the database persistence model for paid
// guild authorizations. This is the anti-corruption layer between domain
// and database.
type AuthorizationModel struct {
	ID                 uint       `gorm:"primarykey"`
	GuildID            string     `gorm:"uniqueIndex;not null;size:32"`
	BuyerUserID        string     `gorm:"not null;size:32;index:idx_buyer"`
	Plan               string     `gorm:"not null;size:20"`
	ExpiresAt          *time.Time `gorm:"index:idx_expires"`
	TransfersRemaining int        `gorm:"not null;default:0"`
	Metadata           datatypes.JSON
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName specifies the table name for GORM
func (AuthorizationModel) TableName() string {
	return "authorizations"
}

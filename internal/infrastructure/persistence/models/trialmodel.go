package models

import "time"

// TrialModel represents the database persistence model for guild trials.
// Rows are never updated or deleted: an expired row is the permanent marker
// that the guild already used its trial.
type TrialModel struct {
	ID        uint      `gorm:"primarykey"`
	GuildID   string    `gorm:"uniqueIndex;not null;size:32"`
	EndAt     time.Time `gorm:"not null;index:idx_end_at"`
	CreatedAt time.Time
}

// TableName specifies the table name for GORM
func (TrialModel) TableName() string {
	return "trials"
}

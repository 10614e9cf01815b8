package entitlement

import (
	"fmt"
	"time"
)

// Trial is a guild's time-boxed free-trial window. A trial record is never
// updated and never deleted: an expired record doubles as a permanent
// "already used trial" marker so a guild cannot start a second trial.
type Trial struct {
	id        uint
	guildID   string
	endAt     time.Time
	createdAt time.Time
}

// NewTrial starts a trial for a guild, ending after the given length.
func NewTrial(guildID string, length time.Duration, now time.Time) (*Trial, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild ID is required")
	}
	if length <= 0 {
		return nil, fmt.Errorf("trial length must be positive")
	}

	return &Trial{
		guildID:   guildID,
		endAt:     now.Add(length),
		createdAt: now,
	}, nil
}

// ReconstructTrial rebuilds a trial from persistence.
func ReconstructTrial(id uint, guildID string, endAt, createdAt time.Time) (*Trial, error) {
	if id == 0 {
		return nil, fmt.Errorf("trial ID cannot be zero")
	}
	if guildID == "" {
		return nil, fmt.Errorf("guild ID is required")
	}

	return &Trial{
		id:        id,
		guildID:   guildID,
		endAt:     endAt,
		createdAt: createdAt,
	}, nil
}

// ID returns the trial ID.
func (t *Trial) ID() uint { return t.id }

// GuildID returns the guild on trial.
func (t *Trial) GuildID() string { return t.guildID }

// EndAt returns when the trial window closes.
func (t *Trial) EndAt() time.Time { return t.endAt }

// CreatedAt returns when the trial was accepted.
func (t *Trial) CreatedAt() time.Time { return t.createdAt }

// SetID sets the trial ID (only for persistence layer use).
func (t *Trial) SetID(id uint) error {
	if t.id != 0 {
		return fmt.Errorf("trial ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("trial ID cannot be zero")
	}
	t.id = id
	return nil
}

// Active reports whether the trial window is still open.
func (t *Trial) Active(now time.Time) bool {
	return !now.After(t.endAt)
}

// Expired reports whether the trial window has closed.
func (t *Trial) Expired(now time.Time) bool {
	return now.After(t.endAt)
}

// Remaining returns the time left in the window, zero when expired.
func (t *Trial) Remaining(now time.Time) time.Duration {
	if t.Expired(now) {
		return 0
	}
	return t.endAt.Sub(now)
}

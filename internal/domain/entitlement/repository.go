package entitlement

import (
	"context"
	"time"
)

// AuthorizationRepository persists authorization records.
type AuthorizationRepository interface {
	// Create stores a new authorization. Returns ErrAlreadyAuthorized when
	// the guild already holds one.
	Create(ctx context.Context, auth *Authorization) error

	// GetByGuild returns the guild's authorization or ErrAuthorizationNotFound.
	GetByGuild(ctx context.Context, guildID string) (*Authorization, error)

	// ListByBuyer returns all authorizations purchased by a user.
	ListByBuyer(ctx context.Context, buyerUserID string) ([]*Authorization, error)

	// ListExpired returns subscription authorizations whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time) ([]*Authorization, error)

	// Update persists mutations of an existing authorization.
	Update(ctx context.Context, auth *Authorization) error

	// Delete removes the guild's authorization.
	Delete(ctx context.Context, guildID string) error
}

// TrialRepository persists trial records. Trials are create-and-read only;
// expired records stay behind as used-trial markers.
type TrialRepository interface {
	// Create stores a new trial. Returns ErrTrialAlreadyUsed when the guild
	// already has one.
	Create(ctx context.Context, trial *Trial) error

	// GetByGuild returns the guild's trial or ErrTrialNotFound.
	GetByGuild(ctx context.Context, guildID string) (*Trial, error)
}

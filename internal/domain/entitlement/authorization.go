package entitlement

import (
	"fmt"
	"time"
)

// Authorization is the aggregate root for a guild's paid entitlement.
// A guild holds at most one authorization. One-time plans never expire but
// carry a limited number of guild transfers; subscription plans expire and
// transfer freely.
type Authorization struct {
	id                 uint
	guildID            string
	buyerUserID        string
	plan               Plan
	expiresAt          *time.Time
	transfersRemaining int
	createdAt          time.Time
	updatedAt          time.Time
}

// NewOneTimeAuthorization creates a perpetual authorization with a transfer budget.
func NewOneTimeAuthorization(guildID, buyerUserID string, transfers int, now time.Time) (*Authorization, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild ID is required")
	}
	if buyerUserID == "" {
		return nil, fmt.Errorf("buyer user ID is required")
	}
	if transfers < 0 {
		return nil, fmt.Errorf("transfer budget cannot be negative")
	}

	return &Authorization{
		guildID:            guildID,
		buyerUserID:        buyerUserID,
		plan:               PlanOneTime,
		transfersRemaining: transfers,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// NewSubscriptionAuthorization creates an expiring authorization for one billing period.
func NewSubscriptionAuthorization(guildID, buyerUserID string, period time.Duration, now time.Time) (*Authorization, error) {
	if guildID == "" {
		return nil, fmt.Errorf("guild ID is required")
	}
	if buyerUserID == "" {
		return nil, fmt.Errorf("buyer user ID is required")
	}
	if period <= 0 {
		return nil, fmt.Errorf("subscription period must be positive")
	}

	expiresAt := now.Add(period)
	return &Authorization{
		guildID:     guildID,
		buyerUserID: buyerUserID,
		plan:        PlanMonthly,
		expiresAt:   &expiresAt,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// ReconstructAuthorization rebuilds an authorization from persistence.
func ReconstructAuthorization(
	id uint,
	guildID, buyerUserID string,
	plan Plan,
	expiresAt *time.Time,
	transfersRemaining int,
	createdAt, updatedAt time.Time,
) (*Authorization, error) {
	if id == 0 {
		return nil, fmt.Errorf("authorization ID cannot be zero")
	}
	if guildID == "" {
		return nil, fmt.Errorf("guild ID is required")
	}
	if buyerUserID == "" {
		return nil, fmt.Errorf("buyer user ID is required")
	}
	if !plan.IsValid() {
		return nil, fmt.Errorf("invalid plan: %s", plan)
	}
	if transfersRemaining < 0 {
		return nil, fmt.Errorf("transfers remaining cannot be negative")
	}

	return &Authorization{
		id:                 id,
		guildID:            guildID,
		buyerUserID:        buyerUserID,
		plan:               plan,
		expiresAt:          expiresAt,
		transfersRemaining: transfersRemaining,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}, nil
}

// ID returns the authorization ID.
func (a *Authorization) ID() uint { return a.id }

// GuildID returns the entitled guild.
func (a *Authorization) GuildID() string { return a.guildID }

// BuyerUserID returns the purchasing user.
func (a *Authorization) BuyerUserID() string { return a.buyerUserID }

// Plan returns the purchased plan.
func (a *Authorization) Plan() Plan { return a.plan }

// ExpiresAt returns the expiry time, nil for one-time plans.
func (a *Authorization) ExpiresAt() *time.Time { return a.expiresAt }

// TransfersRemaining returns the remaining transfer budget (one-time plans only).
func (a *Authorization) TransfersRemaining() int { return a.transfersRemaining }

// CreatedAt returns when the authorization was granted.
func (a *Authorization) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the last mutation time.
func (a *Authorization) UpdatedAt() time.Time { return a.updatedAt }

// SetID sets the authorization ID (only for persistence layer use).
func (a *Authorization) SetID(id uint) error {
	if a.id != 0 {
		return fmt.Errorf("authorization ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("authorization ID cannot be zero")
	}
	a.id = id
	return nil
}

// IsSubscription reports whether the authorization expires.
func (a *Authorization) IsSubscription() bool {
	return a.expiresAt != nil
}

// IsExpired reports whether a subscription authorization has lapsed.
// One-time authorizations never expire.
func (a *Authorization) IsExpired(now time.Time) bool {
	if a.expiresAt == nil {
		return false
	}
	return now.After(*a.expiresAt)
}

// Renew extends the expiry by one billing period counted from the stored
// expiry, not from now, so early or late renewals keep the billing schedule.
func (a *Authorization) Renew(period time.Duration) error {
	if a.expiresAt == nil {
		return ErrNotSubscription
	}
	next := a.expiresAt.Add(period)
	a.expiresAt = &next
	a.updatedAt = time.Now().UTC()
	return nil
}

// TransferTo moves the authorization to a different guild. One-time plans
// consume one transfer; subscriptions transfer without limit.
func (a *Authorization) TransferTo(newGuildID string) error {
	if newGuildID == "" {
		return fmt.Errorf("new guild ID is required")
	}
	if a.plan == PlanOneTime {
		if a.transfersRemaining <= 0 {
			return ErrNoTransfersLeft
		}
		a.transfersRemaining--
	}
	a.guildID = newGuildID
	a.updatedAt = time.Now().UTC()
	return nil
}

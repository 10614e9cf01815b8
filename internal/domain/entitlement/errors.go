package entitlement

import "errors"

var (
	// ErrAlreadyAuthorized is returned when granting to a guild that already
	// holds an authorization.
	ErrAlreadyAuthorized = errors.New("guild is already authorized")

	// ErrNotAuthorized is returned when an operation requires an existing
	// authorization and the guild has none.
	ErrNotAuthorized = errors.New("guild is not authorized")

	// ErrNoTransfersLeft is returned when a one-time plan has exhausted its
	// transfer budget.
	ErrNoTransfersLeft = errors.New("no transfers left")

	// ErrNotSubscription is returned when renewing a plan that has no expiry.
	ErrNotSubscription = errors.New("authorization is not a subscription")

	// ErrAuthorizationNotFound is returned when an authorization record does
	// not exist.
	ErrAuthorizationNotFound = errors.New("authorization not found")

	// ErrTrialNotFound is returned when a trial record does not exist.
	ErrTrialNotFound = errors.New("trial not found")

	// ErrTrialAlreadyUsed is returned when starting a trial for a guild that
	// already has a trial record, active or expired.
	ErrTrialAlreadyUsed = errors.New("trial already used")
)

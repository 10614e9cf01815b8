package entitlement

import (
	"context"
	"errors"
)

// ErrNoWritableChannel is returned by gateway implementations when a guild
// has no channel the bot may post in. The gate reacts by leaving the guild:
// there is no way to reach anyone who could act on an entitlement prompt.
var ErrNoWritableChannel = errors.New("no writable channel in guild")

// GuildGateway is the chat-platform port the gate drives its side effects
// through. Every method may fail; except for ConfirmWithAdmins, the gate
// treats failures as best-effort: logged and discarded, never propagated to
// the primary operation.
type GuildGateway interface {
	// NotifyGuild posts a message to the guild's first writable channel.
	NotifyGuild(ctx context.Context, guildID, message string) error

	// LeaveGuild makes the bot leave the guild.
	LeaveGuild(ctx context.Context, guildID string) error

	// AssignSupporterRole grants the cosmetic role to a buyer in the
	// operator's support community.
	AssignSupporterRole(ctx context.Context, userID string) error

	// RemoveSupporterRole removes the cosmetic role.
	RemoveSupporterRole(ctx context.Context, userID string) error

	// ConfirmWithAdmins posts an Approve/Decline prompt restricted to the
	// guild's administrators and waits for a click. There is no timeout on
	// the prompt itself; cancellation comes only from ctx.
	ConfirmWithAdmins(ctx context.Context, guildID, prompt string) (bool, error)
}

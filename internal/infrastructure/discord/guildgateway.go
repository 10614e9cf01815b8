package discord

import (
	"context"
	"errors"
	"fmt"
	"sort"

	appentitlement "glint/internal/application/entitlement"
	"glint/internal/shared/config"
	"glint/internal/shared/logger"
)

// GuildGatewayAdapter implements the entitlement gate's guild operations on
// top of the Discord REST API.
type GuildGatewayAdapter struct {
	rest      *RestClient
	confirmer *Confirmer
	cfg       config.DiscordConfig
	logger    logger.Interface
}

// NewGuildGatewayAdapter creates the adapter.
func NewGuildGatewayAdapter(
	rest *RestClient,
	confirmer *Confirmer,
	cfg config.DiscordConfig,
	logger logger.Interface,
) *GuildGatewayAdapter {
	return &GuildGatewayAdapter{
		rest:      rest,
		confirmer: confirmer,
		cfg:       cfg,
		logger:    logger,
	}
}

var _ appentitlement.GuildGateway = (*GuildGatewayAdapter)(nil)

// NotifyGuild posts a message to the first text channel the bot can write to.
func (a *GuildGatewayAdapter) NotifyGuild(ctx context.Context, guildID, message string) error {
	_, err := a.postToWritableChannel(ctx, guildID, func(channelID string) (string, error) {
		msg, err := a.rest.CreateMessage(ctx, channelID, MessagePayload{Content: message})
		if err != nil {
			return "", err
		}
		return msg.ID, nil
	})
	return err
}

// LeaveGuild removes the bot from the guild.
func (a *GuildGatewayAdapter) LeaveGuild(ctx context.Context, guildID string) error {
	if err := a.rest.LeaveGuild(ctx, guildID); err != nil {
		return fmt.Errorf("failed to leave guild %s: %w", guildID, err)
	}
	return nil
}

// AssignSupporterRole gives the buyer the supporter role in the support
// community. No-op when the role is not configured.
func (a *GuildGatewayAdapter) AssignSupporterRole(ctx context.Context, userID string) error {
	if a.cfg.SupportGuildID == "" || a.cfg.SupporterRoleID == "" {
		return nil
	}
	return a.rest.AddMemberRole(ctx, a.cfg.SupportGuildID, userID, a.cfg.SupporterRoleID)
}

// RemoveSupporterRole takes the supporter role away.
func (a *GuildGatewayAdapter) RemoveSupporterRole(ctx context.Context, userID string) error {
	if a.cfg.SupportGuildID == "" || a.cfg.SupporterRoleID == "" {
		return nil
	}
	return a.rest.RemoveMemberRole(ctx, a.cfg.SupportGuildID, userID, a.cfg.SupporterRoleID)
}

// ConfirmWithAdmins asks the guild's administrators a yes/no question and
// waits for the answer, however long that takes. The prompt message doubles
// as the writability probe: a channel that rejects it is skipped.
func (a *GuildGatewayAdapter) ConfirmWithAdmins(ctx context.Context, guildID, prompt string) (bool, error) {
	channels, err := a.textChannels(ctx, guildID)
	if err != nil {
		return false, err
	}

	for _, channel := range channels {
		accepted, err := a.confirmer.Confirm(ctx, channel.ID, prompt)
		if err == nil {
			return accepted, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsPermission() {
			continue
		}
		return false, err
	}
	return false, appentitlement.ErrNoWritableChannel
}

// postToWritableChannel walks the guild's text channels in display order and
// runs send against the first one that accepts a message. A permission
// rejection moves on to the next channel.
func (a *GuildGatewayAdapter) postToWritableChannel(ctx context.Context, guildID string, send func(channelID string) (string, error)) (string, error) {
	channels, err := a.textChannels(ctx, guildID)
	if err != nil {
		return "", err
	}

	for _, channel := range channels {
		id, err := send(channel.ID)
		if err == nil {
			return id, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsPermission() {
			continue
		}
		return "", err
	}
	return "", appentitlement.ErrNoWritableChannel
}

func (a *GuildGatewayAdapter) textChannels(ctx context.Context, guildID string) ([]Channel, error) {
	channels, err := a.rest.GetGuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels for guild %s: %w", guildID, err)
	}

	var text []Channel
	for _, channel := range channels {
		if channel.Type == ChannelTypeGuildText {
			text = append(text, channel)
		}
	}
	sort.Slice(text, func(i, j int) bool { return text[i].Position < text[j].Position })
	return text, nil
}

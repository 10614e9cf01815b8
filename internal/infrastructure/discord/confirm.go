package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"glint/internal/shared/logger"
)

const confirmPrefix = "confirm"

// Confirmer asks a guild's administrators a yes/no question with message
// buttons and waits for the answer. There is no timeout on the guild side;
// the wait ends only when an admin clicks or the caller's context ends.
type Confirmer struct {
	rest   *RestClient
	logger logger.Interface

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewConfirmer creates a Confirmer.
func NewConfirmer(rest *RestClient, logger logger.Interface) *Confirmer {
	return &Confirmer{
		rest:    rest,
		logger:  logger,
		pending: map[string]chan bool{},
	}
}

// Confirm posts the prompt with Accept/Decline buttons in the given channel
// and blocks until an administrator answers or ctx is cancelled.
func (c *Confirmer) Confirm(ctx context.Context, channelID, prompt string) (bool, error) {
	nonce := uuid.NewString()
	answer := make(chan bool, 1)

	c.mu.Lock()
	c.pending[nonce] = answer
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, nonce)
		c.mu.Unlock()
	}()

	msg, err := c.rest.CreateMessage(ctx, channelID, MessagePayload{
		Content:    prompt,
		Components: confirmRow(nonce, false),
	})
	if err != nil {
		return false, fmt.Errorf("failed to post confirmation prompt: %w", err)
	}

	select {
	case accepted := <-answer:
		return accepted, nil
	case <-ctx.Done():
		// Best effort: disable the buttons so a later click goes nowhere.
		// An empty components slice would be dropped by omitempty and leave
		// the live buttons in place.
		_ = c.rest.EditMessage(context.Background(), channelID, msg.ID, MessagePayload{
			Content:    prompt,
			Components: confirmRow(nonce, true),
		})
		return false, ctx.Err()
	}
}

// confirmRow builds the Accept/Decline action row for a prompt.
func confirmRow(nonce string, disabled bool) []Component {
	return []Component{{
		Type: 1,
		Components: []Component{
			{Type: 2, Style: ButtonStyleSuccess, Label: "Accept", CustomID: customID(nonce, true), Disabled: disabled},
			{Type: 2, Style: ButtonStyleSecondary, Label: "Decline", CustomID: customID(nonce, false), Disabled: disabled},
		},
	}}
}

// HandleComponent routes a button click to its waiting Confirm call.
// Returns false when the custom ID is not a confirmation button.
func (c *Confirmer) HandleComponent(ctx context.Context, interaction *Interaction) bool {
	if interaction.Data == nil || !strings.HasPrefix(interaction.Data.CustomID, confirmPrefix+":") {
		return false
	}
	nonce, accepted, ok := parseCustomID(interaction.Data.CustomID)
	if !ok {
		return true
	}

	if !isGuildAdmin(interaction.Member) {
		c.respond(ctx, interaction, InteractionResponse{
			Type: ResponseChannelMessage,
			Data: &MessagePayload{
				Content: "Only server administrators can answer this.",
				Flags:   FlagEphemeral,
			},
		})
		return true
	}

	c.mu.Lock()
	answer, waiting := c.pending[nonce]
	delete(c.pending, nonce)
	c.mu.Unlock()

	if !waiting {
		c.respond(ctx, interaction, InteractionResponse{
			Type: ResponseChannelMessage,
			Data: &MessagePayload{
				Content: "This prompt is no longer active.",
				Flags:   FlagEphemeral,
			},
		})
		return true
	}

	answer <- accepted

	outcome := "Declined."
	if accepted {
		outcome = "Accepted!"
	}
	c.respond(ctx, interaction, InteractionResponse{
		Type: ResponseUpdateMessage,
		Data: &MessagePayload{Content: outcome, Components: confirmRow(nonce, true)},
	})
	return true
}

func (c *Confirmer) respond(ctx context.Context, interaction *Interaction, resp InteractionResponse) {
	if err := c.rest.CreateInteractionResponse(ctx, interaction.ID, interaction.Token, resp); err != nil {
		c.logger.Warnw("failed to answer component interaction",
			"interaction_id", interaction.ID, "error", err)
	}
}

func customID(nonce string, accepted bool) string {
	verdict := "no"
	if accepted {
		verdict = "yes"
	}
	return fmt.Sprintf("%s:%s:%s", confirmPrefix, nonce, verdict)
}

func parseCustomID(id string) (nonce string, accepted bool, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != confirmPrefix {
		return "", false, false
	}
	return parts[1], parts[2] == "yes", true
}

// isGuildAdmin checks the interaction member's permission bitset for
// Administrator or Manage Guild.
func isGuildAdmin(member *Member) bool {
	if member == nil || member.Permissions == "" {
		return false
	}
	perms, err := strconv.ParseUint(member.Permissions, 10, 64)
	if err != nil {
		return false
	}
	return perms&(PermissionAdministrator|PermissionManageGuild) != 0
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glint/internal/domain/capture"
	"glint/internal/domain/entitlement"
	"glint/internal/infrastructure/discord"
	"glint/internal/shared/config"
	"glint/internal/shared/logger"
)

const signupMessage = "This guild is not authorized. Purchase an authorization to use the bot, or ask an administrator to re-add it to start a trial."

// Gate is the slice of the entitlement service the dispatcher uses.
type Gate interface {
	Evaluate(ctx context.Context, guildID string) (entitlement.Decision, error)
	HandleGuildJoin(ctx context.Context, guildID string) error
	Grant(ctx context.Context, guildID, buyerUserID string, plan entitlement.Plan) (*entitlement.Authorization, error)
	Renew(ctx context.Context, guildID string) (*entitlement.Authorization, error)
	Transfer(ctx context.Context, oldGuildID, newGuildID string) (*entitlement.Authorization, error)
	Revoke(ctx context.Context, guildID string) error
}

// Capturer renders screenshots.
type Capturer interface {
	Capture(ctx context.Context, req capture.RenderRequest) ([]byte, error)
}

// Responder is the slice of the REST client used to answer interactions.
type Responder interface {
	CreateInteractionResponse(ctx context.Context, interactionID, token string, resp discord.InteractionResponse) error
	EditOriginalResponse(ctx context.Context, applicationID, token string, payload discord.MessagePayload) error
	EditOriginalResponseWithFile(ctx context.Context, applicationID, token string, payload discord.MessagePayload, filename string, file []byte) error
	BulkOverwriteCommands(ctx context.Context, applicationID string, commands []discord.ApplicationCommand) error
}

// ComponentHandler consumes message-component clicks.
type ComponentHandler interface {
	HandleComponent(ctx context.Context, interaction *discord.Interaction) bool
}

// Dispatcher routes gateway events: guild joins to the entitlement gate,
// button clicks to the confirmer, and slash commands through the entitlement
// pre-check to their handlers.
type Dispatcher struct {
	gate       Gate
	capturer   Capturer
	responder  Responder
	components ComponentHandler
	cfg        config.DiscordConfig
	logger     logger.Interface

	operators map[string]struct{}
}

// NewDispatcher creates the event dispatcher.
func NewDispatcher(
	gate Gate,
	capturer Capturer,
	responder Responder,
	components ComponentHandler,
	cfg config.DiscordConfig,
	logger logger.Interface,
) *Dispatcher {
	operators := make(map[string]struct{}, len(cfg.OperatorUserIDs))
	for _, id := range cfg.OperatorUserIDs {
		operators[id] = struct{}{}
	}
	return &Dispatcher{
		gate:       gate,
		capturer:   capturer,
		responder:  responder,
		components: components,
		cfg:        cfg,
		logger:     logger,
		operators:  operators,
	}
}

var _ discord.EventHandler = (*Dispatcher)(nil)

// HandleGuildJoin runs the entitlement gate's join flow. The trial prompt
// inside it can block until an admin answers, so joins arrive on their own
// goroutine from the gateway client.
func (d *Dispatcher) HandleGuildJoin(ctx context.Context, guildID string) {
	if err := d.gate.HandleGuildJoin(ctx, guildID); err != nil {
		d.logger.Errorw("guild join handling failed", "guild_id", guildID, "error", err)
	}
}

// HandleInteraction routes a single interaction.
func (d *Dispatcher) HandleInteraction(ctx context.Context, interaction *discord.Interaction) {
	switch interaction.Type {
	case discord.InteractionTypeMessageComponent:
		if !d.components.HandleComponent(ctx, interaction) {
			d.logger.Debugw("unhandled component", "custom_id", interaction.Data.CustomID)
		}
	case discord.InteractionTypeCommand:
		d.handleCommand(ctx, interaction)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, interaction *discord.Interaction) {
	if interaction.Data == nil {
		return
	}
	name := interaction.Data.Name
	d.logger.Infow("command received",
		"command", name, "guild_id", interaction.GuildID, "user_id", interaction.UserID())

	switch name {
	case "screenshot":
		d.runGated(ctx, interaction, d.handleScreenshot)
	case "trial":
		d.handleTrialStatus(ctx, interaction)
	case "authorize", "renew", "transfer", "revoke":
		d.runOperator(ctx, interaction, name)
	default:
		d.replyEphemeral(ctx, interaction, "Unknown command.")
	}
}

// runGated rejects the command unless the guild's entitlement decision
// permits use.
func (d *Dispatcher) runGated(ctx context.Context, interaction *discord.Interaction, handler func(context.Context, *discord.Interaction)) {
	if interaction.GuildID == "" {
		d.replyEphemeral(ctx, interaction, "This command only works inside a server.")
		return
	}

	decision, err := d.gate.Evaluate(ctx, interaction.GuildID)
	if err != nil {
		d.logger.Errorw("entitlement check failed",
			"guild_id", interaction.GuildID, "error", err)
		d.replyEphemeral(ctx, interaction, "Something went wrong, try again later.")
		return
	}
	if !decision.Permits() {
		d.replyEphemeral(ctx, interaction, signupMessage)
		return
	}

	handler(ctx, interaction)
}

func (d *Dispatcher) handleScreenshot(ctx context.Context, interaction *discord.Interaction) {
	req := capture.RenderRequest{
		URL:           interaction.StringOption("url"),
		FullPage:      interaction.BoolOption("full_page"),
		AllowExplicit: interaction.BoolOption("allow_explicit"),
	}

	// Rendering takes longer than the 3-second interaction window.
	if err := d.responder.CreateInteractionResponse(ctx, interaction.ID, interaction.Token, discord.InteractionResponse{
		Type: discord.ResponseDeferredMessage,
	}); err != nil {
		d.logger.Errorw("failed to defer screenshot response", "error", err)
		return
	}

	image, err := d.capturer.Capture(ctx, req)
	if err != nil {
		d.editReply(ctx, interaction, screenshotFailureMessage(err))
		return
	}

	payload := discord.MessagePayload{Content: fmt.Sprintf("<%s>", req.Normalize().URL)}
	if err := d.responder.EditOriginalResponseWithFile(ctx, d.cfg.ApplicationID, interaction.Token, payload, "screenshot.png", image); err != nil {
		d.logger.Errorw("failed to deliver screenshot", "error", err)
	}
}

func screenshotFailureMessage(err error) string {
	switch {
	case errors.Is(err, capture.ErrInvalidURL):
		return "That doesn't look like a valid http(s) URL."
	case errors.Is(err, capture.ErrForbiddenTarget):
		return "That address can't be captured."
	case errors.Is(err, capture.ErrRenderTimeout):
		return "The page took too long to load."
	case errors.Is(err, capture.ErrExplicitContent):
		return "The capture was blocked: the page contains explicit content."
	default:
		return "The capture failed, try again later."
	}
}

func (d *Dispatcher) handleTrialStatus(ctx context.Context, interaction *discord.Interaction) {
	if interaction.GuildID == "" {
		d.replyEphemeral(ctx, interaction, "This command only works inside a server.")
		return
	}
	decision, err := d.gate.Evaluate(ctx, interaction.GuildID)
	if err != nil {
		d.replyEphemeral(ctx, interaction, "Something went wrong, try again later.")
		return
	}

	var status string
	switch decision {
	case entitlement.DecisionAllowed:
		status = "This guild holds a paid authorization."
	case entitlement.DecisionTrialActive:
		status = "This guild is on an active free trial."
	case entitlement.DecisionTrialExpired:
		status = "This guild's free trial has ended."
	default:
		status = "This guild has no trial yet. Re-add the bot to receive the offer."
	}
	d.replyEphemeral(ctx, interaction, status)
}

// runOperator executes the paid-entitlement management commands, restricted
// to the configured operator users.
func (d *Dispatcher) runOperator(ctx context.Context, interaction *discord.Interaction, name string) {
	if _, ok := d.operators[interaction.UserID()]; !ok {
		d.replyEphemeral(ctx, interaction, "You are not allowed to use this command.")
		return
	}

	guildID := interaction.StringOption("guild")
	if guildID == "" {
		guildID = interaction.GuildID
	}

	var reply string
	var err error
	switch name {
	case "authorize":
		plan := entitlement.Plan(interaction.StringOption("plan"))
		if plan == "" {
			plan = entitlement.PlanOneTime
		}
		buyer := interaction.StringOption("buyer")
		if buyer == "" {
			buyer = interaction.UserID()
		}
		var auth *entitlement.Authorization
		auth, err = d.gate.Grant(ctx, guildID, buyer, plan)
		if err == nil {
			reply = fmt.Sprintf("Authorized guild %s on plan %s.", guildID, auth.Plan())
		}
	case "renew":
		var auth *entitlement.Authorization
		auth, err = d.gate.Renew(ctx, guildID)
		if err == nil {
			reply = fmt.Sprintf("Renewed guild %s until %s.", guildID, auth.ExpiresAt().Format(time.DateOnly))
		}
	case "transfer":
		target := interaction.StringOption("target")
		_, err = d.gate.Transfer(ctx, guildID, target)
		if err == nil {
			reply = fmt.Sprintf("Transferred authorization from %s to %s.", guildID, target)
		}
	case "revoke":
		err = d.gate.Revoke(ctx, guildID)
		if err == nil {
			reply = fmt.Sprintf("Revoked authorization for guild %s.", guildID)
		}
	}

	if err != nil {
		d.replyEphemeral(ctx, interaction, operatorFailureMessage(err))
		return
	}
	d.replyEphemeral(ctx, interaction, reply)
}

func operatorFailureMessage(err error) string {
	switch {
	case errors.Is(err, entitlement.ErrAlreadyAuthorized):
		return "That guild is already authorized."
	case errors.Is(err, entitlement.ErrNotAuthorized):
		return "That guild has no authorization."
	case errors.Is(err, entitlement.ErrNotSubscription):
		return "Only subscription plans can be renewed."
	case errors.Is(err, entitlement.ErrNoTransfersLeft):
		return "That authorization has no transfers left."
	default:
		return "The operation failed, check the logs."
	}
}

func (d *Dispatcher) replyEphemeral(ctx context.Context, interaction *discord.Interaction, content string) {
	err := d.responder.CreateInteractionResponse(ctx, interaction.ID, interaction.Token, discord.InteractionResponse{
		Type: discord.ResponseChannelMessage,
		Data: &discord.MessagePayload{Content: content, Flags: discord.FlagEphemeral},
	})
	if err != nil {
		d.logger.Warnw("failed to reply to interaction",
			"interaction_id", interaction.ID, "error", err)
	}
}

func (d *Dispatcher) editReply(ctx context.Context, interaction *discord.Interaction, content string) {
	err := d.responder.EditOriginalResponse(ctx, d.cfg.ApplicationID, interaction.Token, discord.MessagePayload{Content: content})
	if err != nil {
		d.logger.Warnw("failed to edit interaction reply",
			"interaction_id", interaction.ID, "error", err)
	}
}

// Commands returns the slash-command definitions to register at startup.
func Commands() []discord.ApplicationCommand {
	return []discord.ApplicationCommand{
		{
			Name:        "screenshot",
			Description: "Capture a screenshot of a web page",
			Options: []discord.ApplicationCommandOption{
				{Type: 3, Name: "url", Description: "Page to capture", Required: true},
				{Type: 5, Name: "full_page", Description: "Capture the full scroll height"},
				{Type: 5, Name: "allow_explicit", Description: "Skip the content-safety check"},
			},
		},
		{
			Name:        "trial",
			Description: "Show this guild's trial and authorization status",
		},
		{
			Name:        "authorize",
			Description: "Grant a paid authorization (operators only)",
			Options: []discord.ApplicationCommandOption{
				{Type: 3, Name: "guild", Description: "Guild ID"},
				{Type: 3, Name: "plan", Description: "one_time or monthly"},
				{Type: 3, Name: "buyer", Description: "Buyer user ID"},
			},
		},
		{
			Name:        "renew",
			Description: "Renew a subscription authorization (operators only)",
			Options: []discord.ApplicationCommandOption{
				{Type: 3, Name: "guild", Description: "Guild ID"},
			},
		},
		{
			Name:        "transfer",
			Description: "Move an authorization to another guild (operators only)",
			Options: []discord.ApplicationCommandOption{
				{Type: 3, Name: "guild", Description: "Source guild ID"},
				{Type: 3, Name: "target", Description: "Target guild ID", Required: true},
			},
		},
		{
			Name:        "revoke",
			Description: "Revoke an authorization (operators only)",
			Options: []discord.ApplicationCommandOption{
				{Type: 3, Name: "guild", Description: "Guild ID"},
			},
		},
	}
}

// RegisterCommands overwrites the application's global commands.
func (d *Dispatcher) RegisterCommands(ctx context.Context) error {
	return d.responder.BulkOverwriteCommands(ctx, d.cfg.ApplicationID, Commands())
}

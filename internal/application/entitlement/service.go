package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glint/internal/domain/entitlement"
	"glint/internal/shared/biztime"
	"glint/internal/shared/logger"
)

// Config holds the gate's policy knobs.
type Config struct {
	TrialLength        time.Duration
	SubscriptionPeriod time.Duration
	TransferBudget     int
}

// DefaultConfig returns the stock policy: 7-day trials, 30-day subscription
// periods, two transfers per one-time plan.
func DefaultConfig() Config {
	return Config{
		TrialLength:        biztime.Days(7),
		SubscriptionPeriod: biztime.Days(30),
		TransferBudget:     2,
	}
}

// GateService decides, before any guild command executes, whether the guild
// is entitled, and manages trial and authorization transitions.
type GateService struct {
	authRepo  entitlement.AuthorizationRepository
	trialRepo entitlement.TrialRepository
	gateway   GuildGateway
	cfg       Config
	logger    logger.Interface
	now       func() time.Time
}

// NewGateService creates the entitlement gate.
func NewGateService(
	authRepo entitlement.AuthorizationRepository,
	trialRepo entitlement.TrialRepository,
	gateway GuildGateway,
	cfg Config,
	log logger.Interface,
) *GateService {
	return &GateService{
		authRepo:  authRepo,
		trialRepo: trialRepo,
		gateway:   gateway,
		cfg:       cfg,
		logger:    log,
		now:       biztime.NowUTC,
	}
}

// Evaluate computes the guild's entitlement decision. Pure read: it always
// consults the store so grants and revokes take effect immediately, and it
// never mutates anything.
func (s *GateService) Evaluate(ctx context.Context, guildID string) (entitlement.Decision, error) {
	auth, trial, err := s.loadRecords(ctx, guildID)
	if err != nil {
		return "", err
	}
	return entitlement.Decide(auth, trial, s.now()), nil
}

// HandleGuildJoin reacts to the bot being added to a guild: an entitled or
// on-trial guild gets a status message, a guild with a spent trial is left,
// and a brand-new guild is offered a trial its administrators can accept.
func (s *GateService) HandleGuildJoin(ctx context.Context, guildID string) error {
	auth, trial, err := s.loadRecords(ctx, guildID)
	if err != nil {
		return err
	}
	now := s.now()

	switch entitlement.Decide(auth, trial, now) {
	case entitlement.DecisionAllowed:
		s.logger.Infow("joined authorized guild", "guild_id", guildID)
		return nil

	case entitlement.DecisionTrialActive:
		remaining := trial.Remaining(now).Round(time.Minute)
		s.bestEffort("notify guild", guildID,
			s.gateway.NotifyGuild(ctx, guildID, fmt.Sprintf(
				"Welcome back! Your free trial has %s remaining.", remaining)))
		return nil

	case entitlement.DecisionTrialExpired:
		// The trial record stays behind as the used-trial marker.
		s.bestEffort("notify guild", guildID,
			s.gateway.NotifyGuild(ctx, guildID,
				"This guild's free trial has ended. Purchase an authorization to keep using the bot."))
		s.bestEffort("leave guild", guildID, s.gateway.LeaveGuild(ctx, guildID))
		return nil
	}

	// No record at all: offer a trial, admins only, no prompt timeout.
	approved, err := s.gateway.ConfirmWithAdmins(ctx, guildID,
		fmt.Sprintf("Start a free %d-day trial for this guild?", int(s.cfg.TrialLength.Hours()/24)))
	if err != nil {
		if errors.Is(err, ErrNoWritableChannel) {
			// Nobody reachable to accept a trial or buy an authorization.
			s.logger.Infow("leaving unreachable guild", "guild_id", guildID)
			s.bestEffort("leave guild", guildID, s.gateway.LeaveGuild(ctx, guildID))
			return nil
		}
		return fmt.Errorf("trial prompt failed: %w", err)
	}
	if !approved {
		// Declined guilds stay join-able; the offer repeats on the next join.
		s.logger.Infow("trial declined", "guild_id", guildID)
		return nil
	}

	newTrial, err := entitlement.NewTrial(guildID, s.cfg.TrialLength, now)
	if err != nil {
		return err
	}
	if err := s.trialRepo.Create(ctx, newTrial); err != nil {
		return err
	}

	s.logger.Infow("trial started", "guild_id", guildID, "end_at", newTrial.EndAt())
	s.bestEffort("notify guild", guildID,
		s.gateway.NotifyGuild(ctx, guildID, fmt.Sprintf(
			"Trial started! This guild can use the bot until %s.",
			newTrial.EndAt().Format(time.DateOnly))))
	return nil
}

// Grant creates a paid authorization for a guild.
func (s *GateService) Grant(ctx context.Context, guildID, buyerUserID string, plan entitlement.Plan) (*entitlement.Authorization, error) {
	if _, err := s.authRepo.GetByGuild(ctx, guildID); err == nil {
		return nil, entitlement.ErrAlreadyAuthorized
	} else if !errors.Is(err, entitlement.ErrAuthorizationNotFound) {
		return nil, err
	}

	var auth *entitlement.Authorization
	var err error
	switch plan {
	case entitlement.PlanOneTime:
		auth, err = entitlement.NewOneTimeAuthorization(guildID, buyerUserID, s.cfg.TransferBudget, s.now())
	case entitlement.PlanMonthly:
		auth, err = entitlement.NewSubscriptionAuthorization(guildID, buyerUserID, s.cfg.SubscriptionPeriod, s.now())
	default:
		return nil, fmt.Errorf("unknown plan: %s", plan)
	}
	if err != nil {
		return nil, err
	}

	if err := s.authRepo.Create(ctx, auth); err != nil {
		return nil, err
	}

	// Cosmetic perk in the support community; the grant stands even if the
	// role assignment fails.
	s.bestEffort("assign supporter role", guildID,
		s.gateway.AssignSupporterRole(ctx, buyerUserID))

	s.logger.Infow("authorization granted",
		"guild_id", guildID, "buyer_user_id", buyerUserID, "plan", plan)
	return auth, nil
}

// Renew extends a subscription authorization by one billing period counted
// from its stored expiry.
func (s *GateService) Renew(ctx context.Context, guildID string) (*entitlement.Authorization, error) {
	auth, err := s.getAuthorization(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if err := auth.Renew(s.cfg.SubscriptionPeriod); err != nil {
		return nil, err
	}
	if err := s.authRepo.Update(ctx, auth); err != nil {
		return nil, err
	}

	s.logger.Infow("authorization renewed", "guild_id", guildID, "expires_at", auth.ExpiresAt())
	return auth, nil
}

// Transfer moves an authorization to a different guild.
func (s *GateService) Transfer(ctx context.Context, oldGuildID, newGuildID string) (*entitlement.Authorization, error) {
	auth, err := s.getAuthorization(ctx, oldGuildID)
	if err != nil {
		return nil, err
	}
	if err := auth.TransferTo(newGuildID); err != nil {
		return nil, err
	}
	if err := s.authRepo.Update(ctx, auth); err != nil {
		return nil, err
	}

	s.bestEffort("leave guild", oldGuildID, s.gateway.LeaveGuild(ctx, oldGuildID))

	s.logger.Infow("authorization transferred",
		"old_guild_id", oldGuildID,
		"new_guild_id", newGuildID,
		"transfers_remaining", auth.TransfersRemaining())
	return auth, nil
}

// Revoke deletes a guild's authorization and cleans up its side effects.
func (s *GateService) Revoke(ctx context.Context, guildID string) error {
	auth, err := s.getAuthorization(ctx, guildID)
	if err != nil {
		return err
	}

	if err := s.authRepo.Delete(ctx, guildID); err != nil {
		return err
	}

	s.bestEffort("leave guild", guildID, s.gateway.LeaveGuild(ctx, guildID))

	// The supporter role follows the buyer's last authorized guild.
	remaining, err := s.authRepo.ListByBuyer(ctx, auth.BuyerUserID())
	if err != nil {
		s.logger.Warnw("failed to list buyer authorizations after revoke",
			"buyer_user_id", auth.BuyerUserID(), "error", err)
	} else if len(remaining) == 0 {
		s.bestEffort("remove supporter role", guildID,
			s.gateway.RemoveSupporterRole(ctx, auth.BuyerUserID()))
	}

	s.logger.Infow("authorization revoked", "guild_id", guildID)
	return nil
}

// ExpireLapsed revokes every subscription authorization whose expiry is in
// the past. Called by the expiry scheduler; returns how many were revoked.
func (s *GateService) ExpireLapsed(ctx context.Context) (int, error) {
	lapsed, err := s.authRepo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, auth := range lapsed {
		if err := s.Revoke(ctx, auth.GuildID()); err != nil {
			s.logger.Errorw("failed to revoke lapsed authorization",
				"guild_id", auth.GuildID(), "error", err)
			continue
		}
		revoked++
	}
	return revoked, nil
}

func (s *GateService) loadRecords(ctx context.Context, guildID string) (*entitlement.Authorization, *entitlement.Trial, error) {
	auth, err := s.authRepo.GetByGuild(ctx, guildID)
	if err != nil && !errors.Is(err, entitlement.ErrAuthorizationNotFound) {
		return nil, nil, err
	}
	if auth != nil {
		// A paid authorization supersedes any trial state.
		return auth, nil, nil
	}

	trial, err := s.trialRepo.GetByGuild(ctx, guildID)
	if err != nil && !errors.Is(err, entitlement.ErrTrialNotFound) {
		return nil, nil, err
	}

	return auth, trial, nil
}

func (s *GateService) getAuthorization(ctx context.Context, guildID string) (*entitlement.Authorization, error) {
	auth, err := s.authRepo.GetByGuild(ctx, guildID)
	if err != nil {
		if errors.Is(err, entitlement.ErrAuthorizationNotFound) {
			return nil, entitlement.ErrNotAuthorized
		}
		return nil, err
	}
	return auth, nil
}

// bestEffort logs a failed side effect and drops it. Side effects never roll
// back or fail the primary operation.
func (s *GateService) bestEffort(action, guildID string, err error) {
	if err != nil {
		s.logger.Warnw("side effect failed",
			"action", action, "guild_id", guildID, "error", err)
	}
}

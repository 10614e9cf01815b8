package entitlement

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glint/internal/domain/entitlement"
	"glint/internal/shared/logger"
)

// --- fakes ---

type memoryAuthRepo struct {
	byGuild map[string]*entitlement.Authorization
	nextID  uint
}

func newMemoryAuthRepo() *memoryAuthRepo {
	return &memoryAuthRepo{byGuild: map[string]*entitlement.Authorization{}, nextID: 1}
}

func (r *memoryAuthRepo) Create(ctx context.Context, auth *entitlement.Authorization) error {
	if _, exists := r.byGuild[auth.GuildID()]; exists {
		return entitlement.ErrAlreadyAuthorized
	}
	if auth.ID() == 0 {
		if err := auth.SetID(r.nextID); err != nil {
			return err
		}
		r.nextID++
	}
	r.byGuild[auth.GuildID()] = auth
	return nil
}

func (r *memoryAuthRepo) GetByGuild(ctx context.Context, guildID string) (*entitlement.Authorization, error) {
	auth, ok := r.byGuild[guildID]
	if !ok {
		return nil, entitlement.ErrAuthorizationNotFound
	}
	return auth, nil
}

func (r *memoryAuthRepo) ListByBuyer(ctx context.Context, buyerUserID string) ([]*entitlement.Authorization, error) {
	var out []*entitlement.Authorization
	for _, auth := range r.byGuild {
		if auth.BuyerUserID() == buyerUserID {
			out = append(out, auth)
		}
	}
	return out, nil
}

func (r *memoryAuthRepo) ListExpired(ctx context.Context, now time.Time) ([]*entitlement.Authorization, error) {
	var out []*entitlement.Authorization
	for _, auth := range r.byGuild {
		if auth.IsExpired(now) {
			out = append(out, auth)
		}
	}
	return out, nil
}

func (r *memoryAuthRepo) Update(ctx context.Context, auth *entitlement.Authorization) error {
	for guildID, existing := range r.byGuild {
		if existing.ID() == auth.ID() {
			delete(r.byGuild, guildID)
			r.byGuild[auth.GuildID()] = auth
			return nil
		}
	}
	return entitlement.ErrAuthorizationNotFound
}

func (r *memoryAuthRepo) Delete(ctx context.Context, guildID string) error {
	if _, ok := r.byGuild[guildID]; !ok {
		return entitlement.ErrAuthorizationNotFound
	}
	delete(r.byGuild, guildID)
	return nil
}

type memoryTrialRepo struct {
	byGuild map[string]*entitlement.Trial
	nextID  uint
}

func newMemoryTrialRepo() *memoryTrialRepo {
	return &memoryTrialRepo{byGuild: map[string]*entitlement.Trial{}, nextID: 1}
}

func (r *memoryTrialRepo) Create(ctx context.Context, trial *entitlement.Trial) error {
	if _, exists := r.byGuild[trial.GuildID()]; exists {
		return entitlement.ErrTrialAlreadyUsed
	}
	if err := trial.SetID(r.nextID); err != nil {
		return err
	}
	r.nextID++
	r.byGuild[trial.GuildID()] = trial
	return nil
}

func (r *memoryTrialRepo) GetByGuild(ctx context.Context, guildID string) (*entitlement.Trial, error) {
	trial, ok := r.byGuild[guildID]
	if !ok {
		return nil, entitlement.ErrTrialNotFound
	}
	return trial, nil
}

type fakeGateway struct {
	notified      []string
	left          []string
	rolesAssigned []string
	rolesRemoved  []string
	confirmCalls  int
	confirmAnswer bool
	confirmErr    error
	notifyErr     error
	leaveErr      error
	roleErr       error
}

func (g *fakeGateway) NotifyGuild(ctx context.Context, guildID, message string) error {
	g.notified = append(g.notified, guildID+": "+message)
	return g.notifyErr
}

func (g *fakeGateway) LeaveGuild(ctx context.Context, guildID string) error {
	if g.leaveErr != nil {
		return g.leaveErr
	}
	g.left = append(g.left, guildID)
	return nil
}

func (g *fakeGateway) AssignSupporterRole(ctx context.Context, userID string) error {
	if g.roleErr != nil {
		return g.roleErr
	}
	g.rolesAssigned = append(g.rolesAssigned, userID)
	return nil
}

func (g *fakeGateway) RemoveSupporterRole(ctx context.Context, userID string) error {
	g.rolesRemoved = append(g.rolesRemoved, userID)
	return nil
}

func (g *fakeGateway) ConfirmWithAdmins(ctx context.Context, guildID, prompt string) (bool, error) {
	g.confirmCalls++
	if g.confirmErr != nil {
		return false, g.confirmErr
	}
	return g.confirmAnswer, nil
}

type gateFixture struct {
	service  *GateService
	authRepo *memoryAuthRepo
	trials   *memoryTrialRepo
	gateway  *fakeGateway
	now      time.Time
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{
		authRepo: newMemoryAuthRepo(),
		trials:   newMemoryTrialRepo(),
		gateway:  &fakeGateway{},
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewGateService(f.authRepo, f.trials, f.gateway, DefaultConfig(), logger.NewLogger())
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *gateFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// --- Evaluate ---

func TestEvaluate_NoRecords(t *testing.T) {
	f := newGateFixture(t)

	decision, err := f.service.Evaluate(context.Background(), "guild-1")

	require.NoError(t, err)
	assert.Equal(t, entitlement.DecisionTrialOffered, decision)
}

func TestEvaluate_TrialLifecycle(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	f.gateway.confirmAnswer = true
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))

	decision, err := f.service.Evaluate(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.DecisionTrialActive, decision)

	f.advance(8 * 24 * time.Hour)
	decision, err = f.service.Evaluate(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, entitlement.DecisionTrialExpired, decision)
}

func TestEvaluate_AuthorizationWinsOverExpiredTrial(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	f.gateway.confirmAnswer = true
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	f.advance(30 * 24 * time.Hour)

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)

	// Once authorized, the decision is Allowed no matter what the trial
	// record says, at any later time.
	for _, jump := range []time.Duration{0, 30 * 24 * time.Hour, 365 * 24 * time.Hour} {
		decision, err := f.service.Evaluate(ctx, "guild-1")
		require.NoError(t, err)
		assert.Equal(t, entitlement.DecisionAllowed, decision)
		f.advance(jump)
	}
}

// --- HandleGuildJoin ---

func TestHandleGuildJoin_OffersTrialAndCreatesRecord(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmAnswer = true

	require.NoError(t, f.service.HandleGuildJoin(context.Background(), "guild-1"))

	assert.Equal(t, 1, f.gateway.confirmCalls)
	trial, err := f.trials.GetByGuild(context.Background(), "guild-1")
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(7*24*time.Hour), trial.EndAt())
}

func TestHandleGuildJoin_DeclineCreatesNothing(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmAnswer = false
	ctx := context.Background()

	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))

	_, err := f.trials.GetByGuild(ctx, "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrTrialNotFound)

	// The offer repeats on the next join.
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	assert.Equal(t, 2, f.gateway.confirmCalls)
}

func TestHandleGuildJoin_TrialSingleUse(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmAnswer = true
	ctx := context.Background()

	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	require.Equal(t, 1, f.gateway.confirmCalls)

	// Re-joining during the trial informs, never re-offers.
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	assert.Equal(t, 1, f.gateway.confirmCalls)
	require.Len(t, f.gateway.notified, 1)
	assert.Contains(t, f.gateway.notified[0], "remaining")

	// Re-joining after expiry prompts signup and leaves, never re-offers.
	f.advance(8 * 24 * time.Hour)
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	assert.Equal(t, 1, f.gateway.confirmCalls, "expired trial must never be re-offered")
	assert.Equal(t, []string{"guild-1"}, f.gateway.left)

	// The used-trial marker survives the leave.
	_, err := f.trials.GetByGuild(ctx, "guild-1")
	assert.NoError(t, err)
}

func TestHandleGuildJoin_AuthorizedGuildIsQuiet(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanMonthly)
	require.NoError(t, err)

	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	assert.Zero(t, f.gateway.confirmCalls)
	assert.Empty(t, f.gateway.notified)
	assert.Empty(t, f.gateway.left)
}

func TestHandleGuildJoin_NoWritableChannelLeaves(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmErr = ErrNoWritableChannel

	require.NoError(t, f.service.HandleGuildJoin(context.Background(), "guild-1"))

	assert.Equal(t, []string{"guild-1"}, f.gateway.left)
}

func TestHandleGuildJoin_PromptFailurePropagates(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmErr = errors.New("gateway down")

	err := f.service.HandleGuildJoin(context.Background(), "guild-1")

	require.Error(t, err)
	assert.Empty(t, f.gateway.left)
}

// --- Grant / Renew / Transfer / Revoke ---

func TestGrant_OneTime(t *testing.T) {
	f := newGateFixture(t)

	auth, err := f.service.Grant(context.Background(), "guild-1", "buyer-1", entitlement.PlanOneTime)

	require.NoError(t, err)
	assert.Nil(t, auth.ExpiresAt())
	assert.Equal(t, 2, auth.TransfersRemaining())
	assert.Equal(t, []string{"buyer-1"}, f.gateway.rolesAssigned)
}

func TestGrant_Monthly(t *testing.T) {
	f := newGateFixture(t)

	auth, err := f.service.Grant(context.Background(), "guild-1", "buyer-1", entitlement.PlanMonthly)

	require.NoError(t, err)
	require.NotNil(t, auth.ExpiresAt())
	assert.Equal(t, f.now.Add(30*24*time.Hour), *auth.ExpiresAt())
}

func TestGrant_AlreadyAuthorized(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)

	_, err = f.service.Grant(ctx, "guild-1", "buyer-2", entitlement.PlanMonthly)
	assert.ErrorIs(t, err, entitlement.ErrAlreadyAuthorized)
}

func TestGrant_RoleFailureDoesNotRollBack(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.roleErr = errors.New("missing permissions")
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)

	_, err = f.authRepo.GetByGuild(ctx, "guild-1")
	assert.NoError(t, err)
}

func TestRenew_ExtendsFromStoredExpiry(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	granted, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanMonthly)
	require.NoError(t, err)
	originalExpiry := *granted.ExpiresAt()

	// Renew long after the subscription lapsed: the schedule is preserved.
	f.advance(45 * 24 * time.Hour)
	renewed, err := f.service.Renew(ctx, "guild-1")

	require.NoError(t, err)
	assert.Equal(t, originalExpiry.Add(30*24*time.Hour), *renewed.ExpiresAt())
}

func TestRenew_Guards(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Renew(ctx, "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrNotAuthorized)

	_, err = f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)
	_, err = f.service.Renew(ctx, "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrNotSubscription)
}

func TestTransfer_OneTimeAccounting(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)

	first, err := f.service.Transfer(ctx, "guild-1", "guild-2")
	require.NoError(t, err)
	assert.Equal(t, 1, first.TransfersRemaining())
	assert.Equal(t, []string{"guild-1"}, f.gateway.left)

	_, err = f.authRepo.GetByGuild(ctx, "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrAuthorizationNotFound)
	moved, err := f.authRepo.GetByGuild(ctx, "guild-2")
	require.NoError(t, err)
	assert.Equal(t, 1, moved.TransfersRemaining())

	second, err := f.service.Transfer(ctx, "guild-2", "guild-3")
	require.NoError(t, err)
	assert.Equal(t, 0, second.TransfersRemaining())

	_, err = f.service.Transfer(ctx, "guild-3", "guild-4")
	assert.ErrorIs(t, err, entitlement.ErrNoTransfersLeft)
}

func TestTransfer_Guards(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.service.Transfer(context.Background(), "guild-1", "guild-2")
	assert.ErrorIs(t, err, entitlement.ErrNotAuthorized)
}

func TestTransfer_SubscriptionUnlimited(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanMonthly)
	require.NoError(t, err)

	from := "guild-1"
	for _, to := range []string{"guild-2", "guild-3", "guild-4"} {
		_, err := f.service.Transfer(ctx, from, to)
		require.NoError(t, err)
		from = to
	}
}

func TestRevoke(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(ctx, "guild-1"))

	_, err = f.authRepo.GetByGuild(ctx, "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrAuthorizationNotFound)
	assert.Contains(t, f.gateway.left, "guild-1")
	assert.Equal(t, []string{"buyer-1"}, f.gateway.rolesRemoved,
		"buyer with no remaining guilds loses the supporter role")
}

func TestRevoke_KeepsRoleWhileOtherGuildsRemain(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-1", "buyer-1", entitlement.PlanOneTime)
	require.NoError(t, err)
	_, err = f.service.Grant(ctx, "guild-2", "buyer-1", entitlement.PlanMonthly)
	require.NoError(t, err)

	require.NoError(t, f.service.Revoke(ctx, "guild-1"))
	assert.Empty(t, f.gateway.rolesRemoved)
}

func TestRevoke_NotAuthorized(t *testing.T) {
	f := newGateFixture(t)

	err := f.service.Revoke(context.Background(), "guild-1")
	assert.ErrorIs(t, err, entitlement.ErrNotAuthorized)
}

// --- ExpireLapsed ---

func TestExpireLapsed(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, err := f.service.Grant(ctx, "guild-sub", "buyer-1", entitlement.PlanMonthly)
	require.NoError(t, err)
	_, err = f.service.Grant(ctx, "guild-forever", "buyer-2", entitlement.PlanOneTime)
	require.NoError(t, err)

	f.advance(31 * 24 * time.Hour)
	revoked, err := f.service.ExpireLapsed(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, revoked)
	_, err = f.authRepo.GetByGuild(ctx, "guild-sub")
	assert.ErrorIs(t, err, entitlement.ErrAuthorizationNotFound)
	_, err = f.authRepo.GetByGuild(ctx, "guild-forever")
	assert.NoError(t, err, "one-time plans never expire")
}

func TestHandleGuildJoin_NotifyFailureStillLeavesExpiredGuild(t *testing.T) {
	f := newGateFixture(t)
	f.gateway.confirmAnswer = true
	ctx := context.Background()

	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	f.advance(8 * 24 * time.Hour)

	f.gateway.notifyErr = errors.New("channel gone")
	require.NoError(t, f.service.HandleGuildJoin(ctx, "guild-1"))
	assert.True(t, contains(f.gateway.left, "guild-1"))
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if strings.Contains(s, want) {
			return true
		}
	}
	return false
}

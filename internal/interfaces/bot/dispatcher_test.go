package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glint/internal/domain/capture"
	"glint/internal/domain/entitlement"
	"glint/internal/infrastructure/discord"
	"glint/internal/shared/config"
	"glint/internal/shared/logger"
)

type fakeGate struct {
	decision    entitlement.Decision
	evaluateErr error
	joined      []string
	granted     []string
	renewed     []string
	revoked     []string
	transferred [][2]string
	gateErr     error
}

func (g *fakeGate) Evaluate(ctx context.Context, guildID string) (entitlement.Decision, error) {
	return g.decision, g.evaluateErr
}

func (g *fakeGate) HandleGuildJoin(ctx context.Context, guildID string) error {
	g.joined = append(g.joined, guildID)
	return nil
}

func (g *fakeGate) Grant(ctx context.Context, guildID, buyerUserID string, plan entitlement.Plan) (*entitlement.Authorization, error) {
	if g.gateErr != nil {
		return nil, g.gateErr
	}
	g.granted = append(g.granted, guildID)
	return newTestAuth(guildID, buyerUserID)
}

func (g *fakeGate) Renew(ctx context.Context, guildID string) (*entitlement.Authorization, error) {
	if g.gateErr != nil {
		return nil, g.gateErr
	}
	g.renewed = append(g.renewed, guildID)
	return newTestSubscription(guildID)
}

func (g *fakeGate) Transfer(ctx context.Context, oldGuildID, newGuildID string) (*entitlement.Authorization, error) {
	if g.gateErr != nil {
		return nil, g.gateErr
	}
	g.transferred = append(g.transferred, [2]string{oldGuildID, newGuildID})
	return newTestAuth(newGuildID, "buyer")
}

func (g *fakeGate) Revoke(ctx context.Context, guildID string) error {
	if g.gateErr != nil {
		return g.gateErr
	}
	g.revoked = append(g.revoked, guildID)
	return nil
}

func testClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestAuth(guildID, buyer string) (*entitlement.Authorization, error) {
	return entitlement.NewOneTimeAuthorization(guildID, buyer, 2, testClock())
}

func newTestSubscription(guildID string) (*entitlement.Authorization, error) {
	return entitlement.NewSubscriptionAuthorization(guildID, "buyer", 30*24*time.Hour, testClock())
}

type fakeCapturer struct {
	calls int
	image []byte
	err   error
}

func (c *fakeCapturer) Capture(ctx context.Context, req capture.RenderRequest) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.image, nil
}

type recordedReply struct {
	kind    string // "respond", "edit", "file"
	content string
	flags   int
	file    []byte
}

type fakeResponder struct {
	replies  []recordedReply
	commands []discord.ApplicationCommand
}

func (r *fakeResponder) CreateInteractionResponse(ctx context.Context, interactionID, token string, resp discord.InteractionResponse) error {
	reply := recordedReply{kind: "respond"}
	if resp.Type == discord.ResponseDeferredMessage {
		reply.kind = "defer"
	}
	if resp.Data != nil {
		reply.content = resp.Data.Content
		reply.flags = resp.Data.Flags
	}
	r.replies = append(r.replies, reply)
	return nil
}

func (r *fakeResponder) EditOriginalResponse(ctx context.Context, applicationID, token string, payload discord.MessagePayload) error {
	r.replies = append(r.replies, recordedReply{kind: "edit", content: payload.Content})
	return nil
}

func (r *fakeResponder) EditOriginalResponseWithFile(ctx context.Context, applicationID, token string, payload discord.MessagePayload, filename string, file []byte) error {
	r.replies = append(r.replies, recordedReply{kind: "file", content: payload.Content, file: file})
	return nil
}

func (r *fakeResponder) BulkOverwriteCommands(ctx context.Context, applicationID string, commands []discord.ApplicationCommand) error {
	r.commands = commands
	return nil
}

type fakeComponents struct {
	handled bool
	seen    []*discord.Interaction
}

func (c *fakeComponents) HandleComponent(ctx context.Context, interaction *discord.Interaction) bool {
	c.seen = append(c.seen, interaction)
	return c.handled
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	gate       *fakeGate
	capturer   *fakeCapturer
	responder  *fakeResponder
	components *fakeComponents
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		gate:       &fakeGate{decision: entitlement.DecisionAllowed},
		capturer:   &fakeCapturer{image: []byte("png-bytes")},
		responder:  &fakeResponder{},
		components: &fakeComponents{handled: true},
	}
	f.dispatcher = NewDispatcher(f.gate, f.capturer, f.responder, f.components, config.DiscordConfig{
		ApplicationID:   "app-1",
		OperatorUserIDs: []string{"operator-1"},
	}, logger.NewLogger())
	return f
}

func commandInteraction(name, guildID, userID string, options ...discord.InteractionOption) *discord.Interaction {
	return &discord.Interaction{
		ID:      "int-1",
		Type:    discord.InteractionTypeCommand,
		Token:   "tok",
		GuildID: guildID,
		Member:  &discord.Member{User: &discord.User{ID: userID}},
		Data:    &discord.InteractionData{Name: name, Options: options},
	}
}

func strOpt(name, value string) discord.InteractionOption {
	return discord.InteractionOption{Name: name, Type: 3, Value: value}
}

func (f *dispatcherFixture) lastReply(t *testing.T) recordedReply {
	t.Helper()
	require.NotEmpty(t, f.responder.replies)
	return f.responder.replies[len(f.responder.replies)-1]
}

func TestScreenshot_AllowedGuild(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.HandleInteraction(context.Background(),
		commandInteraction("screenshot", "guild-1", "user-1", strOpt("url", "https://example.com")))

	require.Equal(t, 1, f.capturer.calls)
	require.Len(t, f.responder.replies, 2)
	assert.Equal(t, "defer", f.responder.replies[0].kind)
	assert.Equal(t, "file", f.responder.replies[1].kind)
	assert.Equal(t, []byte("png-bytes"), f.responder.replies[1].file)
}

func TestScreenshot_TrialActivePermitted(t *testing.T) {
	f := newDispatcherFixture(t)
	f.gate.decision = entitlement.DecisionTrialActive

	f.dispatcher.HandleInteraction(context.Background(),
		commandInteraction("screenshot", "guild-1", "user-1", strOpt("url", "https://example.com")))

	assert.Equal(t, 1, f.capturer.calls)
}

func TestScreenshot_UnentitledGuildRejected(t *testing.T) {
	for _, decision := range []entitlement.Decision{
		entitlement.DecisionTrialExpired,
		entitlement.DecisionTrialOffered,
	} {
		t.Run(string(decision), func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.gate.decision = decision

			f.dispatcher.HandleInteraction(context.Background(),
				commandInteraction("screenshot", "guild-1", "user-1", strOpt("url", "https://example.com")))

			assert.Zero(t, f.capturer.calls, "unentitled guild must never reach the browser")
			reply := f.lastReply(t)
			assert.Contains(t, reply.content, "not authorized")
			assert.Equal(t, discord.FlagEphemeral, reply.flags)
		})
	}
}

func TestScreenshot_OutsideGuildRejected(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.HandleInteraction(context.Background(),
		commandInteraction("screenshot", "", "user-1", strOpt("url", "https://example.com")))

	assert.Zero(t, f.capturer.calls)
	assert.Contains(t, f.lastReply(t).content, "inside a server")
}

func TestScreenshot_CaptureErrorsMapToMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{capture.ErrInvalidURL, "valid http(s) URL"},
		{capture.ErrForbiddenTarget, "can't be captured"},
		{capture.ErrRenderTimeout, "too long"},
		{capture.ErrExplicitContent, "explicit"},
		{errors.New("boom"), "failed"},
	}
	for _, tc := range cases {
		f := newDispatcherFixture(t)
		f.capturer.err = tc.err

		f.dispatcher.HandleInteraction(context.Background(),
			commandInteraction("screenshot", "guild-1", "user-1", strOpt("url", "https://example.com")))

		reply := f.lastReply(t)
		assert.Equal(t, "edit", reply.kind)
		assert.Contains(t, reply.content, tc.want)
	}
}

func TestTrialStatus(t *testing.T) {
	cases := map[entitlement.Decision]string{
		entitlement.DecisionAllowed:      "paid authorization",
		entitlement.DecisionTrialActive:  "active free trial",
		entitlement.DecisionTrialExpired: "has ended",
		entitlement.DecisionTrialOffered: "no trial yet",
	}
	for decision, want := range cases {
		f := newDispatcherFixture(t)
		f.gate.decision = decision

		f.dispatcher.HandleInteraction(context.Background(),
			commandInteraction("trial", "guild-1", "user-1"))

		assert.Contains(t, f.lastReply(t).content, want)
	}
}

func TestOperatorCommands_RequireOperator(t *testing.T) {
	for _, name := range []string{"authorize", "renew", "transfer", "revoke"} {
		f := newDispatcherFixture(t)

		f.dispatcher.HandleInteraction(context.Background(),
			commandInteraction(name, "guild-1", "random-user"))

		assert.Empty(t, f.gate.granted)
		assert.Empty(t, f.gate.renewed)
		assert.Empty(t, f.gate.transferred)
		assert.Empty(t, f.gate.revoked)
		assert.Contains(t, f.lastReply(t).content, "not allowed")
	}
}

func TestOperatorCommands_Flows(t *testing.T) {
	f := newDispatcherFixture(t)
	ctx := context.Background()

	f.dispatcher.HandleInteraction(ctx, commandInteraction("authorize", "guild-1", "operator-1",
		strOpt("plan", "one_time"), strOpt("buyer", "buyer-1")))
	assert.Equal(t, []string{"guild-1"}, f.gate.granted)

	f.dispatcher.HandleInteraction(ctx, commandInteraction("renew", "guild-1", "operator-1"))
	assert.Equal(t, []string{"guild-1"}, f.gate.renewed)

	f.dispatcher.HandleInteraction(ctx, commandInteraction("transfer", "guild-1", "operator-1",
		strOpt("target", "guild-2")))
	assert.Equal(t, [][2]string{{"guild-1", "guild-2"}}, f.gate.transferred)

	f.dispatcher.HandleInteraction(ctx, commandInteraction("revoke", "guild-1", "operator-1"))
	assert.Equal(t, []string{"guild-1"}, f.gate.revoked)
}

func TestOperatorCommands_ErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{entitlement.ErrAlreadyAuthorized, "already authorized"},
		{entitlement.ErrNotAuthorized, "no authorization"},
		{entitlement.ErrNotSubscription, "subscription plans"},
		{entitlement.ErrNoTransfersLeft, "no transfers left"},
	}
	for _, tc := range cases {
		f := newDispatcherFixture(t)
		f.gate.gateErr = tc.err

		f.dispatcher.HandleInteraction(context.Background(),
			commandInteraction("authorize", "guild-1", "operator-1"))

		assert.Contains(t, f.lastReply(t).content, tc.want)
	}
}

func TestComponentInteractionsRouteToHandler(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.HandleInteraction(context.Background(), &discord.Interaction{
		Type: discord.InteractionTypeMessageComponent,
		Data: &discord.InteractionData{CustomID: "confirm:x:yes"},
	})

	assert.Len(t, f.components.seen, 1)
	assert.Zero(t, f.capturer.calls)
}

func TestHandleGuildJoinDelegatesToGate(t *testing.T) {
	f := newDispatcherFixture(t)

	f.dispatcher.HandleGuildJoin(context.Background(), "guild-7")

	assert.Equal(t, []string{"guild-7"}, f.gate.joined)
}

func TestRegisterCommands(t *testing.T) {
	f := newDispatcherFixture(t)

	require.NoError(t, f.dispatcher.RegisterCommands(context.Background()))

	names := make([]string, len(f.responder.commands))
	for i, cmd := range f.responder.commands {
		names[i] = cmd.Name
	}
	assert.ElementsMatch(t, names,
		[]string{"screenshot", "trial", "authorize", "renew", "transfer", "revoke"})
}

package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"glint/internal/shared/goroutine"
	"glint/internal/shared/logger"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11
)

// intentGuilds delivers GUILD_CREATE and GUILD_DELETE. Interactions arrive
// without any intent bit.
const intentGuilds = 1 << 0

// EventHandler receives dispatched gateway events.
type EventHandler interface {
	// HandleGuildJoin is called when the bot is added to a guild while
	// connected. Guilds replayed during session startup are not joins.
	HandleGuildJoin(ctx context.Context, guildID string)
	// HandleInteraction is called for every INTERACTION_CREATE.
	HandleInteraction(ctx context.Context, interaction *Interaction)
}

type gatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence int64           `json:"s,omitempty"`
	Type     string          `json:"t,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type readyData struct {
	SessionID string  `json:"session_id"`
	Guilds    []Guild `json:"guilds"`
}

// GatewayClient maintains the websocket connection to the Discord gateway:
// identify, heartbeat, and event dispatch, reconnecting with backoff.
type GatewayClient struct {
	rest    *RestClient
	token   string
	handler EventHandler
	logger  logger.Interface

	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	cancelRun context.CancelFunc

	mu          sync.Mutex
	conn        *websocket.Conn
	sequence    int64
	knownGuilds map[string]struct{}
}

// NewGatewayClient creates a gateway client. Events go to handler.
func NewGatewayClient(rest *RestClient, token string, handler EventHandler, logger logger.Interface) *GatewayClient {
	return &GatewayClient{
		rest:        rest,
		token:       token,
		handler:     handler,
		logger:      logger,
		stopChan:    make(chan struct{}),
		knownGuilds: map[string]struct{}{},
	}
}

// Start connects and keeps the session alive until Stop or context cancel.
func (c *GatewayClient) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel

	c.wg.Add(1)
	goroutine.SafeGo(c.logger, "discord-gateway", func() {
		defer c.wg.Done()
		c.runLoop(runCtx)
	})
}

// Stop closes the session and waits for the run loop to exit.
func (c *GatewayClient) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		if c.cancelRun != nil {
			c.cancelRun()
		}
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
		c.wg.Wait()
		c.logger.Infow("discord gateway stopped")
	})
}

func (c *GatewayClient) runLoop(ctx context.Context) {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		default:
		}

		err := c.runSession(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warnw("discord gateway session ended", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-c.stopChan:
			return
		case <-time.After(backoff):
		}
		if backoff < 60*time.Second {
			backoff *= 2
		}
	}
}

// runSession runs one websocket session from dial to disconnect.
func (c *GatewayClient) runSession(ctx context.Context) error {
	gatewayURL, err := c.rest.GetGatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve gateway URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	hello, err := c.readPayload(conn)
	if err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloBody helloData
	if err := json.Unmarshal(hello.Data, &helloBody); err != nil {
		return fmt.Errorf("failed to decode hello: %w", err)
	}

	if err := c.identify(conn); err != nil {
		return err
	}

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	goroutine.SafeGo(c.logger, "discord-heartbeat", func() {
		c.heartbeatLoop(conn, time.Duration(helloBody.HeartbeatInterval)*time.Millisecond, heartbeatDone)
	})

	for {
		payload, err := c.readPayload(conn)
		if err != nil {
			return err
		}

		switch payload.Op {
		case opDispatch:
			if payload.Sequence > 0 {
				c.mu.Lock()
				c.sequence = payload.Sequence
				c.mu.Unlock()
			}
			c.dispatch(ctx, payload)
		case opHeartbeat:
			c.sendHeartbeat(conn)
		case opHeartbeatACK:
			// nothing to do
		case opReconnect, opInvalidSession:
			return fmt.Errorf("gateway requested reconnect (op %d)", payload.Op)
		}
	}
}

func (c *GatewayClient) identify(conn *websocket.Conn) error {
	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   c.token,
			"intents": intentGuilds,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "glint",
				"device":  "glint",
			},
		},
	}
	if err := c.writeJSON(conn, identify); err != nil {
		return fmt.Errorf("failed to identify: %w", err)
	}
	return nil
}

func (c *GatewayClient) heartbeatLoop(conn *websocket.Conn, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.sendHeartbeat(conn)
		}
	}
}

func (c *GatewayClient) sendHeartbeat(conn *websocket.Conn) {
	c.mu.Lock()
	seq := c.sequence
	c.mu.Unlock()
	payload := map[string]any{"op": opHeartbeat, "d": seq}
	if seq == 0 {
		payload["d"] = nil
	}
	if err := c.writeJSON(conn, payload); err != nil {
		c.logger.Warnw("failed to send heartbeat", "error", err)
	}
}

func (c *GatewayClient) dispatch(ctx context.Context, payload *gatewayPayload) {
	switch payload.Type {
	case "READY":
		var ready readyData
		if err := json.Unmarshal(payload.Data, &ready); err != nil {
			c.logger.Warnw("failed to decode READY", "error", err)
			return
		}
		// READY lists the guilds the bot is already in; their GUILD_CREATE
		// replays are availability events, not joins.
		c.mu.Lock()
		for _, guild := range ready.Guilds {
			c.knownGuilds[guild.ID] = struct{}{}
		}
		c.mu.Unlock()
		c.logger.Infow("discord session ready",
			"session_id", ready.SessionID, "guilds", len(ready.Guilds))

	case "GUILD_CREATE":
		var guild Guild
		if err := json.Unmarshal(payload.Data, &guild); err != nil {
			c.logger.Warnw("failed to decode GUILD_CREATE", "error", err)
			return
		}
		c.mu.Lock()
		_, replay := c.knownGuilds[guild.ID]
		c.knownGuilds[guild.ID] = struct{}{}
		c.mu.Unlock()
		if replay {
			return
		}
		// The join flow may block on an admin confirmation, which arrives as
		// an INTERACTION_CREATE on this same read loop. Never run it inline.
		goroutine.SafeGo(c.logger, "discord-guild-join", func() {
			c.handler.HandleGuildJoin(ctx, guild.ID)
		})

	case "GUILD_DELETE":
		var guild Guild
		if err := json.Unmarshal(payload.Data, &guild); err != nil {
			return
		}
		// Unavailable means outage, not removal; keep it known.
		if guild.Unavailable {
			return
		}
		c.mu.Lock()
		delete(c.knownGuilds, guild.ID)
		c.mu.Unlock()

	case "INTERACTION_CREATE":
		var interaction Interaction
		if err := json.Unmarshal(payload.Data, &interaction); err != nil {
			c.logger.Warnw("failed to decode INTERACTION_CREATE", "error", err)
			return
		}
		goroutine.SafeGo(c.logger, "discord-interaction", func() {
			c.handler.HandleInteraction(ctx, &interaction)
		})
	}
}

func (c *GatewayClient) readPayload(conn *websocket.Conn) (*gatewayPayload, error) {
	var payload gatewayPayload
	if err := conn.ReadJSON(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// writeJSON serializes writes; gorilla/websocket allows one writer at a time.
func (c *GatewayClient) writeJSON(conn *websocket.Conn, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return conn.WriteJSON(v)
}

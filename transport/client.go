// Package transport maintains the realtime telemetry socket: it connects to the
// per-user endpoint, keeps the link alive with heartbeats, reconnects with
// capped exponential backoff and hands every decoded envelope to a dispatcher.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AltairaLabs/PoseKit/clock"
	"github.com/AltairaLabs/PoseKit/logger"
	pkmetrics "github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/types"
)

// State is the connection lifecycle state.
type State int

// Connection states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateGaveUp:
		return "gave_up"
	default:
		return "disconnected"
	}
}

// Dispatcher receives decoded inbound envelopes in arrival order.
type Dispatcher interface {
	Dispatch(types.Envelope)
}

// Client is a reconnecting telemetry socket client.
type Client struct {
	cfg        Config
	dispatcher Dispatcher

	mu        sync.Mutex
	writeMu   sync.Mutex // serializes writes (gorilla/websocket requirement)
	state     State
	identity  string
	url       string
	conn      *websocket.Conn
	connID    string
	gen       uint64
	attempts  int
	reconnect clock.Timer
	heartbeat clock.Timer
	onOpen    []func()
}

// NewClient creates a Client. Call Connect to open the socket.
func NewClient(cfg Config, d Dispatcher) *Client {
	cfg.defaults()
	return &Client{cfg: cfg, dispatcher: d}
}

// OnOpen registers fn to run after every successful open, automatic
// reconnects included. fn runs on the dialing goroutine once the socket
// accepts writes.
func (c *Client) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = append(c.onOpen, fn)
}

// Connect opens the socket for identity. It is a no-op while the socket is
// open or a dial is in flight. A failed dial is treated like a close and
// schedules a reconnect; its error is still returned.
//
// The reconnect attempt counter is only reset by a successful open.
func (c *Client) Connect(ctx context.Context, identity string) error {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.identity = identity
	c.url = c.cfg.UserURL(identity)
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

func (c *Client) dial(ctx context.Context, gen uint64) error {
	c.mu.Lock()
	target := c.url
	identity := c.identity
	c.mu.Unlock()

	logCtx := logger.WithUserID(ctx, identity)
	logger.DebugContext(logCtx, "connecting to telemetry socket", "url", target)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, resp, err := dialer.DialContext(ctx, target, c.cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		// Disconnected or superseded while dialing.
		if conn != nil {
			_ = conn.Close()
		}
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	if err != nil {
		pkmetrics.RecordConnect("error")
		logger.WarnContext(logCtx, "telemetry socket dial failed", "url", target, "error", err)
		c.scheduleReconnectLocked(logCtx)
		c.mu.Unlock()
		return fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.connID = uuid.NewString()
	c.heartbeat = c.cfg.Clock.Every(c.cfg.HeartbeatInterval, c.sendHeartbeat)
	hooks := slices.Clone(c.onOpen)
	pkmetrics.RecordConnect("success")

	logCtx = logger.WithConnectionID(logCtx, c.connID)
	logger.InfoContext(logCtx, "telemetry socket connected", "url", target)

	go c.readLoop(logCtx, conn, gen)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onClose(ctx, gen, err)
			return
		}
		c.handleMessage(ctx, data)
	}
}

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	env, err := types.DecodeEnvelope(data)
	if err != nil {
		pkmetrics.RecordMessageDropped("malformed")
		logger.WarnContext(ctx, "dropping malformed telemetry message", "error", err, "size", len(data))
		return
	}
	pkmetrics.RecordMessageReceived(env.Type)
	if c.dispatcher != nil {
		c.dispatcher.Dispatch(env)
	}
}

func (c *Client) onClose(ctx context.Context, gen uint64, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateOpen {
		return
	}
	if websocket.IsCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logger.InfoContext(ctx, "telemetry socket closed by server")
	} else {
		logger.WarnContext(ctx, "telemetry socket lost", "error", cause)
	}
	c.stopHeartbeatLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.scheduleReconnectLocked(ctx)
}

// scheduleReconnectLocked must be called with c.mu held.
func (c *Client) scheduleReconnectLocked(ctx context.Context) {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateGaveUp
		pkmetrics.RecordReconnectGiveUp()
		logger.ErrorContext(ctx, "giving up on telemetry socket", "attempts", c.attempts)
		return
	}
	c.attempts++
	delay := c.cfg.Backoff(c.attempts)
	c.state = StateReconnecting
	gen := c.gen
	c.reconnect = c.cfg.Clock.AfterFunc(delay, func() { c.retry(gen) })
	pkmetrics.RecordReconnectAttempt()
	logger.InfoContext(ctx, "scheduling telemetry reconnect", "attempt", c.attempts, "delay", delay)
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	c.state = StateConnecting
	c.gen++
	next := c.gen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	_ = c.dial(ctx, next)
}

func (c *Client) sendHeartbeat() {
	c.Send(types.NewPing())
}

// stopHeartbeatLocked must be called with c.mu held.
func (c *Client) stopHeartbeatLocked() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}

// Send JSON-encodes msg and writes it if the socket is open. It reports
// whether the message was written; nothing is queued while disconnected.
func (c *Client) Send(msg any) bool {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.mu.Unlock()
		pkmetrics.RecordMessageDropped("not_open")
		return false
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		pkmetrics.RecordMessageDropped("encode")
		logger.Warn("failed to encode outbound message", "error", err)
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		logger.Warn("failed to set write deadline", "error", err)
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Warn("failed to write outbound message", "error", err)
		return false
	}
	pkmetrics.RecordMessageSent(messageType(msg))
	return true
}

func messageType(msg any) string {
	switch m := msg.(type) {
	case types.Ping:
		return m.Type
	case types.SubscribeDevice:
		return m.Type
	default:
		return "other"
	}
}

// SubscribeDevice asks the server to route deviceID's telemetry to this socket.
func (c *Client) SubscribeDevice(deviceID string) bool {
	return c.Send(types.NewSubscribeDevice(deviceID))
}

// Disconnect cancels any pending reconnect, stops the heartbeat and closes the
// socket. No automatic reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.stopHeartbeatLocked()
	conn := c.conn
	c.conn = nil
	wasActive := c.state != StateDisconnected
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn == nil {
		if wasActive {
			logger.Debug("telemetry socket disconnected")
		}
		return
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseGracePeriod))
	_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	_ = conn.Close()
	logger.Info("telemetry socket disconnected")
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the consecutive reconnect attempts since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ConnectionID returns the id of the current or most recent open socket.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// URL returns the endpoint of the last Connect.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

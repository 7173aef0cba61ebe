package transport

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AltairaLabs/PoseKit/clock"
)

// Endpoint bases selected by environment.
const (
	ProductionBase  = "wss://sports-vision-cloud.onrender.com"
	DevelopmentBase = "ws://localhost:8000"

	// EnvironmentProduction selects ProductionBase.
	EnvironmentProduction = "production"
)

// Default connection constants.
const (
	DefaultDialTimeout          = 10 * time.Second
	DefaultWriteWait            = 10 * time.Second
	DefaultMaxMessageSize       = 1 << 20
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultBackoffBase          = 1 * time.Second
	DefaultBackoffMax           = 30 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultCloseGracePeriod     = 2 * time.Second
)

// Config configures a Client.
type Config struct {
	// Environment picks the endpoint base when BaseURL is empty.
	// "production" selects ProductionBase; anything else DevelopmentBase.
	Environment string

	// BaseURL overrides the environment-derived base, e.g. "ws://10.0.0.5:8000".
	BaseURL string

	// Headers are sent during the handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the per-message write deadline. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// HeartbeatInterval is the ping period while open. Defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// BackoffBase is multiplied by 2^attempt to get the reconnect delay.
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay.
	BackoffMax time.Duration

	// MaxReconnectAttempts bounds consecutive automatic reconnects.
	MaxReconnectAttempts int

	// CloseGracePeriod is the deadline for writing the close frame.
	CloseGracePeriod time.Duration

	// Clock drives heartbeat and reconnect timers. Defaults to clock.Real().
	Clock clock.Clock
}

func (c *Config) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
}

// Base returns the endpoint base the config resolves to.
func (c Config) Base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if strings.EqualFold(c.Environment, EnvironmentProduction) {
		return ProductionBase
	}
	return DevelopmentBase
}

// UserURL returns the per-user socket endpoint.
func (c Config) UserURL(identity string) string {
	return c.Base() + "/ws/user/" + url.PathEscape(identity)
}

// Backoff returns the delay before reconnect attempt n (1-indexed):
// min(base·2ⁿ, max).
func (c Config) Backoff(n int) time.Duration {
	d := c.BackoffBase
	for i := 0; i < n; i++ {
		d *= 2
		if d >= c.BackoffMax {
			return c.BackoffMax
		}
	}
	return d
}

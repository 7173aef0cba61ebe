// Package relay mirrors dispatched telemetry envelopes onto Redis pub/sub so
// other processes (recorders, coaching dashboards) can follow a session, and
// keeps the latest session snapshot under a short-lived key.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/AltairaLabs/PoseKit/dispatch"
	"github.com/AltairaLabs/PoseKit/logger"
	pkmetrics "github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/types"
)

const (
	defaultPrefix         = "posekit"
	defaultSnapshotTTL    = 5 * time.Minute
	defaultPublishTimeout = 2 * time.Second
)

// ErrNotFound is returned when no snapshot is stored under a key.
var ErrNotFound = errors.New("snapshot not found")

// Relay publishes envelopes to Redis.
type Relay struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration

	// poseLimit throttles pose_update publishes; nil means unlimited.
	poseLimit *rate.Limiter
}

// Option configures a Relay.
type Option func(*Relay)

// WithPrefix sets the channel and key prefix. Default is "posekit".
func WithPrefix(prefix string) Option {
	return func(r *Relay) {
		r.prefix = prefix
	}
}

// WithSnapshotTTL sets how long stored snapshots live. Zero means no expiry.
func WithSnapshotTTL(ttl time.Duration) Option {
	return func(r *Relay) {
		r.ttl = ttl
	}
}

// WithPublishTimeout bounds each publish issued from a dispatch handler.
func WithPublishTimeout(d time.Duration) Option {
	return func(r *Relay) {
		r.timeout = d
	}
}

// WithPoseRate caps mirrored pose_update envelopes at perSecond with the given
// burst. Excess frames are skipped; other message types are never throttled.
func WithPoseRate(perSecond float64, burst int) Option {
	return func(r *Relay) {
		if perSecond <= 0 {
			r.poseLimit = nil
			return
		}
		r.poseLimit = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
	}
}

// New creates a Relay over client.
//
// Example:
//
//	r := relay.New(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    relay.WithPrefix("court-3"),
//	)
func New(client *redis.Client, opts ...Option) *Relay {
	r := &Relay{
		client:  client,
		prefix:  defaultPrefix,
		ttl:     defaultSnapshotTTL,
		timeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Channel returns the pub/sub channel for msgType.
func (r *Relay) Channel(msgType string) string {
	return r.prefix + ":" + msgType
}

func (r *Relay) snapshotKey(name string) string {
	return r.prefix + ":snapshot:" + name
}

// Publish sends env to its type's channel. The original wire bytes are
// forwarded when present.
func (r *Relay) Publish(ctx context.Context, env types.Envelope) error {
	payload := env.Raw
	if len(payload) == 0 {
		var err error
		if payload, err = json.Marshal(env); err != nil {
			return fmt.Errorf("failed to marshal envelope: %w", err)
		}
	}
	if err := r.client.Publish(ctx, r.Channel(env.Type), payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Handler returns a dispatch handler that publishes every envelope it sees.
// Failures are logged and counted; they never reach the dispatcher.
func (r *Relay) Handler() dispatch.Handler {
	return func(env types.Envelope) {
		if env.Type == types.MessagePoseUpdate && r.poseLimit != nil && !r.poseLimit.Allow() {
			pkmetrics.RecordRelayPublish("throttled")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Publish(ctx, env); err != nil {
			pkmetrics.RecordRelayPublish("error")
			logger.Warn("relay publish failed", "type", env.Type, "error", err)
			return
		}
		pkmetrics.RecordRelayPublish("success")
	}
}

// Subscriber registers dispatch handlers.
type Subscriber interface {
	Subscribe(msgType string, h dispatch.Handler) (unsubscribe func())
}

// Attach mirrors msgTypes from s and returns a function removing the handlers.
func (r *Relay) Attach(s Subscriber, msgTypes ...string) (detach func()) {
	h := r.Handler()
	unsubs := make([]func(), 0, len(msgTypes))
	for _, t := range msgTypes {
		unsubs = append(unsubs, s.Subscribe(t, h))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// StoreSnapshot saves v as JSON under name.
func (r *Relay) StoreSnapshot(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.snapshotKey(name), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// LoadSnapshot decodes the snapshot stored under name into v.
func (r *Relay) LoadSnapshot(ctx context.Context, name string, v any) error {
	data, err := r.client.Get(ctx, r.snapshotKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return nil
}

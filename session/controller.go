// Package session owns the training-session state machine and the live state
// (metrics snapshot and current pose frame) that renderers read.
//
// A session is Idle, LiveActive (fed by a device over the transport) or
// DemoActive (fed by the synthesizer). At most one session runs at a time and
// the metrics snapshot and pose frame are only mutated through Controller.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/PoseKit/clock"
	"github.com/AltairaLabs/PoseKit/logger"
	pkmetrics "github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/synth"
	"github.com/AltairaLabs/PoseKit/telemetry"
	"github.com/AltairaLabs/PoseKit/types"
)

// Default tick periods.
const (
	DefaultDurationInterval = time.Second
	DefaultPoseInterval     = 50 * time.Millisecond
	DefaultMetricsInterval  = time.Second
)

// ErrStartCanceled is returned by StartLive when Close ran while the
// collaborator was still opening the session.
var ErrStartCanceled = errors.New("live session start canceled")

// Collaborator is the REST backend that records live sessions.
type Collaborator interface {
	StartSession(ctx context.Context, deviceID string) (string, error)
	EndSession(ctx context.Context, sessionID string, final types.Metrics) error
}

// DeviceSubscriber routes a device's telemetry to this client.
type DeviceSubscriber interface {
	SubscribeDevice(deviceID string) bool
}

// Snapshot is a copy of the controller state. Seq increases with every state
// change, so a consumer can discard a snapshot older than one it already holds.
type Snapshot struct {
	Seq       uint64        `json:"seq"`
	Status    types.Status  `json:"status"`
	SessionID string        `json:"session_id,omitempty"`
	DeviceID  string        `json:"device_id,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Metrics   types.Metrics `json:"metrics"`
	Pose      types.Frame   `json:"pose,omitempty"`
}

// Options tune a Controller. Zero values use defaults.
type Options struct {
	Clock            clock.Clock
	TracerProvider   trace.TracerProvider
	DurationInterval time.Duration
	PoseInterval     time.Duration
	MetricsInterval  time.Duration
}

// Controller is the session state machine.
type Controller struct {
	rest   Collaborator
	link   DeviceSubscriber
	clock  clock.Clock
	tracer trace.Tracer
	opts   Options

	mu        sync.Mutex
	status    types.Status
	pending   bool
	canceled  bool
	seq       uint64
	sessionID string
	deviceID  string
	startedAt time.Time
	metrics   types.Metrics
	pose      types.Frame
	gen       uint64
	timers    []clock.Timer
	sampler   *synth.LiveSampler
	anim      synth.Animation

	observers map[uint64]func(Snapshot)
	nextObsID uint64
	detach    []func()

	// notifyMu serializes observer delivery; delivered is the newest Seq handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// NewController creates an idle controller. rest and link may be nil when only
// demo sessions are used.
func NewController(rest Collaborator, link DeviceSubscriber, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.DurationInterval == 0 {
		opts.DurationInterval = DefaultDurationInterval
	}
	if opts.PoseInterval == 0 {
		opts.PoseInterval = DefaultPoseInterval
	}
	if opts.MetricsInterval == 0 {
		opts.MetricsInterval = DefaultMetricsInterval
	}
	return &Controller{
		rest:      rest,
		link:      link,
		clock:     opts.Clock,
		tracer:    telemetry.Tracer(opts.TracerProvider),
		opts:      opts,
		observers: make(map[uint64]func(Snapshot)),
	}
}

// StartLive begins a live session on deviceID. It reports false without error
// for an empty device id or when a session is already running or starting.
// A collaborator failure leaves the controller Idle and is returned.
func (c *Controller) StartLive(ctx context.Context, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}
	c.mu.Lock()
	if c.status != types.StatusIdle || c.pending {
		c.mu.Unlock()
		return false, nil
	}
	c.pending = true
	c.mu.Unlock()

	ctx = logger.WithDeviceID(ctx, deviceID)
	ctx, span := c.tracer.Start(ctx, "session.start_live",
		trace.WithAttributes(attribute.String("device.id", deviceID)))

	var id string
	var err error
	if c.rest != nil {
		id, err = c.rest.StartSession(ctx, deviceID)
	} else {
		id = uuid.NewString()
	}

	c.mu.Lock()
	c.pending = false
	canceled := c.canceled
	c.canceled = false
	if err != nil {
		c.mu.Unlock()
		logger.ErrorContext(ctx, "failed to start live session", "error", err)
		telemetry.EndSpan(span, err)
		return false, err
	}
	if canceled {
		c.mu.Unlock()
		c.abandonStart(ctx, id)
		telemetry.EndSpan(span, ErrStartCanceled)
		return false, ErrStartCanceled
	}
	c.status = types.StatusLiveActive
	c.sessionID = id
	c.deviceID = deviceID
	c.startedAt = c.clock.Now()
	c.metrics = types.Metrics{}
	gen := c.advanceLocked()
	c.timers = append(c.timers, c.clock.Every(c.opts.DurationInterval, func() { c.tickDuration(gen) }))
	snap := c.changedLocked()
	c.mu.Unlock()

	if c.link != nil && !c.link.SubscribeDevice(deviceID) {
		logger.WarnContext(ctx, "device subscription not sent; transport is not open")
	}

	span.SetAttributes(attribute.String("session.id", id))
	telemetry.EndSpan(span, nil)
	pkmetrics.RecordSessionStart(types.StatusLiveActive.String())
	logger.SessionTransition(logger.WithSessionID(ctx, id), types.StatusIdle.String(), types.StatusLiveActive.String())
	c.notify(snap)
	return true, nil
}

// abandonStart ends a session the collaborator opened after Close ran.
func (c *Controller) abandonStart(ctx context.Context, id string) {
	ctx = logger.WithSessionID(ctx, id)
	logger.WarnContext(ctx, "controller closed while the live session was starting; ending it")
	if c.rest == nil {
		return
	}
	if err := c.rest.EndSession(context.WithoutCancel(ctx), id, types.Metrics{}); err != nil {
		logger.ErrorContext(ctx, "failed to end abandoned live session", "error", err)
	}
}

// Resubscribe re-sends the device subscription of the running live session,
// e.g. after the transport reopened. It reports whether a subscription was sent.
func (c *Controller) Resubscribe() bool {
	c.mu.Lock()
	device := c.deviceID
	live := c.status == types.StatusLiveActive
	c.mu.Unlock()

	if !live || device == "" || c.link == nil {
		return false
	}
	if !c.link.SubscribeDevice(device) {
		return false
	}
	logger.DebugContext(logger.WithDeviceID(context.Background(), device), "device subscription renewed")
	return true
}

// StopLive ends the live session and flushes the final metrics through the
// collaborator. The controller is Idle afterwards even if the flush fails;
// the flush error is returned.
func (c *Controller) StopLive(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.status != types.StatusLiveActive || c.sessionID == "" {
		c.mu.Unlock()
		return false, nil
	}
	id, final, started := c.sessionID, c.metrics, c.startedAt
	c.resetLocked()
	snap := c.changedLocked()
	c.mu.Unlock()

	ctx = logger.WithSessionID(ctx, id)
	ctx, span := c.tracer.Start(ctx, "session.stop_live",
		trace.WithAttributes(attribute.String("session.id", id)))

	var err error
	if c.rest != nil {
		err = c.rest.EndSession(ctx, id, final)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to flush final session metrics", "error", err)
	}
	telemetry.EndSpan(span, err)

	pkmetrics.RecordSessionEnd(types.StatusLiveActive.String(), c.clock.Now().Sub(started).Seconds())
	logger.SessionTransition(ctx, types.StatusLiveActive.String(), types.StatusIdle.String())
	c.notify(snap)
	return true, err
}

// StartDemo begins a simulated session for userID's skill tier. It reports
// false while another session is running or starting.
func (c *Controller) StartDemo(userID string) bool {
	c.mu.Lock()
	if c.status != types.StatusIdle || c.pending {
		c.mu.Unlock()
		return false
	}
	tier := synth.TierFor(userID)
	c.sampler = synth.NewLiveSampler(tier)
	c.status = types.StatusDemoActive
	c.sessionID = "demo-" + uuid.NewString()
	c.deviceID = ""
	c.startedAt = c.clock.Now()
	c.metrics = types.Metrics{}.Merge(c.sampler.Initial())
	c.anim.Reset()
	c.pose = c.anim.Next()
	gen := c.advanceLocked()
	c.timers = append(c.timers,
		c.clock.Every(c.opts.DurationInterval, func() { c.tickDuration(gen) }),
		c.clock.Every(c.opts.PoseInterval, func() { c.tickPose(gen) }),
		c.clock.Every(c.opts.MetricsInterval, func() { c.tickMetrics(gen) }),
	)
	id := c.sessionID
	snap := c.changedLocked()
	c.mu.Unlock()

	_, span := c.tracer.Start(context.Background(), "session.start_demo",
		trace.WithAttributes(attribute.String("session.id", id), attribute.String("tier", tier.Name)))
	span.End()

	pkmetrics.RecordSessionStart(types.StatusDemoActive.String())
	ctx := logger.WithUserID(logger.WithSessionID(context.Background(), id), userID)
	logger.SessionTransition(ctx, types.StatusIdle.String(), types.StatusDemoActive.String(), "tier", tier.Name)
	c.notify(snap)
	return true
}

// StopDemo ends the simulated session and clears the pose frame.
func (c *Controller) StopDemo() bool {
	c.mu.Lock()
	if c.status != types.StatusDemoActive {
		c.mu.Unlock()
		return false
	}
	id, started := c.sessionID, c.startedAt
	c.resetLocked()
	c.pose = nil
	c.sampler = nil
	snap := c.changedLocked()
	c.mu.Unlock()

	_, span := c.tracer.Start(context.Background(), "session.stop_demo",
		trace.WithAttributes(attribute.String("session.id", id)))
	span.End()

	pkmetrics.RecordSessionEnd(types.StatusDemoActive.String(), c.clock.Now().Sub(started).Seconds())
	logger.SessionTransition(logger.WithSessionID(context.Background(), id),
		types.StatusDemoActive.String(), types.StatusIdle.String())
	c.notify(snap)
	return true
}

// Close ends whichever session is active, e.g. on navigation away or logout.
// A live start still waiting on the collaborator is canceled: StartLive ends
// the session it gets back and stays Idle.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.pending {
		c.canceled = true
	}
	status := c.status
	c.mu.Unlock()

	switch status {
	case types.StatusLiveActive:
		_, err := c.StopLive(ctx)
		return err
	case types.StatusDemoActive:
		c.StopDemo()
	}
	return nil
}

// advanceLocked invalidates callbacks of the previous session and returns the
// new generation. Must be called with c.mu held.
func (c *Controller) advanceLocked() uint64 {
	c.stopTimersLocked()
	c.gen++
	return c.gen
}

func (c *Controller) stopTimersLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
	c.timers = nil
}

// resetLocked returns to Idle, keeping the last metrics and pose.
func (c *Controller) resetLocked() {
	c.advanceLocked()
	c.status = types.StatusIdle
	c.sessionID = ""
	c.deviceID = ""
	c.startedAt = time.Time{}
}

func (c *Controller) tickDuration(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.status == types.StatusIdle {
		c.mu.Unlock()
		return
	}
	c.metrics.SessionDuration++
	snap := c.changedLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Controller) tickPose(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.status != types.StatusDemoActive {
		c.mu.Unlock()
		return
	}
	c.pose = c.anim.Next()
	snap := c.changedLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Controller) tickMetrics(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.status != types.StatusDemoActive || c.sampler == nil {
		c.mu.Unlock()
		return
	}
	elapsed := time.Duration(c.metrics.SessionDuration) * time.Second
	c.metrics = c.metrics.Merge(c.sampler.Sample(elapsed))
	snap := c.changedLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// ApplyPose replaces the pose frame with one received from the transport.
// It reports false while a demo session owns the state.
func (c *Controller) ApplyPose(frame types.Frame) bool {
	c.mu.Lock()
	if c.status == types.StatusDemoActive {
		c.mu.Unlock()
		return false
	}
	c.pose = frame.Clone()
	snap := c.changedLocked()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

// ApplyMetrics merges a transport metrics update into the snapshot.
// It reports false while a demo session owns the state.
func (c *Controller) ApplyMetrics(u types.MetricsUpdate) bool {
	c.mu.Lock()
	if c.status == types.StatusDemoActive {
		c.mu.Unlock()
		return false
	}
	c.metrics = c.metrics.Merge(u)
	snap := c.changedLocked()
	c.mu.Unlock()
	c.notify(snap)
	return true
}

// Status returns the current session status.
func (c *Controller) Status() types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Metrics returns the current metrics snapshot.
func (c *Controller) Metrics() types.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Pose returns a copy of the current pose frame.
func (c *Controller) Pose() types.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pose.Clone()
}

// Snapshot returns a copy of the full state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// changedLocked records a state change and returns the new snapshot.
func (c *Controller) changedLocked() Snapshot {
	c.seq++
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:       c.seq,
		Status:    c.status,
		SessionID: c.sessionID,
		DeviceID:  c.deviceID,
		StartedAt: c.startedAt,
		Metrics:   c.metrics,
		Pose:      c.pose.Clone(),
	}
}

// Observe registers fn to receive a snapshot after every state change.
// Snapshots are delivered one at a time in Seq order; one that lost the race
// to a newer snapshot is dropped. Observers run on the goroutine that made the
// change, must not block, and must not change controller state.
func (c *Controller) Observe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	c.nextObsID++
	id := c.nextObsID
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(snap Snapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.Seq <= c.delivered {
		return
	}
	c.delivered = snap.Seq

	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	fns := make([]func(Snapshot), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

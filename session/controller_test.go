package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AltairaLabs/PoseKit/clock"
	"github.com/AltairaLabs/PoseKit/clock/clocktest"
	"github.com/AltairaLabs/PoseKit/dispatch"
	"github.com/AltairaLabs/PoseKit/synth"
	"github.com/AltairaLabs/PoseKit/types"
)

type fakeREST struct {
	mu       sync.Mutex
	startErr error
	endErr   error
	started  []string
	ended    map[string]types.Metrics
}

func (f *fakeREST) StartSession(_ context.Context, deviceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, deviceID)
	return "sess-" + deviceID, nil
}

func (f *fakeREST) EndSession(_ context.Context, id string, final types.Metrics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended == nil {
		f.ended = make(map[string]types.Metrics)
	}
	f.ended[id] = final
	return f.endErr
}

// blockingREST holds StartSession until release is closed.
type blockingREST struct {
	fakeREST
	entered chan struct{}
	release chan struct{}
}

func (b *blockingREST) StartSession(ctx context.Context, deviceID string) (string, error) {
	close(b.entered)
	<-b.release
	return b.fakeREST.StartSession(ctx, deviceID)
}

type fakeLink struct {
	mu      sync.Mutex
	devices []string
}

func (f *fakeLink) SubscribeDevice(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, id)
	return true
}

func (f *fakeLink) subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.devices)
}

type fixture struct {
	ctrl  *Controller
	rest  *fakeREST
	link  *fakeLink
	clock *clocktest.Clock
	spans *tracetest.InMemoryExporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rest:  &fakeREST{},
		link:  &fakeLink{},
		clock: clocktest.New(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)),
		spans: tracetest.NewInMemoryExporter(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(f.spans))
	f.ctrl = NewController(f.rest, f.link, Options{Clock: f.clock, TracerProvider: tp})
	return f
}

func TestStartLive_EmptyDeviceIsNoop(t *testing.T) {
	f := newFixture(t)
	ok, err := f.ctrl.StartLive(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())
	assert.Empty(t, f.rest.started)
}

func TestStartLive(t *testing.T) {
	f := newFixture(t)
	f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(33)})

	ok, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	require.True(t, ok)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, types.StatusLiveActive, snap.Status)
	assert.Equal(t, "sess-dev-1", snap.SessionID)
	assert.Equal(t, "dev-1", snap.DeviceID)
	assert.Equal(t, types.Metrics{}, snap.Metrics)
	assert.Equal(t, []string{"dev-1"}, f.link.devices)

	f.clock.Advance(3 * time.Second)
	assert.Equal(t, 3.0, f.ctrl.Metrics().SessionDuration)
}

func TestStartLive_CollaboratorFailure(t *testing.T) {
	f := newFixture(t)
	f.rest.startErr = errors.New("backend down")

	ok, err := f.ctrl.StartLive(context.Background(), "dev-1")
	assert.False(t, ok)
	assert.EqualError(t, err, "backend down")
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())
	assert.Empty(t, f.link.devices)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestStartLive_WhileDemoActive(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.StartDemo("demo2"))

	ok, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, types.StatusDemoActive, f.ctrl.Status())
	assert.Empty(t, f.rest.started)
}

func TestStartDemo_WhileLiveActive(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)

	assert.False(t, f.ctrl.StartDemo("demo1"))
	assert.Equal(t, types.StatusLiveActive, f.ctrl.Status())
}

func TestStopLive_FlushesFinalSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(61.5), ReactionTime: types.Float(410)})
	f.clock.Advance(2 * time.Second)

	ok, err := f.ctrl.StopLive(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	final := f.rest.ended["sess-dev-1"]
	assert.Equal(t, 61.5, final.HitRate)
	assert.Equal(t, 410.0, final.ReactionTime)
	assert.Equal(t, 2.0, final.SessionDuration)
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())
	assert.Empty(t, f.ctrl.Snapshot().SessionID)

	f.clock.Advance(5 * time.Second)
	assert.Equal(t, 2.0, f.ctrl.Metrics().SessionDuration)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestStopLive_FlushFailureStillStops(t *testing.T) {
	f := newFixture(t)
	f.rest.endErr = errors.New("flush failed")
	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)

	ok, err := f.ctrl.StopLive(context.Background())
	assert.True(t, ok)
	assert.EqualError(t, err, "flush failed")
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())
}

func TestStop_Misuse(t *testing.T) {
	f := newFixture(t)
	ok, err := f.ctrl.StopLive(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.ctrl.StopDemo())

	require.True(t, f.ctrl.StartDemo("demo1"))
	ok, err = f.ctrl.StopLive(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, types.StatusDemoActive, f.ctrl.Status())
}

func TestStartDemo(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.StartDemo("DEMO3"))

	snap := f.ctrl.Snapshot()
	assert.Equal(t, types.StatusDemoActive, snap.Status)
	assert.True(t, strings.HasPrefix(snap.SessionID, "demo-"))
	assert.GreaterOrEqual(t, snap.Metrics.HitRate, 78.0)
	assert.LessOrEqual(t, snap.Metrics.HitRate, 88.0)
	assert.GreaterOrEqual(t, snap.Metrics.ReactionTime, 280.0)
	assert.Equal(t, 15.0, snap.Metrics.FatigueLevel)
	assert.Equal(t, 0.0, snap.Metrics.CaloriesBurned)
	require.Len(t, snap.Pose, 17)
	assert.Equal(t, synth.DemoFrames()[0], snap.Pose)
	assert.Equal(t, 3, f.clock.Pending())
}

func TestDemoProducers(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.StartDemo("demo2"))

	f.clock.Advance(50 * time.Millisecond)
	assert.Equal(t, synth.DemoFrames()[1], f.ctrl.Pose())

	f.clock.Advance(950 * time.Millisecond)
	m := f.ctrl.Metrics()
	assert.Equal(t, 1.0, m.SessionDuration)
	assert.GreaterOrEqual(t, m.HitRate, 58.0)
	assert.LessOrEqual(t, m.HitRate, 72.0)
	assert.InDelta(t, 0.15, m.CaloriesBurned, 1e-9)
	assert.InDelta(t, 30.1, m.FatigueLevel, 1e-9)
	assert.Equal(t, synth.DemoFrames()[20], f.ctrl.Pose())
}

func TestStopDemo_ClearsPoseAndStopsProducers(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.StartDemo("demo1"))
	f.clock.Advance(2 * time.Second)

	require.True(t, f.ctrl.StopDemo())
	assert.Nil(t, f.ctrl.Pose())
	assert.Equal(t, 0, f.clock.Pending())

	before := f.ctrl.Metrics()
	f.clock.Advance(10 * time.Second)
	assert.Equal(t, before, f.ctrl.Metrics())
}

func TestStaleDemoCallbacksIgnored(t *testing.T) {
	f := newFixture(t)
	var ticks []func()
	f.ctrl.clock = &capturingClock{Clock: f.clock, every: &ticks}
	require.True(t, f.ctrl.StartDemo("demo1"))
	require.Len(t, ticks, 3)
	require.True(t, f.ctrl.StopDemo())

	require.True(t, f.ctrl.StartDemo("demo1"))
	before := f.ctrl.Snapshot()
	for _, tick := range ticks[:3] {
		tick()
	}
	assert.Equal(t, before, f.ctrl.Snapshot())
}

type capturingClock struct {
	*clocktest.Clock
	every *[]func()
}

func (c *capturingClock) Every(d time.Duration, fn func()) clock.Timer {
	*c.every = append(*c.every, fn)
	return c.Clock.Every(d, fn)
}

func TestTransportUpdatesIgnoredDuringDemo(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.ctrl.StartDemo("demo1"))
	before := f.ctrl.Snapshot()

	assert.False(t, f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(99)}))
	assert.False(t, f.ctrl.ApplyPose(types.Frame{{X: 1}}))
	assert.Equal(t, before, f.ctrl.Snapshot())
}

func TestApplyMetrics_ClampsAndMerges(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(140)}))
	assert.Equal(t, 100.0, f.ctrl.Metrics().HitRate)

	f.ctrl.ApplyMetrics(types.MetricsUpdate{ReactionTime: types.Float(50)})
	m := f.ctrl.Metrics()
	assert.Equal(t, 200.0, m.ReactionTime)
	assert.Equal(t, 100.0, m.HitRate)
}

func TestAttach_DispatchedUpdates(t *testing.T) {
	f := newFixture(t)
	reg := dispatch.NewRegistry()
	f.ctrl.Attach(reg)

	kps := make([]string, 17)
	for i := range kps {
		kps[i] = "[0.5,0.5,0,0.9]"
	}
	pose, err := types.DecodeEnvelope([]byte(`{"type":"pose_update","data":{"keypoints":[` + strings.Join(kps, ",") + `]}}`))
	require.NoError(t, err)
	reg.Dispatch(pose)
	assert.Len(t, f.ctrl.Pose(), 17)

	f.ctrl.ApplyMetrics(types.MetricsUpdate{ReactionTime: types.Float(350), Accuracy: types.Float(70)})
	metrics, err := types.DecodeEnvelope([]byte(`{"type":"metrics_update","data":{"hit_rate":61.5}}`))
	require.NoError(t, err)
	reg.Dispatch(metrics)

	m := f.ctrl.Metrics()
	assert.Equal(t, 61.5, m.HitRate)
	assert.Equal(t, 350.0, m.ReactionTime)
	assert.Equal(t, 70.0, m.Accuracy)

	f.ctrl.Detach()
	assert.Equal(t, 0, reg.Handlers(types.MessagePoseUpdate))
	assert.Equal(t, 0, reg.Handlers(types.MessageMetricsUpdate))
}

func TestAttach_MalformedPayloadIgnored(t *testing.T) {
	f := newFixture(t)
	reg := dispatch.NewRegistry()
	f.ctrl.Attach(reg)

	reg.Dispatch(types.Envelope{Type: types.MessagePoseUpdate, Data: []byte(`{"keypoints":"nope"}`)})
	reg.Dispatch(types.Envelope{Type: types.MessageMetricsUpdate})

	assert.Nil(t, f.ctrl.Pose())
	assert.Equal(t, types.Metrics{}, f.ctrl.Metrics())
}

func TestObserve(t *testing.T) {
	f := newFixture(t)
	var seen []types.Status
	cancel := f.ctrl.Observe(func(s Snapshot) { seen = append(seen, s.Status) })

	require.True(t, f.ctrl.StartDemo("demo1"))
	require.True(t, f.ctrl.StopDemo())
	cancel()
	f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(1)})

	assert.Equal(t, []types.Status{types.StatusDemoActive, types.StatusIdle}, seen)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	require.NoError(t, f.ctrl.Close(context.Background()))
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())
	assert.Contains(t, f.rest.ended, "sess-dev-1")

	require.True(t, f.ctrl.StartDemo("demo1"))
	require.NoError(t, f.ctrl.Close(context.Background()))
	assert.Equal(t, types.StatusIdle, f.ctrl.Status())

	require.NoError(t, f.ctrl.Close(context.Background()))
}

func TestTransitionsAreTraced(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	_, err = f.ctrl.StopLive(context.Background())
	require.NoError(t, err)
	require.True(t, f.ctrl.StartDemo("demo1"))
	require.True(t, f.ctrl.StopDemo())

	var names []string
	for _, s := range f.spans.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"session.start_live", "session.stop_live", "session.start_demo", "session.stop_demo"}, names)
}

func TestNilCollaborators(t *testing.T) {
	c := NewController(nil, nil, Options{Clock: clocktest.New(time.Unix(0, 0))})
	ok, err := c.StartLive(context.Background(), "dev")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.StopLive(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClose_CancelsPendingStart(t *testing.T) {
	rest := &blockingREST{entered: make(chan struct{}), release: make(chan struct{})}
	link := &fakeLink{}
	fc := clocktest.New(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC))
	ctrl := NewController(rest, link, Options{Clock: fc})

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := ctrl.StartLive(context.Background(), "dev-1")
		done <- result{ok, err}
	}()

	<-rest.entered
	require.NoError(t, ctrl.Close(context.Background()))
	close(rest.release)

	var r result
	select {
	case r = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StartLive did not return")
	}
	assert.False(t, r.ok)
	require.ErrorIs(t, r.err, ErrStartCanceled)
	assert.Equal(t, types.StatusIdle, ctrl.Status())
	assert.Equal(t, 0, fc.Pending())
	assert.Empty(t, link.subscribed())

	rest.mu.Lock()
	assert.Contains(t, rest.ended, "sess-dev-1")
	rest.mu.Unlock()

	ok, err := ctrl.StartLive(context.Background(), "dev-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResubscribe(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.ctrl.Resubscribe())

	_, err := f.ctrl.StartLive(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, f.ctrl.Resubscribe())
	assert.Equal(t, []string{"dev-1", "dev-1"}, f.link.subscribed())

	_, err = f.ctrl.StopLive(context.Background())
	require.NoError(t, err)
	assert.False(t, f.ctrl.Resubscribe())

	require.True(t, f.ctrl.StartDemo("demo1"))
	assert.False(t, f.ctrl.Resubscribe())
	assert.Len(t, f.link.subscribed(), 2)
}

func TestNotify_DropsStaleSnapshots(t *testing.T) {
	f := newFixture(t)
	var seqs []uint64
	f.ctrl.Observe(func(s Snapshot) { seqs = append(seqs, s.Seq) })

	f.ctrl.mu.Lock()
	older := f.ctrl.changedLocked()
	newer := f.ctrl.changedLocked()
	f.ctrl.mu.Unlock()
	require.Less(t, older.Seq, newer.Seq)

	f.ctrl.notify(newer)
	f.ctrl.notify(older)
	f.ctrl.notify(newer)

	assert.Equal(t, []uint64{newer.Seq}, seqs)
	assert.Equal(t, newer.Seq, f.ctrl.Snapshot().Seq)
}

func TestObserve_OrderedUnderConcurrentUpdates(t *testing.T) {
	f := newFixture(t)
	var seqs []uint64
	f.ctrl.Observe(func(s Snapshot) { seqs = append(seqs, s.Seq) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				f.ctrl.ApplyMetrics(types.MetricsUpdate{HitRate: types.Float(float64(j))})
			}
		}()
	}
	wg.Wait()

	require.NotEmpty(t, seqs)
	assert.True(t, slices.IsSorted(seqs))
	assert.Len(t, slices.Compact(slices.Clone(seqs)), len(seqs))
	assert.Equal(t, f.ctrl.Snapshot().Seq, seqs[len(seqs)-1])
}

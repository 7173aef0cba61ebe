package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/PoseKit/config"
	"github.com/AltairaLabs/PoseKit/dispatch"
	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/metrics/prometheus"
	"github.com/AltairaLabs/PoseKit/relay"
	"github.com/AltairaLabs/PoseKit/session"
	"github.com/AltairaLabs/PoseKit/telemetry"
	"github.com/AltairaLabs/PoseKit/transport"
	"github.com/AltairaLabs/PoseKit/types"
)

const (
	shutdownTimeout     = 5 * time.Second
	sessionSnapshotName = "session"
)

// errUnauthorized ends a watch run once the backend rejected the token.
var errUnauthorized = errors.New("backend rejected the token; log in again")

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <user>",
		Short: "Connect to the telemetry service and follow a live session",
		Long: `Open the per-user telemetry socket, route pose and metrics updates into the
session controller and print every status or metrics change as a JSON line.

With --device a live session is started for that device and ended cleanly on
interrupt, flushing the final metrics to the backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			device, err := cmd.Flags().GetString("device")
			if err != nil {
				return fmt.Errorf("failed to get device flag: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), currentConfig(), args[0], device)
		},
	}
	cmd.Flags().StringP("device", "d", "", "Start a live session for this device id")
	return cmd
}

// watcher owns every component of a watch run.
type watcher struct {
	registry *dispatch.Registry
	client   *transport.Client
	ctrl     *session.Controller
	relay    *relay.Relay
	redis    *redis.Client
	store    *snapshotStore
	exporter *prometheus.Exporter
	shutdown []func(context.Context) error
}

// newWatcher wires the components for cfg. onUnauthorized runs when the
// backend rejects a non-demo token.
func newWatcher(ctx context.Context, cfg *config.Config, onUnauthorized func()) (*watcher, error) {
	w := &watcher{registry: dispatch.NewRegistry()}

	var tp trace.TracerProvider
	if cfg.Tracing.Endpoint != "" {
		sdkTP, err := telemetry.NewTracerProvider(ctx, cfg.TracingSettings())
		if err != nil {
			return nil, fmt.Errorf("failed to start tracing: %w", err)
		}
		telemetry.SetupPropagation()
		w.shutdown = append(w.shutdown, sdkTP.Shutdown)
		tp = sdkTP
	}

	w.client = transport.NewClient(cfg.TransportSettings(), w.registry)
	w.ctrl = session.NewController(newRESTClient(cfg, onUnauthorized), w.client, session.Options{TracerProvider: tp})
	w.ctrl.Attach(w.registry)
	w.client.OnOpen(func() { w.ctrl.Resubscribe() })

	if cfg.Relay.Enabled {
		w.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Relay.Addr,
			Password: cfg.Relay.Password,
			DB:       cfg.Relay.DB,
		})
		w.relay = relay.New(w.redis,
			relay.WithPrefix(cfg.Relay.Prefix),
			relay.WithSnapshotTTL(cfg.Relay.SnapshotTTL),
			relay.WithPoseRate(cfg.Relay.PoseRate, cfg.Relay.PoseBurst),
		)
		w.relay.Attach(w.registry, types.MessagePoseUpdate, types.MessageMetricsUpdate)
		w.shutdown = append(w.shutdown, func(context.Context) error { return w.redis.Close() })

		// The final idle snapshot is written after ctx is cancelled.
		w.store = newSnapshotStore(context.WithoutCancel(ctx), w.relay)
		w.shutdown = append(w.shutdown, w.store.close)
	}

	if cfg.Metrics.Enabled {
		w.exporter = prometheus.NewExporter(cfg.Metrics.Addr, prometheus.WithHealthCheck(w.transportHealth))
		w.shutdown = append(w.shutdown, w.exporter.Shutdown)
	}
	return w, nil
}

// printer writes snapshot lines when status or metrics change.
type printer struct {
	mu   sync.Mutex
	enc  *json.Encoder
	last session.Snapshot
	seen bool
}

func (p *printer) observe(snap session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen && snap.Status == p.last.Status && snap.Metrics == p.last.Metrics {
		return
	}
	p.last, p.seen = snap, true
	snap.Pose = nil
	if err := p.enc.Encode(snap); err != nil {
		logger.Warn("failed to write snapshot", "error", err)
	}
}

// snapshotStore writes the newest session snapshot to the relay on its own
// goroutine. Snapshots offered while a write is in flight are coalesced.
type snapshotStore struct {
	relay *relay.Relay
	wake  chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	latest  *session.Snapshot
	lastSeq uint64
	closed  bool
}

func newSnapshotStore(ctx context.Context, r *relay.Relay) *snapshotStore {
	s := &snapshotStore{
		relay: r,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// offer queues snap unless a newer snapshot was already offered.
func (s *snapshotStore) offer(snap session.Snapshot) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed || snap.Seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	s.latest, s.lastSeq = &snap, snap.Seq
	s.mu.Unlock()
	s.signal()
}

// close writes the last queued snapshot and waits for the writer to stop.
func (s *snapshotStore) close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("session snapshot not flushed: %w", ctx.Err())
	}
}

func (s *snapshotStore) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *snapshotStore) run(ctx context.Context) {
	defer close(s.done)
	for {
		<-s.wake
		s.mu.Lock()
		snap, closed := s.latest, s.closed
		s.latest = nil
		s.mu.Unlock()

		if snap != nil {
			if err := s.relay.StoreSnapshot(ctx, sessionSnapshotName, *snap); err != nil {
				logger.Debug("failed to store session snapshot", "error", err)
			}
		}
		if closed {
			return
		}
	}
}

func runWatch(ctx context.Context, out io.Writer, cfg *config.Config, user, device string) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	w, err := newWatcher(ctx, cfg, func() { cancel(errUnauthorized) })
	if err != nil {
		return err
	}

	p := &printer{enc: json.NewEncoder(out)}
	cancelObserve := w.ctrl.Observe(func(snap session.Snapshot) {
		p.observe(snap)
		w.store.offer(snap)
	})

	g, gctx := errgroup.WithContext(ctx)
	if w.exporter != nil {
		g.Go(func() error {
			if err := w.exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics exporter stopped: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancelObserve()
		defer w.close()
		if err := w.start(logger.WithUserID(gctx, user), user, device); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, errUnauthorized) {
		return cause
	}
	return err
}

// transportHealth fails once the telemetry socket stopped reconnecting.
func (w *watcher) transportHealth() error {
	if state := w.client.State(); state == transport.StateGaveUp {
		return fmt.Errorf("telemetry socket %s after %d attempts", state, w.client.Attempts())
	}
	return nil
}

// start opens the socket and, when device is set, the live session.
func (w *watcher) start(ctx context.Context, user, device string) error {
	if err := w.client.Connect(ctx, user); err != nil {
		logger.WarnContext(ctx, "initial connect failed; retrying in background", "error", err)
	}
	if device == "" {
		return nil
	}
	started, err := w.ctrl.StartLive(logger.WithDeviceID(ctx, device), device)
	if err != nil {
		return fmt.Errorf("failed to start live session: %w", err)
	}
	if !started {
		return fmt.Errorf("live session for device %s was not started", device)
	}
	return nil
}

func (w *watcher) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := w.ctrl.Close(ctx); err != nil {
		logger.Warn("failed to end session cleanly", "error", err)
	}
	w.ctrl.Detach()
	w.client.Disconnect()
	for i := len(w.shutdown) - 1; i >= 0; i-- {
		if err := w.shutdown[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

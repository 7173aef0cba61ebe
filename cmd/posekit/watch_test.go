package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/PoseKit/clock/clocktest"
	"github.com/AltairaLabs/PoseKit/config"
	"github.com/AltairaLabs/PoseKit/relay"
	"github.com/AltairaLabs/PoseKit/restclient"
	"github.com/AltairaLabs/PoseKit/session"
	"github.com/AltairaLabs/PoseKit/transport"
	"github.com/AltairaLabs/PoseKit/types"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// backend fakes the telemetry socket and the REST API.
type backend struct {
	ws   *httptest.Server
	rest *httptest.Server

	mu       sync.Mutex
	ended    map[string]any
	received []string
	release  chan struct{}
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{release: make(chan struct{})}

	b.ws = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Wait for subscribe_device before streaming.
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.received = append(b.received, string(data))
		b.mu.Unlock()

		frame := make([]string, 17)
		for i := range frame {
			frame[i] = "[0.5,0.5,0,0.9]"
		}
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"pose_update","data":{"keypoints":[`+strings.Join(frame, ",")+`]}}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"metrics_update","data":{"hit_rate":61.5}}`))

		<-b.release
	}))

	b.rest = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/training/sessions/start":
			assert.Equal(t, "dev-7", r.URL.Query().Get("device_id"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"data":{"id":"sess-1"}}`)
		case r.URL.Path == "/training/sessions/sess-1/end":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			b.mu.Lock()
			b.ended = body
			b.mu.Unlock()
			_, _ = io.WriteString(w, `{"data":null}`)
		default:
			http.NotFound(w, r)
		}
	}))

	t.Cleanup(func() {
		close(b.release)
		b.ws.Close()
		b.rest.Close()
	})
	return b
}

func TestRunWatch_EndToEnd(t *testing.T) {
	b := newBackend(t)
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Transport.BaseURL = "ws" + strings.TrimPrefix(b.ws.URL, "http")
	cfg.REST.BaseURL = b.rest.URL
	cfg.REST.Token = "secret"
	cfg.Relay.Enabled = true
	cfg.Relay.Addr = mr.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, out, cfg, "coach-1", "dev-7") }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"hit_rate":61.5`)
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return mr.Exists("posekit:snapshot:session")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.received)
	assert.JSONEq(t, `{"type":"subscribe_device","device_id":"dev-7"}`, b.received[0])
	require.NotNil(t, b.ended, "session end was not flushed")
	assert.Equal(t, 61.5, b.ended["hit_rate"])

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var first, last struct {
		Status    types.Status  `json:"status"`
		SessionID string        `json:"session_id"`
		Metrics   types.Metrics `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, types.StatusLiveActive, first.Status)
	assert.Equal(t, "sess-1", first.SessionID)
	assert.Equal(t, types.StatusIdle, last.Status)

	stored, err := mr.Get("posekit:snapshot:session")
	require.NoError(t, err)
	assert.Contains(t, stored, `"status":"idle"`)
}

func TestPrinter_SkipsUnchanged(t *testing.T) {
	buf := &syncBuffer{}
	p := &printer{enc: json.NewEncoder(buf)}

	snap := sessionSnapshot(types.StatusLiveActive, 10)
	p.observe(snap)
	snap.Pose = types.Frame{{X: 1}}
	p.observe(snap)
	p.observe(sessionSnapshot(types.StatusLiveActive, 11))

	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
	assert.NotContains(t, buf.String(), `"pose"`)
}

func sessionSnapshot(status types.Status, hit float64) session.Snapshot {
	return session.Snapshot{Status: status, Metrics: types.Metrics{HitRate: hit}}
}

// rejectingBackend accepts sockets but answers every REST call with 401.
func rejectingBackend(t *testing.T) (cfg *config.Config, socketClosed <-chan struct{}) {
	t.Helper()
	closed := make(chan struct{})
	var once sync.Once
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				once.Do(func() { close(closed) })
				return
			}
		}
	}))
	rest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"token expired"}`)
	}))
	t.Cleanup(func() {
		ws.Close()
		rest.Close()
	})

	cfg = config.Default()
	cfg.Transport.BaseURL = "ws" + strings.TrimPrefix(ws.URL, "http")
	cfg.REST.BaseURL = rest.URL
	return cfg, closed
}

func TestRunWatch_UnauthorizedEndsRun(t *testing.T) {
	cfg, socketClosed := rejectingBackend(t)
	cfg.REST.Token = "expired"

	done := make(chan error, 1)
	go func() { done <- runWatch(context.Background(), &syncBuffer{}, cfg, "coach-1", "dev-7") }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, errUnauthorized)
	case <-time.After(5 * time.Second):
		t.Fatal("watch kept running after a 401")
	}

	select {
	case <-socketClosed:
	case <-time.After(5 * time.Second):
		t.Fatal("telemetry socket was not closed")
	}
}

func TestRunWatch_DemoTokenUnauthorizedIsNotLogout(t *testing.T) {
	cfg, _ := rejectingBackend(t)
	cfg.REST.Token = restclient.DemoToken

	err := runWatch(context.Background(), &syncBuffer{}, cfg, "demo1", "dev-7")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUnauthorized)
	assert.Contains(t, err.Error(), "failed to start live session")
}

func TestSnapshotStore_KeepsNewest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	r := relay.New(client)

	store := newSnapshotStore(context.Background(), r)
	store.offer(session.Snapshot{Seq: 3, Status: types.StatusLiveActive})
	store.offer(session.Snapshot{Seq: 2, Status: types.StatusIdle})
	require.NoError(t, store.close(context.Background()))
	store.offer(session.Snapshot{Seq: 4, Status: types.StatusIdle})

	var got session.Snapshot
	require.NoError(t, r.LoadSnapshot(context.Background(), sessionSnapshotName, &got))
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, types.StatusLiveActive, got.Status)

	assert.NotPanics(t, func() {
		var none *snapshotStore
		none.offer(session.Snapshot{Seq: 1})
	})
}

func TestWatcher_TransportHealth(t *testing.T) {
	fc := clocktest.New(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC))
	client := transport.NewClient(transport.Config{BaseURL: "ws://127.0.0.1:1", Clock: fc, MaxReconnectAttempts: 1}, nil)
	w := &watcher{client: client}
	assert.NoError(t, w.transportHealth())

	require.Error(t, client.Connect(context.Background(), "coach-1"))
	assert.NoError(t, w.transportHealth(), "still reconnecting")

	for fc.FireNext() {
	}
	err := w.transportHealth()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave_up")
}

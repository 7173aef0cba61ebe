package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/PoseKit/clock/clocktest"
	"github.com/AltairaLabs/PoseKit/dispatch"
	"github.com/AltairaLabs/PoseKit/transport"
	"github.com/AltairaLabs/PoseKit/types"
)

func poseUpdate(n int) string {
	kps := make([]string, n)
	for i := range kps {
		kps[i] = "[0.4,0.6,0.0,0.95]"
	}
	return `{"type":"pose_update","data":{"keypoints":[` + strings.Join(kps, ",") + `]}}`
}

func TestTransportToController(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	metricsSent := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(poseUpdate(17)))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"metrics_update","data":{"hit_rate":61.5}}`))
		close(metricsSent)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	registry := dispatch.NewRegistry()
	client := transport.NewClient(transport.Config{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http")}, registry)
	defer client.Disconnect()

	f := newFixture(t)
	f.ctrl.Attach(registry)
	baseline := types.Metrics{HitRate: 40, ReactionTime: 420, Accuracy: 70, FatigueLevel: 20, CaloriesBurned: 12}
	require.True(t, f.ctrl.ApplyMetrics(baseline.Update()))

	require.NoError(t, client.Connect(context.Background(), "athlete-1"))
	<-metricsSent

	require.Eventually(t, func() bool {
		return f.ctrl.Metrics().HitRate == 61.5
	}, 3*time.Second, 10*time.Millisecond)

	pose := f.ctrl.Pose()
	require.Len(t, pose, 17)
	assert.Equal(t, types.Keypoint{X: 0.4, Y: 0.6, Confidence: 0.95}, pose[0])

	want := baseline
	want.HitRate = 61.5
	assert.Equal(t, want, f.ctrl.Metrics())
}

func TestLiveSessionResubscribesAfterReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	subscriptions := make(chan string, 4)
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subscriptions <- string(data)
			if n == 1 {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
				return
			}
		}
	}))
	defer srv.Close()

	fc := clocktest.New(time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC))
	client := transport.NewClient(transport.Config{
		BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Clock:   fc,
	}, dispatch.NewRegistry())
	defer client.Disconnect()

	ctrl := NewController(&fakeREST{}, client, Options{Clock: fc})
	client.OnOpen(func() { ctrl.Resubscribe() })

	require.NoError(t, client.Connect(context.Background(), "athlete-1"))
	_, err := ctrl.StartLive(context.Background(), "dev-3")
	require.NoError(t, err)

	want := `{"type":"subscribe_device","device_id":"dev-3"}`
	select {
	case msg := <-subscriptions:
		assert.JSONEq(t, want, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription on the first socket")
	}

	require.Eventually(t, func() bool {
		return client.State() == transport.StateReconnecting
	}, 5*time.Second, 10*time.Millisecond)
	fc.Advance(2 * time.Second)

	select {
	case msg := <-subscriptions:
		assert.JSONEq(t, want, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("live session did not resubscribe after reconnect")
	}
	assert.Equal(t, int32(2), conns.Load())
}

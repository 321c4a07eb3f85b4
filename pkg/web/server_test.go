package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathfinder/internal/log"
	"github.com/teslashibe/go-pathfinder/pkg/control"
	"github.com/teslashibe/go-pathfinder/pkg/input"
	"github.com/teslashibe/go-pathfinder/pkg/web"
)

func TestStatusEndpoint(t *testing.T) {
	s := web.NewServer(":0", nil, log.Discard())
	s.Publish(control.Status{Cycle: 42, Safe: "left", Occupancy: [3]bool{false, true, false}})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var st control.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, uint64(42), st.Cycle)
	assert.Equal(t, "left", st.Safe)
	assert.Equal(t, [3]bool{false, true, false}, st.Occupancy)
}

func TestTriggerEvent(t *testing.T) {
	bus := input.NewBus(8, log.Discard())
	s := web.NewServer(":0", bus, log.Discard())
	app := s.App()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"press", "/api/events/sos_press", "", http.StatusAccepted},
		{"trigger with message", "/api/events/sos_trigger", `{"message":"fell down"}`, http.StatusAccepted},
		{"sim distance query", "/api/events/sim_distance?value=1.0", "", http.StatusAccepted},
		{"sim distance missing value", "/api/events/sim_distance", "", http.StatusBadRequest},
		{"unknown", "/api/events/launch", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	events := bus.Drain()
	require.Len(t, events, 3)
	assert.Equal(t, input.SOSPress, events[0].Name)
	assert.Equal(t, "dashboard", events[0].Source)
	assert.Equal(t, "fell down", events[1].Message)
	assert.Equal(t, 1.0, events[2].Value)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/log", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var logs []web.LogEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	assert.Len(t, logs, 3)
}

func TestTriggerEvent_NoBus(t *testing.T) {
	s := web.NewServer(":0", nil, log.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodPost, "/api/events/mute", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIndexAndEvents(t *testing.T) {
	s := web.NewServer(":0", nil, log.Discard())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(page), "/ws/status")

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/events", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	var names []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&names))
	assert.Contains(t, names, "sos_trigger")
}

func TestStatusWebSocket(t *testing.T) {
	s := web.NewServer("", nil, log.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	// A client that connects late still gets the last snapshot
	s.Publish(control.Status{Cycle: 1})

	url := "ws://" + ln.Addr().String() + "/ws/status"
	var ws *websocket.Conn
	require.Eventually(t, func() bool {
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer ws.Close()

	read := func() control.Status {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		var st control.Status
		require.NoError(t, json.Unmarshal(data, &st))
		return st
	}

	assert.Equal(t, uint64(1), read().Cycle)
	require.Eventually(t, func() bool { return s.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Publish(control.Status{Cycle: 2, LastPhrase: "person ahead"})
	st := read()
	assert.Equal(t, uint64(2), st.Cycle)
	assert.Equal(t, "person ahead", st.LastPhrase)

	ws.Close()
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStatusWebSocket_Reconnect(t *testing.T) {
	s := web.NewServer("", nil, log.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.Serve(ln)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	url := "ws://" + ln.Addr().String() + "/ws/status"
	for i := 1; i <= 5; i++ {
		s.Publish(control.Status{Cycle: uint64(i)})

		var ws *websocket.Conn
		require.Eventually(t, func() bool {
			ws, _, err = websocket.DefaultDialer.Dial(url, nil)
			return err == nil
		}, 2*time.Second, 20*time.Millisecond)

		require.Eventually(t, func() bool {
			require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, data, err := ws.ReadMessage()
			require.NoError(t, err)
			var st control.Status
			require.NoError(t, json.Unmarshal(data, &st))
			return st.Cycle == uint64(i)
		}, 2*time.Second, 10*time.Millisecond)

		ws.Close()
		require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := web.NewServer(":0", nil, log.Discard())
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/ws/status", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

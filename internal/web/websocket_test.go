package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justinabrahms/piecewalk/internal/config"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUpdates reads frames until n updates have arrived. Frames may carry
// several newline separated updates.
func readUpdates(t *testing.T, conn *websocket.Conn, n int) []Update {
	t.Helper()
	var updates []Update
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for len(updates) < n {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			if len(line) == 0 {
				continue
			}
			var u Update
			require.NoError(t, json.Unmarshal(line, &u))
			updates = append(updates, u)
		}
	}
	return updates
}

func TestHubBroadcastsSetupAndTurns(t *testing.T) {
	hub := startHub(t)
	g := game.New(game.WithSeed(5), game.WithObserver(hub.TurnObserver()))
	service := NewService(g, &config.Config{}, hub)
	server := httptest.NewServer(NewRouter(service, hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := server.Client().Post(server.URL+"/api/setup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = server.Client().Post(server.URL+"/api/play", "application/json", strings.NewReader(`{"turns": 3}`))
	require.NoError(t, err)
	resp.Body.Close()

	updates := readUpdates(t, conn, 4)
	require.Len(t, updates, 4)

	assert.Equal(t, UpdateSetup, updates[0].Type)
	assert.Len(t, updates[0].Positions, 3)

	history := g.History()
	for i, u := range updates[1:] {
		assert.Equal(t, UpdateTurn, u.Type)
		require.NotNil(t, u.Turn)
		assert.Equal(t, history[i], *u.Turn)
	}
}

func TestHubAnswersPing(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewRouter(testService(t, 1), hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]string
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg["type"])
}

func TestHubTracksDisconnects(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewRouter(testService(t, 1), hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubClosesWatchersOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(NewRouter(testService(t, 1), hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTurnObserverReturnsAfterShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	<-hub.done

	observe := hub.TurnObserver()
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			observe(game.Turn{Number: i + 1, Kind: piece.Knight})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked on a stopped hub")
	}
}

func TestHubDeliversEveryTurn(t *testing.T) {
	hub := startHub(t)
	g := game.New(game.WithSeed(11), game.WithObserver(hub.TurnObserver()))
	server := httptest.NewServer(NewRouter(NewService(g, &config.Config{}, hub), hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Far more turns than a watcher's send buffer holds.
	const turns = 4 * sendBufferSize
	errs := make(chan error, 1)
	go func() {
		resp, err := server.Client().Post(server.URL+"/api/setup", "application/json", nil)
		if err == nil {
			resp.Body.Close()
			resp, err = server.Client().Post(server.URL+"/api/play", "application/json",
				strings.NewReader(fmt.Sprintf(`{"turns": %d}`, turns)))
		}
		if err == nil {
			resp.Body.Close()
		}
		errs <- err
	}()

	updates := readUpdates(t, conn, turns+1)
	require.NoError(t, <-errs)
	require.Len(t, updates, turns+1)

	history := g.History()
	require.Len(t, history, turns)
	assert.Equal(t, UpdateSetup, updates[0].Type)
	for i, u := range updates[1:] {
		require.NotNil(t, u.Turn, "update %d", i+1)
		assert.Equal(t, history[i].Number, u.Turn.Number)
	}
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubSnapshotsLateWatcher(t *testing.T) {
	hub := startHub(t)
	g := game.New(game.WithSeed(5), game.WithObserver(hub.TurnObserver()))
	server := httptest.NewServer(NewRouter(NewService(g, &config.Config{}, hub), hub, nil))
	defer server.Close()

	resp, err := server.Client().Post(server.URL+"/api/setup", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = server.Client().Post(server.URL+"/api/play", "application/json", strings.NewReader(`{"turns": 7}`))
	require.NoError(t, err)
	resp.Body.Close()

	conn := dialHub(t, server)
	updates := readUpdates(t, conn, 1)
	require.Len(t, updates, 1)

	assert.Equal(t, UpdateSnapshot, updates[0].Type)
	assert.Equal(t, 7, updates[0].LastTurn)
	assert.Equal(t, g.Positions(), updates[0].Positions)

	// Live turns follow the snapshot.
	resp, err = server.Client().Post(server.URL+"/api/play", "application/json", strings.NewReader(`{"turns": 1}`))
	require.NoError(t, err)
	resp.Body.Close()

	updates = readUpdates(t, conn, 1)
	require.NotNil(t, updates[0].Turn)
	assert.Equal(t, 8, updates[0].Turn.Number)
}

func TestHubSnapshotsOnlyOnceStarted(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(NewRouter(testService(t, 1), hub, nil))
	defer server.Close()

	conn := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Nothing relayed yet, so the first message is the answer to a ping.
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg["type"])
}

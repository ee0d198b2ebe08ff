package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/config"
	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/relay"
	"github.com/eldtechnologies/whiteboard/internal/store/storetest"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
		CanvasWidth:    32,
		CanvasHeight:   32,
		LineWidth:      1,
	}
	rooms := canvas.NewStore()
	hub := relay.NewHub(rooms, nil, zerolog.Nop(), relay.Options{AllowedOrigins: cfg.AllowedOrigins})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(zerolog.Nop(), cfg, storetest.NewMemory(), nil, hub, rooms))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func TestRouterServesContract(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/save-session", "application/json",
		strings.NewReader(`{"roomId":"abcdef","data":"blob","username":"alice"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}

	resp, err = http.Get(srv.URL + "/load-session/abcdef")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || snap.Data != "blob" {
		t.Fatalf("unexpected load result %d %+v", resp.StatusCode, snap)
	}
}

func TestRouterRoundTripsOpaqueRoomIDs(t *testing.T) {
	srv := newTestServer(t)

	for _, roomID := range []string{"a/b", "x..y", "a//b", "50%", "a b", "<script>"} {
		body, _ := json.Marshal(map[string]string{"roomId": roomID, "data": "blob-" + roomID})
		resp, err := http.Post(srv.URL+"/save-session", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("%q: save returned %d", roomID, resp.StatusCode)
		}

		resp, err = http.Get(srv.URL + "/load-session/" + url.PathEscape(roomID))
		if err != nil {
			t.Fatal(err)
		}
		var snap models.Snapshot
		json.NewDecoder(resp.Body).Decode(&snap)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || snap.RoomID != roomID || snap.Data != "blob-"+roomID {
			t.Fatalf("%q: load returned %d %+v", roomID, resp.StatusCode, snap)
		}
	}
}

func TestRouterRejectsNonJSONPost(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/login", "text/plain", strings.NewReader("bob:x"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestRouterUpgradesWebSocket(t *testing.T) {
	srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial through middleware stack: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteJSON(relay.Envelope{Event: relay.EventJoinRoom, Data: json.RawMessage(`"R"`)}); err != nil {
		t.Fatal(err)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouterRoomRoutes(t *testing.T) {
	srv := newTestServer(t)

	for path, want := range map[string]int{
		"/room/nothing":             http.StatusNotFound,
		"/room/nothing/preview.png": http.StatusOK,
		"/room/nothing/export.pdf":  http.StatusOK,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

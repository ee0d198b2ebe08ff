package whiteboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/api"
	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/config"
	"github.com/eldtechnologies/whiteboard/internal/relay"
	"github.com/eldtechnologies/whiteboard/internal/store/storetest"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	t.Setenv("WHITEBOARD_CONFIG", t.TempDir())

	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		MaxBodyBytes:   1 << 20,
		CanvasWidth:    16,
		CanvasHeight:   16,
		LineWidth:      1,
	}
	rooms := canvas.NewStore()
	hub := relay.NewHub(rooms, nil, zerolog.Nop(), relay.Options{AllowedOrigins: cfg.AllowedOrigins})
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(api.NewRouter(zerolog.Nop(), cfg, storetest.NewMemory(), nil, hub, rooms))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return NewClient(srv.URL)
}

func TestUserLifecycle(t *testing.T) {
	c := newTestClient(t)

	user, err := c.CreateUser("bob", "x")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Username != "bob" || c.Username != "bob" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = c.CreateUser("bob", "x")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %v", err)
	}

	if _, err := c.Login("bob", "x"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = c.Login("bob", "y")
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.LoadSession("abcdef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	png := []byte{0x89, 'P', 'N', 'G'}
	if _, err := c.SaveSession("abcdef", PNGDataURL(png), "alice"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := c.SaveSession("other room", PNGDataURL(png), ""); err != nil {
		t.Fatalf("save unattributed: %v", err)
	}

	snap, err := c.LoadSession("abcdef")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	mediaType, data, err := snap.Image()
	if err != nil {
		t.Fatal(err)
	}
	if mediaType != "image/png" || string(data) != string(png) {
		t.Fatalf("unexpected image %s %v", mediaType, data)
	}

	rooms, err := c.ListUserSessions("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "abcdef" {
		t.Fatalf("unexpected rooms %v", rooms)
	}
	if _, err := c.ListUserSessions("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)
	resp, err := c.Health()
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
}

func TestConfigPersistence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WHITEBOARD_CONFIG", dir)

	c := NewClient("http://example.invalid")
	c.Username = "carol"
	if err := c.SaveConfig(); err != nil {
		t.Fatal(err)
	}

	if again := NewClient("http://example.invalid"); again.Username != "carol" {
		t.Fatalf("expected saved username, got %q", again.Username)
	}
}

func TestWebSocketURL(t *testing.T) {
	for base, want := range map[string]string{
		"http://localhost:8080":  "ws://localhost:8080/ws",
		"https://board.example/": "wss://board.example/ws",
	} {
		if got := NewClient(base).WebSocketURL(); got != want {
			t.Errorf("WebSocketURL(%q) = %q, want %q", base, got, want)
		}
	}
}

func TestRealtimeScenario(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	a, err := Dial(ctx, c.WebSocketURL())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()
	b, err := Dial(ctx, c.WebSocketURL())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer b.Close()

	if err := a.JoinRoom("abcdef"); err != nil {
		t.Fatal(err)
	}
	first := Segment{X0: 0, Y0: 0, X1: 10, Y1: 10, Color: "#000"}
	if err := a.Draw("abcdef", first); err != nil {
		t.Fatal(err)
	}
	waitForSegments(t, c, "abcdef", 1)

	if err := b.JoinRoom("abcdef"); err != nil {
		t.Fatal(err)
	}
	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	ev, err := b.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Name != EventInitializeCanvas || len(ev.Segments) != 1 || ev.Segments[0] != first {
		t.Fatalf("unexpected join reply %+v", ev)
	}

	second := Segment{X0: 10, Y0: 10, X1: 20, Y1: 20, Color: "#f00"}
	if err := b.Draw("abcdef", second); err != nil {
		t.Fatal(err)
	}
	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	ev, err = a.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Name != EventDraw || ev.Draw.RoomID != "abcdef" || ev.Draw.Segment != second {
		t.Fatalf("unexpected broadcast %+v", ev)
	}

	if err := b.ClearCanvas("abcdef"); err != nil {
		t.Fatal(err)
	}
	ev, err = a.ReadEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Name != EventClearCanvas || ev.RoomID != "abcdef" {
		t.Fatalf("unexpected clear %+v", ev)
	}
}

// waitForSegments polls the live room endpoint until the relay holds n segments.
func waitForSegments(t *testing.T, c *Client, roomID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, err := decodeInto[struct {
			Segments int `json:"segments"`
		}](c.doRequest("GET", "/room/"+roomID, nil))
		if err == nil && info.Segments == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d segments", roomID, n)
}

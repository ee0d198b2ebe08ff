// Package whiteboard provides a client for the whiteboard HTTP API and
// its real-time drawing channel.
package whiteboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eldtechnologies/whiteboard/internal/raster"
)

// ErrNotFound is returned when the server has no matching snapshot.
var ErrNotFound = errors.New("whiteboard: not found")

// Client is a whiteboard API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	Username   string
	HTTPClient *http.Client
}

// Config is the identity remembered between CLI invocations.
type Config struct {
	Username string `json:"username"`
}

// NewClient creates a new client and loads any saved identity.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("WHITEBOARD_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".whiteboard")
	}

	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads the saved username from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "user.json"))
	if err != nil {
		return err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	c.Username = cfg.Username
	return nil
}

// SaveConfig saves the current username to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(Config{Username: c.Username}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "user.json"), data, 0600)
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("whiteboard error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) doRequest(method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
	}

	return respBody, nil
}

func decodeInto[T any](data []byte, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Snapshot is a saved rendering of a room.
type Snapshot struct {
	ID        int64     `json:"id"`
	RoomID    string    `json:"roomId"`
	Data      string    `json:"data"`
	Username  *string   `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Image decodes the snapshot's data URL.
func (s *Snapshot) Image() (mediaType string, data []byte, err error) {
	return raster.DecodeDataURL(s.Data)
}

// PNGDataURL wraps raw PNG bytes the way a browser canvas exports them.
func PNGDataURL(png []byte) string {
	return raster.EncodeDataURL("image/png", png)
}

// User is a directory entry.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type saveSessionRequest struct {
	RoomID   string  `json:"roomId"`
	Data     string  `json:"data"`
	Username *string `json:"username"`
}

// SaveSession stores a snapshot. An empty username saves it unattributed.
func (c *Client) SaveSession(roomID, data, username string) (*Snapshot, error) {
	req := saveSessionRequest{RoomID: roomID, Data: data}
	if username != "" {
		req.Username = &username
	}
	return decodeInto[Snapshot](c.doRequest("POST", "/save-session", req))
}

// LoadSession fetches the newest snapshot of a room.
func (c *Client) LoadSession(roomID string) (*Snapshot, error) {
	return decodeInto[Snapshot](c.doRequest("GET", "/load-session/"+url.PathEscape(roomID), nil))
}

// ListUserSessions lists the rooms username saved to, newest first.
func (c *Client) ListUserSessions(username string) ([]string, error) {
	entries, err := decodeInto[[]struct {
		RoomID string `json:"roomId"`
	}](c.doRequest("GET", "/load-user-session?username="+url.QueryEscape(username), nil))
	if err != nil {
		return nil, err
	}
	rooms := make([]string, len(*entries))
	for i, e := range *entries {
		rooms[i] = e.RoomID
	}
	return rooms, nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUser registers a username and remembers it locally.
func (c *Client) CreateUser(username, password string) (*User, error) {
	user, err := decodeInto[User](c.doRequest("POST", "/create-user", credentials{username, password}))
	if err != nil {
		return nil, err
	}
	c.Username = user.Username
	return user, nil
}

// Login checks credentials and remembers the username locally.
func (c *Client) Login(username, password string) (*User, error) {
	user, err := decodeInto[User](c.doRequest("POST", "/login", credentials{username, password}))
	if err != nil {
		return nil, err
	}
	c.Username = user.Username
	return user, nil
}

// HealthResponse is the server health report.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Checks  map[string]struct {
		Status  string `json:"status"`
		Latency string `json:"latency,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"checks"`
	Relay struct {
		Rooms    int `json:"rooms"`
		Segments int `json:"segments"`
	} `json:"relay"`
	Timestamp string `json:"timestamp"`
}

// Health reports server health. A degraded server still returns a report.
func (c *Client) Health() (*HealthResponse, error) {
	data, err := c.doRequest("GET", "/health", nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusServiceUnavailable {
		return &HealthResponse{Status: "degraded"}, nil
	}
	return decodeInto[HealthResponse](data, err)
}

// WebSocketURL derives the real-time endpoint from the API base URL.
func (c *Client) WebSocketURL() string {
	u := c.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

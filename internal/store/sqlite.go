package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/eldtechnologies/whiteboard/internal/crypto"
	"github.com/eldtechnologies/whiteboard/internal/models"
)

// SQLite driver names accepted by NewSQLiteStore.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/whiteboard.db"
func NewSQLiteStore(ctx context.Context, driver, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/whiteboard.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dsn, err := sqliteDSN(driver, dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func sqliteDSN(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return dbPath + "?_journal_mode=WAL&_busy_timeout=5000", nil
	case DriverPureGo:
		return "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

// initSchema creates tables if they don't exist.
// Timestamps are stored as unix milliseconds so both drivers scan them the same way.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		data TEXT NOT NULL,
		username TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_room_created ON sessions(room_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON sessions(username, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveSession inserts a new snapshot row.
func (s *SQLiteStore) SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error) {
	defer observe("save_session", time.Now())

	now := time.Now().UTC()
	var user sql.NullString
	if username != nil {
		user = sql.NullString{String: *username, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (room_id, data, username, created_at)
		VALUES (?, ?, ?, ?)
	`, roomID, data, user, now.UnixMilli())
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Snapshot{
		ID:        id,
		RoomID:    roomID,
		Data:      data,
		Username:  username,
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// GetLatestSession retrieves the most recent snapshot for a room.
func (s *SQLiteStore) GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error) {
	defer observe("latest_session", time.Now())

	snap := &models.Snapshot{}
	var user sql.NullString
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, data, username, created_at
		FROM sessions
		WHERE room_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, roomID).Scan(
		&snap.ID,
		&snap.RoomID,
		&snap.Data,
		&user,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if user.Valid {
		snap.Username = &user.String
	}
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	return snap, nil
}

// ListUserRooms lists the distinct rooms a user saved, most recently saved first.
func (s *SQLiteStore) ListUserRooms(ctx context.Context, username string) ([]models.UserRoom, error) {
	defer observe("list_user_rooms", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT room_id
		FROM sessions
		WHERE username = ?
		GROUP BY room_id
		ORDER BY MAX(created_at) DESC, MAX(id) DESC
	`, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.UserRoom
	for rows.Next() {
		var room models.UserRoom
		if err := rows.Scan(&room.RoomID); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	defer observe("create_user", time.Now())

	id := crypto.NewUUIDv7()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), username, passwordHash, now.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.UnixMilli(now.UnixMilli()).UTC(),
	}, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observe("get_user", time.Now())

	user := &models.User{}
	var idStr string
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = ?
	`, username).Scan(
		&idStr,
		&user.Username,
		&user.PasswordHash,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", idStr, err)
	}
	user.ID = id
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	return user, nil
}

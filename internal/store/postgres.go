package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/whiteboard/internal/crypto"
	"github.com/eldtechnologies/whiteboard/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSession inserts a new snapshot row.
func (s *PostgresStore) SaveSession(ctx context.Context, roomID, data string, username *string) (*models.Snapshot, error) {
	defer observe("save_session", time.Now())

	snap := &models.Snapshot{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (room_id, data, username)
		VALUES ($1, $2, $3)
		RETURNING id, room_id, data, username, created_at
	`, roomID, data, username).Scan(
		&snap.ID,
		&snap.RoomID,
		&snap.Data,
		&snap.Username,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetLatestSession retrieves the most recent snapshot for a room.
func (s *PostgresStore) GetLatestSession(ctx context.Context, roomID string) (*models.Snapshot, error) {
	defer observe("latest_session", time.Now())

	snap := &models.Snapshot{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, data, username, created_at
		FROM sessions
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, roomID).Scan(
		&snap.ID,
		&snap.RoomID,
		&snap.Data,
		&snap.Username,
		&snap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}

// ListUserRooms lists the distinct rooms a user saved, most recently saved first.
func (s *PostgresStore) ListUserRooms(ctx context.Context, username string) ([]models.UserRoom, error) {
	defer observe("list_user_rooms", time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT room_id
		FROM sessions
		WHERE username = $1
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
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	defer observe("create_user", time.Now())

	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, username, password_hash, created_at
	`, crypto.NewUUIDv7(), username, passwordHash).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer observe("get_user", time.Now())

	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

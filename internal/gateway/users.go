package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/eldtechnologies/whiteboard/internal/crypto"
	"github.com/eldtechnologies/whiteboard/internal/models"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

const maxUsernameLength = 64

// Users is the user directory.
type Users struct {
	db store.DataStore
}

// NewUsers creates a Users directory.
func NewUsers(db store.DataStore) *Users {
	return &Users{db: db}
}

// CreateUser registers username. It fails with ErrConflict if the name is taken.
func (u *Users) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || len(username) > maxUsernameLength || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := u.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storageError("check username", err)
	}
	if existing != nil {
		return nil, ErrConflict
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := u.db.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, storageError("create user", err)
	}
	return user, nil
}

// Authenticate returns the user when both username and password match exactly.
func (u *Users) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.db.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, storageError("lookup user", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

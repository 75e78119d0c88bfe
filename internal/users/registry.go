// Package users keeps the durable user registry: the mapping from a chat
// transport identity to the patient UUID the clinic backend knows.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreysiniy/tg-med-bot/pkg/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the user has never registered.
var ErrNotFound = errors.New("users: not found")

// User is one registered chat user.
type User struct {
	UserID    string    `json:"user_id"`
	ChatID    string    `json:"chat_id"`
	UUID      string    `json:"uuid"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	return u.Username
}

// Registry stores users in Redis keyed by transport user ID.
type Registry struct {
	redis  *redis.Client
	logger *logging.Logger
}

// NewRegistry creates a Redis-backed user registry.
func NewRegistry(client *redis.Client, logger *logging.Logger) *Registry {
	if client == nil {
		panic("users: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{redis: client, logger: logger}
}

// RegisterIfAbsent stores the user on first contact, assigning a fresh patient
// UUID. It returns the stored user and whether a new record was created.
func (r *Registry) RegisterIfAbsent(ctx context.Context, u User) (User, bool, error) {
	existing, err := r.Get(ctx, u.UserID)
	if err == nil {
		return *existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	u.UUID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(u)
	if err != nil {
		return User{}, false, fmt.Errorf("users: failed to encode user: %w", err)
	}
	if err := r.redis.Set(ctx, userKey(u.UserID), data, 0).Err(); err != nil {
		return User{}, false, fmt.Errorf("users: failed to store user: %w", err)
	}

	r.logger.Info("user registered", "user_id", u.UserID, "username", u.Username)
	return u, true, nil
}

// Get looks a user up by transport ID. Returns ErrNotFound for strangers.
func (r *Registry) Get(ctx context.Context, userID string) (*User, error) {
	data, err := r.redis.Get(ctx, userKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: failed to load user: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("users: failed to decode user: %w", err)
	}
	return &u, nil
}

func userKey(userID string) string {
	return "user:" + userID
}

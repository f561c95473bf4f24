// Package identity resolves who owns a reservation: an authenticated
// account with a stable id, or a guest known only by display name.
//
// Guest ownership is name-string equality. Two guest sessions entering
// the same name share budget and delete permission over each other's
// reservations. This is intentionally explicit rather than accidental.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"descansos/internal/database"
	"descansos/internal/models"
)

// Identity is a resolved reservation owner.
type Identity struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Guest bool   `json:"guest"`
}

// UserStore is the account storage the service needs.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
	GetUserByID(ctx context.Context, id string) (*database.User, error)
	CreateUser(ctx context.Context, u *database.User) error
}

// Service resolves identities against the account store.
type Service struct {
	users  UserStore
	logger zerolog.Logger
}

// NewService creates an identity service.
func NewService(users UserStore, logger zerolog.Logger) *Service {
	return &Service{
		users:  users,
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

// Guest builds a guest identity from a display name.
func Guest(name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Identity{}, fmt.Errorf("guest name must not be empty")
	}
	return Identity{Key: models.GuestKey(name), Name: name, Guest: true}, nil
}

// Register creates an authenticated account with a fresh stable id.
func (s *Service) Register(ctx context.Context, email, name string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return Identity{}, fmt.Errorf("email and name are required")
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return Identity{Key: existing.ID, Name: existing.Name}, nil
	}

	u := &database.User{ID: uuid.NewString(), Email: email, Name: name}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return Identity{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info().Str("user_id", u.ID).Str("email", email).Msg("user registered")
	return Identity{Key: u.ID, Name: u.Name}, nil
}

// Resolve maps request credentials to an identity: a known email wins;
// otherwise a non-empty guest name yields a guest identity.
func (s *Service) Resolve(ctx context.Context, email, guestName string) (Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		u, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return Identity{}, fmt.Errorf("lookup user: %w", err)
		}
		if u == nil {
			return Identity{}, fmt.Errorf("unknown account %q", email)
		}
		return Identity{Key: u.ID, Name: u.Name}, nil
	}
	return Guest(guestName)
}

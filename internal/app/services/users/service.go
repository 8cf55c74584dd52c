package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID  string
	Address string
	Role    user.Role
}

// Patch lists profile fields a user may change. Nil fields are left untouched.
type Patch struct {
	Username     *string
	ProfileImage *string
}

// Service manages marketplace user profiles.
type Service struct {
	store    storage.UserStore
	ordinals storage.OrdinalStore
	log      *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, ordinals storage.OrdinalStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, ordinals: ordinals, log: log}
}

// Register creates a user with the default role.
func (s *Service) Register(ctx context.Context, username, address string) (user.User, error) {
	return s.RegisterWithRole(ctx, username, address, user.RoleUser)
}

// RegisterWithRole creates a user with an explicit role.
func (s *Service) RegisterWithRole(ctx context.Context, username, address string, role user.Role) (user.User, error) {
	username = strings.TrimSpace(username)
	address = strings.TrimSpace(address)
	if username == "" || address == "" {
		return user.User{}, apperrors.BadRequest("Username and address are required")
	}
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return user.User{}, apperrors.BadRequest("Invalid role value")
	}

	created, err := s.store.CreateUser(ctx, user.User{Username: username, Address: address, Role: role})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, apperrors.Conflict("Duplicate key error", err)
		}
		return user.User{}, fmt.Errorf("create user %s: %w", username, err)
	}
	s.log.WithField("user_id", created.ID).
		WithField("username", username).
		WithField("role", role).
		Info("user registered")
	return created, nil
}

// Get fetches a user by username.
func (s *Service) Get(ctx context.Context, username string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.NotFound("User not found")
		}
		return user.User{}, fmt.Errorf("get user %s: %w", username, err)
	}
	return u, nil
}

// GetByAddress fetches a user by wallet address.
func (s *Service) GetByAddress(ctx context.Context, address string) (user.User, error) {
	u, err := s.store.GetUserByAddress(ctx, strings.TrimSpace(address))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, apperrors.NotFound("User not found")
		}
		return user.User{}, fmt.Errorf("get user by address: %w", err)
	}
	return u, nil
}

// Ordinals returns the ordinals owned by the user's address.
func (s *Service) Ordinals(ctx context.Context, username string) ([]ordinal.Ordinal, error) {
	u, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	ords, _, err := s.ordinals.ListOrdinals(ctx, ordinal.Filter{Owner: u.Address})
	if err != nil {
		return nil, fmt.Errorf("list ordinals of %s: %w", username, err)
	}
	if ords == nil {
		ords = []ordinal.Ordinal{}
	}
	return ords, nil
}

// UpdateProfile changes a profile. Only the user or an admin may do so.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, username string, patch Patch) (user.User, error) {
	u, err := s.Get(ctx, username)
	if err != nil {
		return user.User{}, err
	}
	if !canEdit(actor, u) {
		return user.User{}, apperrors.Forbidden("Not authorized to update this profile")
	}

	if patch.Username != nil {
		name := strings.TrimSpace(*patch.Username)
		if name == "" {
			return user.User{}, apperrors.BadRequest("Username cannot be empty")
		}
		u.Username = name
	}
	if patch.ProfileImage != nil {
		u.ProfileImage = strings.TrimSpace(*patch.ProfileImage)
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, apperrors.Conflict("Duplicate key error", err)
		}
		return user.User{}, fmt.Errorf("update user %s: %w", username, err)
	}
	s.log.WithField("user_id", u.ID).Info("user profile updated")
	return updated, nil
}

func canEdit(actor Actor, u user.User) bool {
	if actor.Role == user.RoleAdmin {
		return true
	}
	if actor.UserID != "" && actor.UserID == u.ID {
		return true
	}
	return actor.Address != "" && actor.Address == u.Address
}

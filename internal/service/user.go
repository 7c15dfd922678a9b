package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

// UserPatch is a partial account update. Nil fields are left alone.
type UserPatch struct {
	Email    *string     `json:"email,omitempty"`
	Password *string     `json:"password,omitempty"`
	Role     *model.Role `json:"role,omitempty"`
}

type emailRule struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// UserService manages accounts after registration.
//
// Every method takes the caller's identity. The router already limits these
// routes to the owner or an admin; the checks here repeat that so the rules
// hold for any caller, and add the ones the router cannot see (only an admin
// may change a role).
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewUserService creates the account-management service. passwords hashes
// new passwords on update.
func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

func canAccess(caller auth.Identity, userID string) bool {
	return caller.IsAdmin() || caller.UserID == userID
}

// Get returns an account to its owner or an admin.
func (s *UserService) Get(ctx context.Context, caller auth.Identity, id string) (*model.User, error) {
	if !canAccess(caller, id) {
		return nil, apperror.Forbidden("you can only view your own account")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// List returns a page of accounts. Admins only.
func (s *UserService) List(ctx context.Context, caller auth.Identity, opts repository.ListOptions) ([]model.User, error) {
	if !caller.IsAdmin() {
		return nil, apperror.Forbidden("admin access required")
	}

	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Update changes email, password or role.
//
// A non-admin who sends a role gets 403 rather than having the field quietly
// dropped. A new password is hashed before it is stored.
func (s *UserService) Update(ctx context.Context, caller auth.Identity, id string, patch UserPatch) (*model.User, error) {
	if !canAccess(caller, id) {
		return nil, apperror.Forbidden("you can only update your own account")
	}
	if patch.Role != nil && !caller.IsAdmin() {
		return nil, apperror.Forbidden("only an admin can change a role")
	}
	if patch.Email == nil && patch.Password == nil && patch.Role == nil {
		return nil, apperror.ValidationFailed("body", "at least one field must be provided")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if err := validateStruct(emailRule{Email: email}); err != nil {
			return nil, err
		}
		user.Email = email
	}

	if patch.Password != nil {
		if err := validatePassword("password", *patch.Password); err != nil {
			return nil, err
		}
		hash, err := s.passwords.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("updating user: %w", err)
		}
		user.PasswordHash = hash
	}

	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, apperror.ValidationFailed("role", "role must be one of: USER ADMIN")
		}
		user.Role = *patch.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.logger.Info("user updated",
		slog.String("userID", id),
		slog.String("by", caller.UserID),
	)
	return user, nil
}

// Delete removes an account and its cart. Admins only.
func (s *UserService) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if !caller.IsAdmin() {
		return apperror.Forbidden("admin access required")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	s.logger.Info("user deleted",
		slog.String("userID", id),
		slog.String("by", caller.UserID),
	)
	return nil
}

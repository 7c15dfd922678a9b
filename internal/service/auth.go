// Package service holds the business rules of the storefront.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, enforces rules, orchestrates
//	Repository (data)  → reads/writes the database
//
// Services accept and return plain Go values and apperror errors, never
// HTTP types, so the same rules serve the API, the CLI and the tests.
// Dependencies are repository interfaces, which the tests replace with
// in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

// Password length bounds for new and changed passwords. The upper bound is
// bcrypt's input limit.
const (
	MinPasswordLength = 8
	MaxPasswordLength = auth.MaxPasswordBytes
)

// msgBadCredentials is deliberately the same for an unknown email and a
// wrong password.
const msgBadCredentials = "invalid email or password"

// credentials holds the validation tags for registration.
type credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthService handles registration and sign-in.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ PasswordService (bcrypt)
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can set the
// cookie and respond in one step.
type AuthResult struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword enforces the length rule in bytes, which is what bcrypt
// counts.
func validatePassword(field, password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at least %d characters", field, MinPasswordLength))
	case len(password) > MaxPasswordLength:
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d bytes", field, MaxPasswordLength))
	}
	return nil
}

// Register creates a USER account.
//
// A taken email is a Conflict and no second row is written. The role is
// always USER; admins are made through EnsureAdmin or by another admin.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	if err := validateStruct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: hash, Role: model.RoleUser}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return user, nil
}

// Authenticate checks an email and password and issues a token.
//
// Unknown email and wrong password fail identically, in both message and
// timing: an unknown email still pays for one bcrypt comparison.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("authenticating: %w", err)
		}
		_ = s.passwords.VerifyDummy(password)
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	// GitHub-only accounts have no password to match.
	if user.PasswordHash == "" {
		_ = s.passwords.VerifyDummy(password)
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unreadable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthorized(msgBadCredentials)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub signs in through GitHub.
//
// Lookup order:
//  1. an account already linked to this GitHub id
//  2. an account with the same email, which gets linked
//  3. a new USER account with no password
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("github login: missing GitHub profile")
	}

	user, err := s.users.GetByGitHubID(ctx, gh.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("github login: %w", err)
	}

	email := normalizeEmail(gh.Email)
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
	}

	ghID := gh.ID
	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		user.GitHubID = &ghID
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("github login: linking account: %w", err)
		}
		s.logger.Info("github account linked", slog.String("userID", user.ID), slog.Int64("githubID", ghID))
	case errors.Is(err, apperror.ErrNotFound):
		user = &model.User{Email: email, Role: model.RoleUser, GitHubID: &ghID}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("github login: creating account: %w", err)
		}
		s.logger.Info("user registered via GitHub", slog.String("userID", user.ID), slog.Int64("githubID", ghID))
	default:
		return nil, fmt.Errorf("github login: %w", err)
	}

	return s.issue(user)
}

// EnsureAdmin makes sure an ADMIN account exists for email. An existing
// account is promoted and keeps its password; a missing one is created with
// the given password.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Role == model.RoleAdmin {
			return user, nil
		}
		user.Role = model.RoleAdmin
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("promoting admin: %w", err)
		}
		s.logger.Info("user promoted to admin", slog.String("userID", user.ID))
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	if err := validateStruct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	user = &model.User{Email: email, PasswordHash: hash, Role: model.RoleAdmin}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("seeding admin: %w", err)
	}

	s.logger.Info("admin account created", slog.String("userID", user.ID))
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

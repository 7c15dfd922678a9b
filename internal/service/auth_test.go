package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/model"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeStore, *auth.TokenService) {
	t.Helper()
	store := newFakeStore()
	tokens := testTokens(t)
	return NewAuthService(fakeUsers{store}, tokens, testPasswords(), quietLogger()), store, tokens
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister(t *testing.T) {
	svc, store, _ := newTestAuthService(t)

	u, err := svc.Register(context.Background(), " New@Example.com ", "password123")
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.NotEqual(t, "password123", u.PasswordHash)
	assert.True(t, strings.HasPrefix(store.users[u.ID].PasswordHash, "$2"), "stored as bcrypt")
}

// A second registration with the same email is a conflict and writes nothing.
func TestRegister_DuplicateEmail(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "dup@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "DUP@example.com", "different-pass")
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Len(t, store.users, 1)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{"bad email", "not-an-email", "password123", "email"},
		{"empty email", "", "password123", "email"},
		{"short password", "ok@example.com", "short", "password"},
		{"password over bcrypt limit", "ok@example.com", strings.Repeat("a", 73), "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestAuthService(t)

			_, err := svc.Register(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.field, appErr.Fields[0].Field)
			assert.Empty(t, store.users)
		})
	}
}

// =========================================================================
// AUTHENTICATE TESTS
// =========================================================================

func TestAuthenticate_IssuesTokenWithRole(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "login@example.com", "password123")
	require.NoError(t, err)

	res, err := svc.Authenticate(ctx, "LOGIN@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, res.User.ID)

	id, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, id.UserID)
	assert.Equal(t, model.RoleUser, id.Role)
}

// Unknown email and wrong password must be indistinguishable to the caller.
func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "real@example.com", "password123")
	require.NoError(t, err)

	_, wrongPw := svc.Authenticate(ctx, "real@example.com", "wrong-password")
	_, noUser := svc.Authenticate(ctx, "ghost@example.com", "password123")
	_, empty := svc.Authenticate(ctx, "", "")

	for _, err := range []error{wrongPw, noUser, empty} {
		require.ErrorIs(t, err, apperror.ErrUnauthorized)
	}
	assert.Equal(t, wrongPw.Error(), noUser.Error())
	assert.Equal(t, msgBadCredentials, noUser.Error())
}

func TestAuthenticate_GitHubOnlyAccountHasNoPassword(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	store.seedUser("gh@example.com", model.RoleUser) // empty PasswordHash

	_, err := svc.Authenticate(context.Background(), "gh@example.com", "")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = svc.Authenticate(context.Background(), "gh@example.com", "anything-at-all")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAuthenticate_RepositoryFailureIsNotUnauthorized(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	store.fail = errors.New("db down")

	_, err := svc.Authenticate(context.Background(), "a@example.com", "password123")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperror.ErrUnauthorized), "infrastructure failures surface as internal errors")
}

// =========================================================================
// GITHUB / ADMIN SEEDING TESTS
// =========================================================================

func TestLoginOrRegisterGitHub(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octo", Email: "Octo@Example.com"})
	require.NoError(t, err)
	require.NotNil(t, first.User.GitHubID)
	assert.Equal(t, "octo@example.com", first.User.Email)

	again, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octo"})
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID, "same GitHub id, same account")
	assert.Len(t, store.users, 1)
}

func TestLoginOrRegisterGitHub_LinksExistingEmail(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()
	existing, err := svc.Register(ctx, "dev@example.com", "password123")
	require.NoError(t, err)

	res, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "dev", Email: "dev@example.com"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, res.User.ID)
	require.NotNil(t, store.users[existing.ID].GitHubID)
	assert.Equal(t, int64(99), *store.users[existing.ID].GitHubID)
}

func TestLoginOrRegisterGitHub_HiddenEmail(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	res, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "Shy"})
	require.NoError(t, err)
	assert.Equal(t, "5+shy@users.noreply.github.com", res.User.Email)
}

func TestEnsureAdmin(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "root@example.com", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	again, err := svc.EnsureAdmin(ctx, "root@example.com", "ignored-now")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)
	assert.Len(t, store.users, 1)

	_, err = svc.Authenticate(ctx, "root@example.com", "admin-password")
	assert.NoError(t, err, "the original password still works")
}

func TestEnsureAdmin_PromotesExistingUser(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "promote@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.EnsureAdmin(ctx, "promote@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, store.users[u.ID].Role)
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
)

func newTestCartService(t *testing.T) (*CartService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	svc := NewCartService(fakeCarts{store}, fakeUsers{store}, fakeGames{store}, quietLogger())
	return svc, store
}

// ===== ADD =====

func TestCartAddItem(t *testing.T) {
	svc, store := newTestCartService(t)
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Outer Wilds", "24.99")

	cart, err := svc.AddItem(context.Background(), u.ID, g.ID)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, g.ID, cart.Lines[0].GameID)
	assert.Equal(t, 1, cart.Lines[0].Quantity)
	require.NotNil(t, cart.Lines[0].Game)
	assert.Equal(t, "Outer Wilds", cart.Lines[0].Game.Title)
	assert.Equal(t, "24.99", cart.Summary.Subtotal.StringFixed(2))
	assert.Equal(t, "2.50", cart.Summary.Tax.StringFixed(2))
	assert.Equal(t, "27.49", cart.Summary.Total.StringFixed(2))
}

// Adding a game twice yields one line and a conflict, and the first line is
// untouched.
func TestCartAddItem_SecondAddIsConflict(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Inside", "19.99")

	first, err := svc.AddItem(ctx, u.ID, g.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, u.ID, g.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "already in the cart")

	cart, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, first.Lines[0].ID, cart.Lines[0].ID)
}

func TestCartAddItem_ConcurrentAddsKeepOneLine(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Limbo", "9.99")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddItem(ctx, u.ID, g.ID)
		}()
	}
	wg.Wait()

	cart, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
}

func TestCartAddItem_Errors(t *testing.T) {
	svc, store := newTestCartService(t)
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Fez", "9.99")

	tests := []struct {
		name    string
		userID  string
		gameID  string
		wantErr error
	}{
		{"missing game", u.ID, "no-such-game", apperror.ErrNotFound},
		{"missing user", "no-such-user", g.ID, apperror.ErrNotFound},
		{"blank game id", u.ID, "  ", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddItem(context.Background(), tt.userID, tt.gameID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	cart, err := svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines, "failed adds leave the cart unchanged")
}

// ===== REMOVE / CLEAR =====

func TestCartRemoveItem(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)
	g1 := store.seedGame("One", "10")
	g2 := store.seedGame("Two", "20")
	_, err := svc.AddItem(ctx, u.ID, g1.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, u.ID, g2.ID)
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, u.ID, g1.ID)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, g2.ID, cart.Lines[0].GameID)
}

func TestCartRemoveItem_AbsentIsNotFound(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Kept", "10")
	_, err := svc.AddItem(ctx, u.ID, g.ID)
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, u.ID, "never-added")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	cart, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1, "cart is unchanged")
}

func TestCartClear(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)

	cart, err := svc.Clear(ctx, u.ID)
	require.NoError(t, err, "clearing an empty cart succeeds")
	assert.Empty(t, cart.Lines)

	for _, title := range []string{"A", "B", "C"} {
		_, err := svc.AddItem(ctx, u.ID, store.seedGame(title, "5").ID)
		require.NoError(t, err)
	}

	cart, err = svc.Clear(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.True(t, cart.Summary.Total.IsZero())
}

// ===== GET / CONTAINS =====

func TestCartGet_UnknownUser(t *testing.T) {
	svc, _ := newTestCartService(t)
	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestCartGet_EmptyCartEncodesAsList(t *testing.T) {
	svc, store := newTestCartService(t)
	u := store.seedUser("a@example.com", model.RoleUser)

	cart, err := svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotNil(t, cart.Lines)
	assert.Equal(t, 0, cart.Summary.Count)
}

func TestCartContains(t *testing.T) {
	svc, store := newTestCartService(t)
	ctx := context.Background()
	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Here", "10")
	other := store.seedGame("Elsewhere", "10")
	_, err := svc.AddItem(ctx, u.ID, g.ID)
	require.NoError(t, err)

	st, err := svc.Contains(ctx, u.ID, g.ID)
	require.NoError(t, err)
	assert.True(t, st.InCart)
	require.NotNil(t, st.Item)
	assert.Equal(t, g.ID, st.Item.GameID)

	st, err = svc.Contains(ctx, u.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, st.InCart)
	assert.Nil(t, st.Item)
}

// ===== CASCADES =====

func TestCart_GameDeletionLeavesNoDanglingLines(t *testing.T) {
	store := newFakeStore()
	carts := NewCartService(fakeCarts{store}, fakeUsers{store}, fakeGames{store}, quietLogger())
	games := NewGameService(fakeGames{store}, nil, quietLogger())
	ctx := context.Background()

	u := store.seedUser("a@example.com", model.RoleUser)
	g := store.seedGame("Doomed", "10")
	_, err := carts.AddItem(ctx, u.ID, g.ID)
	require.NoError(t, err)

	require.NoError(t, games.Delete(ctx, g.ID))

	cart, err := carts.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func TestCart_RepositoryFailureIsWrapped(t *testing.T) {
	svc, store := newTestCartService(t)
	u := store.seedUser("a@example.com", model.RoleUser)
	boom := errors.New("disk on fire")
	store.fail = boom

	_, err := svc.Get(context.Background(), u.ID)
	assert.ErrorIs(t, err, boom)
}

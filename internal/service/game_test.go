package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/cache"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

func validGameInput() GameInput {
	return GameInput{
		Title:       "The Legend of Zelda",
		Description: "An open-air adventure across Hyrule.",
		Image:       "https://example.com/zelda.png",
		Price:       decimal.RequireFromString("59.99"),
		Rating:      4.9,
		ReleaseDate: "2023-05-12",
	}
}

func newTestGameService(t *testing.T) (*GameService, *fakeStore, *cache.Memory) {
	t.Helper()
	store := newFakeStore()
	mem := cache.NewMemory()
	return NewGameService(fakeGames{store}, mem, quietLogger()), store, mem
}

func strPtr(s string) *string { return &s }

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestGameCreate(t *testing.T) {
	svc, _, _ := newTestGameService(t)

	in := validGameInput()
	in.Title = "  The Legend of Zelda  "
	g, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "The Legend of Zelda", g.Title, "title is trimmed")
}

// Each broken field produces exactly one field error naming it.
func TestGameCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GameInput)
		field  string
	}{
		{"short title", func(in *GameInput) { in.Title = "ab" }, "title"},
		{"blank title", func(in *GameInput) { in.Title = "   " }, "title"},
		{"short description", func(in *GameInput) { in.Description = "too short" }, "description"},
		{"bad image url", func(in *GameInput) { in.Image = "not a url" }, "image"},
		{"zero price", func(in *GameInput) { in.Price = decimal.Zero }, "price"},
		{"negative price", func(in *GameInput) { in.Price = decimal.NewFromInt(-5) }, "price"},
		{"rating above 5", func(in *GameInput) { in.Rating = 5.1 }, "rating"},
		{"negative rating", func(in *GameInput) { in.Rating = -1 }, "rating"},
		{"bad date", func(in *GameInput) { in.ReleaseDate = "12/05/2023" }, "releaseDate"},
		{"impossible date", func(in *GameInput) { in.ReleaseDate = "2023-02-30" }, "releaseDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestGameService(t)
			in := validGameInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			require.ErrorIs(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			require.Len(t, appErr.Fields, 1, "fields: %+v", appErr.Fields)
			assert.Equal(t, tt.field, appErr.Fields[0].Field)

			assert.Empty(t, store.games, "nothing is stored on validation failure")
		})
	}
}

func TestGameCreate_ReportsEveryBadField(t *testing.T) {
	svc, _, _ := newTestGameService(t)

	_, err := svc.Create(context.Background(), GameInput{})
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))

	got := make([]string, 0, len(appErr.Fields))
	for _, f := range appErr.Fields {
		got = append(got, f.Field)
	}
	assert.ElementsMatch(t, []string{"title", "description", "image", "price", "releaseDate"}, got)
}

func TestGameCreate_BoundaryValuesAccepted(t *testing.T) {
	svc, _, _ := newTestGameService(t)

	in := validGameInput()
	in.Title = "Abc"
	in.Description = strings.Repeat("x", 10)
	in.Rating = 0
	_, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	in.Rating = 5
	in.Price = decimal.RequireFromString("0.01")
	_, err = svc.Create(context.Background(), in)
	require.NoError(t, err)
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestGameUpdate_OnlyProvidedFieldsChange(t *testing.T) {
	svc, _, _ := newTestGameService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validGameInput())
	require.NoError(t, err)

	price := decimal.RequireFromString("39.99")
	updated, err := svc.Update(ctx, created.ID, model.GamePatch{Price: &price})
	require.NoError(t, err)

	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.ReleaseDate, updated.ReleaseDate)
}

func TestGameUpdate_Errors(t *testing.T) {
	svc, store, _ := newTestGameService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validGameInput())
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, model.GamePatch{})
	assert.ErrorIs(t, err, apperror.ErrValidation, "empty patch")

	_, err = svc.Update(ctx, "missing", model.GamePatch{Title: strPtr("Valid Title")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Update(ctx, created.ID, model.GamePatch{Title: strPtr("no")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "The Legend of Zelda", store.games[created.ID].Title, "invalid patch is not stored")
}

// =========================================================================
// DELETE / CACHE TESTS
// =========================================================================

func TestGameDelete(t *testing.T) {
	svc, _, _ := newTestGameService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, validGameInput())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, created.ID), apperror.ErrNotFound)
}

func TestGameGetByID_ServedFromCache(t *testing.T) {
	svc, store, mem := newTestGameService(t)
	ctx := context.Background()
	g := store.seedGame("Cached", "10")

	_, err := svc.GetByID(ctx, g.ID)
	require.NoError(t, err)
	_, err = svc.GetByID(ctx, g.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, store.gameGets, "second read must hit the cache")
	assert.True(t, mem.Has(gameKey(g.ID)))
}

func TestGameWrites_InvalidateCache(t *testing.T) {
	svc, store, mem := newTestGameService(t)
	ctx := context.Background()
	g := store.seedGame("Stale", "10")

	_, err := svc.GetByID(ctx, g.ID)
	require.NoError(t, err)
	_, err = svc.List(ctx, repository.ListOptions{})
	require.NoError(t, err)
	require.True(t, mem.Has(gameKey(g.ID)))
	require.True(t, mem.Has(catalogListKey))

	_, err = svc.Update(ctx, g.ID, model.GamePatch{Title: strPtr("Fresh")})
	require.NoError(t, err)
	assert.False(t, mem.Has(gameKey(g.ID)))
	assert.False(t, mem.Has(catalogListKey))

	got, err := svc.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", got.Title)
}

func TestGameList_NonDefaultPageIsNotCached(t *testing.T) {
	svc, store, mem := newTestGameService(t)
	store.seedGame("Paged", "10")

	_, err := svc.List(context.Background(), repository.ListOptions{Limit: 5, Offset: 5})
	require.NoError(t, err)
	assert.False(t, mem.Has(catalogListKey))
}

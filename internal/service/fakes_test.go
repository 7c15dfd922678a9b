package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// One in-memory store backs all three repository fakes so that cascades
// (deleting a user or game drops its cart lines) behave like the schema.
// Each fake type embeds the store and adds one interface's methods.

type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*model.User
	games  map[string]*model.Game
	lines  []model.CartLine
	nextID int

	gameGets int   // counts GameRepository.GetByID calls
	fail     error // when set, every call returns it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		games: make(map[string]*model.Game),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

type fakeUsers struct{ *fakeStore }
type fakeGames struct{ *fakeStore }
type fakeCarts struct{ *fakeStore }

var (
	_ repository.UserRepository = fakeUsers{}
	_ repository.GameRepository = fakeGames{}
	_ repository.CartRepository = fakeCarts{}
)

// ----- users -----

func (f fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("an account with this email already exists")
		}
	}
	u.ID = f.id("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f fakeUsers) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(githubID))
}

func (f fakeUsers) List(_ context.Context, _ repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f fakeUsers) Update(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	for id, existing := range f.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return apperror.Conflict("an account with this email already exists")
		}
	}
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	f.dropLines(func(l model.CartLine) bool { return l.UserID == id })
	return nil
}

// ----- games -----

func (f fakeGames) Create(_ context.Context, g *model.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = f.id("game")
	stored := *g
	f.games[g.ID] = &stored
	return nil
}

func (f fakeGames) GetByID(_ context.Context, id string) (*model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gameGets++
	g, ok := f.games[id]
	if !ok {
		return nil, apperror.NotFound("game", id)
	}
	out := *g
	return &out, nil
}

func (f fakeGames) List(_ context.Context, _ repository.ListOptions) ([]model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Game, 0, len(f.games))
	for _, g := range f.games {
		out = append(out, *g)
	}
	return out, nil
}

func (f fakeGames) Update(_ context.Context, g *model.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.games[g.ID]; !ok {
		return apperror.NotFound("game", g.ID)
	}
	stored := *g
	f.games[g.ID] = &stored
	return nil
}

func (f fakeGames) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.games[id]; !ok {
		return apperror.NotFound("game", id)
	}
	delete(f.games, id)
	f.dropLines(func(l model.CartLine) bool { return l.GameID == id })
	return nil
}

// ----- carts -----

func (f fakeCarts) withGame(l model.CartLine) model.CartLine {
	if g, ok := f.games[l.GameID]; ok {
		gc := *g
		l.Game = &gc
	}
	return l
}

func (f fakeCarts) Lines(_ context.Context, userID string) ([]model.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	out := []model.CartLine{}
	for _, l := range f.lines {
		if l.UserID == userID {
			out = append(out, f.withGame(l))
		}
	}
	return out, nil
}

func (f fakeCarts) Line(_ context.Context, userID, gameID string) (*model.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.UserID == userID && l.GameID == gameID {
			out := f.withGame(l)
			return &out, nil
		}
	}
	return nil, apperror.NotFound("cart item", gameID)
}

func (f fakeCarts) AddLine(_ context.Context, line *model.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, l := range f.lines {
		if l.UserID == line.UserID && l.GameID == line.GameID {
			return apperror.Conflict("game is already in the cart")
		}
	}
	line.ID = f.id("line")
	line.Quantity = 1
	line.CreatedAt = time.Now()
	f.lines = append(f.lines, *line)
	return nil
}

func (f fakeCarts) RemoveLine(_ context.Context, userID, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.lines)
	f.dropLines(func(l model.CartLine) bool { return l.UserID == userID && l.GameID == gameID })
	if len(f.lines) == before {
		return apperror.NotFound("cart item", gameID)
	}
	return nil
}

func (f fakeCarts) Clear(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.lines)
	f.dropLines(func(l model.CartLine) bool { return l.UserID == userID })
	return int64(before - len(f.lines)), nil
}

// dropLines must be called with mu held.
func (f *fakeStore) dropLines(match func(model.CartLine) bool) {
	kept := f.lines[:0]
	for _, l := range f.lines {
		if !match(l) {
			kept = append(kept, l)
		}
	}
	f.lines = kept
}

// =========================================================================
// HELPERS
// =========================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPasswords() *auth.PasswordService {
	return auth.NewPasswordServiceForTest(bcrypt.MinCost)
}

func testTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("service-test-secret-32-characters", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return ts
}

// seedGame puts a game straight into the store, bypassing validation.
func (f *fakeStore) seedGame(title, price string) *model.Game {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &model.Game{
		ID:          f.id("game"),
		Title:       title,
		Description: "Seeded for a test.",
		Image:       "https://example.com/cover.png",
		Price:       decimal.RequireFromString(price),
		Rating:      4,
		ReleaseDate: "2020-01-01",
	}
	stored := *g
	f.games[g.ID] = &stored
	return g
}

// seedUser puts a user straight into the store.
func (f *fakeStore) seedUser(email string, role model.Role) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{ID: f.id("user"), Email: email, Role: role}
	stored := *u
	f.users[u.ID] = &stored
	return u
}

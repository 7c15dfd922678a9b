package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/cache"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/repository"
)

// CatalogCacheTTL bounds how stale a cached catalog read can be if an
// invalidation is ever lost.
const CatalogCacheTTL = 5 * time.Minute

const catalogListKey = "games:list"

func gameKey(id string) string { return "games:" + id }

// GameInput is the body of a create request.
type GameInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	ReleaseDate string          `json:"releaseDate"`
}

// gameRules carries the validation tags for a complete game. Creates and
// patched games are both checked against it.
type gameRules struct {
	Title       string          `json:"title" validate:"required,min=3,max=200"`
	Description string          `json:"description" validate:"required,min=10,max=5000"`
	Image       string          `json:"image" validate:"required,url"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	Rating      float64         `json:"rating" validate:"gte=0,lte=5"`
	ReleaseDate string          `json:"releaseDate" validate:"required,isodate"`
}

func validateGame(g *model.Game) error {
	return validateStruct(gameRules{
		Title:       g.Title,
		Description: g.Description,
		Image:       g.Image,
		Price:       g.Price,
		Rating:      g.Rating,
		ReleaseDate: g.ReleaseDate,
	})
}

// GameService is the catalog: public reads, admin-only writes.
//
// Reads are cache-aside. A write deletes the cached entry for the game and
// the cached first page of the listing, so the next read repopulates them.
// Authorization happens in the router; this layer trusts its caller.
type GameService struct {
	repo   repository.GameRepository
	cache  cache.Cache
	logger *slog.Logger
}

// NewGameService wires the catalog. Pass cache.Noop{} to disable caching.
func NewGameService(repo repository.GameRepository, c cache.Cache, logger *slog.Logger) *GameService {
	if c == nil {
		c = cache.Noop{}
	}
	return &GameService{repo: repo, cache: c, logger: logger}
}

// List returns a page of the catalog. Only the default page is cached.
func (s *GameService) List(ctx context.Context, opts repository.ListOptions) ([]model.Game, error) {
	cacheable := opts.Limit == 0 && opts.Offset == 0

	if cacheable {
		var games []model.Game
		if ok := s.cacheGet(ctx, catalogListKey, &games); ok {
			return games, nil
		}
	}

	games, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}

	if cacheable {
		s.cacheSet(ctx, catalogListKey, games)
	}
	return games, nil
}

// GetByID returns one game or apperror.ErrNotFound.
func (s *GameService) GetByID(ctx context.Context, id string) (*model.Game, error) {
	var cached model.Game
	if ok := s.cacheGet(ctx, gameKey(id), &cached); ok {
		return &cached, nil
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}

	s.cacheSet(ctx, gameKey(id), g)
	return g, nil
}

// Create validates and stores a new game.
func (s *GameService) Create(ctx context.Context, in GameInput) (*model.Game, error) {
	g := &model.Game{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Price:       in.Price,
		Rating:      in.Rating,
		ReleaseDate: strings.TrimSpace(in.ReleaseDate),
	}
	if err := validateGame(g); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("creating game: %w", err)
	}

	s.invalidate(ctx, g.ID)
	s.logger.Info("game created",
		slog.String("id", g.ID),
		slog.String("title", g.Title),
	)
	return g, nil
}

// Update applies a partial update. Only fields present in the patch change;
// the result must still be a valid game.
func (s *GameService) Update(ctx context.Context, id string, patch model.GamePatch) (*model.Game, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("body", "at least one field must be provided")
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}

	trimPatch(&patch)
	patch.Apply(g)
	if err := validateGame(g); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("updating game: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("game updated", slog.String("id", id))
	return g, nil
}

// Delete removes a game. Any cart lines holding it are removed with it.
func (s *GameService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting game: %w", err)
	}

	s.invalidate(ctx, id)
	s.logger.Info("game deleted", slog.String("id", id))
	return nil
}

func trimPatch(p *model.GamePatch) {
	for _, f := range []*string{p.Title, p.Description, p.Image, p.ReleaseDate} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// Cache failures are logged and otherwise ignored: the database is the
// source of truth.

func (s *GameService) cacheGet(ctx context.Context, key string, v any) bool {
	ok, err := cache.GetJSON(ctx, s.cache, key, v)
	if err != nil {
		s.logger.Warn("catalog cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return ok
}

func (s *GameService) cacheSet(ctx context.Context, key string, v any) {
	if err := cache.SetJSON(ctx, s.cache, key, v, CatalogCacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *GameService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, catalogListKey, gameKey(id)); err != nil {
		s.logger.Warn("catalog cache invalidation failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

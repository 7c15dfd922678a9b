package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/service"
)

// GameHandler serves the catalog.
//
// Reads are public. Writes are mounted behind the admin gate in the router,
// so by the time a write handler runs the caller is already known to be an
// admin and the handler only has to decode, call the service and encode.
type GameHandler struct {
	games  *service.GameService
	logger *slog.Logger
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService, logger *slog.Logger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// HandleList returns one page of the catalog, newest first.
//
// HTTP: GET /api/games?limit=20&offset=0
func (h *GameHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	games, err := h.games.List(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// An empty catalog is [] rather than null.
	if games == nil {
		games = []model.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// HandleGet returns one game.
//
// HTTP: GET /api/games/{id}
func (h *GameHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// HandleCreate adds a game to the catalog.
//
// HTTP: POST /api/games
// REQUEST BODY: {"title": "...", "description": "...", "image": "https://...",
// "price": "59.99", "rating": 4.5, "releaseDate": "2023-05-12"}
func (h *GameHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.GameInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	game, err := h.games.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, game)
}

// HandleUpdate applies a partial update. Only the fields present in the body
// change.
//
// HTTP: PATCH /api/games/{id}
func (h *GameHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.GamePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	game, err := h.games.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

// HandleDelete removes a game. Any cart lines holding it go with it.
//
// HTTP: DELETE /api/games/{id}
func (h *GameHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.games.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

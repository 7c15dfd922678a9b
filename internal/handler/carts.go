package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/green-gaming/internal/service"
)

// CartHandler serves /api/carts/{userId}. The router only lets the
// owner or an admin through, so handlers take {userId} at face value.
type CartHandler struct {
	carts  *service.CartService
	logger *slog.Logger
}

// NewCartHandler creates a CartHandler.
func NewCartHandler(carts *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type addItemRequest struct {
	GameID string `json:"gameId"`
}

// HandleGet returns the cart with its priced summary.
//
// HTTP: GET /api/carts/{userId}
func (h *CartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Get(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// HandleAdd puts one copy of a game in the cart. Adding a game that is
// already there is a 409.
//
// HTTP: POST /api/carts/{userId}
// REQUEST BODY: {"gameId": "..."}
func (h *CartHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), chi.URLParam(r, "userId"), req.GameID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, cart)
}

// HandleContains reports whether a game is in the cart. It never 404s for a
// game that simply isn't there; {"inCart": false} is the answer.
//
// HTTP: GET /api/carts/{userId}/items/{gameId}
func (h *CartHandler) HandleContains(w http.ResponseWriter, r *http.Request) {
	status, err := h.carts.Contains(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "gameId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleRemove takes a game out of the cart.
//
// HTTP: DELETE /api/carts/{userId}/items/{gameId}
func (h *CartHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveItem(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "gameId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// HandleClear empties the cart.
//
// HTTP: DELETE /api/carts/{userId}/clear
func (h *CartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.Clear(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

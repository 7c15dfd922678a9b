package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/auth"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/service"
)

// UserHandler handles registration and account management.
//
//   - HandleRegister → POST   /api/users          (public)
//   - HandleList     → GET    /api/users          (admin)
//   - HandleGet      → GET    /api/users/{id}     (owner or admin)
//   - HandleUpdate   → PATCH  /api/users/{id}     (owner or admin)
//   - HandleDelete   → DELETE /api/users/{id}     (admin)
type UserHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler. Registration goes through the auth
// service (it owns password hashing), everything else through users.
func NewUserHandler(authSvc *service.AuthService, users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{auth: authSvc, users: users, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a USER account. It does not sign the new user in;
// the client follows up with POST /api/auth/login.
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// HandleList returns one page of accounts, honouring ?limit= and ?offset=.
//
// HTTP: GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	opts, err := listOptions(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List(r.Context(), caller, opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleGet returns one account. Password hashes never leave the server:
// model.User tags the field json:"-".
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdate changes email, password or (admins only) role.
// REQUEST BODY: any subset of {"email": "...", "password": "...", "role": "ADMIN"}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var patch service.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Update(r.Context(), caller, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete removes an account and, through the foreign key, its cart.
//
// HTTP: DELETE /api/users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.users.Delete(r.Context(), caller, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// caller pulls the identity the gate attached. Missing means the route was
// mounted without a gate, which is a wiring bug, but it still fails closed.
func (h *UserHandler) caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("authentication required"))
	}
	return id, ok
}

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// Access is the protection level a route declares.
type Access int

const (
	// Public routes are open to everyone. A valid token still attaches an
	// identity so handlers can personalise the response.
	Public Access = iota
	// Authenticated routes need any valid token.
	Authenticated
	// Admin routes need a valid token whose role is ADMIN.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// contextKey is package-private so no other package can read or shadow the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// Decision is the outcome of a gate check. When Allowed is false, Status is
// 401 or 403 and Reason is safe to show the caller.
type Decision struct {
	Allowed  bool
	Status   int
	Reason   string
	Identity *Identity
}

func allow(id *Identity) Decision {
	return Decision{Allowed: true, Status: http.StatusOK, Identity: id}
}

func deny(status int, reason string, id *Identity) Decision {
	return Decision{Status: status, Reason: reason, Identity: id}
}

// Accounts is the slice of the user store the gate needs.
// repository.UserRepository satisfies it.
type Accounts interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Gate decides whether a request may reach a route. It only reads the
// request; it never issues, refreshes or clears tokens.
type Gate struct {
	tokens   *TokenService
	accounts Accounts // nil: trust the role in the token
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithAccounts makes the gate check every token against the stored account.
//
// WHY?
// A token is a snapshot: it says what the role was at sign-in. Without this
// an admin who is demoted (or deleted) keeps admin access until the token
// expires. With it, the stored role wins and a deleted account's token stops
// working at once. The cost is one primary-key lookup per gated request.
func WithAccounts(a Accounts) GateOption {
	return func(g *Gate) { g.accounts = a }
}

// NewGate creates a Gate that validates tokens with the given TokenService.
func NewGate(tokens *TokenService, opts ...GateOption) *Gate {
	g := &Gate{tokens: tokens}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Identify returns the identity proven by the request's token, if any.
//
// TOKEN LOOKUP ORDER:
//  1. Authorization: Bearer <jwt>  (API clients, the CLI)
//  2. Cookie: token=<jwt>          (browsers, set on login)
//
// A present but invalid token counts as no token, and so does a token whose
// account no longer exists. The error is only for a store that could not be
// asked.
func (g *Gate) Identify(r *http.Request) (*Identity, error) {
	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, nil
	}
	id, err := g.tokens.Validate(raw)
	if err != nil {
		return nil, nil
	}
	if g.accounts == nil {
		return &id, nil
	}

	user, err := g.accounts.GetByID(r.Context(), id.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id.Role = user.Role
	return &id, nil
}

// Check applies the access rules:
//
//	public         → allow
//	authenticated  → allow with a valid token, else 401
//	admin          → 401 without a valid token, 403 unless role is ADMIN
//
// When the account store cannot be reached, protected routes get a 500 and
// public routes continue anonymously.
func (g *Gate) Check(r *http.Request, access Access) Decision {
	id, err := g.Identify(r)
	ok := id != nil

	if err != nil && access != Public {
		return deny(http.StatusInternalServerError, "could not verify account", nil)
	}

	switch access {
	case Public:
		return allow(id)
	case Authenticated:
		if !ok {
			return deny(http.StatusUnauthorized, "authentication required", nil)
		}
		return allow(id)
	case Admin:
		if !ok {
			return deny(http.StatusUnauthorized, "authentication required", nil)
		}
		if !id.IsAdmin() {
			return deny(http.StatusForbidden, "admin access required", id)
		}
		return allow(id)
	default:
		return deny(http.StatusForbidden, "unknown access level", id)
	}
}

// Require returns a middleware enforcing the given access level. Allowed
// requests continue with the identity (when there is one) in their context.
//
// Usage with chi:
//
//	r.With(gate.Require(auth.Admin)).Post("/api/games", games.Create)
func (g *Gate) Require(access Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r, access)
			if !d.Allowed {
				writeDenied(w, d)
				return
			}
			if d.Identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), *d.Identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOrAdmin guards user-scoped routes such as /api/carts/{userId}.
// The request passes when the token subject equals the named URL parameter,
// or when the token belongs to an admin. No token is 401; someone else's
// resource is 403.
func (g *Gate) RequireOwnerOrAdmin(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r, Authenticated)
			if !d.Allowed {
				writeDenied(w, d)
				return
			}

			owner := chi.URLParam(r, param)
			if !d.Identity.IsAdmin() && d.Identity.UserID != owner {
				writeDenied(w, deny(http.StatusForbidden, "you can only access your own resources", d.Identity))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *d.Identity)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by the gate.
// ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// TokenFromRequest extracts the raw token string, or "" when none is sent.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// writeDenied writes the same error envelope the handlers use. It lives here
// because handler imports auth, not the other way round.
func writeDenied(w http.ResponseWriter, d Decision) {
	kind := "forbidden"
	switch d.Status {
	case http.StatusUnauthorized:
		kind = "unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="green-gaming"`)
	case http.StatusInternalServerError:
		kind = "internal_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": d.Reason,
	})
}

// Package client is a Go client for the Green Gaming JSON API.
//
// It sends the session token as "Authorization: Bearer", which the server
// accepts alongside the browser cookie. Error responses come back as
// *APIError, which unwraps to the matching apperror sentinel, so callers
// can write errors.Is(err, apperror.ErrConflict) on either side of the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
)

// Client talks to one server. Safe for concurrent use once configured;
// SetToken is not synchronised with in-flight requests.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client in New.
type Option func(*Client)

// WithHTTPClient replaces the default client (15s timeout). Tests pass
// httptest.Server.Client(); production callers can set transport limits.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client signed in, e.g. with a token saved by an
// earlier run of the CLI.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token in use, "" when signed out.
func (c *Client) Token() string { return c.token }

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) { c.token = token }

// APIError is a non-2xx response.
type APIError struct {
	Status  int                   `json:"-"`
	Kind    string                `json:"error"`
	Message string                `json:"message"`
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// Error reads like "api: 409 game is already in the cart".
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Unwrap maps the status back to the sentinel the server started from.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return apperror.ErrValidation
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusConflict:
		return apperror.ErrConflict
	}
	return nil
}

// do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		// Best effort: a proxy in the way may not answer in JSON.
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s: %w", method, path, err)
	}
	return nil
}

// ===== AUTH =====

// LoginResult is the body of a successful sign-in.
type LoginResult struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login signs in and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", credentials{email, password}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// Logout tells the server and forgets the token. The token is dropped even
// if the server call fails, since the server holds no session to end.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.token = ""
	return err
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, email, password string) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPost, "/api/users", credentials{email, password}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ===== CATALOG =====

// GameInput is the create body. It mirrors model.Game without the
// server-assigned fields, which the server would reject.
type GameInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Rating      float64         `json:"rating"`
	ReleaseDate string          `json:"releaseDate"`
}

// Games lists one page of the catalog. Zero limit means the server default.
func (c *Client) Games(ctx context.Context, limit, offset int) ([]model.Game, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/games"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var games []model.Game
	if err := c.do(ctx, http.MethodGet, path, nil, &games); err != nil {
		return nil, err
	}
	return games, nil
}

// Game fetches one game. An unknown id is an error that matches
// apperror.ErrNotFound.
func (c *Client) Game(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, http.MethodGet, "/api/games/"+url.PathEscape(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGame adds a game to the catalog and returns it with its new ID.
// Admin only: a shopper's token gets ErrForbidden.
//
// Validation failures come back as an *APIError whose Fields lists every
// rejected field:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) {
//	    for _, f := range apiErr.Fields { ... }
//	}
func (c *Client) CreateGame(ctx context.Context, in GameInput) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, http.MethodPost, "/api/games", in, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGame sends a partial update: nil fields in patch are left alone on
// the server. Admin only.
func (c *Client) UpdateGame(ctx context.Context, id string, patch model.GamePatch) (*model.Game, error) {
	var g model.Game
	if err := c.do(ctx, http.MethodPatch, "/api/games/"+url.PathEscape(id), patch, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGame removes a game. The server also drops it from every cart.
// Admin only.
func (c *Client) DeleteGame(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/games/"+url.PathEscape(id), nil, nil)
}

// ===== CART =====

func cartPath(userID string) string {
	return "/api/carts/" + url.PathEscape(userID)
}

// Cart returns the user's server-side cart with its lines and totals.
//
// ACCESS:
// the token must belong to userID or to an admin. Anyone else gets
// ErrForbidden, and a missing token ErrUnauthorized.
func (c *Client) Cart(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	if err := c.do(ctx, http.MethodGet, cartPath(userID), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart puts one copy of a game in the cart and returns the new cart.
// A game that is already there is ErrConflict and the cart is unchanged.
func (c *Client) AddToCart(ctx context.Context, userID, gameID string) (*model.Cart, error) {
	var cart model.Cart
	body := map[string]string{"gameId": gameID}
	if err := c.do(ctx, http.MethodPost, cartPath(userID), body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// InCart reports whether gameID is in the user's cart.
func (c *Client) InCart(ctx context.Context, userID, gameID string) (bool, error) {
	var status struct {
		InCart bool `json:"inCart"`
	}
	path := cartPath(userID) + "/items/" + url.PathEscape(gameID)
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return false, err
	}
	return status.InCart, nil
}

// RemoveFromCart takes a game out of the cart. A game that is not there is
// ErrNotFound.
func (c *Client) RemoveFromCart(ctx context.Context, userID, gameID string) (*model.Cart, error) {
	var cart model.Cart
	path := cartPath(userID) + "/items/" + url.PathEscape(gameID)
	if err := c.do(ctx, http.MethodDelete, path, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (c *Client) ClearCart(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	if err := c.do(ctx, http.MethodDelete, cartPath(userID)+"/clear", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

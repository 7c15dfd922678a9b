// Package cart is the client-side cart: one Session that holds the cart a
// shopper sees and keeps it in step with wherever the cart really lives.
//
// A Session is in one of two modes:
//
//	Guest          items live in a GuestStore on this machine; nothing is sent
//	Authenticated  items live on the server; every change goes there first
//
// SignIn and SignOut move between them. Signing in does not merge the guest
// cart into the account: the guest items stay in the GuestStore and come
// back on SignOut.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sakif/green-gaming/internal/apperror"
	"github.com/sakif/green-gaming/internal/model"
	"github.com/sakif/green-gaming/internal/pricing"
)

// Sentinels returned by Add and Remove in both modes, so callers need not
// care whether a duplicate was caught locally or by the server's 409.
var (
	ErrAlreadyInCart = errors.New("cart: game is already in the cart")
	ErrNotInCart     = errors.New("cart: game is not in the cart")
)

// Mode says where the cart currently lives.
type Mode int

const (
	// Guest keeps the cart on this machine only.
	Guest Mode = iota
	// Authenticated mirrors the signed-in account's server cart.
	Authenticated
)

// String is used in CLI output.
func (m Mode) String() string {
	if m == Authenticated {
		return "authenticated"
	}
	return "guest"
}

// Remote is the server side of an authenticated cart. *client.Client
// satisfies it.
type Remote interface {
	Cart(ctx context.Context, userID string) (*model.Cart, error)
	AddToCart(ctx context.Context, userID, gameID string) (*model.Cart, error)
	RemoveFromCart(ctx context.Context, userID, gameID string) (*model.Cart, error)
	ClearCart(ctx context.Context, userID string) (*model.Cart, error)
}

// Session is safe for concurrent use. Mutations are serialised, so a remote
// call and the local update that follows it happen as one step.
type Session struct {
	mu     sync.Mutex
	mode   Mode
	userID string
	items  []Item

	remote Remote
	guest  GuestStore
}

// NewSession starts in guest mode with whatever the store holds.
func NewSession(remote Remote, guest GuestStore) (*Session, error) {
	items, err := guest.Load()
	if err != nil {
		return nil, err
	}
	return &Session{mode: Guest, items: items, remote: remote, guest: guest}, nil
}

// Mode reports where the cart currently lives. It changes only through
// SignIn and SignOut.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// UserID is "" in guest mode.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Items returns a copy of the cart, oldest first.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

// Count is the number of distinct games, which is also the number of
// copies: a game is in the cart at most once.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Contains answers from the local copy without a round trip. In
// authenticated mode it can lag behind changes made from another device
// until the next Refresh or mutation.
func (s *Session) Contains(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(gameID) >= 0
}

// Summary prices the cart as it stands.
func (s *Session) Summary() model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	priced := make([]pricing.Item, len(s.items))
	for i, it := range s.items {
		priced[i] = pricing.Item{UnitPrice: it.Game.Price, Quantity: it.Quantity}
	}
	return pricing.Summarize(priced)
}

// Add puts one copy of game in the cart.
//
// ORDER OF WRITES:
//   - guest: save the new list to the store, then swap it in
//   - authenticated: call the server, then replace the items with the
//     cart it returns
//
// Either way a failure leaves the Session exactly as it was, so what the
// shopper sees never runs ahead of where the cart is kept.
func (s *Session) Add(ctx context.Context, game model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(game.ID) >= 0 {
		return ErrAlreadyInCart
	}

	if s.mode == Guest {
		next := append(append([]Item(nil), s.items...), Item{Game: game, Quantity: 1})
		return s.saveGuest(next)
	}

	cart, err := s.remote.AddToCart(ctx, s.userID, game.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Added from somewhere else since the last refresh.
			return ErrAlreadyInCart
		}
		return fmt.Errorf("cart: adding %s: %w", game.ID, err)
	}
	s.items = fromCart(cart)
	return nil
}

// Remove takes a game out of the cart.
func (s *Session) Remove(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(gameID)
	if idx < 0 {
		return ErrNotInCart
	}

	if s.mode == Guest {
		next := make([]Item, 0, len(s.items)-1)
		next = append(next, s.items[:idx]...)
		next = append(next, s.items[idx+1:]...)
		return s.saveGuest(next)
	}

	cart, err := s.remote.RemoveFromCart(ctx, s.userID, gameID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrNotInCart
		}
		return fmt.Errorf("cart: removing %s: %w", gameID, err)
	}
	s.items = fromCart(cart)
	return nil
}

// Clear empties the cart. Clearing an empty cart is not an error.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == Guest {
		return s.saveGuest(nil)
	}

	cart, err := s.remote.ClearCart(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("cart: clearing: %w", err)
	}
	s.items = fromCart(cart)
	return nil
}

// SignIn switches to the account's server-side cart. If the fetch fails the
// session stays exactly as it was.
func (s *Session) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("cart: sign in needs a user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.remote.Cart(ctx, userID)
	if err != nil {
		return fmt.Errorf("cart: loading cart for %s: %w", userID, err)
	}

	s.mode = Authenticated
	s.userID = userID
	s.items = fromCart(cart)
	return nil
}

// SignOut returns to guest mode and reloads the guest cart.
func (s *Session) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.guest.Load()
	if err != nil {
		return err
	}
	s.mode = Guest
	s.userID = ""
	s.items = items
	return nil
}

// Refresh re-reads the server cart. In guest mode it re-reads the store.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == Guest {
		items, err := s.guest.Load()
		if err != nil {
			return err
		}
		s.items = items
		return nil
	}

	cart, err := s.remote.Cart(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("cart: refreshing: %w", err)
	}
	s.items = fromCart(cart)
	return nil
}

// saveGuest persists next and only then makes it the current cart.
// Callers hold mu.
func (s *Session) saveGuest(next []Item) error {
	if err := s.guest.Save(next); err != nil {
		return err
	}
	s.items = next
	return nil
}

// indexOf: callers hold mu.
func (s *Session) indexOf(gameID string) int {
	for i, it := range s.items {
		if it.Game.ID == gameID {
			return i
		}
	}
	return -1
}

func fromCart(c *model.Cart) []Item {
	if c == nil {
		return nil
	}
	items := make([]Item, 0, len(c.Lines))
	for _, line := range c.Lines {
		it := Item{Quantity: line.Quantity}
		if line.Game != nil {
			it.Game = *line.Game
		} else {
			it.Game = model.Game{ID: line.GameID}
		}
		items = append(items, it)
	}
	return items
}

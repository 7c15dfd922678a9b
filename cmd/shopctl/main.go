// Command shopctl is a terminal shopper for a Green Gaming server.
//
//	shopctl games
//	shopctl add GAME_ID          # works signed out: the cart is kept locally
//	shopctl login EMAIL PASSWORD # switches to the account's cart
//	shopctl cart
//	shopctl logout               # the local guest cart comes back
//
// State (the guest cart and the session token) lives in --state,
// ~/.shopctl by default.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/sakif/green-gaming/internal/cart"
	"github.com/sakif/green-gaming/internal/client"
)

const usage = `usage: shopctl [flags] <command> [args]

commands:
  games                    list the catalog
  register EMAIL PASSWORD  create an account
  login EMAIL PASSWORD     sign in; the cart becomes the account's cart
  logout                   sign out; the local guest cart is restored
  cart                     show the cart with totals
  add GAME_ID              add a game to the cart
  remove GAME_ID           remove a game from the cart
  clear                    empty the cart

flags:
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "shopctl:", err)
		os.Exit(1)
	}
}

// sessionFile is what survives between invocations once signed in.
type sessionFile struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type app struct {
	out      io.Writer
	stateDir string
	api      *client.Client
	session  *cart.Session
	signedIn sessionFile
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("shopctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	home, _ := os.UserHomeDir()
	server := fs.String("server", envOr("SHOPCTL_SERVER", "http://localhost:8080"), "API base URL")
	stateDir := fs.String("state", filepath.Join(home, ".shopctl"), "directory for the guest cart and session")
	timeout := fs.Duration("timeout", 15*time.Second, "per-command timeout")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd, rest := fs.Arg(0), fs.Args()[1:]

	a, err := newApp(ctx, *server, *stateDir, stdout, restoresSession(cmd))
	if err != nil {
		return err
	}

	switch cmd {
	case "games":
		return a.games(ctx)
	case "register":
		if len(rest) != 2 {
			return errors.New("usage: register EMAIL PASSWORD")
		}
		return a.register(ctx, rest[0], rest[1])
	case "login":
		if len(rest) != 2 {
			return errors.New("usage: login EMAIL PASSWORD")
		}
		return a.login(ctx, rest[0], rest[1])
	case "logout":
		return a.logout(ctx)
	case "cart":
		return a.show()
	case "add":
		if len(rest) != 1 {
			return errors.New("usage: add GAME_ID")
		}
		return a.add(ctx, rest[0])
	case "remove":
		if len(rest) != 1 {
			return errors.New("usage: remove GAME_ID")
		}
		return a.remove(ctx, rest[0])
	case "clear":
		return a.clear(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// restoresSession reports whether cmd works on the signed-in cart. login and
// logout replace the saved session, so they must run even when it is stale.
func restoresSession(cmd string) bool {
	switch cmd {
	case "login", "logout", "register", "games":
		return false
	}
	return true
}

// newApp loads local state. With restore set, a saved session is switched
// back in; a session the server no longer accepts is dropped and reported.
func newApp(ctx context.Context, server, stateDir string, out io.Writer, restore bool) (*app, error) {
	a := &app{out: out, stateDir: stateDir, api: client.New(server)}

	if err := a.loadSession(); err != nil {
		return nil, err
	}

	session, err := cart.NewSession(a.api, cart.NewFileStore(filepath.Join(stateDir, "cart.json")))
	if err != nil {
		return nil, err
	}
	a.session = session

	if a.signedIn.Token == "" {
		return a, nil
	}
	a.api.SetToken(a.signedIn.Token)
	if !restore {
		return a, nil
	}

	if err := session.SignIn(ctx, a.signedIn.UserID); err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			email := a.signedIn.Email
			if rmErr := a.dropSession(); rmErr != nil {
				return nil, rmErr
			}
			return nil, fmt.Errorf("session for %s has expired and was removed; run shopctl login again", email)
		}
		return nil, fmt.Errorf("restoring session for %s: %w", a.signedIn.Email, err)
	}
	return a, nil
}

func (a *app) games(ctx context.Context) error {
	games, err := a.api.Games(ctx, 0, 0)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tRATING\tRELEASED")
	for _, g := range games {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n", g.ID, g.Title, g.Price.StringFixed(2), g.Rating, g.ReleaseDate)
	}
	return tw.Flush()
}

func (a *app) register(ctx context.Context, email, password string) error {
	u, err := a.api.Register(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s (%s); now run: shopctl login %s PASSWORD\n", u.Email, u.ID, u.Email)
	return nil
}

func (a *app) login(ctx context.Context, email, password string) error {
	res, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.session.SignIn(ctx, res.User.ID); err != nil {
		return err
	}

	a.signedIn = sessionFile{Token: res.Token, UserID: res.User.ID, Email: res.User.Email}
	if err := a.saveSession(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "signed in as %s; cart has %d item(s)\n", res.User.Email, a.session.Count())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if a.signedIn.Token != "" {
		// The token is stateless; the local copy is what matters.
		_ = a.api.Logout(ctx)
	}
	if err := a.dropSession(); err != nil {
		return err
	}
	if err := a.session.SignOut(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed out; guest cart has %d item(s)\n", a.session.Count())
	return nil
}

func (a *app) show() error {
	items := a.session.Items()
	who := "guest"
	if a.session.Mode() == cart.Authenticated {
		who = a.signedIn.Email
	}

	if len(items) == 0 {
		fmt.Fprintf(a.out, "cart (%s) is empty\n", who)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cart (%s)\n", who)
	for _, it := range items {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", it.Game.ID, it.Game.Title, it.Game.Price.StringFixed(2))
	}
	sum := a.session.Summary()
	fmt.Fprintf(tw, "\tsubtotal\t%s\n", sum.Subtotal.StringFixed(2))
	fmt.Fprintf(tw, "\ttax\t%s\n", sum.Tax.StringFixed(2))
	fmt.Fprintf(tw, "\ttotal\t%s\n", sum.Total.StringFixed(2))
	return tw.Flush()
}

func (a *app) add(ctx context.Context, gameID string) error {
	g, err := a.api.Game(ctx, gameID)
	if err != nil {
		return err
	}
	if err := a.session.Add(ctx, *g); err != nil {
		if errors.Is(err, cart.ErrAlreadyInCart) {
			fmt.Fprintf(a.out, "%s is already in your cart\n", g.Title)
			return nil
		}
		return err
	}
	fmt.Fprintf(a.out, "added %s to cart\n", g.Title)
	return nil
}

func (a *app) remove(ctx context.Context, gameID string) error {
	if err := a.session.Remove(ctx, gameID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "removed %s\n", gameID)
	return nil
}

func (a *app) clear(ctx context.Context) error {
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "cart cleared")
	return nil
}

func (a *app) sessionPath() string {
	return filepath.Join(a.stateDir, "session.json")
}

func (a *app) loadSession() error {
	data, err := os.ReadFile(a.sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &a.signedIn); err != nil {
		return fmt.Errorf("reading %s: %w", a.sessionPath(), err)
	}
	return nil
}

// dropSession forgets the signed-in account locally.
func (a *app) dropSession() error {
	a.signedIn = sessionFile{}
	a.api.SetToken("")
	if err := os.Remove(a.sessionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *app) saveSession() error {
	if err := os.MkdirAll(a.stateDir, 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(a.signedIn)
	if err != nil {
		return err
	}
	// The token is a credential.
	return os.WriteFile(a.sessionPath(), data, 0o600)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

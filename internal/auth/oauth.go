package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIBase = "https://api.github.com"

// GitHubUser is the slice of GitHub's /user response used to link accounts.
// GitHub returns dozens of fields; only these are decoded.
//
// API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID    int64  `json:"id"` // stable numeric id, the link key
	Login string `json:"login"`
	Email string `json:"email"` // empty when hidden in GitHub settings
}

// GitHubConfig holds the OAuth app credentials. The provider is only built
// when ClientID and ClientSecret are both set.
//
// Register an OAuth App at https://github.com/settings/developers to get
// them. CallbackURL must match the app's "Authorization callback URL"
// exactly, e.g. "http://localhost:8080/auth/github/callback".
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Enabled reports whether GitHub sign-in is configured.
func (c GitHubConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// GitHubProvider wraps golang.org/x/oauth2 for the authorization code flow:
//
//  1. AuthURL sends the browser to GitHub with a CSRF state value
//  2. GitHub redirects back with a short-lived code
//  3. Exchange trades the code for an access token server-to-server and
//     reads the profile from the /user API
//
// SERVER-SIDE EXCHANGE:
// Step 3 uses the ClientSecret, so it can only happen here. The GitHub
// access token never reaches the browser; only our own JWT does, and that
// JWT is the same kind password sign-in issues.
type GitHubProvider struct {
	config  *oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a provider for github.com.
//
// Scopes requested:
//   - "read:user": the public profile (id, login)
//   - "user:email": the email address, used to link an existing account
func NewGitHubProvider(cfg GitHubConfig) *GitHubProvider {
	return newGitHubProvider(cfg, github.Endpoint, githubAPIBase)
}

// newGitHubProvider lets tests point both the token endpoint and the API at
// an httptest server.
func newGitHubProvider(cfg GitHubConfig, endpoint oauth2.Endpoint, apiBase string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     endpoint,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
	}
}

// AuthURL returns the GitHub authorization URL carrying state.
//
// STATE PARAMETER:
// The handler stores a random state in a short-lived cookie before
// redirecting and compares it on the callback. A mismatch means the callback
// was not started by this browser (login CSRF: an attacker signing the
// victim into the attacker's account), and the callback is refused.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the GitHub profile.
//
// Steps:
//  1. trade the code for an access token (a POST to GitHub signed with the
//     ClientSecret)
//  2. call GET /user with that token
//  3. decode the profile and reject an ID of zero
//
// AuthService.LoginOrRegisterGitHub turns the profile into a local account.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to each call.
	client := p.config.Client(ctx, tok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var u GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &u, nil
}

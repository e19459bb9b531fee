package spotify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
)

// tokenFilePermission keeps the refresh token private to the user.
const tokenFilePermission = 0o600

// Scopes are the grants the poller needs.
var Scopes = []string{
	spotifyauth.ScopeUserReadPlaybackState,
	spotifyauth.ScopeUserModifyPlaybackState,
	spotifyauth.ScopeUserReadCurrentlyPlaying,
	spotifyauth.ScopePlaylistReadPrivate,
}

// oauthFlow is the subset of spotifyauth.Authenticator the authorizer uses.
type oauthFlow interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
	Client(ctx context.Context, token *oauth2.Token) *http.Client
}

type tokenData struct {
	Token *oauth2.Token `json:"token"`
}

// AuthConfig configures the Authorizer.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
	// Prompt supplies authorization codes for the interactive flow. Nil
	// disables it, so only saved or refreshed tokens are used.
	Prompt io.Reader
	// Out receives the authorization URL.
	Out io.Writer
	// ClientOptions are passed to every spotify.Client built.
	ClientOptions []spotify.ClientOption
}

// Authorizer owns the user's token and hands out playback clients.
type Authorizer struct {
	cfg    AuthConfig
	flow   oauthFlow
	logger *zap.Logger
	prompt *bufio.Reader

	mu     sync.RWMutex
	token  *oauth2.Token
	client *Client
}

var _ ports.Authorizer = (*Authorizer)(nil)

func NewAuthorizer(cfg AuthConfig, logger *zap.Logger) *Authorizer {
	flow := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
	)
	return newAuthorizer(cfg, flow, logger)
}

func newAuthorizer(cfg AuthConfig, flow oauthFlow, logger *zap.Logger) *Authorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	a := &Authorizer{cfg: cfg, flow: flow, logger: logger}
	if cfg.Prompt != nil {
		a.prompt = bufio.NewReader(cfg.Prompt)
	}
	return a
}

// Connect loads the saved token, falling back to the interactive flow.
func (a *Authorizer) Connect(ctx context.Context) error {
	token, err := a.loadToken()
	if err == nil {
		a.setToken(ctx, token)
		a.logger.Info("loaded saved spotify token", zap.String("path", a.cfg.TokenPath))
		return nil
	}
	a.logger.Info("no saved spotify token, starting oauth flow", zap.Error(err))
	return a.interactive(ctx)
}

func (a *Authorizer) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil
}

// Client returns the current client handle, or nil before Connect.
func (a *Authorizer) Client() ports.PlaybackClient {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.client == nil {
		return nil
	}
	return a.client
}

// Reauthorize refreshes the token, then falls back to the interactive flow.
func (a *Authorizer) Reauthorize(ctx context.Context) error {
	a.mu.RLock()
	current := a.token
	a.mu.RUnlock()

	if current != nil && current.RefreshToken != "" {
		// Force a refresh even if the access token has not expired locally.
		stale := *current
		stale.AccessToken = ""
		refreshed, err := a.flow.RefreshToken(ctx, &stale)
		if err == nil {
			if refreshed.RefreshToken == "" {
				refreshed.RefreshToken = current.RefreshToken
			}
			a.setToken(ctx, refreshed)
			a.persist(refreshed)
			a.logger.Info("spotify token refreshed")
			return nil
		}
		a.logger.Warn("spotify token refresh failed", zap.Error(err))
	}

	if a.prompt == nil {
		return fmt.Errorf("spotify adapter: reauthorization needs user interaction: %w", domain.ErrUnauthorized)
	}
	return a.interactive(ctx)
}

func (a *Authorizer) interactive(ctx context.Context) error {
	if a.prompt == nil {
		return fmt.Errorf("spotify adapter: no saved token and no prompt: %w", domain.ErrUnauthorized)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	authURL := a.flow.AuthURL(state, oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(a.cfg.Out, "Please visit the following URL to authorize soundstage:\n%s\n", authURL)
	fmt.Fprint(a.cfg.Out, "Enter the authorization code: ")

	code, err := a.prompt.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && code != "") {
		return fmt.Errorf("spotify adapter: failed to read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("spotify adapter: empty authorization code: %w", domain.ErrUnauthorized)
	}

	token, err := a.flow.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("spotify adapter: failed to exchange code for token: %w: %w", domain.ErrUnauthorized, err)
	}

	a.setToken(ctx, token)
	a.persist(token)
	a.logger.Info("spotify oauth flow completed")
	return nil
}

func (a *Authorizer) setToken(ctx context.Context, token *oauth2.Token) {
	// The HTTP client outlives the call that created it.
	httpClient := a.flow.Client(context.WithoutCancel(ctx), token)

	a.mu.Lock()
	a.token = token
	a.client = NewClient(httpClient, a.cfg.ClientOptions...)
	a.mu.Unlock()
}

func (a *Authorizer) persist(token *oauth2.Token) {
	if a.cfg.TokenPath == "" {
		return
	}
	if err := a.saveToken(token); err != nil {
		a.logger.Warn("failed to save spotify token", zap.Error(err))
	}
}

func (a *Authorizer) loadToken() (*oauth2.Token, error) {
	if a.cfg.TokenPath == "" {
		return nil, fmt.Errorf("spotify adapter: no token path configured")
	}

	data, err := os.ReadFile(a.cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("spotify adapter: corrupt token file: %w", err)
	}
	if td.Token == nil || (td.Token.AccessToken == "" && td.Token.RefreshToken == "") {
		return nil, fmt.Errorf("spotify adapter: token file holds no token")
	}
	return td.Token, nil
}

func (a *Authorizer) saveToken(token *oauth2.Token) error {
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.cfg.TokenPath, data, tokenFilePermission)
}

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/services"
)

// HTTPDoer describes the HTTP client used for platform calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenManager loads stored credentials and refreshes access tokens that are
// expired or inside the leeway window.
type TokenManager struct {
	store        CredentialStore
	client       HTTPDoer
	tokenURL     string
	clientID     string
	clientSecret string
	leeway       time.Duration
}

// TokenManagerOption customises TokenManager construction.
type TokenManagerOption func(*TokenManager)

// WithHTTPClient overrides the HTTP client used for token refreshes.
func WithHTTPClient(client HTTPDoer) TokenManagerOption {
	return func(m *TokenManager) {
		if client != nil {
			m.client = client
		}
	}
}

// WithTokenURL overrides the token exchange endpoint (used in tests).
func WithTokenURL(tokenURL string) TokenManagerOption {
	return func(m *TokenManager) {
		if strings.TrimSpace(tokenURL) != "" {
			m.tokenURL = tokenURL
		}
	}
}

// NewTokenManager builds a token manager from configuration.
func NewTokenManager(cfg config.YouTube, store CredentialStore, opts ...TokenManagerOption) (*TokenManager, error) {
	if store == nil {
		return nil, errors.New("credential store required")
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	mgr := &TokenManager{
		store:        store,
		client:       &http.Client{Timeout: timeout},
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		leeway:       time.Duration(cfg.RefreshLeewaySeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr, nil
}

// EnsureFresh returns a credential whose access token is valid past the
// leeway window, refreshing and persisting it first when necessary. A
// rejected refresh means the user must re-consent and is not retryable.
func (m *TokenManager) EnsureFresh(ctx context.Context, userID string) (Credential, error) {
	credential, err := m.store.Load(userID)
	if err != nil {
		if errors.Is(err, ErrCredentialMissing) {
			return Credential{}, services.Wrap(services.ErrAuthExpired, "publish", "authorize",
				fmt.Sprintf("no stored credential for user %s", userID), err)
		}
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "authorize", userID, err)
	}

	if !credential.ExpiresWithin(m.leeway) {
		return credential, nil
	}
	return m.refresh(ctx, credential)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

func (m *TokenManager) refresh(ctx context.Context, credential Credential) (Credential, error) {
	if strings.TrimSpace(credential.RefreshToken) == "" {
		return Credential{}, services.Wrap(services.ErrAuthExpired, "publish", "refresh",
			fmt.Sprintf("user %s has no refresh token", credential.UserID), nil)
	}

	form := url.Values{
		"client_id":     {m.clientID},
		"client_secret": {m.clientSecret},
		"refresh_token": {credential.RefreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh", m.tokenURL, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh", m.tokenURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh", "read response", err)
	}

	// The exchange rejecting the refresh token requires re-consent; other
	// failures are transient.
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Credential{}, services.Wrap(services.ErrAuthExpired, "publish", "refresh",
			fmt.Sprintf("token exchange rejected for user %s (status %d)", credential.UserID, resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh",
			fmt.Sprintf("token exchange returned status %d", resp.StatusCode), nil)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh", "decode response", err)
	}
	if parsed.AccessToken == "" {
		return Credential{}, services.Wrap(services.ErrAuthExpired, "publish", "refresh",
			fmt.Sprintf("token exchange returned no access token for user %s", credential.UserID), nil)
	}

	credential.AccessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		credential.RefreshToken = parsed.RefreshToken
	}
	expiresIn := parsed.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	credential.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)

	if err := m.store.Save(credential); err != nil {
		return Credential{}, services.Wrap(services.ErrTransient, "publish", "refresh", "persist credential", err)
	}
	return credential, nil
}

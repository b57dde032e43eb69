package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/discog/internal/shared"
	"golang.org/x/oauth2"
)

// TokenCache stores one user's OAuth token as JSON on disk.
type TokenCache struct {
	path string
}

// NewTokenCache returns the cache for username inside dir.
func NewTokenCache(dir, username string) *TokenCache {
	return &TokenCache{path: filepath.Join(dir, username+".json")}
}

// Path returns the file holding the token.
func (c *TokenCache) Path() string {
	return c.path
}

// Load reads the cached token. A missing file yields [shared.ErrNotAuthenticated].
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no cached token at %s, run `discog auth`", shared.ErrNotAuthenticated, c.path)
		}
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("%w: corrupt token cache %s: %v", shared.ErrNotAuthenticated, c.path, err)
	}
	return &token, nil
}

// Save writes token with owner-only permissions.
func (c *TokenCache) Save(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", shared.ErrInvalidArgument)
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

// refreshableTokenSource reports tokens to callback whenever the access token changes.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.callback(token)
	}
	return token, nil
}

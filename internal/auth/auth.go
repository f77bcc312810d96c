// Package auth maps API keys to HTTP API clients.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/claimlens/claimlens/internal/config"
)

// Client is a caller allowed to use the HTTP API.
type Client struct {
	ID string
}

// Auth holds mappings from API keys to clients. A nil or empty Auth means the
// API is open.
type Auth struct {
	apiKeyToClient map[string]Client
}

// NewFromConfig builds an Auth instance from the server config. Keys listed
// under api_keys_env are read from the environment; unset variables are skipped.
func NewFromConfig(cfg config.ServerConfig) (*Auth, error) {
	m := make(map[string]Client)

	for _, c := range cfg.Clients {
		if c.ID == "" {
			return nil, fmt.Errorf("client with empty id in config")
		}
		client := Client{ID: c.ID}

		keys := append([]string{}, c.APIKeys...)
		for _, env := range c.APIKeysEnv {
			keys = append(keys, os.Getenv(env))
		}
		for _, key := range keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if prev, exists := m[key]; exists && prev.ID != client.ID {
				return nil, fmt.Errorf("an api key is assigned to both %q and %q", prev.ID, client.ID)
			}
			m[key] = client
		}
	}

	return &Auth{
		apiKeyToClient: m,
	}, nil
}

// Enabled reports whether any key is configured.
func (a *Auth) Enabled() bool {
	return a != nil && len(a.apiKeyToClient) > 0
}

// Lookup returns the client for a given API key, if any.
func (a *Auth) Lookup(apiKey string) (Client, bool) {
	if a == nil {
		return Client{}, false
	}
	c, ok := a.apiKeyToClient[apiKey]
	return c, ok
}

// ParseBearerToken extracts the token from an "Authorization: Bearer <token>" value.
func ParseBearerToken(h string) (string, bool) {
	if h == "" {
		return "", false
	}
	parts := strings.Fields(h)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

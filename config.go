package instakit

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultAuthorizeURL = "https://api.instagram.com/oauth/authorize/"
	DefaultBaseURL      = "https://api.instagram.com/v1"
)

// Config is the static application configuration. It is read once at
// startup and never changes afterwards.
type Config struct {
	Credentials

	AuthorizeURL string `json:"authorize_url,omitempty" env:"INSTAKIT_AUTHORIZE_URL"`
	BaseURL      string `json:"base_url,omitempty" env:"INSTAKIT_BASE_URL"`

	// ClearCookies drops provider cookies before each login so a previous
	// browser session is not silently reused.
	ClearCookies bool `json:"clear_cookies,omitempty" env:"INSTAKIT_CLEAR_COOKIES"`

	// Store selects the token store: "file", "keychain" or "sqlite".
	Store     string `json:"store,omitempty" env:"INSTAKIT_STORE"`
	StorePath string `json:"store_path,omitempty" env:"INSTAKIT_STORE_PATH"`
}

// LoadConfig reads the bundled settings file at path, then applies
// environment overrides. A missing file is not an error; absent
// credentials only disable login.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AuthorizeURL == "" {
		c.AuthorizeURL = DefaultAuthorizeURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Store == "" {
		c.Store = "file"
	}
}

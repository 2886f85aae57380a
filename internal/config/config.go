package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.aisle/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	// Remote backend. Empty RemoteURL means the app runs local-only.
	RemoteURL   string `toml:"remote_url"`
	RemoteKey   string `toml:"remote_key"`
	RealtimeURL string `toml:"realtime_url"`

	// Active wedding and the local identity it is planned under. Used by
	// the reconciliation pull and the chat layer.
	WeddingID string `toml:"wedding_id"`
	UserID    string `toml:"user_id"`
	UserName  string `toml:"user_name"`

	// SyncTimeoutSeconds bounds every single remote call made by the
	// outbound queue and the puller. Zero means the default.
	SyncTimeoutSeconds int `toml:"sync_timeout_seconds"`

	// ChatWindow is the maximum number of remote messages fetched on load.
	ChatWindow int `toml:"chat_window"`
}

const (
	DefaultSyncTimeout = 15 * time.Second
	DefaultChatWindow  = 500
)

// SyncTimeout returns the configured per-call remote timeout.
func (c *Config) SyncTimeout() time.Duration {
	if c.SyncTimeoutSeconds <= 0 {
		return DefaultSyncTimeout
	}
	return time.Duration(c.SyncTimeoutSeconds) * time.Second
}

// ChatWindowSize returns the configured remote message window.
func (c *Config) ChatWindowSize() int {
	if c.ChatWindow <= 0 {
		return DefaultChatWindow
	}
	return c.ChatWindow
}

// RemoteConfigured reports whether a remote backend is set up. When false
// every remote path (queue drain, pull, realtime) is a no-op.
func (c *Config) RemoteConfigured() bool {
	return c.RemoteURL != ""
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

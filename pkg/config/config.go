// Package config provides client configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env
// files for local development and validates required settings on startup so
// misconfiguration fails before any network call.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//	client := backend.New(&cfg.Backend, sess)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all configuration sections for the client.
type Config struct {
	Backend BackendConfig
	Feed    FeedConfig
	Store   StoreConfig
}

// BackendConfig holds the REST API connection settings.
type BackendConfig struct {
	BaseURL  string
	ClientID string        // Public OAuth client id sent with the password grant
	Timeout  time.Duration // Per-request HTTP timeout
}

// FeedConfig holds the WebSocket live-message feed settings, including the
// properties reported in the identify payload.
type FeedConfig struct {
	URL    string
	Device string
	OS     string
}

// StoreConfig holds local persistence settings.
type StoreConfig struct {
	CredentialsPath string // JSON file holding email and tokens between runs
}

// Load reads and validates configuration from environment variables. A .env
// file is loaded first if present (ignored when missing).
//
// Required environment variables:
//   - TUTORLINK_CLIENT_ID: OAuth client id issued for this application
//
// Optional variables have defaults pointing at the production API.
func Load() (*Config, error) {
	_ = godotenv.Load()

	clientID, err := getEnvRequired("TUTORLINK_CLIENT_ID")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Backend: BackendConfig{
			BaseURL:  getEnv("TUTORLINK_API_URL", "https://api.tutorlink.app"),
			ClientID: clientID,
			Timeout:  getEnvAsDuration("TUTORLINK_HTTP_TIMEOUT", 15*time.Second),
		},
		Feed: FeedConfig{
			URL:    getEnv("TUTORLINK_WS_URL", "wss://api.tutorlink.app/ws"),
			Device: getEnv("TUTORLINK_DEVICE", defaultDevice()),
			OS:     getEnv("TUTORLINK_OS", runtime.GOOS+"/"+runtime.GOARCH),
		},
		Store: StoreConfig{
			CredentialsPath: getEnv("TUTORLINK_CREDENTIALS", defaultCredentialsPath()),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Validate checks that all required configuration is present and well formed.
// Called automatically by Load but usable independently in tests.
func (c *Config) Validate() error {
	if c.Backend.ClientID == "" {
		return fmt.Errorf("OAuth client id is required")
	}
	if _, err := url.ParseRequestURI(c.Backend.BaseURL); err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}

	feedURL, err := url.ParseRequestURI(c.Feed.URL)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}
	switch feedURL.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("WebSocket URL scheme must be ws or wss, got %q", feedURL.Scheme)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.Store.CredentialsPath == "" {
		return fmt.Errorf("credentials path is required")
	}
	return nil
}

// defaultDevice names this machine for the feed identify payload.
func defaultDevice() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "tutorlink-cli"
	}
	return hostname
}

// defaultCredentialsPath places the credential store under the OS user
// config directory, falling back to the working directory when none exists.
func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tutorlink-credentials.json"
	}
	return filepath.Join(dir, "tutorlink", "credentials.json")
}

// getEnv returns the value of an environment variable or a fallback.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// getEnvRequired returns the value of an environment variable or an error
// when it is missing or empty.
func getEnvRequired(key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsDuration returns an environment variable parsed as a duration, or
// the fallback when unset or unparseable.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

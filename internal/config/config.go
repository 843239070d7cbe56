// Package config loads and validates the server configuration from the
// environment. All settings are environment variables; there is no config file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Transport selects how the MCP server is served.
type Transport string

const (
	TransportHTTP  Transport = "http"
	TransportStdio Transport = "stdio"
	TransportSSE   Transport = "sse"
)

// AuthMode selects which credential resolver variant is active.
type AuthMode string

const (
	// AuthModeChain resolves credentials locally via the ordered fallback
	// chain (inline key, key file, cached/interactive OAuth, ADC).
	AuthModeChain AuthMode = "chain"
	// AuthModeDelegated trusts the OAuth provider in front of the transport
	// and takes the bearer token from each request.
	AuthModeDelegated AuthMode = "delegated"
)

// Config holds every runtime setting. Field values come from the environment
// variables named in the struct tags of Load.
type Config struct {
	Transport Transport
	Host      string
	Port      int
	LogLevel  slog.Level

	// Credential chain settings.
	CredentialsConfig  string // base64-encoded service account JSON
	ServiceAccountPath string
	CredentialsPath    string // OAuth client secrets file
	TokenPath          string // cached user token file

	// Delegated-auth (OAuth provider) settings.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthBaseURL      string

	// OAuthScopes are extra scopes requested alongside the Sheets and Drive
	// scopes when credentials are resolved locally.
	OAuthScopes []string

	DriveFolderID string
}

// Load reads configuration from the environment. It does not validate;
// call Validate before using the result.
func Load() *Config {
	return &Config{
		Transport: Transport(getEnv("MCP_TRANSPORT", string(TransportHTTP))),
		Host:      getEnv("MCP_HOST", "0.0.0.0"),
		Port:      getEnvInt("MCP_PORT", 8000),
		LogLevel:  parseLogLevel(getEnv("LOG_LEVEL", "info")),

		CredentialsConfig:  os.Getenv("CREDENTIALS_CONFIG"),
		ServiceAccountPath: os.Getenv("SERVICE_ACCOUNT_PATH"),
		CredentialsPath:    getEnv("CREDENTIALS_PATH", "credentials.json"),
		TokenPath:          getEnv("TOKEN_PATH", "token.json"),

		OAuthClientID:     os.Getenv("GOOGLE_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET"),
		OAuthBaseURL:      os.Getenv("OAUTH_BASE_URL"),
		OAuthScopes:       splitList(os.Getenv("OAUTH_SCOPES")),

		DriveFolderID: os.Getenv("DRIVE_FOLDER_ID"),
	}
}

// AuthMode reports which resolver variant the configuration selects.
// Any provider setting present switches the server to delegated auth.
func (c *Config) AuthMode() AuthMode {
	if c.OAuthClientID != "" || c.OAuthClientSecret != "" || c.OAuthBaseURL != "" {
		return AuthModeDelegated
	}
	return AuthModeChain
}

// Validate checks settings that must be correct before the server starts.
// Any error returned here is fatal: the process must not start.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("invalid MCP_TRANSPORT %q (must be http, stdio, or sse)", c.Transport)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid MCP_PORT %d", c.Port)
	}

	if c.AuthMode() == AuthModeDelegated {
		if c.OAuthClientID == "" || c.OAuthClientSecret == "" {
			return fmt.Errorf("delegated auth requires both GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET")
		}
		if c.OAuthBaseURL == "" {
			return fmt.Errorf("delegated auth requires OAUTH_BASE_URL")
		}
		if c.Transport == TransportStdio {
			return fmt.Errorf("delegated auth requires a network transport (http or sse), not stdio")
		}
	}

	return nil
}

// Addr returns the bind address for the network transports.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

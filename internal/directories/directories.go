// Package directories resolves the daemon's socket, config, and log
// locations using XDG base directories, the way rockerboo/mcp-lsp-bridge's
// directories package is invoked from its main.go, with the lookups
// themselves backed by github.com/adrg/xdg instead of hand-rolled $HOME
// joins.
package directories

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "yac-bridge"

// UserProvider abstracts the current user's identity, so tests can fake it.
type UserProvider interface {
	Username() (string, error)
}

// EnvProvider abstracts environment lookups, so tests can fake them.
type EnvProvider interface {
	Getenv(key string) string
}

// DefaultUserProvider reads the OS user database.
type DefaultUserProvider struct{}

func (DefaultUserProvider) Username() (string, error) {
	if u := os.Getenv("USER"); u != "" {
		return u, nil
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("unable to determine current user")
}

// DefaultEnvProvider reads real process environment variables.
type DefaultEnvProvider struct{}

func (DefaultEnvProvider) Getenv(key string) string { return os.Getenv(key) }

// Resolver resolves the daemon's well-known directories and files.
type Resolver struct {
	appName      string
	users        UserProvider
	env          EnvProvider
	allowFallback bool
}

// NewResolver constructs a Resolver. allowFallback permits falling back to
// /tmp-rooted paths when XDG_RUNTIME_DIR is unavailable (e.g. in minimal
// containers).
func NewResolver(appNameOverride string, users UserProvider, env EnvProvider, allowFallback bool) *Resolver {
	name := appNameOverride
	if name == "" {
		name = appName
	}
	return &Resolver{appName: name, users: users, env: env, allowFallback: allowFallback}
}

// GetConfigDirectory returns $XDG_CONFIG_HOME/yac-bridge, creating it if
// missing.
func (r *Resolver) GetConfigDirectory() (string, error) {
	dir := filepath.Join(xdg.ConfigHome, r.appName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetLogDirectory returns $XDG_STATE_HOME/yac-bridge/log, creating it if
// missing.
func (r *Resolver) GetLogDirectory() (string, error) {
	dir := filepath.Join(xdg.StateHome, r.appName, "log")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetSocketPath returns the Unix socket path the daemon listens on,
// following spec.md §6.1's fallback chain: $XDG_RUNTIME_DIR, then
// /tmp/yac-lsp-bridge-$USER.sock, then /tmp/yac-lsp-bridge.sock.
func (r *Resolver) GetSocketPath() string {
	if runtimeDir := r.env.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "yac-lsp-bridge.sock")
	}

	if !r.allowFallback {
		return filepath.Join(xdg.RuntimeDir, "yac-lsp-bridge.sock")
	}

	if user, err := r.users.Username(); err == nil && user != "" {
		return filepath.Join(os.TempDir(), fmt.Sprintf("yac-lsp-bridge-%s.sock", user))
	}

	return filepath.Join(os.TempDir(), "yac-lsp-bridge.sock")
}

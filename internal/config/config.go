// Package config loads the daemon's JSON configuration: per-language LSP
// server commands, extension/language mapping, workspace-root markers, and
// daemon tuning knobs. Loading follows a layered-fallback pattern (an
// explicit path, then yac_config.json in the working directory, then
// config.json in the config directory, then yac_config.example.json)
// and validates every candidate path with internal/security before
// opening it.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"rockerboo/yac-bridge/internal/security"
)

// LanguageServer names a configured LSP server (e.g. "gopls",
// "rust-analyzer").
type LanguageServer string

// Language names a source language (e.g. "go", "rust").
type Language string

// LanguageServerConfig describes how to spawn one LSP server.
type LanguageServerConfig struct {
	Command               string            `json:"command"`
	Args                  []string          `json:"args,omitempty"`
	InitializationOptions json.RawMessage   `json:"initialization_options,omitempty"`
	Env                   map[string]string `json:"env,omitempty"`
}

// Global holds daemon-wide tuning knobs.
type Global struct {
	LogPath            string `json:"log_file_path"`
	LogLevel           string `json:"log_level"`
	MaxLogFiles        int    `json:"max_log_files"`
	MaxRestartAttempts int    `json:"max_restart_attempts"`
	RestartDelayMs     int    `json:"restart_delay_ms"`
	IdleTimeoutSeconds int    `json:"idle_timeout_seconds"`
	PickerResultCap    int    `json:"picker_result_cap"`
	SocketPath         string `json:"socket_path"`
	IntrospectAddr     string `json:"introspect_addr"`
}

// Config is the full daemon configuration.
type Config struct {
	LanguageServers      map[LanguageServer]LanguageServerConfig `json:"language_servers"`
	LanguageServerMap    map[LanguageServer][]Language           `json:"language_server_map"`
	ExtensionLanguageMap map[string]Language                     `json:"extension_language_map"`
	WorkspaceRootMarkers []string                                `json:"workspace_root_markers"`
	Global               Global                                  `json:"global"`
}

// Default returns a minimal configuration so the daemon can still start
// (with reduced language coverage) when no config file is found, mirroring
// main.go's fallback "minimal default config" construction.
func Default(defaultLogPath string) *Config {
	return &Config{
		LanguageServers:      make(map[LanguageServer]LanguageServerConfig),
		LanguageServerMap:    make(map[LanguageServer][]Language),
		ExtensionLanguageMap: make(map[string]Language),
		WorkspaceRootMarkers: []string{".git", "go.mod", "Cargo.toml", "package.json", "pyproject.toml"},
		Global: Global{
			LogPath:            defaultLogPath,
			LogLevel:           "debug",
			MaxLogFiles:        10,
			IdleTimeoutSeconds: 60,
			PickerResultCap:    50,
		},
	}
}

// Load reads and validates a config file from path, requiring it fall under
// one of allowedDirs.
func Load(path string, allowedDirs []string) (*Config, error) {
	resolved, err := security.ValidateConfigPath(path, allowedDirs)
	if err != nil {
		return nil, fmt.Errorf("config path rejected: %w", err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", resolved, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", resolved, err)
	}

	if cfg.LanguageServers == nil {
		cfg.LanguageServers = make(map[LanguageServer]LanguageServerConfig)
	}
	if cfg.LanguageServerMap == nil {
		cfg.LanguageServerMap = make(map[LanguageServer][]Language)
	}
	if cfg.ExtensionLanguageMap == nil {
		cfg.ExtensionLanguageMap = make(map[string]Language)
	}
	if len(cfg.WorkspaceRootMarkers) == 0 {
		cfg.WorkspaceRootMarkers = []string{".git", "go.mod", "Cargo.toml", "package.json", "pyproject.toml"}
	}
	if cfg.Global.PickerResultCap <= 0 {
		cfg.Global.PickerResultCap = 50
	}
	if cfg.Global.IdleTimeoutSeconds <= 0 {
		cfg.Global.IdleTimeoutSeconds = 60
	}

	return &cfg, nil
}

// TryLoad attempts primaryPath, then a short list of fallback locations,
// the way main.go's tryLoadConfig does.
func TryLoad(primaryPath, configDir, cwd string) (*Config, error) {
	allowed := security.GetConfigAllowedDirectories(configDir, cwd)

	if cfg, err := Load(primaryPath, allowed); err == nil {
		return cfg, nil
	}

	fallbacks := []string{
		"yac_config.json",
		configDir + "/config.json",
		"yac_config.example.json",
	}

	for _, fb := range fallbacks {
		if fb == primaryPath {
			continue
		}
		if cfg, err := Load(fb, allowed); err == nil {
			return cfg, nil
		}
	}

	return nil, fmt.Errorf("no valid configuration found (tried %s and fallbacks)", primaryPath)
}

// ApplyEnvOverrides lets deployment environments tune the daemon without
// editing config files, mirroring lsp.ApplyEnvOverrides.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("YAC_LOG_LEVEL"); v != "" {
		cfg.Global.LogLevel = v
	}
	if v := getenv("YAC_SOCKET_PATH"); v != "" {
		cfg.Global.SocketPath = v
	}
	if v := getenv("YAC_IDLE_TIMEOUT_SECONDS"); v != "" {
		var seconds int
		if _, err := fmt.Sscanf(v, "%d", &seconds); err == nil && seconds > 0 {
			cfg.Global.IdleTimeoutSeconds = seconds
		}
	}
	if v := getenv("YAC_INTROSPECT_ADDR"); v != "" {
		cfg.Global.IntrospectAddr = v
	}
}

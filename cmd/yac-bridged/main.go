// Command yac-bridged is the LSP bridge daemon's entrypoint: it resolves
// config/log directories, loads configuration through a layered
// fallback, attaches the Unix socket listener, and runs the event loop
// until idle-timeout or a termination signal, per spec.md §5/§6.1.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"rockerboo/yac-bridge/internal/config"
	"rockerboo/yac-bridge/internal/daemon"
	"rockerboo/yac-bridge/internal/directories"
	"rockerboo/yac-bridge/internal/introspect"
	"rockerboo/yac-bridge/internal/logging"
	"rockerboo/yac-bridge/internal/lspregistry"
	"rockerboo/yac-bridge/internal/mcpsurface"
)

func main() {
	dirResolver := directories.NewResolver("", directories.DefaultUserProvider{}, directories.DefaultEnvProvider{}, true)

	configDir, err := dirResolver.GetConfigDirectory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yac-bridged: failed to resolve config directory: %v\n", err)
		os.Exit(1)
	}
	logDir, err := dirResolver.GetLogDirectory()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yac-bridged: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}

	defaultConfigPath := filepath.Join(configDir, "yac_config.json")
	defaultLogPath := filepath.Join(logDir, "yac-bridged.log")
	defaultSocketPath := dirResolver.GetSocketPath()

	var (
		confPath   string
		logPath    string
		logLevel   string
		socketPath string
		mcpStdio   bool
	)
	flag.StringVar(&confPath, "config", defaultConfigPath, "path to daemon configuration file")
	flag.StringVar(&confPath, "c", defaultConfigPath, "path to daemon configuration file (short)")
	flag.StringVar(&logPath, "log-path", "", "path to log file (overrides config and default)")
	flag.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&socketPath, "socket", "", "Unix socket path (overrides config and default)")
	flag.BoolVar(&mcpStdio, "mcp-stdio", false, "also serve the MCP tool surface over this process's stdio (spec.md §4.10)")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "yac-bridged: failed to get current working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.TryLoad(confPath, configDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yac-bridged: no config found (%v), starting with minimal defaults\n", err)
		cfg = config.Default(defaultLogPath)
	}

	config.ApplyEnvOverrides(cfg, os.Getenv)

	if logPath != "" {
		cfg.Global.LogPath = logPath
	}
	if cfg.Global.LogPath == "" {
		cfg.Global.LogPath = defaultLogPath
	}
	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if socketPath != "" {
		cfg.Global.SocketPath = socketPath
	}
	if cfg.Global.SocketPath == "" {
		cfg.Global.SocketPath = defaultSocketPath
	}

	logger, err := logging.New(logging.Config{
		LogPath:     cfg.Global.LogPath,
		LogLevel:    cfg.Global.LogLevel,
		MaxLogFiles: cfg.Global.MaxLogFiles,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "yac-bridged: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	log := logger.With("main")
	log.Info("starting yac-bridged")

	registry := lspregistry.New(cfg, logger.With("registry"))
	d := daemon.New(cfg, logger.With("daemon"), registry)

	if cfg.Global.IntrospectAddr != "" {
		feed, err := introspect.Listen(cfg.Global.IntrospectAddr, logger.With("introspect"))
		if err != nil {
			log.WithError(err).Warn("failed to start introspection feed, continuing without it")
		} else {
			defer feed.Close()
			d.SetIntrospect(feed)
		}
	}

	listener, err := daemon.Listen(cfg.Global.SocketPath)
	if err != nil {
		log.WithError(err).Fatal("failed to bind socket")
	}
	defer os.Remove(cfg.Global.SocketPath)

	if err := d.Attach(listener); err != nil {
		log.WithError(err).Fatal("failed to attach listener")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("received shutdown signal")
		d.Stop()
	}()

	if mcpStdio {
		surface := mcpsurface.New(logger.With("mcpsurface"), d.ExternalRequests())
		go func() {
			if err := surface.Serve(); err != nil {
				log.WithError(err).Warn("mcp stdio surface stopped")
			}
			log.Info("mcp stdio closed, stopping daemon")
			d.Stop()
		}()
	}

	log.WithField("socket", cfg.Global.SocketPath).Info("listening")
	if err := d.Run(); err != nil {
		log.WithError(err).Fatal("daemon exited with error")
	}
	log.Info("yac-bridged exited cleanly")
}

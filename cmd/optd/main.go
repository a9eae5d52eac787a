package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QuantTune-Labs/optimizer-core/internal/optd"
	"github.com/QuantTune-Labs/optimizer-core/internal/storage"
	"github.com/QuantTune-Labs/optimizer-core/pkg/config"
	"github.com/QuantTune-Labs/optimizer-core/pkg/logger"
)

func main() {
	var configPath string
	var httpAddr string
	var logLevel string

	flag.StringVar(&configPath, "config", "", "path to the daemon config file")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	if httpAddr != "" {
		cfg.Listen = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open study store", "dir", cfg.DataDir, "error", err)
		stop()
		os.Exit(1)
	}

	hub := optd.NewHub()
	var notifier *optd.Notifier
	if cfg.Webhook != nil {
		timeout, err := cfg.Webhook.GetTimeout()
		if err != nil {
			logger.Error("invalid webhook timeout", "error", err)
			stop()
			os.Exit(1)
		}
		notifier = optd.NewNotifier(cfg.Webhook.URL, timeout, cfg.Webhook.MaxRetries)
	}

	manager := optd.NewManager(cfg, store, hub, notifier)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           optd.NewHTTPServer(manager, hub).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Listen, "data_dir", cfg.DataDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}

// loadConfig reads the config file, or builds a default config when no path
// was given
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.ParseConfigYAML([]byte("{}"))
	}
	return config.LoadConfig(path)
}

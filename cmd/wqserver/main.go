package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/wordquizzle/internal/config"
	"github.com/udisondev/wordquizzle/internal/registration"
	"github.com/udisondev/wordquizzle/internal/server"
	"github.com/udisondev/wordquizzle/internal/store"
	"github.com/udisondev/wordquizzle/internal/words"
)

const ConfigPath = "config/wqserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("WQ_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	slog.Info("word quizzle server starting")
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "registration_port", cfg.RegistrationPort)

	// Open user store
	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening user store: %w", err)
	}
	slog.Info("user store ready", "path", cfg.StorePath, "users", st.Len())

	// Load dictionary and translation source
	source, err := words.NewSource(cfg.Dictionary, words.NewTranslator(cfg.TranslationURL))
	if err != nil {
		return fmt.Errorf("loading dictionary: %w", err)
	}
	slog.Info("dictionary loaded", "path", cfg.Dictionary, "words", source.Len())

	// Create session server (clients on cfg.Port)
	sessions := server.NewServer(cfg, st, source)

	// Create registration server (HTTP on cfg.RegistrationPort)
	door := registration.New(st)

	// Run both servers in parallel
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting session server")
		if err := sessions.Run(gctx); err != nil {
			return fmt.Errorf("session server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting registration server")
		addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.RegistrationPort)
		if err := door.Run(gctx, addr); err != nil {
			return fmt.Errorf("registration server: %w", err)
		}
		return nil
	})

	// Wait for both servers to finish
	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

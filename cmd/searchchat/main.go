package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nstogner/searchchat/pkg/agent"
	"github.com/nstogner/searchchat/pkg/chat"
	"github.com/nstogner/searchchat/pkg/config"
	"github.com/nstogner/searchchat/pkg/domain"
	"github.com/nstogner/searchchat/pkg/model/providers"
	"github.com/nstogner/searchchat/pkg/server"
	"github.com/nstogner/searchchat/pkg/store/sqlite"
	"github.com/nstogner/searchchat/pkg/tools"
	"github.com/nstogner/searchchat/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger.
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)
	slog.Info("Loaded config", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcripts live in memory only.
	store, err := sqlite.New()
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	factory, err := providers.Factory(cfg)
	if err != nil {
		slog.Error("Failed to initialize model provider", "error", err)
		os.Exit(1)
	}

	registry := tools.NewDefaultRegistry(tools.Options{Timeout: cfg.ToolTimeout})
	build := chat.NewBuilder(chat.BuilderConfig{
		Factory:            factory,
		Tools:              registry,
		Model:              cfg.Model,
		FallbackCredential: cfg.APIKey,
		Options: []agent.Option{
			agent.WithMaxRounds(cfg.MaxRounds),
			agent.WithToolTimeout(cfg.ToolTimeout),
		},
	})

	var listModels server.ModelLister
	if cfg.APIKey != "" {
		listModels = func(ctx context.Context) ([]domain.Model, error) {
			p, err := factory(ctx, cfg.APIKey)
			if err != nil {
				return nil, err
			}
			return p.List(ctx)
		}
	}

	srv := server.New(store, registry, build, listModels, server.Info{
		Provider:      cfg.Provider,
		Model:         cfg.Model,
		HasCredential: cfg.APIKey != "",
	}, web.DistFS)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

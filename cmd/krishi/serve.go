package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PrathmeshKudale/krishi-mitra/internal/assistant"
	"github.com/PrathmeshKudale/krishi-mitra/internal/backend"
	"github.com/PrathmeshKudale/krishi-mitra/internal/content"
	"github.com/PrathmeshKudale/krishi-mitra/internal/media"
	"github.com/PrathmeshKudale/krishi-mitra/internal/router"
	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
	"github.com/PrathmeshKudale/krishi-mitra/internal/user"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/database"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	sugar := logger.Sugar()
	sugar.Infow("starting krishi-mitra", "backend", cfg.Database.Backend, "addr", cfg.Server.Addr)

	if _, ok := utilities.NodeFromEnv(); !ok && cfg.Database.Backend == database.BackendSQL {
		sugar.Warnw("snowflake node not configured, using node 1; set a distinct value per instance",
			"env", utilities.NodeEnv)
	}

	store, err := backend.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	schemaCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	err = store.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	sessions, err := session.NewService(cfg.Session)
	if err != nil {
		return err
	}
	gateway, err := assistant.NewGateway(ctx, cfg.AI, sugar)
	if err != nil {
		return err
	}

	handler := router.RegisterRoutes(router.Deps{
		Logger:   sugar,
		Users:    user.NewUserService(store.Users, nil, cfg.Database.Timeout),
		Content:  content.NewService(store.Content, cfg.Database.Timeout),
		Media:    media.NewIntake(cfg.Media),
		AI:       gateway,
		Sessions: sessions,
		Ping:     store.Ping,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down")

		// the parent context is already cancelled, so give shutdown its own deadline
		doneCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(doneCtx); err != nil {
			sugar.Warnw("http server shutdown failed", "err", err)
		}
		if err := store.Ping(doneCtx); err != nil {
			sugar.Warnw("storage ping on shutdown failed", "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	sugar.Info("goodbye")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwrks/plume"
	"github.com/mwrks/plume/blob"
	"github.com/mwrks/plume/config"
	"github.com/mwrks/plume/database"
	plumehttp "github.com/mwrks/plume/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the plume HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (env: PLUME_SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeStore()
	slog.Info("connected to database", "type", cfg.Database.Type)

	blobs, closeBlobs, err := blob.Connect(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("connect blob storage: %w", err)
	}
	defer closeBlobs()
	slog.Info("connected to image storage", "type", cfg.Blob.Type)

	tokens := plume.NewTokens(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)

	service, err := plume.NewService(store, blobs, plume.ServiceConfig{
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	if len(cfg.Blob.LegacyPrefixes) > 0 {
		migrated, err := service.MigrateImageURLs(ctx, cfg.Blob.LegacyPrefixes)
		if err != nil {
			return fmt.Errorf("migrate image urls: %w", err)
		}
		if migrated > 0 {
			slog.Info("rewrote legacy image urls", "posts_updated", migrated)
		}
	}

	handler := plumehttp.NewHandler(&plumehttp.HandlerConfig{CORS: cfg.CORS}, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

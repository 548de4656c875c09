package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwrks/plume"
	"github.com/mwrks/plume/blob"
	"github.com/mwrks/plume/config"
	"github.com/mwrks/plume/database"
)

var migratePrefixes []string

var migrateImagesCmd = &cobra.Command{
	Use:   "migrate-images",
	Short: "Rewrite legacy image URLs to proxy URLs",
	Long: `Scan posts for image URLs that point directly at the object store
and rewrite them to the API proxy form (/api/posts/image/<file>). Run this
once after switching a deployment from public-bucket URLs to proxied
serving. The stored objects themselves are not touched.`,
	RunE: runMigrateImages,
}

func init() {
	migrateImagesCmd.Flags().StringSliceVar(&migratePrefixes, "prefix", nil,
		"legacy URL prefix to rewrite (repeatable, required)")
	_ = migrateImagesCmd.MarkFlagRequired("prefix")
	rootCmd.AddCommand(migrateImagesCmd)
}

func runMigrateImages(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, closeStore, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeStore()

	blobs, closeBlobs, err := blob.Connect(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("connect blob storage: %w", err)
	}
	defer closeBlobs()

	tokens := plume.NewTokens(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	service, err := plume.NewService(store, blobs, plume.ServiceConfig{Tokens: tokens})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	migrated, err := service.MigrateImageURLs(ctx, migratePrefixes)
	if err != nil {
		return fmt.Errorf("migrate image urls: %w", err)
	}

	slog.Info("migration complete", "posts_updated", migrated)
	return nil
}

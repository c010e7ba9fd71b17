package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PrathmeshKudale/krishi-mitra/internal/backend"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables, collections and indexes for the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := backend.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		if err := store.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		logger.Sugar().Infow("schema ready", "backend", store.Kind)
		return nil
	},
}

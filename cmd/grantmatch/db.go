package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/david/grant-matcher/internal/db"
	"github.com/david/grant-matcher/internal/grantfile"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		pool, err := db.Connect(ctx, databaseURL())
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := db.ApplyMigrations(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", n)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <grants.yaml>",
	Short: "Load grants and organization profiles from a YAML file into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		file, err := grantfile.Load(args[0])
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, databaseURL())
		if err != nil {
			return err
		}
		defer pool.Close()

		if _, err := db.ApplyMigrations(ctx, pool); err != nil {
			return err
		}

		store := db.NewStore(pool)
		var grants, failed int
		for _, g := range file.Grants() {
			if err := store.UpsertGrant(ctx, g); err != nil {
				log.Printf("[import] grant %q: %v", g.Title, err)
				failed++
				continue
			}
			grants++
		}
		profiles := 0
		for id, p := range file.Profiles() {
			if err := store.UpsertPreferences(ctx, id, p); err != nil {
				log.Printf("[import] profile %s: %v", id, err)
				failed++
				continue
			}
			profiles++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d grant(s) and %d profile(s)\n", grants, profiles)
		if failed > 0 {
			return fmt.Errorf("%d record(s) failed to import", failed)
		}
		return nil
	},
}

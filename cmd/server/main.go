package main

import (
	"context"
	"log"
	"os"

	"github.com/david/grant-matcher/internal/ai"
	"github.com/david/grant-matcher/internal/api"
	"github.com/david/grant-matcher/internal/config"
	"github.com/david/grant-matcher/internal/db"
	"github.com/david/grant-matcher/internal/matching"
)

func main() {
	cfg, err := config.Load(os.Getenv("GRANTMATCH_CONFIG"))
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if _, err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	creds, err := ai.NewPoolFromConfig(cfg.Credentials)
	if err != nil {
		log.Fatalf("Failed to build credential pool: %v", err)
	}

	store := db.NewStore(pool)
	engine := matching.NewEngine(store, store, creds, cfg.Matching)

	srv := api.NewServer(engine, cfg.Server.CORSOrigins)
	log.Printf("Server starting on port %s with %d credential(s)...", cfg.Server.Port, creds.Size())
	if err := srv.Start(cfg.Server.Port); err != nil {
		log.Fatal(err)
	}
}

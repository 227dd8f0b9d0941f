package main

import (
	"context"
	"log"

	"gocre/adapters/estimators"
	"gocre/adapters/forest"
	"gocre/adapters/httpapi"
	"gocre/adapters/memledger"
	"gocre/adapters/postgres"
	"gocre/adapters/rng"
	"gocre/adapters/tabular"
	"gocre/app"
	"gocre/internal/config"
	"gocre/internal/errors"
	"gocre/ports"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ledger, cleanup, err := initLedger(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize run ledger: %v", err)
	}
	defer cleanup()

	registry := estimators.NewRegistry(forest.NewRegressor(), cfg.Data.Offset)
	pipeline := app.NewPipeline(forest.NewLearner(), registry, rng.New(), ledger)
	server := httpapi.NewServer(pipeline, tabular.New(), ledger, registry)

	if err := server.Start(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// initLedger stores runs in PostgreSQL when DATABASE_URL is set, otherwise
// in memory. The in-memory ledger is fine for demos but forgets runs on
// restart.
func initLedger(ctx context.Context, cfg *config.Config) (ports.RunLedgerPort, func(), error) {
	if cfg.Database.URL == "" {
		log.Println("[Main] DATABASE_URL not set, storing runs in memory")
		return memledger.New(), func() {}, nil
	}

	db, err := postgres.Connect(cfg.Database.URL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to database")
	}
	ledger := postgres.NewLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "failed to ensure ledger schema")
	}
	log.Println("[Main] Storing runs in PostgreSQL")
	return ledger, func() { db.Close() }, nil
}

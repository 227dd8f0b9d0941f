package main

import (
	"context"
	"log"
	"os"

	"gocre/adapters/postgres"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Prepares the run ledger schema without starting the server. The URL
// comes from the first argument or from DATABASE_URL.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	url := os.Getenv("DATABASE_URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		log.Fatal("Usage: migrate <database_url> (or set DATABASE_URL)")
	}

	db, err := postgres.Connect(url)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := postgres.NewLedger(db).EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration complete")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tokosenja/api/internal/carrier"
	"github.com/tokosenja/api/internal/config"
	"github.com/tokosenja/api/internal/database"
	"github.com/tokosenja/api/internal/router"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	carriers, err := loadCarrierLookup(ctx, queries)
	if err != nil {
		log.Fatalf("Unable to load shipping carrier catalog: %v", err)
	}

	r := router.New(cfg, queries, pool, carriers)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}

// loadCarrierLookup builds the fuzzy carrier matcher from the
// shipping_carriers catalog. The catalog changes rarely; a restart
// picks up new carriers.
func loadCarrierLookup(ctx context.Context, queries *database.Queries) (carrier.Lookup, error) {
	rows, err := queries.ListShippingCarriers(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]carrier.Entry, len(rows))
	for i, row := range rows {
		entries[i] = carrier.Entry{Name: row.Name, BaseCost: row.BaseCost}
	}
	return carrier.NewCatalogLookup(entries), nil
}

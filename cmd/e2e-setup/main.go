package main

import (
	"context"
	"flag"
	"log"
	"os"

	"studycard-subscription/internal/config"
	"studycard-subscription/internal/infra/db/postgres"
	"studycard-subscription/internal/infra/redis"
)

// This script resets the database and cache to a clean, predictable state
// for manual end-to-end testing: wipe redis, recreate the schema from
// deploy/postgres/init.sql.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "path to schema file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("read schema: %v", err)
	}

	// --- Connect to Postgres ---
	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	// --- Connect to Redis ---
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/3] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	log.Println("[2/3] Dropping existing tables...")
	if _, err := pool.Exec(ctx, `DROP TABLE IF EXISTS payments, subscriptions CASCADE;`); err != nil {
		log.Fatalf("failed to drop tables: %v", err)
	}

	log.Println("[3/3] Creating schema...")
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	log.Println("--- E2E Environment Setup Complete ---")
}

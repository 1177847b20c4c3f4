package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/quatton/qtube/pkg/db"
	"github.com/quatton/qtube/pkg/qlog"
)

// migrate is the standalone migration runner used by the compose setup,
// where only DB_* variables are available.
func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration group")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("ℹ No .env file found")
	} else {
		log.Println("✓ Loaded .env file")
	}

	ctx := context.Background()

	cfg := db.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "qtube",
		Password: "password",
		Database: "qtube",
		SSLMode:  "disable",
	}

	if err := envconfig.Process("DB", &cfg); err != nil {
		log.Fatalf("failed to process env vars: %v", err)
	}

	database, err := db.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	logger := qlog.NewDefault()
	if *rollback {
		err = db.Rollback(ctx, database, logger)
	} else {
		err = db.Migrate(ctx, database, logger)
	}
	if err != nil {
		database.Close()
		log.Fatalf("migration failed: %v", err)
	}
}

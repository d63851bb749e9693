package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"trustgate/internal/ingest"
	"trustgate/internal/platform/logger"
	"trustgate/internal/storage/postgres"
)

// main loads registry snapshot files into Postgres. Intended to run as a
// batch job; the server only ever reads what this writes.
func main() {
	file := flag.String("file", "", "Single snapshot file (.jsonl) to ingest")
	dir := flag.String("dir", "", "Directory of snapshot files to ingest")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.Parse()

	log := logger.New()

	if *databaseURL == "" {
		log.Error("database-url flag or DATABASE_URL is required")
		os.Exit(1)
	}
	if (*file == "") == (*dir == "") {
		log.Error("exactly one of -file or -dir is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, *databaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	loader := ingest.New(postgres.NewRegistryStore(pool), log)

	var total int
	if *file != "" {
		total, err = loader.LoadFile(ctx, *file)
	} else {
		total, err = loader.LoadDir(ctx, *dir)
	}
	if err != nil {
		log.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	log.Info("ingestion complete", "entries", total)
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"safetyvision/internal/config"
	"safetyvision/internal/model"
	"safetyvision/internal/repository/sqlite"
	"safetyvision/internal/service/storage"

	"github.com/gofrs/uuid"
)

// Backfills the history database with annotated images already present in
// the output directory (e.g. produced before the database existed).
func main() {
	cfg := config.Load()
	outputDir := flag.String("output", cfg.OutputDirectory, "Directory containing ensemble_*.png images")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	flag.Parse()

	fmt.Printf("Migrating annotated images from %s to database %s\n", *outputDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	runs := sqlite.NewRunRepository(db)

	files, err := os.ReadDir(*outputDir)
	if err != nil {
		log.Fatalf("Failed to read output directory: %v", err)
	}

	inserted, existing, skipped := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), storage.OutputPrefix) {
			continue
		}
		path := filepath.Join(*outputDir, file.Name())

		if _, err := runs.GetByOutputPath(path); err == nil {
			existing++
			continue
		} else if !errors.Is(err, sqlite.ErrNotFound) {
			log.Fatalf("Failed to look up %s: %v", path, err)
		}

		stem, createdAt, err := storage.ParseAnnotatedName(file.Name())
		if err != nil {
			log.Printf("Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		id, err := uuid.NewV4()
		if err != nil {
			log.Fatalf("Failed to generate run id: %v", err)
		}
		if _, err := runs.Insert(&model.Run{
			UID:        id.String(),
			Filename:   stem,
			OutputPath: path,
			CreatedAt:  createdAt,
		}); err != nil {
			log.Fatalf("Failed to insert %s: %v", file.Name(), err)
		}
		inserted++
	}

	fmt.Printf("Inserted %d run(s), %d already present\n", inserted, existing)
	if skipped > 0 {
		fmt.Printf("Skipped %d file(s) with an unrecognised name\n", skipped)
	}
}

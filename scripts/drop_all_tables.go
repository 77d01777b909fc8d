package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Read environment to determine table prefix
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev" // Default to dev
	}

	prefix := os.Getenv("TABLE_PREFIX")
	if prefix == "" {
		prefix = env + "_"
	}
	if env == "prod" {
		log.Fatal("refusing to drop tables in prod")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }() // Error ignored: script exiting

	// Drop all tables and functions with environment-specific prefix
	dropSQL := fmt.Sprintf(`
		DROP FUNCTION IF EXISTS %sensure_root_folder(TEXT);
		DROP FUNCTION IF EXISTS %snext_sort_order(TEXT, UUID, BOOLEAN);
		DROP TABLE IF EXISTS %scanvases CASCADE;
		DROP TABLE IF EXISTS %sfolders CASCADE;
	`, prefix, prefix, prefix, prefix)

	if _, err := db.Exec(dropSQL); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("All tables dropped successfully (prefix: %s)\n", prefix)
}

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"canvasdesk/internal/config"
	repo "canvasdesk/internal/domain/repositories/workspace"
	"canvasdesk/internal/repository/local"
	"canvasdesk/internal/repository/postgres"
	"canvasdesk/internal/seed"
	"canvasdesk/internal/session"
)

func main() {
	// Parse command-line flags
	ownerID := flag.String("owner", session.AnonymousOwner, "Owner id to seed the sample workspace for")
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed canvases")
	clearData := flag.Bool("clear-data", false, "Clear the owner's canvases and folders (keep schema)")
	useLocal := flag.Bool("local", false, "Seed the local store instead of the database")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()

	var store repo.Store
	if *useLocal || cfg.DatabaseURL == "" {
		if *dropTables || *schemaOnly {
			log.Fatalf("--drop-tables and --schema-only need DATABASE_URL")
		}
		log.Printf("Seeding local store (path: %q)", cfg.LocalStorePath)
		localStore, err := local.Open(cfg.LocalStorePath, logger)
		if err != nil {
			log.Fatalf("Failed to open local store: %v", err)
		}
		defer localStore.Close()
		store = localStore
	} else {
		log.Printf("Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

		// Create database connection pool
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)

		// Drop tables if requested
		if *dropTables {
			log.Println("Dropping all tables...")
			if err := postgres.DropSchema(ctx, pool, tables); err != nil {
				log.Fatalf("Failed to drop tables: %v", err)
			}
			log.Println("Tables dropped")
		}

		// Run schema to ensure tables exist
		log.Println("Ensuring database schema is up to date...")
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to run schema: %v", err)
		}
		log.Println("Schema ready")

		if *schemaOnly {
			log.Println("Schema setup complete (schema-only mode)")
			return
		}

		store = postgres.NewStore(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		})
	}

	seeder := seed.NewWorkspaceSeeder(store, logger)

	if *clearData {
		log.Printf("Clearing canvases and folders of %s...", *ownerID)
		if err := seeder.ClearWorkspace(ctx, *ownerID); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("Data cleared successfully")
		return
	}

	if err := seeder.SeedWorkspace(ctx, *ownerID); err != nil {
		log.Fatalf("Failed to seed workspace: %v", err)
	}
	log.Println("Seeding complete!")
}

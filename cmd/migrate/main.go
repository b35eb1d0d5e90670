package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-coaching/internal/config"
	"ms-coaching/internal/database/migrations"
)

func main() {
	var (
		dir     = flag.String("dir", "./migrations", "directory containing migration files")
		down    = flag.Bool("down", false, "roll back all migrations instead of applying them")
		version = flag.Uint("to", 0, "migrate to a specific version (0 means latest)")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: *dir,
		AutoMigrate:   true,
	})
	defer runner.Close()

	switch {
	case *down:
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("migrate down failed: %v", err)
		}
		log.Println("✅ all migrations rolled back")
	case *version > 0:
		if err := runner.MigrateTo(*version); err != nil {
			log.Fatalf("migrate to %d failed: %v", *version, err)
		}
		log.Printf("✅ schema at version %d", *version)
	default:
		if err := runner.MigrateUp(); err != nil {
			log.Fatalf("migrate up failed: %v", err)
		}
		v, dirty, err := runner.Version()
		if err != nil {
			log.Fatalf("failed to read schema version: %v", err)
		}
		log.Printf("✅ schema at version %d (dirty=%v)", v, dirty)
	}
}

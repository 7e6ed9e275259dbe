// Command migrate applies or rolls back the schema migrations against the
// configured Postgres database, for operators who want migrations out of the
// service startup path.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/ledgerline/dunning/internal/config"
	"github.com/ledgerline/dunning/internal/migration"
	_ "github.com/lib/pq"
)

func main() {
	var down bool
	flag.BoolVar(&down, "down", false, "roll back the most recent migration instead of applying")
	flag.Parse()

	cfg := config.Load()
	if cfg.DBType != "postgres" {
		log.Fatalf("migrate: unsupported database type %q, only postgres is managed by versioned migrations", cfg.DBType)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("migrate: open database: %v", err)
	}
	defer db.Close()

	migrator, err := migration.NewMigrator(db)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	if down {
		err = migrator.Steps(-1)
	} else {
		err = migrator.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("migrate: read version: %v", err)
	}
	fmt.Fprintf(os.Stdout, "schema version %d (dirty=%v)\n", version, dirty)
}

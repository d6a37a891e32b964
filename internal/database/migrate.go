// migrate.go handles database migration using golang-migrate.
//
// Migrations are SQL files in the migrations/ directory. Each migration
// has an "up" (apply) and "down" (rollback) file. The migrate library
// tracks which migrations have been applied in a schema_migrations table.
package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // File source driver
)

// RunMigrations applies all pending database migrations.
// This is called at application startup so the schema (including the
// row_inserted trigger the insert listener depends on) is up to date.
func (db *DB) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	// A dirty version means an earlier run died halfway; applying more on
	// top would leave the schema in an unknown state.
	if version, dirty, err := m.Version(); err == nil && dirty {
		return fmt.Errorf("database is dirty at migration %d; fix it by hand and force the version", version)
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("📦 Database: no new migrations to apply")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	default:
		version, _, _ := m.Version()
		log.Printf("📦 Database: migrated to version %d", version)
	}
	return nil
}

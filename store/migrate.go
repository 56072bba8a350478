package store

import (
	"context"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// config driver name -> database/sql driver name
var driverNames = map[string]string{
	DriverPostgres: "postgres",
	DriverSQLite:   "sqlite",
}

//go:embed migrations/postgres.sql
var postgresSchema string

//go:embed migrations/sqlite.sql
var sqliteSchema string

// Migrate creates any missing tables. Every statement is idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	var schema string
	switch s.Driver {
	case DriverPostgres:
		schema = postgresSchema
	case DriverSQLite:
		schema = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", s.Driver)
	}
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply %s schema: %w", s.Driver, err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migrations holds the embedded SQL migration files.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Migrate runs a goose command ("up", "down", "status", ...) against conn
// using the embedded migrations.
func Migrate(ctx context.Context, conn *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.RunContext(ctx, command, conn, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

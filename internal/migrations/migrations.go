// Package migrations embeds the SQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sbilibin2017/gw-accounts/internal/logger"
)

//go:embed *.sql
var Migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// zapGooseLogger routes goose output to the application logger.
type zapGooseLogger struct{}

func (zapGooseLogger) Printf(format string, v ...interface{}) { logger.Log.Infof(format, v...) }
func (zapGooseLogger) Fatalf(format string, v ...interface{}) { logger.Log.Fatalf(format, v...) }

// Run applies all pending migrations to db.
func Run(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(zapGooseLogger{})
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

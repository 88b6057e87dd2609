package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var embedMigrations embed.FS

func configureGoose(driver string) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")

	switch driver {
	case "sqlite", "sqlite3":
		return goose.SetDialect("sqlite3")
	case "postgres", "pgx":
		return goose.SetDialect("postgres")
	}
	return fmt.Errorf("unsupported driver for goose: %s", driver)
}

func getMigrationDir(driver string) string {
	if driver == "postgres" || driver == "pgx" {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func openDB(driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	if dsn == "" {
		dsn = "stromdeals.db"
	}
	switch driver {
	case "postgres", "pgx":
		driver = "pgx"
	case "sqlite3":
		driver = "sqlite"
	}
	return sql.Open(driver, dsn)
}

func run(ctx context.Context, driver, dsn string, fn func(ctx context.Context, db *sql.DB, dir string) error) error {
	if err := configureGoose(driver); err != nil {
		return err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db, getMigrationDir(driver))
}

func Up(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

func Down(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

func Status(ctx context.Context, driver, dsn string) error {
	return run(ctx, driver, dsn, func(ctx context.Context, db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

// Version reports the current schema version.
func Version(ctx context.Context, driver, dsn string) (int64, error) {
	var v int64
	err := run(ctx, driver, dsn, func(ctx context.Context, db *sql.DB, dir string) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return v, err
}

package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"autoreply/migrations"
)

var (
	driver string
	dsn    string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Database migration management",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&driver, "driver", envOrDefault("DATABASE_DRIVER", "sqlite"), "database driver (sqlite or postgres)")
	cmd.PersistentFlags().StringVar(&dsn, "dsn", envOrDefault("DATABASE_URL", "./data/autoreply.db"), "database file path or connection string")

	cmd.AddCommand(
		gooseCmd("up", "Migrate to the latest version", func(db *sql.DB, dir string) error {
			return goose.Up(db, dir)
		}),
		gooseCmd("up-one", "Migrate one version up", func(db *sql.DB, dir string) error {
			return goose.UpByOne(db, dir)
		}),
		gooseCmd("down", "Roll back one version", func(db *sql.DB, dir string) error {
			return goose.Down(db, dir)
		}),
		gooseCmd("status", "Show migration status", func(db *sql.DB, dir string) error {
			return goose.Status(db, dir)
		}),
		gooseCmd("version", "Show current version", func(db *sql.DB, dir string) error {
			return goose.Version(db, dir)
		}),
		gooseCmd("reset", "Roll back all migrations", func(db *sql.DB, dir string) error {
			return goose.Reset(db, dir)
		}),
	)

	return cmd
}

func gooseCmd(use, short string, fn func(db *sql.DB, dir string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dialect, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			dir, err := migrations.Setup(dialect)
			if err != nil {
				return err
			}
			if err := fn(db, dir); err != nil {
				return fmt.Errorf("%s: %w", use, err)
			}
			return nil
		},
	}
}

func openDB() (*sql.DB, string, error) {
	var (
		sqlDriver string
		dialect   string
	)
	switch driver {
	case "sqlite":
		sqlDriver, dialect = "sqlite", migrations.DialectSQLite
		if err := ensureDataDir(dsn); err != nil {
			return nil, "", err
		}
	case "postgres":
		sqlDriver, dialect = "pgx", migrations.DialectPostgres
	default:
		return nil, "", fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return db, dialect, nil
}

// ensureDataDir creates the parent directory of a SQLite database file.
func ensureDataDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

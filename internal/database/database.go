package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Connect opens the store named by databaseURL. "postgres://" and
// "postgresql://" URLs go through lib/pq, anything else is treated as a
// SQLite path with an optional "sqlite://" prefix.
func Connect(databaseURL string) (*bun.DB, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return connectPostgres(databaseURL)
	}
	return connectSQLite(strings.TrimPrefix(databaseURL, "sqlite://"))
}

func connectSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// PRAGMAs are per connection; an in-memory database also has to stay on
	// a single connection or every new one starts empty.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	if _, err := sqldb.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := sqldb.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Connected to SQLite: %s", path)
	return db, nil
}

func connectPostgres(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Connected to PostgreSQL")
	return db, nil
}

func Migrate(ctx context.Context, db *bun.DB) error {
	log.Printf("Running database migrations...")

	if _, err := db.NewCreateTable().
		Model((*models.Game)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table for games: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*models.GamePlayer)(nil)).
		IfNotExists().
		ForeignKey(`("game_id") REFERENCES "games" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table for game_players: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*models.Profile)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create table for profiles: %w", err)
	}

	indexes := []struct {
		name  string
		query string
	}{
		{
			"idx_game_players_unique",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_game_players_unique ON game_players (game_id, player_id)",
		},
		{
			"idx_games_schedule",
			"CREATE INDEX IF NOT EXISTS idx_games_schedule ON games (game_date, start_time)",
		},
		{
			"idx_games_host",
			"CREATE INDEX IF NOT EXISTS idx_games_host ON games (host_id)",
		},
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx.query); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	log.Printf("Migrations complete")
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint on
// either supported backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}

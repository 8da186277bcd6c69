// Package testdb provides an in-memory, migrated store for package tests.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/bananalabs-oss/powkie/internal/database"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func New(t *testing.T) *bun.DB {
	t.Helper()

	db, err := database.Connect("sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

// InsertGame stores g, filling in an id, host and timestamps when unset.
func InsertGame(t *testing.T, db *bun.DB, g models.Game) *models.Game {
	t.Helper()

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.HostID == uuid.Nil {
		g.HostID = uuid.New()
	}
	if g.GameType == "" {
		g.GameType = "Texas Hold'em"
	}
	if g.Address == "" {
		g.Address = "64 Linnaean St, Cambridge, MA"
	}
	if g.StartTime == "" {
		g.StartTime = "19:00:00"
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = now
	}

	_, err := db.NewInsert().Model(&g).Exec(context.Background())
	require.NoError(t, err)
	return &g
}

func InsertPlayer(t *testing.T, db *bun.DB, gameID, playerID uuid.UUID, joinedAt time.Time) {
	t.Helper()

	_, err := db.NewInsert().Model(&models.GamePlayer{
		GameID:   gameID,
		PlayerID: playerID,
		JoinedAt: joinedAt,
	}).Exec(context.Background())
	require.NoError(t, err)
}

func InsertProfile(t *testing.T, db *bun.DB, userID uuid.UUID, displayName string, email *string) {
	t.Helper()

	now := time.Now().UTC()
	_, err := db.NewInsert().Model(&models.Profile{
		UserID:       userID,
		DisplayName:  displayName,
		ContactEmail: email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}).Exec(context.Background())
	require.NoError(t, err)
}

func Ptr[T any](v T) *T {
	return &v
}

package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bananalabs-oss/powkie/internal/database"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/testdb"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
	player := uuid.New()
	testdb.InsertPlayer(t, db, g.ID, player, time.Now())

	t.Run("duplicate roster row", func(t *testing.T) {
		_, err := db.NewInsert().Model(&models.GamePlayer{
			GameID:   g.ID,
			PlayerID: player,
			JoinedAt: time.Now(),
		}).Exec(ctx)
		require.Error(t, err)
		assert.True(t, database.IsUniqueViolation(err))
		assert.True(t, database.IsUniqueViolation(fmt.Errorf("join: %w", err)))
	})

	t.Run("other constraint", func(t *testing.T) {
		_, err := db.NewInsert().Model(&models.GamePlayer{
			GameID:   uuid.New(),
			PlayerID: player,
			JoinedAt: time.Now(),
		}).Exec(ctx)
		require.Error(t, err)
		assert.False(t, database.IsUniqueViolation(err))
	})

	t.Run("postgres code", func(t *testing.T) {
		assert.True(t, database.IsUniqueViolation(&pq.Error{Code: "23505"}))
		assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23503"}))
	})

	t.Run("not a constraint error", func(t *testing.T) {
		assert.False(t, database.IsUniqueViolation(nil))
		assert.False(t, database.IsUniqueViolation(errors.New("database is locked")))
	})
}

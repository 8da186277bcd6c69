package directory

import (
	"context"
	"testing"
	"time"

	"github.com/bananalabs-oss/powkie/internal/lifecycle"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(games []models.Game) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(games))
	for _, g := range games {
		out = append(out, g.ID)
	}
	return out
}

func TestList(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	db := testdb.New(t)
	d := New(db, loc)

	late := testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-10", StartTime: "21:00:00"})
	early := testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-10", StartTime: "09:00:00"})
	tomorrow := testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-11", StartTime: "08:00:00"})
	testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-09", StartTime: "23:00:00"})
	testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-12", Archived: true})

	// 02:00 UTC on the 11th is still the 10th in Boston.
	games, err := d.List(ctx, time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{early.ID, late.ID, tomorrow.ID}, ids(games))
}

func TestArchivedScenario(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	db := testdb.New(t)
	d := New(db, loc)
	a := lifecycle.NewArchiver(db, loc, nil)

	game := testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-10", StartTime: "09:00:00"})

	at := func(h, m int) time.Time { return time.Date(2025, 1, 10, h, m, 0, 0, loc) }

	a.Sweep(ctx, at(11, 59))
	listed, err := d.List(ctx, at(11, 59))
	require.NoError(t, err)
	archived, err := d.Archived(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids(listed), game.ID)
	assert.NotContains(t, ids(archived), game.ID)

	a.Sweep(ctx, at(12, 1))
	listed, err = d.List(ctx, at(12, 1))
	require.NoError(t, err)
	archived, err = d.Archived(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids(listed), game.ID)
	assert.Contains(t, ids(archived), game.ID)
}

func TestArchivedIsCappedAndRecentFirst(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	d := New(db, time.UTC)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < models.ArchivedListLimit+5; i++ {
		testdb.InsertGame(t, db, models.Game{
			GameDate: start.AddDate(0, 0, i).Format(models.DateLayout),
			Archived: true,
		})
	}

	games, err := d.Archived(ctx)
	require.NoError(t, err)
	require.Len(t, games, models.ArchivedListLimit)
	assert.Equal(t, "2024-01-25", games[0].GameDate)
	assert.Equal(t, "2024-01-06", games[len(games)-1].GameDate)
}

func TestFilter(t *testing.T) {
	games := []models.Game{
		{GameType: "Texas Hold'em", Address: "64 Linnaean St", GameDate: "2025-01-10", StartTime: "19:00:00"},
		{GameType: "Omaha", Address: "1 Oxford St", GameDate: "2025-01-11", StartTime: "21:30:00"},
	}

	tests := []struct {
		name string
		text string
		want int
	}{
		{"blank keeps all", "  ", 2},
		{"type is case-insensitive", "OMAHA", 1},
		{"address", "linnaean", 1},
		{"formatted weekday", "friday", 1},
		{"formatted month", "january", 2},
		{"formatted time", "9:30 pm", 1},
		{"no match", "stud", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Filter(games, tt.text), tt.want)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "Friday, January 10, 2025", FormatDate("2025-01-10"))
	assert.Equal(t, "garbage", FormatDate("garbage"))
	assert.Equal(t, "7:00 PM", FormatTime("19:00:00"))
	assert.Equal(t, "9:05 AM", FormatTime("09:05"))
}

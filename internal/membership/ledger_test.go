package membership

import (
	"context"
	"testing"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/profiles"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/bananalabs-oss/powkie/internal/testdb"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newLedger(t *testing.T, enforce bool) (*Ledger, *bun.DB) {
	t.Helper()
	db := testdb.New(t)
	return NewLedger(db, profiles.NewStore(db), enforce, nil), db
}

func TestSummarize(t *testing.T) {
	host := uuid.New()
	p1, p2 := uuid.New(), uuid.New()
	g := &models.Game{ID: uuid.New(), HostID: host}

	tests := []struct {
		name       string
		members    []uuid.UUID
		viewer     session.Session
		wantCount  int
		wantJoined bool
		wantHost   bool
	}{
		{"host alone", nil, session.Session{AccountID: host}, 1, true, true},
		{"guest sees counts", []uuid.UUID{p1, p2}, session.Guest(), 3, false, false},
		{"member is joined", []uuid.UUID{p1}, session.Session{AccountID: p1}, 2, true, false},
		{"outsider is not joined", []uuid.UUID{p1}, session.Session{AccountID: p2}, 2, false, false},
		{"stray host row counted once", []uuid.UUID{host, p1}, session.Session{AccountID: host}, 2, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Summarize(g, tt.members, tt.viewer)
			assert.Equal(t, tt.wantCount, v.PlayerCount)
			assert.Equal(t, tt.wantJoined, v.IsJoined)
			assert.Equal(t, tt.wantHost, v.IsHost)
		})
	}
}

func TestJoinLeave(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("join then leave restores the summary", func(t *testing.T) {
		l, db := newLedger(t, false)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
		player := session.Session{AccountID: uuid.New()}

		before, err := l.Detail(ctx, g.ID, player)
		require.NoError(t, err)

		require.NoError(t, l.Join(ctx, g.ID, player.AccountID, now))
		during, err := l.Detail(ctx, g.ID, player)
		require.NoError(t, err)
		assert.Equal(t, before.PlayerCount+1, during.PlayerCount)
		assert.True(t, during.IsJoined)

		require.NoError(t, l.Leave(ctx, g.ID, player.AccountID))
		after, err := l.Detail(ctx, g.ID, player)
		require.NoError(t, err)
		assert.Equal(t, before.PlayerCount, after.PlayerCount)
		assert.Equal(t, before.IsJoined, after.IsJoined)
	})

	t.Run("rejections", func(t *testing.T) {
		l, db := newLedger(t, false)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
		archived := testdb.InsertGame(t, db, models.Game{GameDate: "2020-01-10", Archived: true})
		player := uuid.New()
		require.NoError(t, l.Join(ctx, g.ID, player, now))

		assert.ErrorIs(t, l.Join(ctx, g.ID, player, now), ErrAlreadyJoined)
		assert.ErrorIs(t, l.Join(ctx, g.ID, g.HostID, now), ErrHostCannotJoin)
		assert.ErrorIs(t, l.Join(ctx, archived.ID, player, now), ErrGameArchived)
		assert.ErrorIs(t, l.Join(ctx, uuid.New(), player, now), ErrGameNotFound)
	})

	t.Run("unique index catches a join that slipped past the check", func(t *testing.T) {
		_, db := newLedger(t, false)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
		player := uuid.New()
		testdb.InsertPlayer(t, db, g.ID, player, now)

		err := addMember(ctx, db, &models.GamePlayer{GameID: g.ID, PlayerID: player, JoinedAt: now})
		assert.ErrorIs(t, err, ErrAlreadyJoined)

		n, err := db.NewSelect().Model((*models.GamePlayer)(nil)).Where("game_id = ?", g.ID).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("leave without a row is distinguishable", func(t *testing.T) {
		l, db := newLedger(t, false)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})

		assert.ErrorIs(t, l.Leave(ctx, g.ID, uuid.New()), ErrNotJoined)
		assert.ErrorIs(t, l.Leave(ctx, uuid.New(), uuid.New()), ErrGameNotFound)
	})
}

func TestCapacity(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("advisory by default", func(t *testing.T) {
		l, db := newLedger(t, false)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10", MaxPlayers: testdb.Ptr(4)})

		for i := 0; i < 3; i++ {
			require.NoError(t, l.Join(ctx, g.ID, uuid.New(), now))
		}
		d, err := l.Detail(ctx, g.ID, session.Guest())
		require.NoError(t, err)
		assert.Equal(t, 4, d.PlayerCount)

		require.NoError(t, l.Join(ctx, g.ID, uuid.New(), now))
		d, err = l.Detail(ctx, g.ID, session.Guest())
		require.NoError(t, err)
		assert.Equal(t, 5, d.PlayerCount)
	})

	t.Run("enforced when enabled", func(t *testing.T) {
		l, db := newLedger(t, true)
		g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10", MaxPlayers: testdb.Ptr(4)})

		for i := 0; i < 3; i++ {
			require.NoError(t, l.Join(ctx, g.ID, uuid.New(), now))
		}
		assert.ErrorIs(t, l.Join(ctx, g.ID, uuid.New(), now), ErrGameFull)
	})
}

func TestRoster(t *testing.T) {
	ctx := context.Background()
	l, db := newLedger(t, false)
	g := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})

	first, second := uuid.New(), uuid.New()
	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	testdb.InsertPlayer(t, db, g.ID, second, base.Add(time.Minute))
	testdb.InsertPlayer(t, db, g.ID, first, base)
	testdb.InsertProfile(t, db, first, "Ada", testdb.Ptr("ada@college.harvard.edu"))

	d, err := l.Detail(ctx, g.ID, session.Guest())
	require.NoError(t, err)
	require.Len(t, d.Roster, 3)

	assert.Equal(t, g.HostID, d.Roster[0].ID)
	assert.Equal(t, models.DefaultHostName, d.Roster[0].DisplayName)
	assert.True(t, d.Roster[0].IsHost)

	assert.Equal(t, first, d.Roster[1].ID)
	assert.Equal(t, "Ada", d.Roster[1].DisplayName)
	require.NotNil(t, d.Roster[1].Email)
	assert.Equal(t, "ada@college.harvard.edu", *d.Roster[1].Email)

	assert.Equal(t, second, d.Roster[2].ID)
	assert.Equal(t, models.DefaultPlayerName, d.Roster[2].DisplayName)
	assert.Nil(t, d.Roster[2].Email)
}

func TestSummarizeMany(t *testing.T) {
	ctx := context.Background()
	l, db := newLedger(t, false)
	viewer := session.Session{AccountID: uuid.New()}

	a := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
	b := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-11", HostID: viewer.AccountID})
	testdb.InsertPlayer(t, db, a.ID, viewer.AccountID, time.Now())
	testdb.InsertPlayer(t, db, a.ID, uuid.New(), time.Now())

	views, err := l.SummarizeMany(ctx, []models.Game{*a, *b}, viewer)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, 3, views[0].PlayerCount)
	assert.True(t, views[0].IsJoined)
	assert.False(t, views[0].IsHost)

	assert.Equal(t, 1, views[1].PlayerCount)
	assert.True(t, views[1].IsJoined)
	assert.True(t, views[1].IsHost)
}

func TestGamesFor(t *testing.T) {
	ctx := context.Background()
	l, db := newLedger(t, false)
	player := uuid.New()

	hosted := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-12", HostID: player})
	joined := testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-10"})
	testdb.InsertGame(t, db, models.Game{GameDate: "2030-01-11"})
	old := testdb.InsertGame(t, db, models.Game{GameDate: "2020-01-11", Archived: true})
	testdb.InsertPlayer(t, db, joined.ID, player, time.Now())
	testdb.InsertPlayer(t, db, old.ID, player, time.Now())

	games, err := l.GamesFor(ctx, player)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, joined.ID, games[0].ID)
	assert.Equal(t, hosted.ID, games[1].ID)
}

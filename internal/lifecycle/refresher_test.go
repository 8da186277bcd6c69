package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	games  []models.Game
	err    error
	cancel context.CancelFunc
	onList func()
	calls  int
}

func (f *fakeLoader) List(ctx context.Context, now time.Time) ([]models.Game, error) {
	f.calls++
	if f.cancel != nil {
		f.cancel()
	}
	if f.onList != nil {
		f.onList()
	}
	return f.games, f.err
}

type fakeSyncer struct {
	gen    uint64
	since  []uint64
	synced [][]models.Game
}

func (f *fakeSyncer) Generation() uint64 { return f.gen }

func (f *fakeSyncer) SyncSince(since uint64, games []models.Game) (int, int) {
	f.since = append(f.since, since)
	f.synced = append(f.synced, games)
	return len(games), 0
}

func TestRefresherRunOnce(t *testing.T) {
	loc := boston(t)
	now := time.Date(2025, 1, 10, 12, 1, 0, 0, loc)

	t.Run("sweeps before reloading", func(t *testing.T) {
		db := testdb.New(t)
		game := testdb.InsertGame(t, db, models.Game{GameDate: "2025-01-10", StartTime: "09:00:00"})
		loader := &fakeLoader{games: []models.Game{{GameDate: "2025-01-11"}}}
		syncer := &fakeSyncer{}

		r := NewRefresher(NewArchiver(db, loc, nil), loader, syncer, time.Minute)
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assertArchived(t, db, game.ID, true)
		assert.Equal(t, 1, loader.calls)
		require.Len(t, syncer.synced, 1)
		assert.Equal(t, loader.games, syncer.synced[0])
	})

	t.Run("generation is taken before the load", func(t *testing.T) {
		db := testdb.New(t)
		syncer := &fakeSyncer{gen: 3}
		loader := &fakeLoader{
			games:  []models.Game{{GameDate: "2025-01-11"}},
			onList: func() { syncer.gen = 5 },
		}

		r := NewRefresher(NewArchiver(db, loc, nil), loader, syncer, time.Minute)
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assert.Equal(t, []uint64{3}, syncer.since)
	})

	t.Run("load failure leaves the map alone", func(t *testing.T) {
		db := testdb.New(t)
		loader := &fakeLoader{err: errors.New("database is locked")}
		syncer := &fakeSyncer{}

		r := NewRefresher(NewArchiver(db, loc, nil), loader, syncer, time.Minute)
		r.now = func() time.Time { return now }
		r.RunOnce(context.Background())

		assert.Empty(t, syncer.synced)
	})

	t.Run("result arriving after cancellation is dropped", func(t *testing.T) {
		db := testdb.New(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		loader := &fakeLoader{games: []models.Game{{GameDate: "2025-01-11"}}, cancel: cancel}
		syncer := &fakeSyncer{}

		r := NewRefresher(NewArchiver(db, loc, nil), loader, syncer, time.Minute)
		r.now = func() time.Time { return now }
		r.RunOnce(ctx)

		assert.Equal(t, 1, loader.calls)
		assert.Empty(t, syncer.synced)
	})
}

func TestRefresherStartStopsOnCancel(t *testing.T) {
	db := testdb.New(t)
	loader := &fakeLoader{}
	syncer := &fakeSyncer{}
	r := NewRefresher(NewArchiver(db, boston(t), nil), loader, syncer, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
		}
		cancel()
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestNewRefresherDefaultsInterval(t *testing.T) {
	r := NewRefresher(nil, nil, nil, 0)
	assert.Equal(t, DefaultInterval, r.interval)
}

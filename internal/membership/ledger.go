// Package membership tracks which players have joined which games and
// derives seat counts and rosters from the stored rows.
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bananalabs-oss/powkie/internal/database"
	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultPollInterval is how often clients should re-read a roster.
const DefaultPollInterval = 10 * time.Second

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrGameArchived   = errors.New("game is archived")
	ErrHostCannotJoin = errors.New("host cannot join their own game")
	ErrAlreadyJoined  = errors.New("already joined this game")
	ErrGameFull       = errors.New("game is full")
	ErrNotJoined      = errors.New("not joined to this game")
)

// ProfileLookup resolves display identities for a roster.
type ProfileLookup interface {
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Profile, error)
}

type Ledger struct {
	db              *bun.DB
	profiles        ProfileLookup
	enforceCapacity bool
	metrics         *metrics.Metrics
}

func NewLedger(db *bun.DB, profiles ProfileLookup, enforceCapacity bool, m *metrics.Metrics) *Ledger {
	return &Ledger{db: db, profiles: profiles, enforceCapacity: enforceCapacity, metrics: m}
}

// Summarize derives the viewer-relative seat summary. The host always counts
// as one seat and is always joined, even if a stray membership row names them.
func Summarize(g *models.Game, members []uuid.UUID, viewer session.Session) models.GameView {
	count := 1
	joined := viewer.Is(g.HostID)
	for _, id := range members {
		if id == g.HostID {
			continue
		}
		count++
		if viewer.Is(id) {
			joined = true
		}
	}

	return models.GameView{
		Game:        *g,
		PlayerCount: count,
		IsJoined:    joined,
		IsHost:      viewer.Is(g.HostID),
	}
}

func (l *Ledger) game(ctx context.Context, db bun.IDB, gameID uuid.UUID) (*models.Game, error) {
	g := new(models.Game)
	err := db.NewSelect().
		Model(g).
		Where("g.id = ?", gameID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	return g, nil
}

// Members returns the membership rows of a game in join order.
func (l *Ledger) Members(ctx context.Context, gameID uuid.UUID) ([]models.GamePlayer, error) {
	return l.members(ctx, l.db, gameID)
}

func (l *Ledger) members(ctx context.Context, db bun.IDB, gameID uuid.UUID) ([]models.GamePlayer, error) {
	var rows []models.GamePlayer
	err := db.NewSelect().
		Model(&rows).
		Where("gp.game_id = ?", gameID).
		Order("gp.joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load players of game %s: %w", gameID, err)
	}
	return rows, nil
}

func playerIDs(rows []models.GamePlayer) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.PlayerID)
	}
	return ids
}

// SummarizeMany enriches a directory result with one membership query.
func (l *Ledger) SummarizeMany(ctx context.Context, games []models.Game, viewer session.Session) ([]models.GameView, error) {
	views := make([]models.GameView, 0, len(games))
	if len(games) == 0 {
		return views, nil
	}

	ids := make([]uuid.UUID, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
	}

	var rows []models.GamePlayer
	err := l.db.NewSelect().
		Model(&rows).
		Where("gp.game_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	byGame := make(map[uuid.UUID][]uuid.UUID, len(games))
	for _, r := range rows {
		byGame[r.GameID] = append(byGame[r.GameID], r.PlayerID)
	}

	for i := range games {
		views = append(views, Summarize(&games[i], byGame[games[i].ID], viewer))
	}
	return views, nil
}

// Roster lists the host first, then members in join order.
func (l *Ledger) Roster(ctx context.Context, g *models.Game, members []models.GamePlayer) ([]models.RosterEntry, error) {
	ids := []uuid.UUID{g.HostID}
	for _, m := range members {
		if m.PlayerID != g.HostID {
			ids = append(ids, m.PlayerID)
		}
	}

	found, err := l.profiles.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}

	roster := make([]models.RosterEntry, 0, len(ids))
	for i, id := range ids {
		entry := models.RosterEntry{ID: id, IsHost: i == 0}
		if i == 0 {
			entry.DisplayName = models.DefaultHostName
		} else {
			entry.DisplayName = models.DefaultPlayerName
		}
		if p, ok := found[id]; ok {
			if p.DisplayName != "" {
				entry.DisplayName = p.DisplayName
			}
			entry.Email = p.ContactEmail
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

// Detail re-reads a game, its members and roster from the store.
func (l *Ledger) Detail(ctx context.Context, gameID uuid.UUID, viewer session.Session) (*models.GameDetail, error) {
	g, err := l.game(ctx, l.db, gameID)
	if err != nil {
		return nil, err
	}

	members, err := l.Members(ctx, gameID)
	if err != nil {
		return nil, err
	}

	roster, err := l.Roster(ctx, g, members)
	if err != nil {
		return nil, err
	}

	return &models.GameDetail{
		GameView: Summarize(g, playerIDs(members), viewer),
		Roster:   roster,
	}, nil
}

// Join adds player to the game. Nothing is retried: a duplicate join, whether
// caught by the pre-check or by the unique index, reports ErrAlreadyJoined.
func (l *Ledger) Join(ctx context.Context, gameID, playerID uuid.UUID, now time.Time) error {
	err := l.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		g, err := l.game(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Archived {
			return ErrGameArchived
		}
		if g.HostID == playerID {
			return ErrHostCannotJoin
		}

		members, err := l.members(ctx, tx, gameID)
		if err != nil {
			return err
		}
		seats := 1
		for _, m := range members {
			if m.PlayerID == playerID {
				return ErrAlreadyJoined
			}
			if m.PlayerID != g.HostID {
				seats++
			}
		}
		if l.enforceCapacity && g.MaxPlayers != nil && seats >= *g.MaxPlayers {
			return ErrGameFull
		}

		return addMember(ctx, tx, &models.GamePlayer{
			GameID:   gameID,
			PlayerID: playerID,
			JoinedAt: now.UTC(),
		})
	})
	if err != nil {
		return err
	}

	l.metrics.MembershipChange("join")
	return nil
}

// addMember inserts row. The unique index on (game_id, player_id) is the
// last word on double joins that race past the membership check.
func addMember(ctx context.Context, db bun.IDB, row *models.GamePlayer) error {
	_, err := db.NewInsert().Model(row).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrAlreadyJoined
	}
	return err
}

// Leave removes the (game, player) row. A missing row is reported as
// ErrNotJoined so callers can tell it apart from a real removal.
func (l *Ledger) Leave(ctx context.Context, gameID, playerID uuid.UUID) error {
	if _, err := l.game(ctx, l.db, gameID); err != nil {
		return err
	}

	res, err := l.db.NewDelete().
		Model((*models.GamePlayer)(nil)).
		Where("game_id = ?", gameID).
		Where("player_id = ?", playerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to leave game %s: %w", gameID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotJoined
	}

	l.metrics.MembershipChange("leave")
	return nil
}

// GamesFor lists the active games a player hosts or has joined.
func (l *Ledger) GamesFor(ctx context.Context, playerID uuid.UUID) ([]models.Game, error) {
	var games []models.Game
	joined := l.db.NewSelect().
		Model((*models.GamePlayer)(nil)).
		ColumnExpr("gp.game_id").
		Where("gp.player_id = ?", playerID)

	err := l.db.NewSelect().
		Model(&games).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("g.host_id = ?", playerID).
				WhereOr("g.id IN (?)", joined)
		}).
		Where("COALESCE(g.archived, ?) = ?", false, false).
		Order("g.game_date ASC", "g.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load games of player %s: %w", playerID, err)
	}
	return games, nil
}

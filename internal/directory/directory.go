// Package directory answers "which games are on" queries.
package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/lifecycle"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/uptrace/bun"
)

const (
	DisplayDateLayout = "Monday, January 2, 2006"
	DisplayTimeLayout = "3:04 PM"
)

type Directory struct {
	db  *bun.DB
	loc *time.Location
}

func New(db *bun.DB, loc *time.Location) *Directory {
	return &Directory{db: db, loc: loc}
}

// List returns active games from today onward, soonest first. A null
// archived flag counts as active.
func (d *Directory) List(ctx context.Context, now time.Time) ([]models.Game, error) {
	today := now.In(d.loc).Format(models.DateLayout)

	games := make([]models.Game, 0)
	err := d.db.NewSelect().
		Model(&games).
		Where("COALESCE(g.archived, ?) = ?", false, false).
		Where("g.game_date >= ?", today).
		Order("g.game_date ASC", "g.start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return games, nil
}

// Archived returns the most recent archived games, newest first.
func (d *Directory) Archived(ctx context.Context) ([]models.Game, error) {
	games := make([]models.Game, 0)
	err := d.db.NewSelect().
		Model(&games).
		Where("g.archived = ?", true).
		Order("g.game_date DESC", "g.start_time DESC").
		Limit(models.ArchivedListLimit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived games: %w", err)
	}
	return games, nil
}

// FormatDate renders a stored date the way listings show it. Unparseable
// values are returned as stored.
func FormatDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(DisplayDateLayout)
}

func FormatTime(clock string) string {
	t, err := lifecycle.ParseClock(clock)
	if err != nil {
		return clock
	}
	return t.Format(DisplayTimeLayout)
}

func searchText(g *models.Game) string {
	return strings.ToLower(strings.Join([]string{
		g.GameType,
		g.Address,
		FormatDate(g.GameDate),
		FormatTime(g.StartTime),
	}, " "))
}

// Filter narrows an already fetched result to games whose type, address or
// displayed schedule contains text, ignoring case.
func Filter(games []models.Game, text string) []models.Game {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return games
	}

	out := make([]models.Game, 0, len(games))
	for i := range games {
		if strings.Contains(searchText(&games[i]), needle) {
			out = append(out, games[i])
		}
	}
	return out
}

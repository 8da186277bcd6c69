// Package lifecycle retires games once they are over and keeps the derived
// views fresh on a fixed schedule.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StartTime is the instant a game begins: its wall-clock date and time in loc.
func StartTime(g *models.Game, loc *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(models.DateLayout, g.GameDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("game %s has invalid date %q: %w", g.ID, g.GameDate, err)
	}

	clock, err := ParseClock(g.StartTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("game %s has invalid start time %q: %w", g.ID, g.StartTime, err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, loc), nil
}

// ParseClock accepts "15:04" and "15:04:05".
func ParseClock(s string) (time.Time, error) {
	if t, err := time.Parse(models.TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("15:04", s)
}

func Deadline(g *models.Game, loc *time.Location) (time.Time, error) {
	start, err := StartTime(g, loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(models.ArchiveGracePeriod), nil
}

type Archiver struct {
	db      *bun.DB
	loc     *time.Location
	metrics *metrics.Metrics
}

func NewArchiver(db *bun.DB, loc *time.Location, m *metrics.Metrics) *Archiver {
	return &Archiver{db: db, loc: loc, metrics: m}
}

// Due returns the ids of games whose deadline is at or before now. Rows with
// an unparseable schedule are never due.
func (a *Archiver) Due(games []models.Game, now time.Time) []uuid.UUID {
	var due []uuid.UUID
	for i := range games {
		deadline, err := Deadline(&games[i], a.loc)
		if err != nil {
			log.Printf("[Archiver] Skipping game: %v", err)
			continue
		}
		if !now.Before(deadline) {
			due = append(due, games[i].ID)
		}
	}
	return due
}

// Sweep flags every finished game as archived in one batched update and
// returns how many were flagged. It is best-effort: read and write failures
// are logged and reported as zero archived.
func (a *Archiver) Sweep(ctx context.Context, now time.Time) int {
	var games []models.Game
	err := a.db.NewSelect().
		Model(&games).
		Column("id", "game_date", "start_time").
		Where("COALESCE(g.archived, ?) = ?", false, false).
		Scan(ctx)
	if err != nil {
		log.Printf("[Archiver] Failed to load active games: %v", err)
		a.metrics.ArchiveSweep("fetch_failed")
		return 0
	}

	due := a.Due(games, now)
	if len(due) == 0 {
		a.metrics.ArchiveSweep("noop")
		return 0
	}

	res, err := a.db.NewUpdate().
		Model((*models.Game)(nil)).
		Set("archived = ?", true).
		Set("updated_at = ?", now.UTC()).
		Where("id IN (?)", bun.In(due)).
		Where("COALESCE(archived, ?) = ?", false, false).
		Exec(ctx)
	if err != nil {
		log.Printf("[Archiver] Failed to archive %d games: %v", len(due), err)
		a.metrics.ArchiveSweep("update_failed")
		return 0
	}

	archived := len(due)
	if n, err := res.RowsAffected(); err == nil {
		archived = int(n)
	}

	log.Printf("[Archiver] Archived %d games", archived)
	a.metrics.ArchiveSweep("archived")
	a.metrics.GamesArchived(archived)
	return archived
}

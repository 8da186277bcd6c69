// Package editor applies host mutations to games. Every write is
// all-or-nothing: a game is never stored with coordinates that do not belong
// to its address.
package editor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bananalabs-oss/powkie/internal/geocode"
	"github.com/bananalabs-oss/powkie/internal/lifecycle"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrNotHost      = errors.New("only the host can change this game")
)

// ValidationError maps field names to what is wrong with them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid fields: " + strings.Join(names, ", ")
}

// GeocodeError wraps a failed address lookup.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("could not locate %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

type Fields struct {
	GameType     string `json:"game_type"`
	LocationName string `json:"location_name"`
	Address      string `json:"address"`
	GameDate     string `json:"game_date"`
	StartTime    string `json:"start_time"`
	BuyIn        string `json:"buy_in"`
	MaxPlayers   *int   `json:"max_players"`
}

// Normalize trims every field, checks the required ones and rewrites the
// start time as HH:MM:SS.
func (f Fields) Normalize() (Fields, error) {
	out := Fields{
		GameType:     strings.TrimSpace(f.GameType),
		LocationName: strings.TrimSpace(f.LocationName),
		Address:      strings.TrimSpace(f.Address),
		GameDate:     strings.TrimSpace(f.GameDate),
		StartTime:    strings.TrimSpace(f.StartTime),
		BuyIn:        strings.TrimSpace(f.BuyIn),
		MaxPlayers:   f.MaxPlayers,
	}

	problems := make(map[string]string)
	required := []struct {
		name, value, label string
	}{
		{"game_type", out.GameType, "Game type"},
		{"location_name", out.LocationName, "Location name"},
		{"address", out.Address, "Address"},
		{"game_date", out.GameDate, "Date"},
		{"start_time", out.StartTime, "Time"},
	}
	for _, r := range required {
		if r.value == "" {
			problems[r.name] = r.label + " is required"
		}
	}

	if out.GameDate != "" {
		if _, err := time.Parse(models.DateLayout, out.GameDate); err != nil {
			problems["game_date"] = "Date must look like 2025-01-31"
		}
	}
	if out.StartTime != "" {
		clock, err := lifecycle.ParseClock(out.StartTime)
		if err != nil {
			problems["start_time"] = "Time must look like 19:30"
		} else {
			out.StartTime = clock.Format(models.TimeLayout)
		}
	}
	if out.MaxPlayers != nil && *out.MaxPlayers <= 0 {
		problems["max_players"] = "Max players must be a positive number"
	}

	if len(problems) > 0 {
		return Fields{}, &ValidationError{Fields: problems}
	}
	return out, nil
}

func (f Fields) locationName() *string {
	if f.LocationName == "" {
		return nil
	}
	v := f.LocationName
	return &v
}

type Editor struct {
	db       *bun.DB
	geocoder geocode.Geocoder
}

func New(db *bun.DB, geocoder geocode.Geocoder) *Editor {
	return &Editor{db: db, geocoder: geocoder}
}

func (e *Editor) locate(ctx context.Context, address string) (geocode.Point, error) {
	p, err := e.geocoder.Geocode(ctx, address)
	if err != nil {
		return geocode.Point{}, &GeocodeError{Address: address, Err: err}
	}
	return p, nil
}

func (e *Editor) load(ctx context.Context, db bun.IDB, gameID, hostID uuid.UUID) (*models.Game, error) {
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
	if g.HostID != hostID {
		return nil, ErrNotHost
	}
	return g, nil
}

// Create validates and geocodes before anything is written.
func (e *Editor) Create(ctx context.Context, hostID uuid.UUID, fields Fields, now time.Time) (*models.Game, error) {
	f, err := fields.Normalize()
	if err != nil {
		return nil, err
	}

	p, err := e.locate(ctx, f.Address)
	if err != nil {
		return nil, err
	}

	g := &models.Game{
		ID:           uuid.New(),
		HostID:       hostID,
		GameType:     f.GameType,
		LocationName: f.locationName(),
		Address:      f.Address,
		Lng:          &p.Lng,
		Lat:          &p.Lat,
		GameDate:     f.GameDate,
		StartTime:    f.StartTime,
		BuyIn:        f.BuyIn,
		MaxPlayers:   f.MaxPlayers,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}

	if _, err := e.db.NewInsert().Model(g).Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return g, nil
}

// Update replaces the descriptive fields of a game. The address is only
// geocoded when it changed; otherwise stored coordinates are kept as is.
func (e *Editor) Update(ctx context.Context, gameID, hostID uuid.UUID, fields Fields, now time.Time) (*models.Game, error) {
	f, err := fields.Normalize()
	if err != nil {
		return nil, err
	}

	g, err := e.load(ctx, e.db, gameID, hostID)
	if err != nil {
		return nil, err
	}

	if f.Address != strings.TrimSpace(g.Address) {
		p, err := e.locate(ctx, f.Address)
		if err != nil {
			return nil, err
		}
		g.Lng, g.Lat = &p.Lng, &p.Lat
	}

	g.GameType = f.GameType
	g.LocationName = f.locationName()
	g.Address = f.Address
	g.GameDate = f.GameDate
	g.StartTime = f.StartTime
	g.BuyIn = f.BuyIn
	g.MaxPlayers = f.MaxPlayers
	g.UpdatedAt = now.UTC()

	res, err := e.db.NewUpdate().
		Model(g).
		Column("game_type", "location_name", "address", "lng", "lat",
			"game_date", "start_time", "buy_in", "max_players", "updated_at").
		Where("id = ?", gameID).
		Where("host_id = ?", hostID).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update game %s: %w", gameID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrGameNotFound
	}

	return g, nil
}

// Delete removes a game and its memberships together.
func (e *Editor) Delete(ctx context.Context, gameID, hostID uuid.UUID) error {
	return e.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := e.load(ctx, tx, gameID, hostID); err != nil {
			return err
		}

		if _, err := tx.NewDelete().
			Model((*models.GamePlayer)(nil)).
			Where("game_id = ?", gameID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove players of game %s: %w", gameID, err)
		}

		if _, err := tx.NewDelete().
			Model((*models.Game)(nil)).
			Where("id = ?", gameID).
			Where("host_id = ?", hostID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete game %s: %w", gameID, err)
		}
		return nil
	})
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	ArchiveGracePeriod = 3 * time.Hour
	ArchivedListLimit  = 20

	DefaultHostName   = "Host"
	DefaultPlayerName = "Player"
)

type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID           uuid.UUID `bun:"id,pk,type:text"              json:"id"`
	HostID       uuid.UUID `bun:"host_id,notnull,type:text"    json:"host_id"`
	GameType     string    `bun:"game_type,notnull"            json:"game_type"`
	LocationName *string   `bun:"location_name"                json:"location_name"`
	Address      string    `bun:"address,notnull"              json:"address"`
	Lng          *float64  `bun:"lng"                          json:"lng"`
	Lat          *float64  `bun:"lat"                          json:"lat"`
	GameDate     string    `bun:"game_date,notnull"            json:"game_date"`
	StartTime    string    `bun:"start_time,notnull"           json:"start_time"`
	BuyIn        string    `bun:"buy_in,notnull"               json:"buy_in"`
	MaxPlayers   *int      `bun:"max_players"                  json:"max_players"`
	Archived     bool      `bun:"archived"                     json:"archived"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull"  json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull"  json:"updated_at"`

	Players []GamePlayer `bun:"rel:has-many,join:id=game_id" json:"-"`
}

type GamePlayer struct {
	bun.BaseModel `bun:"table:game_players,alias:gp"`

	GameID   uuid.UUID `bun:"game_id,notnull,type:text"    json:"game_id"`
	PlayerID uuid.UUID `bun:"player_id,notnull,type:text"  json:"player_id"`
	JoinedAt time.Time `bun:"joined_at,nullzero,notnull"   json:"joined_at"`
}

type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:pr"`

	UserID       uuid.UUID `bun:"user_id,pk,type:text"        json:"user_id"`
	DisplayName  string    `bun:"display_name,notnull"        json:"display_name"`
	Bio          *string   `bun:"bio"                         json:"bio"`
	ContactEmail *string   `bun:"contact_email"               json:"contact_email"`
	ContactPhone *string   `bun:"contact_phone"               json:"contact_phone"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull" json:"created_at"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull" json:"updated_at"`
}

// GameView is a game enriched with the viewer-relative membership summary.
type GameView struct {
	Game
	PlayerCount int  `json:"players_count"`
	IsJoined    bool `json:"is_joined"`
	IsHost      bool `json:"is_host"`
}

type RosterEntry struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       *string   `json:"email,omitempty"`
	IsHost      bool      `json:"is_host"`
}

type GameDetail struct {
	GameView
	Roster []RosterEntry `json:"players"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

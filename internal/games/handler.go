package games

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bananalabs-oss/powkie/internal/directory"
	"github.com/bananalabs-oss/powkie/internal/editor"
	"github.com/bananalabs-oss/powkie/internal/geocode"
	"github.com/bananalabs-oss/powkie/internal/lifecycle"
	"github.com/bananalabs-oss/powkie/internal/markers"
	"github.com/bananalabs-oss/powkie/internal/membership"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MapConfig struct {
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
	Style  string     `json:"style"`
}

// DefaultMapConfig centers on 64 Linnaean St, Cambridge MA.
var DefaultMapConfig = MapConfig{
	Center: [2]float64{-71.1205, 42.3805},
	Zoom:   15,
	Style:  "mapbox://styles/mapbox/streets-v12",
}

type Deps struct {
	Directory  *directory.Directory
	Ledger     *membership.Ledger
	Archiver   *lifecycle.Archiver
	Editor     *editor.Editor
	Markers    *markers.Synchronizer
	Layer      *markers.Layer
	RosterPoll time.Duration
	Map        MapConfig
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.RosterPoll <= 0 {
		d.RosterPoll = membership.DefaultPollInterval
	}
	if d.Map.Style == "" {
		d.Map = DefaultMapConfig
	}
	return &Handler{Deps: d, now: time.Now}
}

func gameID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_game_id",
			Message: "Game ID must be a valid UUID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps component errors onto responses. Anything unrecognised is
// logged and reported as unexpected.
func writeError(c *gin.Context, err error) {
	var verr *editor.ValidationError
	var gerr *editor.GeocodeError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, models.ValidationErrorResponse{
			Error:   "validation_failed",
			Message: "Please fix the highlighted fields",
			Fields:  verr.Fields,
		})
	case errors.Is(err, geocode.ErrNotFound):
		c.JSON(http.StatusUnprocessableEntity, models.ValidationErrorResponse{
			Error:   "address_not_found",
			Message: "We couldn't find that address",
			Fields:  map[string]string{"address": "Address could not be located"},
		})
	case errors.Is(err, geocode.ErrMissingCredential):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "geocoding_unavailable",
			Message: "Address lookup is not configured",
		})
	case errors.As(err, &gerr):
		log.Printf("[Games] %v", err)
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "geocoding_failed",
			Message: "Address lookup failed, try again",
		})
	case errors.Is(err, editor.ErrGameNotFound), errors.Is(err, membership.ErrGameNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "game_not_found",
			Message: "Game not found",
		})
	case errors.Is(err, editor.ErrNotHost):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Error:   "not_host",
			Message: "Only the host can do that",
		})
	case errors.Is(err, membership.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "already_joined",
			Message: "You have already joined this game",
		})
	case errors.Is(err, membership.ErrHostCannotJoin):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "host_cannot_join",
			Message: "You are hosting this game",
		})
	case errors.Is(err, membership.ErrGameArchived):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "game_archived",
			Message: "This game is over",
		})
	case errors.Is(err, membership.ErrGameFull):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "game_full",
			Message: "This game is full",
		})
	default:
		log.Printf("[Games] Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "unexpected_error",
			Message: "An unexpected error occurred",
		})
	}
}

// refreshMarkers reloads the directory into the map layer after a mutation.
// Failures only leave the map one refresh behind.
func (h *Handler) refreshMarkers(ctx context.Context) {
	gen := h.Markers.Generation()
	games, err := h.Directory.List(ctx, h.now())
	if err != nil {
		log.Printf("[Games] Failed to refresh markers: %v", err)
		return
	}
	h.Markers.SyncSince(gen, games)
}

// --- Public endpoints ---

// ListGames runs the archival gate before reading, so a finished game never
// shows up in the directory.
func (h *Handler) ListGames(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()

	h.Archiver.Sweep(ctx, now)

	gen := h.Markers.Generation()
	games, err := h.Directory.List(ctx, now)
	if err != nil {
		writeError(c, err)
		return
	}
	h.Markers.SyncSince(gen, games)

	views, err := h.Ledger.SummarizeMany(ctx, directory.Filter(games, c.Query("q")), session.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": views})
}

// ListArchived runs the same archival gate as ListGames, so a game past its
// deadline is listed here even if nothing else has swept yet.
func (h *Handler) ListArchived(c *gin.Context) {
	ctx := c.Request.Context()

	h.Archiver.Sweep(ctx, h.now())

	games, err := h.Directory.Archived(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	views, err := h.Ledger.SummarizeMany(ctx, games, session.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": views})
}

func (h *Handler) GetGame(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}

	detail, err := h.Ledger.Detail(c.Request.Context(), id, session.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetRoster(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}

	detail, err := h.Ledger.Detail(c.Request.Context(), id, session.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":                  detail.ID,
		"players_count":            detail.PlayerCount,
		"is_joined":                detail.IsJoined,
		"is_host":                  detail.IsHost,
		"players":                  detail.Roster,
		"refresh_interval_seconds": int(h.RosterPoll / time.Second),
	})
}

// --- Map endpoints ---

func (h *Handler) GetMapConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.Map)
}

func (h *Handler) GetMarkers(c *gin.Context) {
	fc, revision := h.Layer.Snapshot()
	etag := markers.ETag(revision)

	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// SelectMarker is a marker click: it opens the game behind the marker for
// any viewer.
func (h *Handler) SelectMarker(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}

	if !h.Markers.Select(id) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "marker_not_found",
			Message: "No marker for that game",
		})
		return
	}

	detail, err := h.Ledger.Detail(c.Request.Context(), id, session.FromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// --- Player-facing endpoints (session required) ---

func (h *Handler) CreateGame(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.FromContext(c)

	var req editor.Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON game",
		})
		return
	}

	g, err := h.Editor.Create(ctx, s.AccountID, req, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	h.refreshMarkers(ctx)

	detail, err := h.Ledger.Detail(ctx, g.ID, s)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

func (h *Handler) UpdateGame(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.FromContext(c)

	id, ok := gameID(c)
	if !ok {
		return
	}

	var req editor.Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON game",
		})
		return
	}

	if _, err := h.Editor.Update(ctx, id, s.AccountID, req, h.now()); err != nil {
		writeError(c, err)
		return
	}
	h.refreshMarkers(ctx)

	detail, err := h.Ledger.Detail(ctx, id, s)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) DeleteGame(c *gin.Context) {
	ctx := c.Request.Context()

	id, ok := gameID(c)
	if !ok {
		return
	}

	if err := h.Editor.Delete(ctx, id, session.FromContext(c).AccountID); err != nil {
		writeError(c, err)
		return
	}
	h.Markers.Remove(id)

	c.JSON(http.StatusOK, gin.H{"message": "Game deleted"})
}

func (h *Handler) JoinGame(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.FromContext(c)

	id, ok := gameID(c)
	if !ok {
		return
	}

	if err := h.Ledger.Join(ctx, id, s.AccountID, h.now()); err != nil {
		writeError(c, err)
		return
	}

	detail, err := h.Ledger.Detail(ctx, id, s)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"joined": true, "game": detail})
}

// LeaveGame answers 200 even when the viewer was not in the game; the body
// says whether a row was actually removed.
func (h *Handler) LeaveGame(c *gin.Context) {
	ctx := c.Request.Context()
	s := session.FromContext(c)

	id, ok := gameID(c)
	if !ok {
		return
	}

	removed := true
	if err := h.Ledger.Leave(ctx, id, s.AccountID); err != nil {
		if !errors.Is(err, membership.ErrNotJoined) {
			writeError(c, err)
			return
		}
		removed = false
	}

	detail, err := h.Ledger.Detail(ctx, id, s)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed, "game": detail})
}

// --- Internal endpoints (service token) ---

func (h *Handler) SweepNow(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()

	archived := h.Archiver.Sweep(ctx, now)
	h.refreshMarkers(ctx)

	c.JSON(http.StatusOK, gin.H{"archived": archived, "swept_at": now.UTC()})
}

func (h *Handler) GetGameByID(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}

	detail, err := h.Ledger.Detail(c.Request.Context(), id, session.Guest())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetPlayerGames(c *gin.Context) {
	ctx := c.Request.Context()

	playerID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_user_id",
			Message: "User ID must be a valid UUID",
		})
		return
	}

	games, err := h.Ledger.GamesFor(ctx, playerID)
	if err != nil {
		writeError(c, err)
		return
	}

	views, err := h.Ledger.SummarizeMany(ctx, games, session.Session{AccountID: playerID})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"games": views})
}

package router

import (
	"net/http"

	"github.com/bananalabs-oss/powkie/internal/games"
	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/bananalabs-oss/powkie/internal/profiles"
	"github.com/bananalabs-oss/powkie/internal/session"
	potassium "github.com/bananalabs-oss/potassium/middleware"
	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
)

type Handlers struct {
	Games    *games.Handler
	Profiles *profiles.Handler
}

func Setup(db *bun.DB, sess session.Config, serviceToken string, h Handlers, m *metrics.Metrics) *gin.Engine {
	r := gin.Default()
	r.Use(session.Resolve(sess))

	r.GET("/health", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "powkie"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "powkie"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/session", session.Current)

	// Readable by guests
	r.GET("/games", h.Games.ListGames)
	r.GET("/games/archived", h.Games.ListArchived)
	r.GET("/games/:id", h.Games.GetGame)
	r.GET("/games/:id/roster", h.Games.GetRoster)
	r.GET("/profiles/:userId", h.Profiles.GetProfile)

	mapGroup := r.Group("/map")
	{
		mapGroup.GET("/config", h.Games.GetMapConfig)
		mapGroup.GET("/markers", h.Games.GetMarkers)
		mapGroup.GET("/markers/:id", h.Games.SelectMarker)
	}

	// Player-facing mutations (session required)
	api := r.Group("")
	api.Use(session.Require(sess))
	{
		api.POST("/games", h.Games.CreateGame)
		api.PATCH("/games/:id", h.Games.UpdateGame)
		api.DELETE("/games/:id", h.Games.DeleteGame)
		api.POST("/games/:id/join", h.Games.JoinGame)
		api.POST("/games/:id/leave", h.Games.LeaveGame)
		api.PUT("/profile", h.Profiles.PutProfile)
	}

	// Internal endpoints (service token auth via Potassium)
	internal := r.Group("/internal")
	internal.Use(potassium.ServiceAuth(serviceToken))
	{
		internal.POST("/archive/sweep", h.Games.SweepNow)
		internal.GET("/games/:id", h.Games.GetGameByID)
		internal.GET("/players/:userId/games", h.Games.GetPlayerGames)
	}

	return r
}

package profiles

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/bananalabs-oss/powkie/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// GetProfile is public. Accounts that never saved a profile get the
// placeholder identity rather than a 404.
func (h *Handler) GetProfile(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_user_id",
			Message: "User ID must be a valid UUID",
		})
		return
	}

	p, err := h.store.Get(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusOK, models.Profile{
			UserID:      userID,
			DisplayName: models.DefaultPlayerName,
		})
		return
	}
	if err != nil {
		log.Printf("[Profiles] %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch profile",
		})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *Handler) PutProfile(c *gin.Context) {
	var req Fields
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Request body must be a JSON profile",
		})
		return
	}

	p, err := h.store.Upsert(c.Request.Context(), session.FromContext(c), req, time.Now())
	if errors.Is(err, ErrDisplayNameNeeded) {
		c.JSON(http.StatusBadRequest, models.ValidationErrorResponse{
			Error:   "validation_failed",
			Message: "Please fix the highlighted fields",
			Fields:  map[string]string{"display_name": "Display name is required"},
		})
		return
	}
	if err != nil {
		log.Printf("[Profiles] %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "save_failed",
			Message: "Failed to save profile",
		})
		return
	}

	c.JSON(http.StatusOK, p)
}

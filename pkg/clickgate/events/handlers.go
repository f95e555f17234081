// Package events exposes the owner-facing tracking event API: listing
// recorded hits with filters and removing individual records.
package events

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/auth"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

// Handler handles tracking event requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new events handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List returns events for the authenticated user's links, newest first.
// Filters: link_id, verdict, is_bot, country; limit/offset pagination.
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)

	query := h.db.Model(&models.TrackingEvent{}).
		Joins("JOIN links ON links.id = tracking_events.link_id").
		Where("links.user_id = ?", userID).
		Order("tracking_events.timestamp DESC")

	if linkID := c.Query("link_id"); linkID != "" {
		query = query.Where("tracking_events.link_id = ?", linkID)
	}
	if verdict := c.Query("verdict"); verdict != "" {
		query = query.Where("tracking_events.verdict = ?", verdict)
	}
	if isBot := c.Query("is_bot"); isBot != "" {
		query = query.Where("tracking_events.is_bot = ?", isBot == "true")
	}
	if country := c.Query("country"); country != "" {
		query = query.Where("tracking_events.country = ?", country)
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var events []models.TrackingEvent
	if err := query.Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// Delete removes a single event. The event must belong to one of the
// authenticated user's links; anything else reads as not found.
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}

	var event models.TrackingEvent
	if err := h.db.
		Joins("JOIN links ON links.id = tracking_events.link_id").
		Where("tracking_events.id = ? AND links.user_id = ?", eventID, userID).
		First(&event).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	if err := h.db.Delete(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted"})
}

// RegisterRoutes registers event routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events", h.List)
	rg.DELETE("/events/:id", h.Delete)
}

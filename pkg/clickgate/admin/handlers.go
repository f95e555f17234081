// Package admin implements the platform administration API: user management,
// link suspension, event purging, and system-wide stats.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/auth"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
	LinkCount  int64  `json:"link_count"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers     int64 `json:"total_users"`
	TotalLinks     int64 `json:"total_links"`
	ActiveLinks    int64 `json:"active_links"`
	SuspendedLinks int64 `json:"suspended_links"`
	TotalEvents    int64 `json:"total_events"`
	BlockedEvents  int64 `json:"blocked_events"`
	AdminUsers     int64 `json:"admin_users"`
	InactiveUsers  int64 `json:"inactive_users"`
}

func (h *Handler) userToResponse(user models.User) UserResponse {
	var linkCount int64
	h.db.Model(&models.Link{}).Where("user_id = ?", user.ID).Count(&linkCount)

	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		SystemRole: string(user.SystemRole),
		Active:     user.Active,
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LinkCount:  linkCount,
	}
}

// ListUsers returns all users
func (h *Handler) ListUsers(c *gin.Context) {
	query := h.db.Order("created_at DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.userToResponse(user)
	}
	c.JSON(http.StatusOK, responses)
}

// SetUserActive enables or disables a user account. Admins cannot disable
// their own account.
func (h *Handler) SetUserActive(c *gin.Context) {
	adminID, _ := auth.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if uint(id) == adminID && !*req.Active {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot disable your own account"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.db.Model(&user).Update("active", *req.Active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	user.Active = *req.Active
	c.JSON(http.StatusOK, h.userToResponse(user))
}

// SuspendLink forces a link into the suspended state. Suspended links block
// every hit and cannot be reactivated by their owner.
func (h *Handler) SuspendLink(c *gin.Context) {
	h.setLinkStatus(c, models.LinkStatusSuspended)
}

// ReinstateLink returns a suspended link to the active state
func (h *Handler) ReinstateLink(c *gin.Context) {
	h.setLinkStatus(c, models.LinkStatusActive)
}

func (h *Handler) setLinkStatus(c *gin.Context, status models.LinkStatus) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return
	}

	var link models.Link
	if err := h.db.First(&link, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	if err := h.db.Model(&link).Update("status", status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": link.ID, "status": status})
}

// PurgeLinkEvents deletes all recorded events for a link and resets its
// counters. The link itself survives.
func (h *Handler) PurgeLinkEvents(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return
	}

	var link models.Link
	if err := h.db.First(&link, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	var purged int64
	err = h.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("link_id = ?", link.ID).Delete(&models.TrackingEvent{})
		if result.Error != nil {
			return result.Error
		}
		purged = result.RowsAffected
		return tx.Model(&link).Updates(map[string]interface{}{
			"total_clicks":     0,
			"real_visitors":    0,
			"blocked_attempts": 0,
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to purge events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

// Stats returns system-wide statistics
func (h *Handler) Stats(c *gin.Context) {
	var stats StatsResponse
	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)
	h.db.Model(&models.User{}).Where("active = ?", false).Count(&stats.InactiveUsers)
	h.db.Model(&models.Link{}).Count(&stats.TotalLinks)
	h.db.Model(&models.Link{}).Where("status = ?", models.LinkStatusActive).Count(&stats.ActiveLinks)
	h.db.Model(&models.Link{}).Where("status = ?", models.LinkStatusSuspended).Count(&stats.SuspendedLinks)
	h.db.Model(&models.TrackingEvent{}).Count(&stats.TotalEvents)
	h.db.Model(&models.TrackingEvent{}).Where("verdict != ?", models.VerdictAllow).Count(&stats.BlockedEvents)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users", h.ListUsers)
	rg.PUT("/users/:id/active", h.SetUserActive)
	rg.PUT("/links/:id/suspend", h.SuspendLink)
	rg.PUT("/links/:id/reinstate", h.ReinstateLink)
	rg.DELETE("/links/:id/events", h.PurgeLinkEvents)
	rg.GET("/stats", h.Stats)
}

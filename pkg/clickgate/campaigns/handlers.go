// Package campaigns groups tracking links for aggregate reporting.
package campaigns

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/auth"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

// Handler handles campaign requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new campaigns handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateCampaignRequest represents the request to create a campaign
type CreateCampaignRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// UpdateCampaignRequest represents the request to update a campaign
type UpdateCampaignRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description"`
}

// CampaignResponse represents a campaign with aggregate link stats
type CampaignResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	LinkCount       int64  `json:"link_count"`
	TotalClicks     int64  `json:"total_clicks"`
	RealVisitors    int64  `json:"real_visitors"`
	BlockedAttempts int64  `json:"blocked_attempts"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type campaignTotals struct {
	LinkCount       int64
	TotalClicks     int64
	RealVisitors    int64
	BlockedAttempts int64
}

func (h *Handler) campaignToResponse(campaign models.Campaign) CampaignResponse {
	var totals campaignTotals
	h.db.Model(&models.Link{}).
		Select("count(*) as link_count, coalesce(sum(total_clicks), 0) as total_clicks, coalesce(sum(real_visitors), 0) as real_visitors, coalesce(sum(blocked_attempts), 0) as blocked_attempts").
		Where("campaign_id = ?", campaign.ID).
		Scan(&totals)

	return CampaignResponse{
		ID:              campaign.ID,
		Name:            campaign.Name,
		Description:     campaign.Description,
		LinkCount:       totals.LinkCount,
		TotalClicks:     totals.TotalClicks,
		RealVisitors:    totals.RealVisitors,
		BlockedAttempts: totals.BlockedAttempts,
		CreatedAt:       campaign.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       campaign.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *Handler) ownedCampaign(c *gin.Context) (*models.Campaign, bool) {
	userID, _ := auth.CurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid campaign ID"})
		return nil, false
	}

	var campaign models.Campaign
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&campaign).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return nil, false
	}
	return &campaign, true
}

// Create creates a new campaign
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)

	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign := models.Campaign{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.db.Create(&campaign).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create campaign"})
		return
	}
	c.JSON(http.StatusCreated, h.campaignToResponse(campaign))
}

// List returns the authenticated user's campaigns with aggregate stats
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)

	var campaigns []models.Campaign
	if err := h.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&campaigns).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch campaigns"})
		return
	}

	responses := make([]CampaignResponse, len(campaigns))
	for i, campaign := range campaigns {
		responses[i] = h.campaignToResponse(campaign)
	}
	c.JSON(http.StatusOK, responses)
}

// Get returns a single campaign with its links
func (h *Handler) Get(c *gin.Context) {
	campaign, ok := h.ownedCampaign(c)
	if !ok {
		return
	}

	var campaignLinks []models.Link
	h.db.Where("campaign_id = ?", campaign.ID).Order("total_clicks DESC").Find(&campaignLinks)

	c.JSON(http.StatusOK, gin.H{
		"campaign": h.campaignToResponse(*campaign),
		"links":    campaignLinks,
	})
}

// Update updates a campaign's name or description
func (h *Handler) Update(c *gin.Context) {
	campaign, ok := h.ownedCampaign(c)
	if !ok {
		return
	}

	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.Description != nil {
		campaign.Description = *req.Description
	}
	if err := h.db.Save(campaign).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update campaign"})
		return
	}
	c.JSON(http.StatusOK, h.campaignToResponse(*campaign))
}

// Delete removes a campaign. Its links survive and become uncampaigned.
func (h *Handler) Delete(c *gin.Context) {
	campaign, ok := h.ownedCampaign(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Link{}).Where("campaign_id = ?", campaign.ID).
			Update("campaign_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(campaign).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete campaign"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Campaign deleted"})
}

// RegisterRoutes registers campaign routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/campaigns", h.List)
	rg.POST("/campaigns", h.Create)
	rg.GET("/campaigns/:id", h.Get)
	rg.PUT("/campaigns/:id", h.Update)
	rg.DELETE("/campaigns/:id", h.Delete)
}

// Package links implements the owner-facing tracking link API: creation
// with access rules, listing with counters, rule updates, code regeneration,
// pause/resume, and per-link stats.
package links

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/auth"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/shortcode"
)

// Handler handles link-related requests
type Handler struct {
	db      *gorm.DB
	codes   *shortcode.Allocator
	baseURL string
}

// NewHandler creates a new links handler. baseURL is the public origin used
// to build tracking URLs in responses.
func NewHandler(db *gorm.DB, codes *shortcode.Allocator, baseURL string) *Handler {
	return &Handler{db: db, codes: codes, baseURL: baseURL}
}

// GeoRules carries the allow/block location lists of a link
type GeoRules struct {
	AllowedCountries []string `json:"allowed_countries"`
	BlockedCountries []string `json:"blocked_countries"`
	AllowedRegions   []string `json:"allowed_regions"`
	BlockedRegions   []string `json:"blocked_regions"`
	AllowedCities    []string `json:"allowed_cities"`
	BlockedCities    []string `json:"blocked_cities"`
}

// CreateLinkRequest represents the request to create a link
type CreateLinkRequest struct {
	TargetURL           string     `json:"target_url" binding:"required,url"`
	Title               string     `json:"title"`
	CampaignID          *uint      `json:"campaign_id"`
	CampaignName        string     `json:"campaign_name"`
	BotBlockingEnabled  *bool      `json:"bot_blocking_enabled"`
	RateLimitingEnabled bool       `json:"rate_limiting_enabled"`
	GeoTargetingEnabled bool       `json:"geo_targeting_enabled"`
	CaptureEmail        bool       `json:"capture_email"`
	CapturePassword     bool       `json:"capture_password"`
	Password            string     `json:"password"`
	ExpiresAt           *time.Time `json:"expires_at"`
	GeoRules            *GeoRules  `json:"geo_rules"`
}

// UpdateLinkRequest represents the request to update a link.
// Pointer fields distinguish "leave unchanged" from explicit values.
type UpdateLinkRequest struct {
	TargetURL           string     `json:"target_url" binding:"omitempty,url"`
	Title               *string    `json:"title"`
	CampaignID          *uint      `json:"campaign_id"`
	ClearCampaign       bool       `json:"clear_campaign"`
	CampaignName        *string    `json:"campaign_name"`
	BotBlockingEnabled  *bool      `json:"bot_blocking_enabled"`
	RateLimitingEnabled *bool      `json:"rate_limiting_enabled"`
	GeoTargetingEnabled *bool      `json:"geo_targeting_enabled"`
	CaptureEmail        *bool      `json:"capture_email"`
	CapturePassword     *bool      `json:"capture_password"`
	Password            *string    `json:"password"`
	ExpiresAt           *time.Time `json:"expires_at"`
	ClearExpiry         bool       `json:"clear_expiry"`
	GeoRules            *GeoRules  `json:"geo_rules"`
}

// LinkResponse represents a link in API responses
type LinkResponse struct {
	ID                  uint              `json:"id"`
	ShortCode           string            `json:"short_code"`
	TargetURL           string            `json:"target_url"`
	Title               string            `json:"title"`
	CampaignID          *uint             `json:"campaign_id,omitempty"`
	CampaignName        string            `json:"campaign_name"`
	Status              models.LinkStatus `json:"status"`
	BotBlockingEnabled  bool              `json:"bot_blocking_enabled"`
	RateLimitingEnabled bool              `json:"rate_limiting_enabled"`
	GeoTargetingEnabled bool              `json:"geo_targeting_enabled"`
	CaptureEmail        bool              `json:"capture_email"`
	CapturePassword     bool              `json:"capture_password"`
	HasPassword         bool              `json:"has_password"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	GeoRules            GeoRules          `json:"geo_rules"`
	TotalClicks         uint              `json:"total_clicks"`
	RealVisitors        uint              `json:"real_visitors"`
	BlockedAttempts     uint              `json:"blocked_attempts"`
	TrackingURL         string            `json:"tracking_url"`
	ShortURL            string            `json:"short_url"`
	PixelURL            string            `json:"pixel_url"`
	CreatedAt           string            `json:"created_at"`
	UpdatedAt           string            `json:"updated_at"`
}

func decodeList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return []string{}
	}
	return names
}

func (h *Handler) linkToResponse(link models.Link) LinkResponse {
	return LinkResponse{
		ID:                  link.ID,
		ShortCode:           link.ShortCode,
		TargetURL:           link.TargetURL,
		Title:               link.Title,
		CampaignID:          link.CampaignID,
		CampaignName:        link.CampaignName,
		Status:              link.Status,
		BotBlockingEnabled:  link.BotBlockingEnabled,
		RateLimitingEnabled: link.RateLimitingEnabled,
		GeoTargetingEnabled: link.GeoTargetingEnabled,
		CaptureEmail:        link.CaptureEmail,
		CapturePassword:     link.CapturePassword,
		HasPassword:         link.Password != "",
		ExpiresAt:           link.ExpiresAt,
		GeoRules: GeoRules{
			AllowedCountries: decodeList(link.AllowedCountries),
			BlockedCountries: decodeList(link.BlockedCountries),
			AllowedRegions:   decodeList(link.AllowedRegions),
			BlockedRegions:   decodeList(link.BlockedRegions),
			AllowedCities:    decodeList(link.AllowedCities),
			BlockedCities:    decodeList(link.BlockedCities),
		},
		TotalClicks:     link.TotalClicks,
		RealVisitors:    link.RealVisitors,
		BlockedAttempts: link.BlockedAttempts,
		TrackingURL:     fmt.Sprintf("%s/t/%s", h.baseURL, link.ShortCode),
		ShortURL:        fmt.Sprintf("%s/s/%s", h.baseURL, link.ShortCode),
		PixelURL:        fmt.Sprintf("%s/p/%s.png", h.baseURL, link.ShortCode),
		CreatedAt:       link.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       link.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func applyGeoRules(link *models.Link, rules *GeoRules) {
	if rules == nil {
		return
	}
	link.AllowedCountries = models.EncodeLocationList(rules.AllowedCountries)
	link.BlockedCountries = models.EncodeLocationList(rules.BlockedCountries)
	link.AllowedRegions = models.EncodeLocationList(rules.AllowedRegions)
	link.BlockedRegions = models.EncodeLocationList(rules.BlockedRegions)
	link.AllowedCities = models.EncodeLocationList(rules.AllowedCities)
	link.BlockedCities = models.EncodeLocationList(rules.BlockedCities)
}

// ownsCampaign checks that a campaign exists and belongs to the user
func (h *Handler) ownsCampaign(userID uint, campaignID uint) bool {
	var count int64
	h.db.Model(&models.Campaign{}).Where("id = ? AND user_id = ?", campaignID, userID).Count(&count)
	return count > 0
}

// ownedLink fetches a link by ID and verifies ownership. A link owned by
// another user reads as not found, never as forbidden.
func (h *Handler) ownedLink(c *gin.Context) (*models.Link, bool) {
	userID, _ := auth.CurrentUserID(c)
	linkID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return nil, false
	}

	var link models.Link
	if err := h.db.Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return nil, false
	}
	return &link, true
}

// Create creates a new tracking link
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.CampaignID != nil && !h.ownsCampaign(userID, *req.CampaignID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign not found"})
		return
	}

	code, err := h.codes.Allocate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate short code"})
		return
	}

	link := models.Link{
		UserID:              userID,
		CampaignID:          req.CampaignID,
		ShortCode:           code,
		TargetURL:           req.TargetURL,
		Title:               req.Title,
		CampaignName:        req.CampaignName,
		Status:              models.LinkStatusActive,
		BotBlockingEnabled:  true,
		RateLimitingEnabled: req.RateLimitingEnabled,
		GeoTargetingEnabled: req.GeoTargetingEnabled,
		CaptureEmail:        req.CaptureEmail,
		CapturePassword:     req.CapturePassword,
		Password:            req.Password,
		ExpiresAt:           req.ExpiresAt,
	}
	if req.BotBlockingEnabled != nil {
		link.BotBlockingEnabled = *req.BotBlockingEnabled
	}
	applyGeoRules(&link, req.GeoRules)

	if err := h.db.Create(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create link"})
		return
	}

	c.JSON(http.StatusCreated, h.linkToResponse(link))
}

// List returns all links owned by the authenticated user
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.CurrentUserID(c)

	query := h.db.Where("user_id = ?", userID).Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if campaign := c.Query("campaign"); campaign != "" {
		query = query.Where("campaign_name = ?", campaign)
	}
	if q := c.Query("q"); q != "" {
		searchTerm := "%" + q + "%"
		query = query.Where("title LIKE ? OR target_url LIKE ?", searchTerm, searchTerm)
	}

	var links []models.Link
	if err := query.Find(&links).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch links"})
		return
	}

	responses := make([]LinkResponse, len(links))
	for i, link := range links {
		responses[i] = h.linkToResponse(link)
	}
	c.JSON(http.StatusOK, responses)
}

// Get returns a single owned link
func (h *Handler) Get(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.linkToResponse(*link))
}

// Update updates a link's target, rules, or metadata
func (h *Handler) Update(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TargetURL != "" {
		link.TargetURL = req.TargetURL
	}
	if req.Title != nil {
		link.Title = *req.Title
	}
	if req.CampaignName != nil {
		link.CampaignName = *req.CampaignName
	}
	if req.ClearCampaign {
		link.CampaignID = nil
	} else if req.CampaignID != nil {
		userID, _ := auth.CurrentUserID(c)
		if !h.ownsCampaign(userID, *req.CampaignID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Campaign not found"})
			return
		}
		link.CampaignID = req.CampaignID
	}
	if req.BotBlockingEnabled != nil {
		link.BotBlockingEnabled = *req.BotBlockingEnabled
	}
	if req.RateLimitingEnabled != nil {
		link.RateLimitingEnabled = *req.RateLimitingEnabled
	}
	if req.GeoTargetingEnabled != nil {
		link.GeoTargetingEnabled = *req.GeoTargetingEnabled
	}
	if req.CaptureEmail != nil {
		link.CaptureEmail = *req.CaptureEmail
	}
	if req.CapturePassword != nil {
		link.CapturePassword = *req.CapturePassword
	}
	if req.Password != nil {
		link.Password = *req.Password
	}
	if req.ClearExpiry {
		link.ExpiresAt = nil
	} else if req.ExpiresAt != nil {
		link.ExpiresAt = req.ExpiresAt
	}
	applyGeoRules(link, req.GeoRules)

	if err := h.db.Save(link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	c.JSON(http.StatusOK, h.linkToResponse(*link))
}

// Delete removes a link and its recorded events
func (h *Handler) Delete(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", link.ID).Delete(&models.TrackingEvent{}).Error; err != nil {
			return err
		}
		return tx.Delete(link).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

// RegenerateCode assigns a fresh short code to a link. The old code stops
// resolving immediately; previously recorded events keep their link ID.
func (h *Handler) RegenerateCode(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	code, err := h.codes.Allocate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to allocate short code"})
		return
	}

	if err := h.db.Model(link).Update("short_code", code).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	link.ShortCode = code
	c.JSON(http.StatusOK, h.linkToResponse(*link))
}

// SetStatus pauses or resumes a link. Owners cannot change suspended links;
// suspension is an admin action.
func (h *Handler) SetStatus(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	var req struct {
		Status models.LinkStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != models.LinkStatusActive && req.Status != models.LinkStatusPaused {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be active or paused"})
		return
	}
	if link.Status == models.LinkStatusSuspended {
		c.JSON(http.StatusForbidden, gin.H{"error": "Link is suspended"})
		return
	}

	if err := h.db.Model(link).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
		return
	}
	link.Status = req.Status
	c.JSON(http.StatusOK, h.linkToResponse(*link))
}

// StatsResponse summarizes a link's traffic
type StatsResponse struct {
	LinkID          uint             `json:"link_id"`
	ShortCode       string           `json:"short_code"`
	TotalClicks     uint             `json:"total_clicks"`
	RealVisitors    uint             `json:"real_visitors"`
	BlockedAttempts uint             `json:"blocked_attempts"`
	Verdicts        map[string]int64 `json:"verdicts"`
	Countries       map[string]int64 `json:"countries"`
	Browsers        map[string]int64 `json:"browsers"`
	DeviceTypes     map[string]int64 `json:"device_types"`
}

type bucketCount struct {
	Bucket string
	Count  int64
}

func (h *Handler) countBy(linkID uint, column string) map[string]int64 {
	var rows []bucketCount
	h.db.Model(&models.TrackingEvent{}).
		Select(column+" as bucket, count(*) as count").
		Where("link_id = ?", linkID).
		Group(column).
		Scan(&rows)
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Bucket] = row.Count
	}
	return out
}

// Stats returns aggregate traffic stats for a link
func (h *Handler) Stats(c *gin.Context) {
	link, ok := h.ownedLink(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		LinkID:          link.ID,
		ShortCode:       link.ShortCode,
		TotalClicks:     link.TotalClicks,
		RealVisitors:    link.RealVisitors,
		BlockedAttempts: link.BlockedAttempts,
		Verdicts:        h.countBy(link.ID, "verdict"),
		Countries:       h.countBy(link.ID, "country"),
		Browsers:        h.countBy(link.ID, "browser"),
		DeviceTypes:     h.countBy(link.ID, "device_type"),
	})
}

// RegisterRoutes registers link routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/links", h.List)
	rg.POST("/links", h.Create)
	rg.GET("/links/:id", h.Get)
	rg.PUT("/links/:id", h.Update)
	rg.DELETE("/links/:id", h.Delete)
	rg.POST("/links/:id/regenerate", h.RegenerateCode)
	rg.PUT("/links/:id/status", h.SetStatus)
	rg.GET("/links/:id/stats", h.Stats)
}

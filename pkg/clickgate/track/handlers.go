// Package track exposes the inbound hit endpoints: redirect-style short
// links and tracking pixels. It translates HTTP requests into the engine's
// request context and the engine's decision back into responses.
package track

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clickgate/clickgate/pkg/clickgate/engine"
	"github.com/clickgate/clickgate/pkg/clickgate/policy"
)

// pixelPNG is a 1x1 transparent PNG served on every pixel hit, whatever the
// verdict, so automated scanners cannot distinguish blocked from allowed.
var pixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xdb, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

const blockedPage = `<!DOCTYPE html>
<html>
<head><title>Access Restricted</title></head>
<body>
<h1>Access Restricted</h1>
<p>This link is not available.</p>
</body>
</html>`

// Handler handles tracking hits
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new track handler
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// requestContext builds the per-hit context from the HTTP request. All
// request state the pipeline needs is captured here; nothing downstream
// touches gin.
func requestContext(c *gin.Context) policy.RequestContext {
	visitorID := c.Query("id")
	if visitorID == "" {
		visitorID = uuid.NewString()
	}
	return policy.RequestContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referer:   c.Request.Referer(),
		VisitorID: visitorID,
		Password:  c.Query("pw"),
		Email:     c.Query("email"),
	}
}

// Redirect handles redirect-style hits (/t/:code and /s/:code)
func (h *Handler) Redirect(c *gin.Context) {
	decision := h.engine.HandleHit(c.Request.Context(), c.Param("code"), requestContext(c))

	switch decision.Action {
	case engine.ActionRedirect:
		c.Redirect(http.StatusFound, decision.TargetURL)
	case engine.ActionBlocked:
		// Blocked visitors get a generic page, never the block reason
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusForbidden, blockedPage)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
	}
}

// Pixel handles tracking pixel hits (/p/:code and /pixel/:code). The pixel
// is served for every verdict; only a nonexistent code yields a 404.
func (h *Handler) Pixel(c *gin.Context) {
	code := strings.TrimSuffix(c.Param("code"), ".png")

	decision := h.engine.HandleHit(c.Request.Context(), code, requestContext(c))
	if decision.Action == engine.ActionNotFound {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/png", pixelPNG)
}

// RegisterRoutes registers the tracking routes on the root router.
// Registered last so /api and /health keep precedence.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/t/:code", h.Redirect)
	r.GET("/s/:code", h.Redirect)
	r.GET("/p/:code", h.Pixel)
	r.GET("/pixel/:code", h.Pixel)
}

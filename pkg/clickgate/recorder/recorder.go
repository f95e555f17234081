// Package recorder persists tracking events and keeps the owning link's
// aggregate counters in step with them. The event insert and the counter
// update happen in one transaction so the counters never drift from a full
// count of the event rows.
package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/geo"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/policy"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

// Recorder writes tracking events and counter updates
type Recorder struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewRecorder creates a recorder. The logger may be nil.
func NewRecorder(db *gorm.DB, logger *zap.SugaredLogger) *Recorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Recorder{db: db, logger: logger}
}

// Record writes exactly one TrackingEvent for the hit and increments the
// link's counters: total_clicks always, real_visitors for allowed non-bot
// hits, blocked_attempts for any block verdict. Increments are SQL
// expressions, so concurrent hits against the same link cannot lose updates.
func (r *Recorder) Record(ctx context.Context, link *models.Link, verdict models.Verdict, reason string, ua useragent.Facts, loc geo.Location, req policy.RequestContext) (*models.TrackingEvent, error) {
	event := &models.TrackingEvent{
		LinkID:         link.ID,
		Timestamp:      time.Now().UTC(),
		IPAddress:      req.IP,
		UserAgent:      req.UserAgent,
		Referer:        req.Referer,
		Browser:        ua.Browser,
		BrowserVersion: ua.BrowserVersion,
		OS:             ua.OS,
		OSVersion:      ua.OSVersion,
		DeviceType:     ua.DeviceType,
		IsBot:          ua.IsBot,
		Country:        loc.Country,
		Region:         loc.Region,
		City:           loc.City,
		ISP:            loc.ISP,
		Verdict:        verdict,
		BlockReason:    reason,
		VisitorID:      req.VisitorID,
	}

	if link.CaptureEmail {
		event.CapturedEmail = req.Email
	}
	if link.CapturePassword {
		event.CapturedPassword = req.Password
	}

	updates := map[string]interface{}{
		"total_clicks": gorm.Expr("total_clicks + 1"),
	}
	if verdict == models.VerdictAllow && !ua.IsBot {
		updates["real_visitors"] = gorm.Expr("real_visitors + 1")
	}
	if verdict.Blocked() {
		updates["blocked_attempts"] = gorm.Expr("blocked_attempts + 1")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		return tx.Model(&models.Link{}).Where("id = ?", link.ID).Updates(updates).Error
	})
	if err != nil {
		r.logger.Errorw("failed to record tracking event",
			"short_code", link.ShortCode, "verdict", verdict, "error", err)
		return nil, err
	}

	return event, nil
}

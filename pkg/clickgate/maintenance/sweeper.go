// Package maintenance runs the periodic background sweeps: pausing links
// whose expiry has passed and pruning tracking events past their retention
// window.
package maintenance

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

// Sweeper performs the periodic cleanup passes
type Sweeper struct {
	db        *gorm.DB
	retention time.Duration
	logger    *zap.SugaredLogger
	cron      *cron.Cron
}

// NewSweeper creates a sweeper. retentionDays <= 0 disables event pruning;
// expired links are always swept. The logger may be nil.
func NewSweeper(db *gorm.DB, retentionDays int, logger *zap.SugaredLogger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	var retention time.Duration
	if retentionDays > 0 {
		retention = time.Duration(retentionDays) * 24 * time.Hour
	}
	return &Sweeper{
		db:        db,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the sweeps and starts the cron runner
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@every 10m", s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) runOnce() {
	s.SweepExpiredLinks(time.Now())
	s.PruneOldEvents(time.Now())
}

// SweepExpiredLinks pauses active links whose expiry has passed. Hits on an
// expired link are blocked either way; the sweep just makes the state
// visible in the dashboard.
func (s *Sweeper) SweepExpiredLinks(now time.Time) int64 {
	result := s.db.Model(&models.Link{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.LinkStatusActive, now).
		Update("status", models.LinkStatusPaused)
	if result.Error != nil {
		s.logger.Errorw("expired link sweep failed", "error", result.Error)
		return 0
	}
	if result.RowsAffected > 0 {
		s.logger.Infow("paused expired links", "count", result.RowsAffected)
	}
	return result.RowsAffected
}

// PruneOldEvents deletes tracking events older than the retention window.
// Link counters are aggregates over all time and are left untouched.
func (s *Sweeper) PruneOldEvents(now time.Time) int64 {
	if s.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-s.retention)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&models.TrackingEvent{})
	if result.Error != nil {
		s.logger.Errorw("event pruning failed", "error", result.Error)
		return 0
	}
	if result.RowsAffected > 0 {
		s.logger.Infow("pruned old tracking events", "count", result.RowsAffected, "cutoff", cutoff)
	}
	return result.RowsAffected
}

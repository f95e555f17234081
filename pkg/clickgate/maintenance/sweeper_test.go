package maintenance

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestSweepExpiredLinks(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	db.Create(&models.Link{UserID: 1, ShortCode: "expired1", TargetURL: "https://example.com/a", Status: models.LinkStatusActive, ExpiresAt: &past})
	db.Create(&models.Link{UserID: 1, ShortCode: "future01", TargetURL: "https://example.com/b", Status: models.LinkStatusActive, ExpiresAt: &future})
	db.Create(&models.Link{UserID: 1, ShortCode: "forever1", TargetURL: "https://example.com/c", Status: models.LinkStatusActive})
	db.Create(&models.Link{UserID: 1, ShortCode: "suspend1", TargetURL: "https://example.com/d", Status: models.LinkStatusSuspended, ExpiresAt: &past})

	swept := NewSweeper(db, 0, nil).SweepExpiredLinks(now)
	if swept != 1 {
		t.Errorf("Swept = %d, want 1", swept)
	}

	var expired, future1, suspended models.Link
	db.Where("short_code = ?", "expired1").First(&expired)
	db.Where("short_code = ?", "future01").First(&future1)
	db.Where("short_code = ?", "suspend1").First(&suspended)

	if expired.Status != models.LinkStatusPaused {
		t.Errorf("Expired link status = %s, want paused", expired.Status)
	}
	if future1.Status != models.LinkStatusActive {
		t.Errorf("Future link status = %s, want active", future1.Status)
	}
	if suspended.Status != models.LinkStatusSuspended {
		t.Errorf("Suspended link status = %s, should not change", suspended.Status)
	}
}

func TestPruneOldEvents(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	db.Create(&models.TrackingEvent{LinkID: 1, Timestamp: now.Add(-40 * 24 * time.Hour), Verdict: models.VerdictAllow})
	db.Create(&models.TrackingEvent{LinkID: 1, Timestamp: now.Add(-10 * 24 * time.Hour), Verdict: models.VerdictAllow})
	db.Create(&models.TrackingEvent{LinkID: 1, Timestamp: now, Verdict: models.VerdictBlockBot})

	pruned := NewSweeper(db, 30, nil).PruneOldEvents(now)
	if pruned != 1 {
		t.Errorf("Pruned = %d, want 1", pruned)
	}

	var count int64
	db.Model(&models.TrackingEvent{}).Count(&count)
	if count != 2 {
		t.Errorf("Events remaining = %d, want 2", count)
	}
}

func TestPruneDisabledWithoutRetention(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.TrackingEvent{LinkID: 1, Timestamp: time.Now().Add(-365 * 24 * time.Hour), Verdict: models.VerdictAllow})

	pruned := NewSweeper(db, 0, nil).PruneOldEvents(time.Now())
	if pruned != 0 {
		t.Errorf("Pruned = %d, want 0 when retention disabled", pruned)
	}

	var count int64
	db.Model(&models.TrackingEvent{}).Count(&count)
	if count != 1 {
		t.Error("Events should be untouched when retention is disabled")
	}
}

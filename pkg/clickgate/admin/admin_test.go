package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
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

func setupTestRouter(db *gorm.DB, adminID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", adminID)
		c.Next()
	})
	NewHandler(db).RegisterRoutes(r.Group("/api/admin"))
	return r
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestListUsers(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.User{Email: "admin@example.com", Name: "Admin", Active: true, SystemRole: models.SystemRoleAdmin})
	db.Create(&models.User{Email: "user@example.com", Name: "User", Active: true, SystemRole: models.SystemRoleUser})

	router := setupTestRouter(db, 1)
	resp := doJSON(router, "GET", "/api/admin/users", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Code)
	}

	var users []UserResponse
	json.Unmarshal(resp.Body.Bytes(), &users)
	if len(users) != 2 {
		t.Errorf("Users = %d, want 2", len(users))
	}

	resp = doJSON(router, "GET", "/api/admin/users?role=admin", nil)
	json.Unmarshal(resp.Body.Bytes(), &users)
	if len(users) != 1 || users[0].SystemRole != "admin" {
		t.Errorf("Filtered users = %+v", users)
	}
}

func TestSetUserActive(t *testing.T) {
	db := setupTestDB(t)
	admin := models.User{Email: "admin@example.com", Name: "Admin", Active: true, SystemRole: models.SystemRoleAdmin}
	user := models.User{Email: "user@example.com", Name: "User", Active: true}
	db.Create(&admin)
	db.Create(&user)

	router := setupTestRouter(db, admin.ID)
	active := false
	resp := doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d/active", user.ID), gin.H{"active": &active})
	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", resp.Code, resp.Body.String())
	}

	var updated models.User
	db.First(&updated, user.ID)
	if updated.Active {
		t.Error("User should be disabled")
	}
}

func TestCannotDisableOwnAccount(t *testing.T) {
	db := setupTestDB(t)
	admin := models.User{Email: "admin@example.com", Name: "Admin", Active: true, SystemRole: models.SystemRoleAdmin}
	db.Create(&admin)

	router := setupTestRouter(db, admin.ID)
	active := false
	resp := doJSON(router, "PUT", fmt.Sprintf("/api/admin/users/%d/active", admin.ID), gin.H{"active": &active})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.Code)
	}
}

func TestSuspendAndReinstateLink(t *testing.T) {
	db := setupTestDB(t)
	link := models.Link{UserID: 2, ShortCode: "abc12345", TargetURL: "https://example.com/a", Status: models.LinkStatusActive}
	db.Create(&link)

	router := setupTestRouter(db, 1)

	resp := doJSON(router, "PUT", fmt.Sprintf("/api/admin/links/%d/suspend", link.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Suspend status = %d, want 200", resp.Code)
	}
	var updated models.Link
	db.First(&updated, link.ID)
	if updated.Status != models.LinkStatusSuspended {
		t.Errorf("Status = %s, want suspended", updated.Status)
	}

	resp = doJSON(router, "PUT", fmt.Sprintf("/api/admin/links/%d/reinstate", link.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Reinstate status = %d, want 200", resp.Code)
	}
	db.First(&updated, link.ID)
	if updated.Status != models.LinkStatusActive {
		t.Errorf("Status = %s, want active", updated.Status)
	}
}

func TestPurgeLinkEvents(t *testing.T) {
	db := setupTestDB(t)
	link := models.Link{UserID: 2, ShortCode: "abc12345", TargetURL: "https://example.com/a", Status: models.LinkStatusActive, TotalClicks: 2, RealVisitors: 1, BlockedAttempts: 1}
	db.Create(&link)
	db.Create(&models.TrackingEvent{LinkID: link.ID, Verdict: models.VerdictAllow})
	db.Create(&models.TrackingEvent{LinkID: link.ID, Verdict: models.VerdictBlockBot})

	router := setupTestRouter(db, 1)
	resp := doJSON(router, "DELETE", fmt.Sprintf("/api/admin/links/%d/events", link.ID), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		Purged int64 `json:"purged"`
	}
	json.Unmarshal(resp.Body.Bytes(), &result)
	if result.Purged != 2 {
		t.Errorf("Purged = %d, want 2", result.Purged)
	}

	var count int64
	db.Model(&models.TrackingEvent{}).Where("link_id = ?", link.ID).Count(&count)
	if count != 0 {
		t.Errorf("Events remaining = %d, want 0", count)
	}

	var updated models.Link
	db.First(&updated, link.ID)
	if updated.TotalClicks != 0 || updated.RealVisitors != 0 || updated.BlockedAttempts != 0 {
		t.Errorf("Counters not reset: %d/%d/%d", updated.TotalClicks, updated.RealVisitors, updated.BlockedAttempts)
	}
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.User{Email: "admin@example.com", Name: "Admin", Active: true, SystemRole: models.SystemRoleAdmin})
	db.Create(&models.User{Email: "user@example.com", Name: "User", Active: false})
	db.Create(&models.Link{UserID: 1, ShortCode: "abc12345", TargetURL: "https://example.com/a", Status: models.LinkStatusActive})
	db.Create(&models.Link{UserID: 1, ShortCode: "def12345", TargetURL: "https://example.com/b", Status: models.LinkStatusSuspended})
	db.Create(&models.TrackingEvent{LinkID: 1, Verdict: models.VerdictAllow})
	db.Create(&models.TrackingEvent{LinkID: 1, Verdict: models.VerdictBlockGeo})

	router := setupTestRouter(db, 1)
	resp := doJSON(router, "GET", "/api/admin/stats", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Code)
	}

	var stats StatsResponse
	json.Unmarshal(resp.Body.Bytes(), &stats)
	if stats.TotalUsers != 2 || stats.AdminUsers != 1 || stats.InactiveUsers != 1 {
		t.Errorf("User stats = %+v", stats)
	}
	if stats.TotalLinks != 2 || stats.SuspendedLinks != 1 {
		t.Errorf("Link stats = %+v", stats)
	}
	if stats.TotalEvents != 2 || stats.BlockedEvents != 1 {
		t.Errorf("Event stats = %+v", stats)
	}
}

package track

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/engine"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/policy"
	"github.com/clickgate/clickgate/pkg/clickgate/recorder"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36"

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

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := engine.New(db, useragent.NewClassifier(), nil, policy.NewEvaluator(nil), recorder.NewRecorder(db, nil), nil)
	r := gin.New()
	NewHandler(e).RegisterRoutes(r)
	return r
}

func createTestLink(t *testing.T, db *gorm.DB, code string) models.Link {
	link := models.Link{
		UserID:    1,
		ShortCode: code,
		TargetURL: "https://example.com/landing",
		Status:    models.LinkStatusActive,
	}
	if err := db.Create(&link).Error; err != nil {
		t.Fatalf("Failed to create test link: %v", err)
	}
	return link
}

func doGet(router *gin.Engine, path, ua string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRedirectAllowed(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	resp := doGet(router, "/t/abc12345", browserUA)

	if resp.Code != http.StatusFound {
		t.Fatalf("Status = %d, want 302", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != "https://example.com/landing" {
		t.Errorf("Location = %q, want target URL", loc)
	}
}

func TestShortLinkAliasRoute(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	resp := doGet(router, "/s/abc12345", browserUA)
	if resp.Code != http.StatusFound {
		t.Errorf("Status = %d, want 302", resp.Code)
	}
}

func TestRedirectBlockedBotServesGenericPage(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	resp := doGet(router, "/t/abc12345", "curl/8.4.0")

	if resp.Code != http.StatusForbidden {
		t.Fatalf("Status = %d, want 403", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("Access Restricted")) {
		t.Error("Expected the generic block page body")
	}
	if bytes.Contains(resp.Body.Bytes(), []byte("bot")) {
		t.Error("Block page must not leak the block reason")
	}

	var link models.Link
	db.Where("short_code = ?", "abc12345").First(&link)
	if link.BlockedAttempts != 1 {
		t.Errorf("BlockedAttempts = %d, want 1", link.BlockedAttempts)
	}
}

func TestRedirectUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := doGet(router, "/t/nope1234", browserUA)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.Code)
	}

	var count int64
	db.Model(&models.TrackingEvent{}).Count(&count)
	if count != 0 {
		t.Errorf("Unknown code recorded %d events, want 0", count)
	}
}

func TestRedirectPasswordParam(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	link := createTestLink(t, db, "abc12345")
	db.Model(&link).Update("password", "opensesame")

	resp := doGet(router, "/t/abc12345", browserUA)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Missing password status = %d, want 403", resp.Code)
	}

	resp = doGet(router, "/t/abc12345?pw=opensesame", browserUA)
	if resp.Code != http.StatusFound {
		t.Errorf("Correct password status = %d, want 302", resp.Code)
	}
}

func TestPixelServedForAnyVerdict(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	// Bot hit: blocked verdict, pixel still served
	resp := doGet(router, "/p/abc12345", "curl/8.4.0")

	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if cc := resp.Header().Get("Cache-Control"); cc != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if !bytes.Equal(resp.Body.Bytes(), pixelPNG) {
		t.Error("Body is not the tracking pixel")
	}

	var count int64
	db.Model(&models.TrackingEvent{}).Count(&count)
	if count != 1 {
		t.Errorf("Events = %d, want 1", count)
	}
}

func TestPixelPngSuffixStripped(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	resp := doGet(router, "/p/abc12345.png", browserUA)
	if resp.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.Code)
	}

	resp = doGet(router, "/pixel/abc12345", browserUA)
	if resp.Code != http.StatusOK {
		t.Errorf("Alias route status = %d, want 200", resp.Code)
	}
}

func TestPixelUnknownCode(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := doGet(router, "/p/nope1234.png", browserUA)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.Code)
	}
}

func TestPixelCapturesEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	link := createTestLink(t, db, "abc12345")
	db.Model(&link).Update("capture_email", true)

	resp := doGet(router, "/p/abc12345?email=target@example.com&id=visitor-1", browserUA)
	if resp.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.Code)
	}

	var event models.TrackingEvent
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("No event recorded: %v", err)
	}
	if event.CapturedEmail != "target@example.com" {
		t.Errorf("CapturedEmail = %q", event.CapturedEmail)
	}
	if event.VisitorID != "visitor-1" {
		t.Errorf("VisitorID = %q, want visitor-1", event.VisitorID)
	}
}

func TestVisitorIDGeneratedWhenAbsent(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createTestLink(t, db, "abc12345")

	doGet(router, "/t/abc12345", browserUA)

	var event models.TrackingEvent
	if err := db.First(&event).Error; err != nil {
		t.Fatalf("No event recorded: %v", err)
	}
	if event.VisitorID == "" {
		t.Error("Expected a generated visitor ID")
	}
}

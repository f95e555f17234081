package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/admin"
	"github.com/clickgate/clickgate/pkg/clickgate/auth"
	"github.com/clickgate/clickgate/pkg/clickgate/cache"
	"github.com/clickgate/clickgate/pkg/clickgate/campaigns"
	"github.com/clickgate/clickgate/pkg/clickgate/config"
	"github.com/clickgate/clickgate/pkg/clickgate/database"
	"github.com/clickgate/clickgate/pkg/clickgate/engine"
	"github.com/clickgate/clickgate/pkg/clickgate/events"
	"github.com/clickgate/clickgate/pkg/clickgate/geo"
	"github.com/clickgate/clickgate/pkg/clickgate/links"
	"github.com/clickgate/clickgate/pkg/clickgate/logger"
	"github.com/clickgate/clickgate/pkg/clickgate/maintenance"
	"github.com/clickgate/clickgate/pkg/clickgate/models"
	"github.com/clickgate/clickgate/pkg/clickgate/policy"
	"github.com/clickgate/clickgate/pkg/clickgate/recorder"
	"github.com/clickgate/clickgate/pkg/clickgate/shortcode"
	"github.com/clickgate/clickgate/pkg/clickgate/track"
	"github.com/clickgate/clickgate/pkg/clickgate/useragent"
)

func main() {
	// Optional .env for local development; real deployments use the config file
	_ = godotenv.Load()

	configPath := os.Getenv("CLICKGATE_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init("logs/clickgate.log")
	log := zap.S()

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalw("failed to open database", "error", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}
	log.Info("database migrations completed")

	if err := ensureAdminExists(db); err != nil {
		log.Fatalw("failed to ensure admin user exists", "error", err)
	}

	rdb, err := cache.NewClient(cfg.Cache)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	if rdb != nil {
		log.Infow("redis connected", "host", cfg.Cache.Host)
	}

	hitEngine := buildEngine(cfg, db, rdb, log)

	sweeper := maintenance.NewSweeper(db, cfg.Tracking.EventRetentionDays, log)
	if err := sweeper.Start(); err != nil {
		log.Fatalw("failed to start maintenance sweeper", "error", err)
	}
	defer sweeper.Stop()

	if cfg.App.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.App.Name})
	})

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpirationHours)

	api := r.Group("/api")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db, tokens)
		authHandler.RegisterRoutes(api.Group("/auth"))

		protected := api.Group("", auth.Middleware(tokens))
		protected.GET("/me", authHandler.Me)

		linksHandler := links.NewHandler(db, shortcode.NewAllocator(db), cfg.App.BaseURL)
		linksHandler.RegisterRoutes(protected)

		eventsHandler := events.NewHandler(db)
		eventsHandler.RegisterRoutes(protected)

		campaignsHandler := campaigns.NewHandler(db)
		campaignsHandler.RegisterRoutes(protected)

		// Admin routes (admin role required)
		adminGroup := api.Group("/admin", auth.Middleware(tokens), auth.RequireAdmin())
		admin.NewHandler(db).RegisterRoutes(adminGroup)
	}

	// Tracking routes are public and registered last to avoid conflicts
	track.NewHandler(hitEngine).RegisterRoutes(r)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	log.Infow("starting server", "addr", srv.Addr, "mode", cfg.App.Mode)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalw("server exited", "error", err)
	}
}

// buildEngine assembles the decision pipeline. Redis backs the rate limiter
// and geo cache when configured; otherwise both degrade to in-process
// equivalents.
func buildEngine(cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.SugaredLogger) *engine.Engine {
	classifier := useragent.NewClassifier(cfg.Tracking.ExtraBotSignatures...)

	// No geo provider ships by default; hits get Unknown geo facts. A real
	// provider slots in here and gets redis-cached per IP.
	var resolver geo.Resolver = geo.NullResolver{}
	if provider := newGeoProvider(); provider != nil {
		resolver = provider
		if rdb != nil && cfg.Tracking.GeoCacheTTL() > 0 {
			resolver = geo.NewCachedResolver(resolver, rdb, cfg.Tracking.GeoCacheTTL())
		}
	}

	var limiter policy.RateLimiter
	if rdb != nil {
		limiter = policy.NewRedisLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window())
	} else {
		limiter = policy.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())
	}

	evaluator := policy.NewEvaluator(limiter)
	rec := recorder.NewRecorder(db, log)
	return engine.New(db, classifier, resolver, evaluator, rec, log)
}

// newGeoProvider loads a static IP-to-location table when one is configured.
// This backs geo targeting in development and test environments; production
// deployments plug a real lookup service in its place.
func newGeoProvider() geo.Resolver {
	fixturePath := os.Getenv("CLICKGATE_GEO_FIXTURE")
	if fixturePath == "" {
		return nil
	}

	data, err := os.ReadFile(fixturePath)
	if err != nil {
		zap.S().Warnw("failed to read geo fixture, geo lookups disabled", "path", fixturePath, "error", err)
		return nil
	}
	var table map[string]geo.Location
	if err := json.Unmarshal(data, &table); err != nil {
		zap.S().Warnw("failed to parse geo fixture, geo lookups disabled", "path", fixturePath, "error", err)
		return nil
	}
	return geo.StaticResolver(table)
}

// ensureAdminExists creates a default admin account on first boot so the
// admin API is reachable before any users register.
func ensureAdminExists(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("CLICKGATE_ADMIN_PASSWORD")
	if password == "" {
		password = "changeme"
	}

	adminUser := models.User{
		Email:      "admin@clickgate.local",
		Name:       "Admin",
		Active:     true,
		SystemRole: models.SystemRoleAdmin,
	}
	if err := adminUser.SetPassword(password); err != nil {
		return err
	}
	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	zap.S().Infow("created default admin user", "email", adminUser.Email)
	return nil
}

package app

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	"go-attend/internal/auth"
	"go-attend/internal/checkin"
	"go-attend/internal/config"
	"go-attend/internal/geofence"
	"go-attend/internal/messaging/kafka"
	"go-attend/internal/rbac"
	"go-attend/internal/rbac/infra"
	"go-attend/internal/risk"
	"go-attend/internal/site"
	"go-attend/internal/tenant"
)

func registerModules(
	router *gin.Engine,
	cfg *config.Config,
	gormDB *gorm.DB,
	rdb *redis.Client,
	logger *zap.Logger,
) error {
	// --- Repositories ---
	rbacRepo := rbac.NewRepository(gormDB)
	authRepo := auth.NewRepository(gormDB)
	auditRepo := audit.NewRepository(gormDB)
	eventRepo := checkin.NewEventRepository(gormDB)
	conflictRepo := checkin.NewConflictRepository(gormDB)
	geofenceRepo := geofence.NewRepository(gormDB)
	siteRepo := site.NewRepository(gormDB)
	settingsRepo := tenant.NewSettingsRepository(gormDB)
	assessmentRepo := risk.NewAssessmentRepository(gormDB)
	deviceRepo := risk.NewDeviceRepository(gormDB)
	baselineRepo := risk.NewBaselineRepository(gormDB, rdb, logger)
	outboxRepo := kafka.NewOutboxRepository(gormDB)

	// --- RBAC Core ---
	enforcer, err := infra.NewEnforcer(cfg.RBACModelPath)
	if err != nil {
		return err
	}
	rbacService := rbac.NewService(rbacRepo, enforcer, logger)

	// --- Audit ---
	node, err := snowflake.NewNode(cfg.SnowflakeNodeID)
	if err != nil {
		return err
	}
	recorder := audit.NewRecorder(auditRepo, outboxRepo, node, logger)

	// --- Services ---
	authService := auth.NewService(authRepo, rbacService, recorder)
	geofenceService := geofence.NewService(geofenceRepo, recorder)
	siteService := site.NewService(siteRepo, recorder)

	orchestrator := risk.NewOrchestrator(
		risk.Weights{
			Location:   cfg.RiskWeightLocation,
			Temporal:   cfg.RiskWeightTemporal,
			Behavioral: cfg.RiskWeightBehavioral,
			Device:     cfg.RiskWeightDevice,
		},
		risk.Thresholds{Critical: cfg.RiskCriticalScore, Warning: cfg.RiskWarningScore},
		risk.DeviceLimits{ShareMaxUsers: cfg.DeviceShareMaxUsers, SwitchMaxCount: cfg.DeviceSwitchMaxCount},
		cfg.BaselineMinSamples,
		logger,
	)

	engine := checkin.NewEngine(
		gormDB,
		rdb,
		eventRepo,
		conflictRepo,
		geofenceRepo,
		settingsRepo,
		baselineRepo,
		deviceRepo,
		assessmentRepo,
		outboxRepo,
		recorder,
		orchestrator,
		checkin.EngineConfig{
			IdempotencyWindow:  cfg.IdempotencyWindow,
			SubmitLockTTL:      cfg.SubmitLockTTL,
			ProcessingTimeout:  cfg.ProcessingTimeout,
			PersistMaxRetries:  cfg.PersistMaxRetries,
			PersistBackoffBase: cfg.PersistBackoffBase,
			ShiftWindow:        time.Duration(cfg.ShiftWindowHours) * time.Hour,
			GeoLimits: geofence.Limits{
				MaxVelocityKmph: cfg.MaxVelocityKmph,
				MinAccuracyM:    cfg.MinAccuracyMeters,
			},
			DeviceShareWindow:  cfg.DeviceShareWindow,
			DeviceSwitchWindow: cfg.DeviceSwitchWindow,
		},
		logger,
	)

	// --- Handlers ---
	authHandler := auth.NewHandler(authService)
	checkinHandler := checkin.NewHandler(engine, recorder)
	geofenceHandler := geofence.NewHandler(geofenceService)
	siteHandler := site.NewHandler(siteService)
	riskHandler := risk.NewHandler(assessmentRepo)
	auditHandler := audit.NewHandler(auditRepo, recorder)
	settingsHandler := tenant.NewSettingsHandler(settingsRepo, recorder)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		auth.RegisterRoutes(api, authHandler)
		checkin.RegisterRoutes(api, checkinHandler, rbacService)
		geofence.RegisterRoutes(api, geofenceHandler, rbacService)
		site.RegisterRoutes(api, siteHandler, rbacService)
		risk.RegisterRoutes(api, riskHandler, rbacService)
		audit.RegisterRoutes(api, auditHandler, rbacService)
		tenant.RegisterRoutes(api, settingsHandler, rbacService)
	}

	return nil
}

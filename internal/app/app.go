package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-attend/internal/config"
	"go-attend/internal/middleware"
	"go-attend/internal/shared/connection"
)

// BuildApp connects the infrastructure and registers every module on
// the router.
func BuildApp(router *gin.Engine, cfg *config.Config) error {
	logger := zap.L()

	gormDB, err := connection.ConnectGORMWithRetry(
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
		5,
	)
	if err != nil {
		return err
	}
	logger.Info("database connection established")

	rdb, err := connection.ConnectRedisWithRetry(cfg.RedisAddr, 5)
	if err != nil {
		return err
	}
	logger.Info("redis connection established")

	router.Use(middleware.RequestID())
	router.Use(middleware.ContextPropagate(logger))

	return registerModules(router, cfg, gormDB, rdb, logger)
}

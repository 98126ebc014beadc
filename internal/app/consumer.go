package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"go-attend/internal/audit"
	"go-attend/internal/config"
	"go-attend/internal/events"
	"go-attend/internal/messaging/kafka/consumer"
	"go-attend/internal/shared/connection"
)

// RunConsumer starts the audit, risk alert, and dead letter consumers
// and blocks until a shutdown signal.
func RunConsumer(cfg *config.Config) error {
	logger := zap.L().Named("app.consumer")

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

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.KafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	auditRepo := audit.NewRepository(gormDB)
	notifier := consumer.NewLogNotifier(logger)

	newReader := func(topic, group string) *kafkago.Reader {
		return kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:        []string{cfg.KafkaBroker},
			Topic:          topic,
			GroupID:        group,
			CommitInterval: 0,
			StartOffset:    kafkago.FirstOffset,
		})
	}

	auditReader := newReader(events.AuditRecordedTopic, "goattend-audit")
	defer auditReader.Close()
	alertReader := newReader(events.RiskAlertTopic, "goattend-alerts")
	defer alertReader.Close()
	deadLetterReader := newReader(events.SubmissionDeadLetterTopic, "goattend-deadletter")
	defer deadLetterReader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go consumer.ConsumeAuditRecorded(ctx, auditReader, auditRepo, logger)
	go consumer.ConsumeRiskAlerts(ctx, alertReader, notifier, logger)
	go consumer.ConsumeSubmissionDeadLetters(ctx, deadLetterReader, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("consumer shutting down")
	cancel()

	return nil
}

package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"go-attend/internal/events"
)

// AlertNotifier delivers a risk alert to whoever should see it. The
// default implementation writes a structured log line; a mailer or chat
// webhook plugs in behind the same interface.
type AlertNotifier interface {
	Notify(ctx context.Context, event events.RiskAlertEvent) error
}

type logNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) AlertNotifier {
	return &logNotifier{logger: logger.Named("risk.alerts")}
}

func (n *logNotifier) Notify(_ context.Context, event events.RiskAlertEvent) error {
	n.logger.Warn("risk alert",
		zap.String("company_id", event.CompanyID),
		zap.String("employee_id", event.EmployeeID),
		zap.String("event_id", event.EventID),
		zap.Float64("composite_score", event.CompositeScore),
		zap.String("level", event.Level),
		zap.Strings("flags", event.Flags),
	)
	return nil
}

func ConsumeRiskAlerts(
	ctx context.Context,
	reader *kafkago.Reader,
	notifier AlertNotifier,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.risk_alert")
	log.Info("risk alert consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("risk alert consumer stopped")
				return
			}
			log.Error("fetch risk alert message failed", zap.Error(err))
			continue
		}

		var event events.RiskAlertEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode risk_alert event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := notifier.Notify(ctx, event); err != nil {
			log.Error("dispatch risk alert failed",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit risk alert message failed", zap.Error(err))
			continue
		}
	}
}

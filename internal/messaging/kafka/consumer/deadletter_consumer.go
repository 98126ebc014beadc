package consumer

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"go-attend/internal/events"
)

// ConsumeSubmissionDeadLetters surfaces dead-lettered submissions to
// operators. The message stays uncommitted on logging failure so
// nothing silently disappears from the queue.
func ConsumeSubmissionDeadLetters(
	ctx context.Context,
	reader *kafkago.Reader,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.submission_deadletter")
	log.Info("submission dead letter consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("submission dead letter consumer stopped")
				return
			}
			log.Error("fetch dead letter message failed", zap.Error(err))
			continue
		}

		var event events.SubmissionDeadLetterEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode dead letter event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		log.Error("submission requires operator review",
			zap.String("company_id", event.CompanyID),
			zap.String("employee_id", event.EmployeeID),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.String("failure_reason", event.FailureReason),
			zap.String("failed_at", event.FailedAt),
		)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit dead letter message failed", zap.Error(err))
		}
	}
}

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"go-attend/internal/audit"
	"go-attend/internal/events"
)

// ConsumeAuditRecorded persists access-log audit entries published
// through the outbox. Inserts are idempotent on the record ID, so a
// replayed message is skipped rather than duplicated.
func ConsumeAuditRecorded(
	ctx context.Context,
	reader *kafkago.Reader,
	repo audit.Repository,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.audit_recorded")
	log.Info("audit recorded consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("audit recorded consumer stopped")
				return
			}
			log.Error("fetch audit message failed", zap.Error(err))
			continue
		}

		var event events.AuditRecordedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode audit_recorded event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		companyID, err := uuid.Parse(event.CompanyID)
		if err != nil {
			log.Error("audit_recorded event carries invalid company id",
				zap.String("company_id", event.CompanyID),
			)
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		occurredAt, err := time.Parse(time.RFC3339, event.OccurredAt)
		if err != nil {
			occurredAt = time.Now().UTC()
		}

		err = repo.Append(ctx, &audit.AuditRecord{
			ID:           event.RecordID,
			CompanyID:    companyID,
			ActorID:      event.ActorID,
			Action:       event.Action,
			TargetEntity: event.TargetEntity,
			TargetID:     event.TargetID,
			Outcome:      event.Outcome,
			RequestID:    event.RequestID,
			OccurredAt:   occurredAt,
		})
		if err != nil {
			if isDuplicateRecord(err) {
				log.Warn("audit record already persisted, skipping",
					zap.Int64("record_id", event.RecordID),
				)
				_ = reader.CommitMessages(ctx, msg)
				continue
			}

			log.Error("persist audit record failed",
				zap.Int64("record_id", event.RecordID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit audit message failed", zap.Error(err))
			continue
		}
	}
}

func isDuplicateRecord(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

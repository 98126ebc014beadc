package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-attend/internal/events"
	kafkaoutbox "go-attend/internal/messaging/kafka"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/contextutil"
)

type Entry struct {
	ActorID      string
	Action       string
	TargetEntity string
	TargetID     string
	Outcome      string
}

// Recorder appends audit records. Record is synchronous and fatal on
// failure: callers performing a security-critical action must not
// proceed unaudited. RecordAsync enqueues through the outbox inside the
// caller's transaction, for high-volume logging where eventual delivery
// is enough.
type Recorder interface {
	Record(ctx context.Context, companyID string, e Entry) (*AuditRecord, error)
	// RecordTx is Record bound to the caller's transaction, so the audit
	// record commits or rolls back together with the audited change.
	RecordTx(ctx context.Context, tx *gorm.DB, companyID string, e Entry) (*AuditRecord, error)
	RecordAsync(ctx context.Context, tx *gorm.DB, companyID string, e Entry) error
}

type recorder struct {
	repo   Repository
	outbox kafkaoutbox.OutboxRepository
	node   *snowflake.Node
	logger *zap.Logger
}

func NewRecorder(
	repo Repository,
	outbox kafkaoutbox.OutboxRepository,
	node *snowflake.Node,
	logger *zap.Logger,
) Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recorder{
		repo:   repo,
		outbox: outbox,
		node:   node,
		logger: logger.Named("audit.recorder"),
	}
}

func (r *recorder) Record(ctx context.Context, companyID string, e Entry) (*AuditRecord, error) {
	return r.record(ctx, r.repo, companyID, e)
}

func (r *recorder) RecordTx(ctx context.Context, tx *gorm.DB, companyID string, e Entry) (*AuditRecord, error) {
	repo := r.repo
	if tx != nil {
		repo = r.repo.WithTx(tx)
	}
	return r.record(ctx, repo, companyID, e)
}

func (r *recorder) record(ctx context.Context, repo Repository, companyID string, e Entry) (*AuditRecord, error) {
	cid, err := uuid.Parse(companyID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeAuditWriteFailed, "invalid company id for audit record", 500)
	}

	rec := &AuditRecord{
		ID:           r.node.Generate().Int64(),
		CompanyID:    cid,
		ActorID:      e.ActorID,
		Action:       e.Action,
		TargetEntity: e.TargetEntity,
		TargetID:     e.TargetID,
		Outcome:      e.Outcome,
		RequestID:    contextutil.GetRequestID(ctx),
		OccurredAt:   time.Now().UTC(),
	}

	if err := repo.Append(ctx, rec); err != nil {
		r.logger.Error("synchronous audit append failed",
			zap.String("action", e.Action),
			zap.String("actor_id", e.ActorID),
			zap.Error(err),
		)
		return nil, apperror.Wrap(err, apperror.CodeAuditWriteFailed, "Audit trail write failed", 500)
	}

	return rec, nil
}

func (r *recorder) RecordAsync(ctx context.Context, tx *gorm.DB, companyID string, e Entry) error {
	recordID := r.node.Generate().Int64()
	payload, err := json.Marshal(events.AuditRecordedEvent{
		RecordID:     recordID,
		CompanyID:    companyID,
		ActorID:      e.ActorID,
		Action:       e.Action,
		TargetEntity: e.TargetEntity,
		TargetID:     e.TargetID,
		Outcome:      e.Outcome,
		RequestID:    contextutil.GetRequestID(ctx),
		OccurredAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	outbox := r.outbox
	if tx != nil {
		outbox = r.outbox.WithTx(tx)
	}

	return outbox.Create(ctx, kafkaoutbox.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "audit_record",
		AggregateID:   companyID,
		EventType:     "audit.recorded",
		Topic:         events.AuditRecordedTopic,
		Payload:       payload,
		Status:        kafkaoutbox.OutboxStatusPending,
	})
}

package audit

import (
	"time"

	"github.com/google/uuid"
)

// Audited actions. Critical actions block their operation when the
// audit write fails; access actions are recorded asynchronously.
const (
	ActionLogin            = "AUTH_LOGIN"
	ActionSubmitAttendance = "ATTENDANCE_SUBMIT"
	ActionResolveConflict  = "CONFLICT_RESOLVE"
	ActionGeofenceManage   = "GEOFENCE_MANAGE"
	ActionSettingsChange   = "SETTINGS_CHANGE"
	ActionReadAccess       = "READ_ACCESS"
)

const (
	OutcomeSuccess  = "SUCCESS"
	OutcomeFailure  = "FAILURE"
	OutcomeAccepted = "ACCEPTED"
	OutcomeRejected = "REJECTED"
	OutcomeConflict = "CONFLICT"
)

// AuditRecord is append-only. The ID is a snowflake so the stream sorts
// by insertion order without a sequence round-trip.
type AuditRecord struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	CompanyID    uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	ActorID      string    `gorm:"column:actor_id;type:varchar(64);not null;index"`
	Action       string    `gorm:"column:action;type:varchar(40);not null;index"`
	TargetEntity string    `gorm:"column:target_entity;type:varchar(40);not null"`
	TargetID     string    `gorm:"column:target_id;type:varchar(64);not null"`
	Outcome      string    `gorm:"column:outcome;type:varchar(20);not null"`
	RequestID    string    `gorm:"column:request_id;type:varchar(64)"`
	OccurredAt   time.Time `gorm:"column:occurred_at;type:timestamptz;not null;index"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

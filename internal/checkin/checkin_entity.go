package checkin

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventCheckIn  = "CHECK_IN"
	EventCheckOut = "CHECK_OUT"
)

const (
	ChannelMobile = "MOBILE"
	ChannelWeb    = "WEB"
)

// Event statuses. Rows are immutable after insert except this field.
const (
	StatusAccepted = "ACCEPTED"
	StatusRejected = "REJECTED"
	StatusPending  = "PENDING_REVIEW"
)

type AttendanceEvent struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID         uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index;uniqueIndex:uq_event_idempotency"`
	EmployeeID        uuid.UUID  `gorm:"column:employee_id;type:uuid;not null;index;uniqueIndex:uq_event_idempotency"`
	SiteID            uuid.UUID  `gorm:"column:site_id;type:uuid;not null;index"`
	EventType         string     `gorm:"column:event_type;type:varchar(10);not null"`
	EventTime         time.Time  `gorm:"column:event_time;type:timestamptz;not null;index"`
	SubmittedAt       time.Time  `gorm:"column:submitted_at;type:timestamptz;not null"`
	Latitude          float64    `gorm:"column:latitude;not null"`
	Longitude         float64    `gorm:"column:longitude;not null"`
	AccuracyM         float64    `gorm:"column:accuracy_m;not null"`
	DeviceFingerprint string     `gorm:"column:device_fingerprint;type:varchar(128);not null"`
	Channel           string     `gorm:"column:channel;type:varchar(10);not null;default:MOBILE"`
	IdempotencyKey    string     `gorm:"column:idempotency_key;type:varchar(100);not null;uniqueIndex:uq_event_idempotency"`
	Status            string     `gorm:"column:status;type:varchar(20);not null"`
	PairedEventID     *uuid.UUID `gorm:"column:paired_event_id;type:uuid"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
}

func (AttendanceEvent) TableName() string {
	return "attendance_events"
}

// Conflict kinds.
const (
	ConflictDuplicateCheckIn   = "DUPLICATE_CHECK_IN"
	ConflictOutOfOrderCheckOut = "OUT_OF_ORDER_CHECK_OUT"
	ConflictCheckOutWithoutIn  = "CHECK_OUT_WITHOUT_CHECK_IN"
)

// SyncConflict records a disagreement between two submitted events.
// Created on detection, mutated only by resolution, never deleted.
type SyncConflict struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	CompanyID          uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index"`
	EmployeeID         uuid.UUID  `gorm:"column:employee_id;type:uuid;not null;index"`
	EventID            uuid.UUID  `gorm:"column:event_id;type:uuid;not null"`
	ConflictingEventID *uuid.UUID `gorm:"column:conflicting_event_id;type:uuid"`
	Kind               string     `gorm:"column:kind;type:varchar(30);not null"`
	ResolutionStrategy string     `gorm:"column:resolution_strategy;type:varchar(20);not null"`
	ResolvedAt         *time.Time `gorm:"column:resolved_at;type:timestamptz"`
	ResolvedBy         *uuid.UUID `gorm:"column:resolved_by;type:uuid"`
	Resolution         *string    `gorm:"column:resolution;type:varchar(20)"`
	CreatedAt          time.Time  `gorm:"column:created_at"`
}

func (SyncConflict) TableName() string {
	return "sync_conflicts"
}

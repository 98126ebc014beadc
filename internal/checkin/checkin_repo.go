package checkin

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go-attend/internal/tenant"
)

type EventRepository interface {
	WithTx(tx *gorm.DB) EventRepository
	Create(ctx context.Context, e *AttendanceEvent) error
	FindByIdempotencyKey(ctx context.Context, companyID, employeeID, key string) (*AttendanceEvent, error)
	// FindOpenCheckIn returns the latest accepted check-in inside the
	// shift window that has no paired check-out yet.
	FindOpenCheckIn(ctx context.Context, companyID, employeeID string, since time.Time) (*AttendanceEvent, error)
	FindLatestAccepted(ctx context.Context, companyID, employeeID string) (*AttendanceEvent, error)
	UpdateStatus(ctx context.Context, companyID, id, status string) error
	SetPairedEvent(ctx context.Context, companyID, checkInID, checkOutID string) error
	FindAllByEmployee(ctx context.Context, companyID, employeeID string, limit int) ([]AttendanceEvent, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &eventRepository{db: tx}
}

func (r *eventRepository) Create(ctx context.Context, e *AttendanceEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *eventRepository) FindByIdempotencyKey(ctx context.Context, companyID, employeeID, key string) (*AttendanceEvent, error) {
	var e AttendanceEvent
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("idempotency_key = ?", key).
		First(&e).Error
	return &e, err
}

func (r *eventRepository) FindOpenCheckIn(ctx context.Context, companyID, employeeID string, since time.Time) (*AttendanceEvent, error) {
	var e AttendanceEvent
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("event_type = ?", EventCheckIn).
		Where("status = ?", StatusAccepted).
		Where("event_time >= ?", since).
		Where("paired_event_id IS NULL").
		Order("event_time DESC").
		First(&e).Error
	return &e, err
}

func (r *eventRepository) FindLatestAccepted(ctx context.Context, companyID, employeeID string) (*AttendanceEvent, error) {
	var e AttendanceEvent
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("status = ?", StatusAccepted).
		Order("event_time DESC").
		First(&e).Error
	return &e, err
}

func (r *eventRepository) UpdateStatus(ctx context.Context, companyID, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&AttendanceEvent{}).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *eventRepository) SetPairedEvent(ctx context.Context, companyID, checkInID, checkOutID string) error {
	return r.db.WithContext(ctx).
		Model(&AttendanceEvent{}).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", checkInID).
		Update("paired_event_id", checkOutID).Error
}

func (r *eventRepository) FindAllByEmployee(ctx context.Context, companyID, employeeID string, limit int) ([]AttendanceEvent, error) {
	var rows []AttendanceEvent
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Order("event_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

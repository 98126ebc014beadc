package risk

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go-attend/internal/tenant"
)

type AssessmentRepository interface {
	WithTx(tx *gorm.DB) AssessmentRepository
	Create(ctx context.Context, a *RiskAssessment) error
	FindAllByCompany(ctx context.Context, companyID string, limit int) ([]RiskAssessment, error)
	FindFlagged(ctx context.Context, companyID string, limit int) ([]RiskAssessment, error)
	FindByEvent(ctx context.Context, companyID, eventID string) ([]RiskAssessment, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) WithTx(tx *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: tx}
}

func (r *assessmentRepository) Create(ctx context.Context, a *RiskAssessment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *assessmentRepository) FindAllByCompany(ctx context.Context, companyID string, limit int) ([]RiskAssessment, error) {
	var rows []RiskAssessment
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *assessmentRepository) FindFlagged(ctx context.Context, companyID string, limit int) ([]RiskAssessment, error) {
	var rows []RiskAssessment
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("level = ?", LevelCritical).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *assessmentRepository) FindByEvent(ctx context.Context, companyID, eventID string) ([]RiskAssessment, error) {
	var rows []RiskAssessment
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

type DeviceRepository interface {
	RecordSighting(ctx context.Context, s *DeviceSighting) error
	Snapshot(ctx context.Context, companyID, employeeID, fingerprint string, shareWindow, switchWindow time.Duration) (*DeviceSnapshot, error)
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) RecordSighting(ctx context.Context, s *DeviceSighting) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *deviceRepository) Snapshot(
	ctx context.Context,
	companyID, employeeID, fingerprint string,
	shareWindow, switchWindow time.Duration,
) (*DeviceSnapshot, error) {
	now := time.Now().UTC()

	var usersOnDevice int64
	err := r.db.WithContext(ctx).
		Model(&DeviceSighting{}).
		Scopes(tenant.Scope(companyID)).
		Where("fingerprint = ?", fingerprint).
		Where("seen_at >= ?", now.Add(-shareWindow)).
		Distinct("employee_id").
		Count(&usersOnDevice).Error
	if err != nil {
		return nil, err
	}

	var devicesForUser int64
	err = r.db.WithContext(ctx).
		Model(&DeviceSighting{}).
		Scopes(tenant.Scope(companyID)).
		Where("employee_id = ?", employeeID).
		Where("seen_at >= ?", now.Add(-switchWindow)).
		Distinct("fingerprint").
		Count(&devicesForUser).Error
	if err != nil {
		return nil, err
	}

	return &DeviceSnapshot{
		UsersOnDevice:  int(usersOnDevice),
		DevicesForUser: int(devicesForUser),
	}, nil
}

package checkin

import (
	"context"
	"time"

	"gorm.io/gorm"

	"go-attend/internal/tenant"
)

type ConflictRepository interface {
	WithTx(tx *gorm.DB) ConflictRepository
	Create(ctx context.Context, c *SyncConflict) error
	FindByID(ctx context.Context, companyID, id string) (*SyncConflict, error)
	FindByEvent(ctx context.Context, companyID, eventID string) (*SyncConflict, error)
	FindOpenByCompany(ctx context.Context, companyID string, limit int) ([]SyncConflict, error)
	Resolve(ctx context.Context, companyID, id, resolvedBy, resolution string, at time.Time) error
}

type conflictRepository struct {
	db *gorm.DB
}

func NewConflictRepository(db *gorm.DB) ConflictRepository {
	return &conflictRepository{db: db}
}

func (r *conflictRepository) WithTx(tx *gorm.DB) ConflictRepository {
	return &conflictRepository{db: tx}
}

func (r *conflictRepository) Create(ctx context.Context, c *SyncConflict) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conflictRepository) FindByID(ctx context.Context, companyID, id string) (*SyncConflict, error) {
	var c SyncConflict
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		First(&c).Error
	return &c, err
}

func (r *conflictRepository) FindByEvent(ctx context.Context, companyID, eventID string) (*SyncConflict, error) {
	var c SyncConflict
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		First(&c).Error
	return &c, err
}

func (r *conflictRepository) FindOpenByCompany(ctx context.Context, companyID string, limit int) ([]SyncConflict, error) {
	var rows []SyncConflict
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *conflictRepository) Resolve(ctx context.Context, companyID, id, resolvedBy, resolution string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&SyncConflict{}).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		Where("resolved_at IS NULL").
		Updates(map[string]any{
			"resolved_at": at,
			"resolved_by": resolvedBy,
			"resolution":  resolution,
		}).Error
}

package audit

import (
	"context"

	"gorm.io/gorm"
)

// Repository exposes append and read only. There is deliberately no
// update or delete: retention is a separate archival process.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, rec *AuditRecord) error
	FindAllByCompany(ctx context.Context, companyID string, limit int) ([]AuditRecord, error)
	FindByActor(ctx context.Context, companyID, actorID string, limit int) ([]AuditRecord, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, rec *AuditRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string, limit int) ([]AuditRecord, error) {
	var rows []AuditRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindByActor(ctx context.Context, companyID, actorID string, limit int) ([]AuditRecord, error) {
	var rows []AuditRecord
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where("actor_id = ?", actorID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

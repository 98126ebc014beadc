package site

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-attend/internal/tenant"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, s *Site) error
	GetByID(ctx context.Context, companyID string, id uuid.UUID) (*Site, error)
	ListByCompany(ctx context.Context, companyID string) ([]Site, error)
	Update(ctx context.Context, s *Site) error
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

func (r *repository) Create(ctx context.Context, s *Site) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *repository) GetByID(ctx context.Context, companyID string, id uuid.UUID) (*Site, error) {
	var s Site
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		First(&s, "id = ?", id).Error
	return &s, err
}

func (r *repository) ListByCompany(ctx context.Context, companyID string) ([]Site, error) {
	var rows []Site
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, s *Site) error {
	return r.db.WithContext(ctx).Save(s).Error
}

package geofence

import (
	"context"

	"gorm.io/gorm"

	"go-attend/internal/tenant"
)

type Repository interface {
	Create(ctx context.Context, g *Geofence) error
	FindByID(ctx context.Context, companyID, id string) (*Geofence, error)
	FindActiveBySite(ctx context.Context, companyID, siteID string) (*Geofence, error)
	FindAllByCompany(ctx context.Context, companyID string) ([]Geofence, error)
	Deactivate(ctx context.Context, companyID, id string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, g *Geofence) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *repository) FindByID(ctx context.Context, companyID, id string) (*Geofence, error) {
	var g Geofence
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		First(&g).Error
	return &g, err
}

func (r *repository) FindActiveBySite(ctx context.Context, companyID, siteID string) (*Geofence, error) {
	var g Geofence
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Where("site_id = ?", siteID).
		Where("active = ?", true).
		Order("created_at DESC").
		First(&g).Error
	return &g, err
}

func (r *repository) FindAllByCompany(ctx context.Context, companyID string) ([]Geofence, error) {
	var rows []Geofence
	err := r.db.WithContext(ctx).
		Scopes(tenant.Scope(companyID)).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Deactivate(ctx context.Context, companyID, id string) error {
	return r.db.WithContext(ctx).
		Model(&Geofence{}).
		Scopes(tenant.Scope(companyID)).
		Where("id = ?", id).
		Update("active", false).Error
}

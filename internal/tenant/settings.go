package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolution strategies for attendance sync conflicts. Selected per
// tenant: server-wins resolves automatically, manual leaves the
// conflict open for a supervisor.
const (
	ResolutionServerWins = "SERVER_WINS"
	ResolutionClientWins = "CLIENT_WINS"
	ResolutionManual     = "MANUAL"
)

type Settings struct {
	CompanyID          uuid.UUID `gorm:"column:company_id;type:uuid;primaryKey"`
	ResolutionStrategy string    `gorm:"column:resolution_strategy;type:varchar(20);not null;default:SERVER_WINS"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (Settings) TableName() string {
	return "tenant_settings"
}

type SettingsRepository interface {
	Get(ctx context.Context, companyID string) (Settings, error)
	Upsert(ctx context.Context, s Settings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get returns the tenant settings, falling back to defaults when the
// tenant has never customized anything.
func (r *settingsRepository) Get(ctx context.Context, companyID string) (Settings, error) {
	var s Settings
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cid, parseErr := uuid.Parse(companyID)
		if parseErr != nil {
			return Settings{}, parseErr
		}
		return Settings{CompanyID: cid, ResolutionStrategy: ResolutionServerWins}, nil
	}
	return s, err
}

func (r *settingsRepository) Upsert(ctx context.Context, s Settings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "company_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"resolution_strategy", "updated_at"}),
		}).
		Create(&s).Error
}

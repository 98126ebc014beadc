package site

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Site is a physical work location. Geofences attach to a site; an
// attendance event always names the site it was submitted for.
type Site struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name      string         `gorm:"type:varchar(150);not null"`
	Address   string         `gorm:"type:varchar(255)"`
	Timezone  string         `gorm:"type:varchar(64);not null;default:'UTC'"`
	IsActive  bool           `gorm:"not null;default:true"`
	CreatedAt time.Time      `gorm:"not null;default:now()"`
	UpdatedAt time.Time      `gorm:"not null;default:now()"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Site) TableName() string {
	return "sites"
}

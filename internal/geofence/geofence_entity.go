package geofence

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	KindCircle  = "CIRCLE"
	KindPolygon = "POLYGON"
)

type Vertex struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// VertexList is stored as JSONB.
type VertexList []Vertex

func (v VertexList) Value() (driver.Value, error) {
	return json.Marshal(v)
}

func (v *VertexList) Scan(src any) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	case nil:
		*v = nil
		return nil
	default:
		return errors.New("unsupported vertex list source type")
	}
}

type Geofence struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID   uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index"`
	SiteID      uuid.UUID      `gorm:"column:site_id;type:uuid;not null;index"`
	Name        string         `gorm:"column:name;type:varchar(120);not null"`
	Kind        string         `gorm:"column:kind;type:varchar(10);not null"`
	CenterLat   *float64       `gorm:"column:center_lat"`
	CenterLng   *float64       `gorm:"column:center_lng"`
	RadiusM     *float64       `gorm:"column:radius_m"`
	Vertices    VertexList     `gorm:"column:vertices;type:jsonb"`
	HysteresisM float64        `gorm:"column:hysteresis_m;not null;default:0"`
	Active      bool           `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Geofence) TableName() string {
	return "geofences"
}

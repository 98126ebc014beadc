package risk

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	LevelNone     = "NONE"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// Anomaly flags carried on an assessment.
const (
	FlagOutsideGeofence   = "outside_geofence"
	FlagDeviceShared      = "device_shared"
	FlagRapidDeviceSwitch = "rapid_device_switch"
	FlagUnusualHour       = "unusual_hour"
	FlagAbnormalSubmitLag = "abnormal_submit_lag"
)

// StringList is stored as JSONB.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src any) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, l)
	case string:
		return json.Unmarshal([]byte(data), l)
	case nil:
		*l = nil
		return nil
	default:
		return errors.New("unsupported string list source type")
	}
}

// RiskAssessment is append-only: re-scoring an event creates a new row,
// existing rows are never mutated.
type RiskAssessment struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID       uuid.UUID  `gorm:"column:company_id;type:uuid;not null;index"`
	EventID         uuid.UUID  `gorm:"column:event_id;type:uuid;not null;index"`
	EmployeeID      uuid.UUID  `gorm:"column:employee_id;type:uuid;not null;index"`
	CompositeScore  float64    `gorm:"column:composite_score;not null"`
	LocationScore   *float64   `gorm:"column:location_score"`
	TemporalScore   *float64   `gorm:"column:temporal_score"`
	BehavioralScore *float64   `gorm:"column:behavioral_score"`
	DeviceScore     *float64   `gorm:"column:device_score"`
	Flags           StringList `gorm:"column:flags;type:jsonb"`
	Incomplete      StringList `gorm:"column:incomplete_components;type:jsonb"`
	Level           string     `gorm:"column:level;type:varchar(10);not null"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
}

func (RiskAssessment) TableName() string {
	return "risk_assessments"
}

// DeviceSighting records one fingerprint observation, feeding the
// device-sharing and device-switching heuristics.
type DeviceSighting struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	CompanyID   uuid.UUID `gorm:"column:company_id;type:uuid;not null;index"`
	EmployeeID  uuid.UUID `gorm:"column:employee_id;type:uuid;not null;index"`
	Fingerprint string    `gorm:"column:fingerprint;type:varchar(128);not null;index"`
	SeenAt      time.Time `gorm:"column:seen_at;type:timestamptz;not null;index"`
}

func (DeviceSighting) TableName() string {
	return "device_sightings"
}

package risk

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// WeekdayStat holds the learned check-in minute-of-day distribution for
// one weekday (0 = Sunday, matching time.Weekday).
type WeekdayStat struct {
	MeanMinute   float64 `json:"mean_minute"`
	StddevMinute float64 `json:"stddev_minute"`
	Samples      int     `json:"samples"`
}

type WeekdayStats map[int]WeekdayStat

func (s WeekdayStats) Value() (driver.Value, error) {
	if s == nil {
		s = WeekdayStats{}
	}
	return json.Marshal(s)
}

func (s *WeekdayStats) Scan(src any) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, s)
	case string:
		return json.Unmarshal([]byte(data), s)
	case nil:
		*s = nil
		return nil
	default:
		return errors.New("unsupported weekday stats source type")
	}
}

// BehaviorBaseline is the versioned per-user baseline. The sync path
// only ever reads it as an immutable snapshot; the worker recomputes it
// out-of-band and bumps Version.
type BehaviorBaseline struct {
	CompanyID        uuid.UUID    `gorm:"column:company_id;type:uuid;primaryKey"`
	EmployeeID       uuid.UUID    `gorm:"column:employee_id;type:uuid;primaryKey"`
	Version          int64        `gorm:"column:version;not null;default:1"`
	Weekdays         WeekdayStats `gorm:"column:weekday_stats;type:jsonb"`
	SubmitLagMeanSec float64      `gorm:"column:submit_lag_mean_sec"`
	SubmitLagStdSec  float64      `gorm:"column:submit_lag_std_sec"`
	SubmitLagSamples int          `gorm:"column:submit_lag_samples"`
	UpdatedAt        time.Time    `gorm:"column:updated_at"`
}

func (BehaviorBaseline) TableName() string {
	return "behavior_baselines"
}

// BaselineSnapshot is the read-only view handed to the orchestrator for
// a single scoring call.
type BaselineSnapshot struct {
	Version          int64
	Weekdays         WeekdayStats
	SubmitLagMeanSec float64
	SubmitLagStdSec  float64
	SubmitLagSamples int
}

func (b *BehaviorBaseline) Snapshot() *BaselineSnapshot {
	if b == nil {
		return nil
	}
	return &BaselineSnapshot{
		Version:          b.Version,
		Weekdays:         b.Weekdays,
		SubmitLagMeanSec: b.SubmitLagMeanSec,
		SubmitLagStdSec:  b.SubmitLagStdSec,
		SubmitLagSamples: b.SubmitLagSamples,
	}
}

// DeviceSnapshot summarizes recent fingerprint activity around one
// submission.
type DeviceSnapshot struct {
	// Distinct users seen on this fingerprint inside the sharing window,
	// including the submitting user.
	UsersOnDevice int
	// Distinct fingerprints this user submitted from inside the
	// switching window, including the current one.
	DevicesForUser int
}

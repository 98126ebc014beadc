package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const baselineCacheTTL = 10 * time.Minute

type BaselineRepository interface {
	// GetSnapshot returns nil (no error) when the user has no baseline
	// yet: the orchestrator treats the dependent components as unknown.
	GetSnapshot(ctx context.Context, companyID, employeeID string) (*BaselineSnapshot, error)
	Recompute(ctx context.Context, companyID string, lookbackDays, minSamples int) (int, error)
}

type baselineRepository struct {
	db     *gorm.DB
	rdb    *redis.Client
	group  singleflight.Group
	logger *zap.Logger
}

func NewBaselineRepository(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) BaselineRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &baselineRepository{db: db, rdb: rdb, logger: logger.Named("risk.baseline")}
}

func baselineCacheKey(companyID, employeeID string) string {
	return fmt.Sprintf("baseline:%s:%s", companyID, employeeID)
}

func (r *baselineRepository) GetSnapshot(ctx context.Context, companyID, employeeID string) (*BaselineSnapshot, error) {
	key := baselineCacheKey(companyID, employeeID)

	if r.rdb != nil {
		if raw, err := r.rdb.Get(ctx, key).Result(); err == nil {
			var snap BaselineSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
		}
	}

	// Collapse concurrent loads of the same user's baseline.
	v, err, _ := r.group.Do(key, func() (any, error) {
		var row BehaviorBaseline
		err := r.db.WithContext(ctx).
			Where("company_id = ?", companyID).
			Where("employee_id = ?", employeeID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*BaselineSnapshot)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		snap := row.Snapshot()
		if r.rdb != nil {
			if raw, err := json.Marshal(snap); err == nil {
				if err := r.rdb.Set(ctx, key, raw, baselineCacheTTL).Err(); err != nil {
					r.logger.Warn("baseline cache write failed", zap.Error(err))
				}
			}
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BaselineSnapshot), nil
}

type weekdayAggRow struct {
	EmployeeID string
	Weekday    int
	MeanMinute float64
	StdMinute  float64
	Samples    int
}

type lagAggRow struct {
	EmployeeID string
	MeanSec    float64
	StdSec     float64
	Samples    int
}

// Recompute rebuilds baselines for a tenant from recent check-ins and
// bumps each baseline's version. Runs out-of-band in the worker, never
// on the submission path.
func (r *baselineRepository) Recompute(ctx context.Context, companyID string, lookbackDays, minSamples int) (int, error) {
	since := time.Now().UTC().AddDate(0, 0, -lookbackDays)

	var weekdayRows []weekdayAggRow
	err := r.db.WithContext(ctx).Raw(`
SELECT
	employee_id::text AS employee_id,
	EXTRACT(DOW FROM event_time AT TIME ZONE 'UTC')::int AS weekday,
	AVG(EXTRACT(HOUR FROM event_time AT TIME ZONE 'UTC') * 60 + EXTRACT(MINUTE FROM event_time AT TIME ZONE 'UTC')) AS mean_minute,
	COALESCE(STDDEV_SAMP(EXTRACT(HOUR FROM event_time AT TIME ZONE 'UTC') * 60 + EXTRACT(MINUTE FROM event_time AT TIME ZONE 'UTC')), 0) AS std_minute,
	COUNT(*) AS samples
FROM attendance_events
WHERE company_id = ?
	AND event_type = 'CHECK_IN'
	AND status = 'ACCEPTED'
	AND event_time >= ?
GROUP BY employee_id, weekday
`, companyID, since).Scan(&weekdayRows).Error
	if err != nil {
		return 0, err
	}

	var lagRows []lagAggRow
	err = r.db.WithContext(ctx).Raw(`
SELECT
	employee_id::text AS employee_id,
	AVG(ABS(EXTRACT(EPOCH FROM (submitted_at - event_time)))) AS mean_sec,
	COALESCE(STDDEV_SAMP(ABS(EXTRACT(EPOCH FROM (submitted_at - event_time)))), 0) AS std_sec,
	COUNT(*) AS samples
FROM attendance_events
WHERE company_id = ?
	AND status = 'ACCEPTED'
	AND event_time >= ?
GROUP BY employee_id
`, companyID, since).Scan(&lagRows).Error
	if err != nil {
		return 0, err
	}

	weekdaysByEmployee := make(map[string]WeekdayStats)
	for _, row := range weekdayRows {
		if row.Samples < minSamples {
			continue
		}
		stats, ok := weekdaysByEmployee[row.EmployeeID]
		if !ok {
			stats = WeekdayStats{}
			weekdaysByEmployee[row.EmployeeID] = stats
		}
		stats[row.Weekday] = WeekdayStat{
			MeanMinute:   row.MeanMinute,
			StddevMinute: row.StdMinute,
			Samples:      row.Samples,
		}
	}

	updated := 0
	for _, lag := range lagRows {
		baseline := BehaviorBaseline{
			Weekdays:         weekdaysByEmployee[lag.EmployeeID],
			SubmitLagMeanSec: lag.MeanSec,
			SubmitLagStdSec:  lag.StdSec,
			SubmitLagSamples: lag.Samples,
			UpdatedAt:        time.Now().UTC(),
		}
		if err := baseline.CompanyID.Scan(companyID); err != nil {
			return updated, err
		}
		if err := baseline.EmployeeID.Scan(lag.EmployeeID); err != nil {
			return updated, err
		}

		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "company_id"}, {Name: "employee_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"version":            gorm.Expr("behavior_baselines.version + 1"),
					"weekday_stats":      baseline.Weekdays,
					"submit_lag_mean_sec": baseline.SubmitLagMeanSec,
					"submit_lag_std_sec":  baseline.SubmitLagStdSec,
					"submit_lag_samples":  baseline.SubmitLagSamples,
					"updated_at":          baseline.UpdatedAt,
				}),
			}).
			Create(&baseline).Error
		if err != nil {
			return updated, err
		}
		updated++

		if r.rdb != nil {
			// Drop the stale cached snapshot; next read reloads.
			_ = r.rdb.Del(ctx, baselineCacheKey(companyID, lag.EmployeeID)).Err()
		}
	}

	return updated, nil
}

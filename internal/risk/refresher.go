package risk

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Refresher periodically rebuilds behavior baselines for every tenant
// with recent activity. Scoring keeps reading the previous version
// while a rebuild runs.
type Refresher struct {
	db           *gorm.DB
	baselines    BaselineRepository
	interval     time.Duration
	lookbackDays int
	minSamples   int
	logger       *zap.Logger
}

func NewRefresher(
	db *gorm.DB,
	baselines BaselineRepository,
	interval time.Duration,
	lookbackDays, minSamples int,
	logger *zap.Logger,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		db:           db,
		baselines:    baselines,
		interval:     interval,
		lookbackDays: lookbackDays,
		minSamples:   minSamples,
		logger:       logger.Named("risk.refresher"),
	}
}

func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("baseline refresher started",
		zap.Duration("interval", r.interval),
		zap.Int("lookback_days", r.lookbackDays),
	)

	// One pass at startup so a fresh deployment does not wait a full
	// interval for its first baselines.
	r.refreshAll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("baseline refresher stopped")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	companies, err := r.activeCompanies(ctx)
	if err != nil {
		r.logger.Error("list active companies failed", zap.Error(err))
		return
	}

	for _, companyID := range companies {
		updated, err := r.baselines.Recompute(ctx, companyID, r.lookbackDays, r.minSamples)
		if err != nil {
			r.logger.Error("baseline recompute failed",
				zap.String("company_id", companyID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("baselines recomputed",
			zap.String("company_id", companyID),
			zap.Int("employees", updated),
		)
	}
}

func (r *Refresher) activeCompanies(ctx context.Context) ([]string, error) {
	var companies []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT company_id::text
		     FROM attendance_events
		     WHERE submitted_at >= now() - make_interval(days => ?)`,
			r.lookbackDays).
		Scan(&companies).Error
	return companies, err
}

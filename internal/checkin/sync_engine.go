package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	checkinerrors "go-attend/internal/checkin/errors"
	"go-attend/internal/events"
	"go-attend/internal/geofence"
	kafkaoutbox "go-attend/internal/messaging/kafka"
	"go-attend/internal/risk"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/shared/contextutil"
	"go-attend/internal/tenant"
)

const lockPollInterval = 50 * time.Millisecond

type EngineConfig struct {
	IdempotencyWindow  time.Duration
	SubmitLockTTL      time.Duration
	ProcessingTimeout  time.Duration
	PersistMaxRetries  int
	PersistBackoffBase time.Duration
	ShiftWindow        time.Duration
	GeoLimits          geofence.Limits
	DeviceShareWindow  time.Duration
	DeviceSwitchWindow time.Duration
}

type Engine interface {
	Submit(ctx context.Context, companyID, employeeID string, req SubmitRequest) (SubmissionResult, error)
	GetHistory(ctx context.Context, companyID, employeeID string, limit int) ([]EventResponse, error)
	ListOpenConflicts(ctx context.Context, companyID string, limit int) ([]ConflictResponse, error)
	ResolveConflict(ctx context.Context, companyID, conflictID, actorID string, req ResolveConflictRequest) (ConflictResponse, error)
}

type engine struct {
	db           *gorm.DB
	rdb          *redis.Client
	eventRepo    EventRepository
	conflictRepo ConflictRepository
	geofenceRepo geofence.Repository
	settingsRepo tenant.SettingsRepository
	baselineRepo risk.BaselineRepository
	deviceRepo   risk.DeviceRepository
	riskRepo     risk.AssessmentRepository
	outboxRepo   kafkaoutbox.OutboxRepository
	recorder     audit.Recorder
	orchestrator *risk.Orchestrator
	cfg          EngineConfig
	logger       *zap.Logger
}

func NewEngine(
	db *gorm.DB,
	rdb *redis.Client,
	eventRepo EventRepository,
	conflictRepo ConflictRepository,
	geofenceRepo geofence.Repository,
	settingsRepo tenant.SettingsRepository,
	baselineRepo risk.BaselineRepository,
	deviceRepo risk.DeviceRepository,
	riskRepo risk.AssessmentRepository,
	outboxRepo kafkaoutbox.OutboxRepository,
	recorder audit.Recorder,
	orchestrator *risk.Orchestrator,
	cfg EngineConfig,
	logger *zap.Logger,
) Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &engine{
		db:           db,
		rdb:          rdb,
		eventRepo:    eventRepo,
		conflictRepo: conflictRepo,
		geofenceRepo: geofenceRepo,
		settingsRepo: settingsRepo,
		baselineRepo: baselineRepo,
		deviceRepo:   deviceRepo,
		riskRepo:     riskRepo,
		outboxRepo:   outboxRepo,
		recorder:     recorder,
		orchestrator: orchestrator,
		cfg:          cfg,
		logger:       logger.Named("checkin.engine"),
	}
}

func idempotencyCacheKey(companyID, employeeID, key string) string {
	return fmt.Sprintf("idem:%s:%s:%s", companyID, employeeID, key)
}

func submitLockKey(companyID, employeeID string) string {
	return fmt.Sprintf("submitlock:%s:%s", companyID, employeeID)
}

func (s *engine) Submit(ctx context.Context, companyID, employeeID string, req SubmitRequest) (SubmissionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
	defer cancel()

	eventTime, err := time.Parse(time.RFC3339, req.EventTime)
	if err != nil {
		return SubmissionResult{}, apperror.New(apperror.CodeInvalidInput, "event_time must be RFC3339", 400)
	}
	eventTime = eventTime.UTC()

	channel := req.Channel
	if channel == "" {
		channel = ChannelMobile
	}

	cacheKey := idempotencyCacheKey(companyID, employeeID, req.IdempotencyKey)
	if cached, ok := s.cachedResult(ctx, cacheKey); ok {
		return cached, nil
	}

	// Serialize submissions per (user, shift window): the lock is held
	// for the conflict-check-and-persist step only; scoring for other
	// users proceeds concurrently.
	lockKey := submitLockKey(companyID, employeeID)
	if err := s.acquireLock(ctx, lockKey); err != nil {
		return SubmissionResult{}, err
	}
	defer s.releaseLock(lockKey)

	// A retried submission may have been processed by the holder of the
	// previous lock: re-check against the database.
	if existing, err := s.eventRepo.FindByIdempotencyKey(ctx, companyID, employeeID, req.IdempotencyKey); err == nil {
		result := s.resultFromEvent(ctx, existing)
		s.cacheResult(ctx, cacheKey, result)
		return result, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return SubmissionResult{}, timeoutOr(ctx, err)
	}

	fence, err := s.geofenceRepo.FindActiveBySite(ctx, companyID, req.SiteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SubmissionResult{}, checkinerrors.ErrNoActiveGeofence
		}
		return SubmissionResult{}, timeoutOr(ctx, err)
	}

	var prior *geofence.PriorFix
	if last, err := s.eventRepo.FindLatestAccepted(ctx, companyID, employeeID); err == nil {
		if elapsed := eventTime.Sub(last.EventTime); elapsed > 0 {
			prior = &geofence.PriorFix{
				Location: geofence.Location{Lat: last.Latitude, Lng: last.Longitude, AccuracyM: last.AccuracyM},
				Elapsed:  elapsed,
			}
		}
	}

	reported := geofence.Location{Lat: req.Latitude, Lng: req.Longitude, AccuracyM: req.AccuracyM}
	validation, err := geofence.Validate(reported, fence, prior, s.cfg.GeoLimits)
	if err != nil {
		return SubmissionResult{}, err
	}

	event := &AttendanceEvent{
		ID:                uuid.New(),
		CompanyID:         uuid.MustParse(companyID),
		EmployeeID:        uuid.MustParse(employeeID),
		SiteID:            uuid.MustParse(req.SiteID),
		EventType:         req.EventType,
		EventTime:         eventTime,
		SubmittedAt:       time.Now().UTC(),
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		AccuracyM:         req.AccuracyM,
		DeviceFingerprint: req.DeviceFingerprint,
		Channel:           channel,
		IdempotencyKey:    req.IdempotencyKey,
	}

	assessment := s.orchestrator.Score(risk.ScoreInput{
		CompanyID:   event.CompanyID,
		EventID:     event.ID,
		EmployeeID:  event.EmployeeID,
		EventTime:   event.EventTime,
		SubmittedAt: event.SubmittedAt,
		Validation:  validation,
		Baseline:    s.loadBaseline(ctx, companyID, employeeID),
		Device:      s.loadDeviceSnapshot(ctx, event),
	})

	settings, err := s.settingsRepo.Get(ctx, companyID)
	if err != nil {
		return SubmissionResult{}, timeoutOr(ctx, err)
	}

	result, err := s.persistWithRetry(ctx, event, &assessment, validation, settings.ResolutionStrategy)
	if err != nil {
		return SubmissionResult{}, err
	}

	s.cacheResult(ctx, cacheKey, result)
	return result, nil
}

// timeoutOr maps a lookup error to the processing-timeout error once the
// submission deadline has expired, so the caller is told to retry with
// the same idempotency key instead of seeing an opaque failure.
func timeoutOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperror.ErrProcessingTimeout
	}
	return err
}

func (s *engine) acquireLock(ctx context.Context, lockKey string) error {
	for {
		ok, err := s.rdb.SetNX(ctx, lockKey, "locked", s.cfg.SubmitLockTTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return apperror.ErrProcessingTimeout
			}
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return apperror.ErrProcessingTimeout
		case <-time.After(lockPollInterval):
		}
	}
}

func (s *engine) releaseLock(lockKey string) {
	// The submission context may already be done; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, lockKey).Err(); err != nil {
		s.logger.Warn("release submit lock failed", zap.String("lock_key", lockKey), zap.Error(err))
	}
}

func (s *engine) cachedResult(ctx context.Context, cacheKey string) (SubmissionResult, bool) {
	raw, err := s.rdb.Get(ctx, cacheKey).Result()
	if err != nil {
		return SubmissionResult{}, false
	}
	var result SubmissionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return SubmissionResult{}, false
	}
	return result, true
}

func (s *engine) cacheResult(ctx context.Context, cacheKey string, result SubmissionResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, cacheKey, raw, s.cfg.IdempotencyWindow).Err(); err != nil {
		s.logger.Warn("idempotency cache write failed", zap.Error(err))
	}
}

func (s *engine) loadBaseline(ctx context.Context, companyID, employeeID string) *risk.BaselineSnapshot {
	snap, err := s.baselineRepo.GetSnapshot(ctx, companyID, employeeID)
	if err != nil {
		// Scoring degrades to an incomplete component instead of failing.
		s.logger.Warn("baseline load failed", zap.String("employee_id", employeeID), zap.Error(err))
		return nil
	}
	return snap
}

func (s *engine) loadDeviceSnapshot(ctx context.Context, event *AttendanceEvent) *risk.DeviceSnapshot {
	sighting := &risk.DeviceSighting{
		ID:          uuid.New(),
		CompanyID:   event.CompanyID,
		EmployeeID:  event.EmployeeID,
		Fingerprint: event.DeviceFingerprint,
		SeenAt:      event.SubmittedAt,
	}
	if err := s.deviceRepo.RecordSighting(ctx, sighting); err != nil {
		s.logger.Warn("device sighting write failed", zap.Error(err))
		return nil
	}

	snap, err := s.deviceRepo.Snapshot(
		ctx,
		event.CompanyID.String(),
		event.EmployeeID.String(),
		event.DeviceFingerprint,
		s.cfg.DeviceShareWindow,
		s.cfg.DeviceSwitchWindow,
	)
	if err != nil {
		s.logger.Warn("device snapshot failed", zap.Error(err))
		return nil
	}
	return snap
}

func (s *engine) persistWithRetry(
	ctx context.Context,
	event *AttendanceEvent,
	assessment *risk.RiskAssessment,
	validation geofence.ValidationResult,
	strategy string,
) (SubmissionResult, error) {
	backoff := s.cfg.PersistBackoffBase

	var lastErr error
	for attempt := 1; attempt <= s.cfg.PersistMaxRetries; attempt++ {
		result, err := s.persistOnce(ctx, event, assessment, validation, strategy)
		if err == nil {
			return result, nil
		}

		if isUniqueEventViolation(err) {
			// Lost a race against a concurrent retry of the same key:
			// the original outcome stands.
			existing, ferr := s.eventRepo.FindByIdempotencyKey(
				ctx, event.CompanyID.String(), event.EmployeeID.String(), event.IdempotencyKey)
			if ferr == nil {
				return s.resultFromEvent(ctx, existing), nil
			}
			lastErr = err
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return SubmissionResult{}, apperror.ErrProcessingTimeout
		}

		s.logger.Warn("persist attempt failed",
			zap.Int("attempt", attempt),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return SubmissionResult{}, apperror.ErrProcessingTimeout
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	s.deadLetter(event, lastErr)
	return SubmissionResult{}, checkinerrors.ErrSubmissionDeadLettered
}

func (s *engine) persistOnce(
	ctx context.Context,
	event *AttendanceEvent,
	assessment *risk.RiskAssessment,
	validation geofence.ValidationResult,
	strategy string,
) (SubmissionResult, error) {
	var result SubmissionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evRepo := s.eventRepo.WithTx(tx)
		cfRepo := s.conflictRepo.WithTx(tx)
		riskRepo := s.riskRepo.WithTx(tx)
		companyID := event.CompanyID.String()

		conflict, pairedCheckIn, err := s.detectConflict(ctx, evRepo, event)
		if err != nil {
			return err
		}

		if conflict != nil {
			now := time.Now().UTC()
			conflict.ResolutionStrategy = strategy
			if strategy == tenant.ResolutionManual {
				event.Status = StatusPending
			} else {
				// Server-wins: the later-submitted event loses, the
				// conflict closes immediately.
				event.Status = StatusRejected
				resolution := tenant.ResolutionServerWins
				conflict.ResolvedAt = &now
				conflict.Resolution = &resolution
			}

			if err := evRepo.Create(ctx, event); err != nil {
				return err
			}
			if err := cfRepo.Create(ctx, conflict); err != nil {
				return err
			}
			if err := riskRepo.Create(ctx, assessment); err != nil {
				return err
			}

			conflictID := conflict.ID.String()
			result = SubmissionResult{
				Accepted:       false,
				EventID:        event.ID.String(),
				Status:         event.Status,
				RiskLevel:      assessment.Level,
				CompositeScore: assessment.CompositeScore,
				Flags:          assessment.Flags,
				ConflictID:     &conflictID,
				ConflictKind:   &conflict.Kind,
			}
		} else {
			event.Status = StatusAccepted
			if pairedCheckIn != nil {
				event.PairedEventID = &pairedCheckIn.ID
			}
			if err := evRepo.Create(ctx, event); err != nil {
				return err
			}
			if pairedCheckIn != nil {
				if err := evRepo.SetPairedEvent(ctx, companyID, pairedCheckIn.ID.String(), event.ID.String()); err != nil {
					return err
				}
			}
			if err := riskRepo.Create(ctx, assessment); err != nil {
				return err
			}

			result = SubmissionResult{
				Accepted:       true,
				EventID:        event.ID.String(),
				Status:         event.Status,
				RiskLevel:      assessment.Level,
				CompositeScore: assessment.CompositeScore,
				Flags:          assessment.Flags,
			}
		}

		outcome := audit.OutcomeAccepted
		if !result.Accepted {
			outcome = audit.OutcomeConflict
		}
		if err := s.recorder.RecordAsync(ctx, tx, companyID, audit.Entry{
			ActorID:      event.EmployeeID.String(),
			Action:       audit.ActionSubmitAttendance,
			TargetEntity: "attendance_event",
			TargetID:     event.ID.String(),
			Outcome:      outcome,
		}); err != nil {
			return err
		}

		if assessment.Level == risk.LevelCritical || !validation.InsideGeofence {
			if err := s.enqueueAlert(ctx, tx, event, assessment); err != nil {
				return err
			}
		}

		return nil
	})

	return result, err
}

// detectConflict applies the ordering rules. A check-in colliding with
// an open check-in, or a check-out that is missing or precedes its
// paired check-in, yields a SyncConflict rather than silent acceptance.
func (s *engine) detectConflict(
	ctx context.Context,
	evRepo EventRepository,
	event *AttendanceEvent,
) (*SyncConflict, *AttendanceEvent, error) {
	companyID := event.CompanyID.String()
	employeeID := event.EmployeeID.String()
	since := event.EventTime.Add(-s.cfg.ShiftWindow)

	open, err := evRepo.FindOpenCheckIn(ctx, companyID, employeeID, since)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}
	hasOpen := err == nil

	newConflict := func(kind string, conflicting *AttendanceEvent) *SyncConflict {
		c := &SyncConflict{
			ID:         uuid.New(),
			CompanyID:  event.CompanyID,
			EmployeeID: event.EmployeeID,
			EventID:    event.ID,
			Kind:       kind,
		}
		if conflicting != nil {
			c.ConflictingEventID = &conflicting.ID
		}
		return c
	}

	switch event.EventType {
	case EventCheckIn:
		if hasOpen {
			return newConflict(ConflictDuplicateCheckIn, open), nil, nil
		}
		return nil, nil, nil
	case EventCheckOut:
		if !hasOpen {
			return newConflict(ConflictCheckOutWithoutIn, nil), nil, nil
		}
		if !event.EventTime.After(open.EventTime) {
			return newConflict(ConflictOutOfOrderCheckOut, open), nil, nil
		}
		return nil, open, nil
	default:
		return nil, nil, apperror.New(apperror.CodeInvalidInput, "unknown event type", 400)
	}
}

func (s *engine) enqueueAlert(ctx context.Context, tx *gorm.DB, event *AttendanceEvent, assessment *risk.RiskAssessment) error {
	payload, err := json.Marshal(events.RiskAlertEvent{
		CompanyID:      event.CompanyID.String(),
		EmployeeID:     event.EmployeeID.String(),
		EventID:        event.ID.String(),
		AssessmentID:   assessment.ID.String(),
		CompositeScore: assessment.CompositeScore,
		Level:          assessment.Level,
		Flags:          assessment.Flags,
		OccurredAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.WithTx(tx).Create(ctx, kafkaoutbox.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "risk_assessment",
		AggregateID:   event.EmployeeID.String(),
		EventType:     "risk.alert",
		Topic:         events.RiskAlertTopic,
		Payload:       payload,
		Status:        kafkaoutbox.OutboxStatusPending,
	})
}

func (s *engine) deadLetter(event *AttendanceEvent, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reason := "unknown"
	if cause != nil {
		reason = cause.Error()
	}

	eventJSON, _ := json.Marshal(event)
	payload, err := json.Marshal(events.SubmissionDeadLetterEvent{
		CompanyID:      event.CompanyID.String(),
		EmployeeID:     event.EmployeeID.String(),
		IdempotencyKey: event.IdempotencyKey,
		Payload:        eventJSON,
		FailureReason:  reason,
		FailedAt:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("dead letter marshal failed", zap.Error(err))
		return
	}

	err = s.outboxRepo.Create(ctx, kafkaoutbox.OutboxEvent{
		ID:            uuid.New().String(),
		AggregateType: "attendance_event",
		AggregateID:   event.EmployeeID.String(),
		EventType:     "sync.deadletter",
		Topic:         events.SubmissionDeadLetterTopic,
		Payload:       payload,
		Status:        kafkaoutbox.OutboxStatusPending,
	})
	if err != nil {
		// Last resort: the log line is the operator's signal.
		s.logger.Error("dead letter enqueue failed",
			zap.String("employee_id", event.EmployeeID.String()),
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.Error(err),
		)
		return
	}

	s.logger.Error("submission dead-lettered",
		zap.String("employee_id", event.EmployeeID.String()),
		zap.String("idempotency_key", event.IdempotencyKey),
		zap.String("reason", reason),
	)
}

func (s *engine) resultFromEvent(ctx context.Context, event *AttendanceEvent) SubmissionResult {
	result := SubmissionResult{
		Accepted: event.Status == StatusAccepted,
		EventID:  event.ID.String(),
		Status:   event.Status,
	}

	if assessments, err := s.riskRepo.FindByEvent(ctx, event.CompanyID.String(), event.ID.String()); err == nil && len(assessments) > 0 {
		result.RiskLevel = assessments[0].Level
		result.CompositeScore = assessments[0].CompositeScore
		result.Flags = assessments[0].Flags
	}

	// A replayed conflicted submission must carry the same conflict
	// reference the original response did.
	if conflict, err := s.conflictRepo.FindByEvent(ctx, event.CompanyID.String(), event.ID.String()); err == nil {
		conflictID := conflict.ID.String()
		result.ConflictID = &conflictID
		result.ConflictKind = &conflict.Kind
	}

	return result
}

func isUniqueEventViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (s *engine) GetHistory(ctx context.Context, companyID, employeeID string, limit int) ([]EventResponse, error) {
	if _, err := uuid.Parse(employeeID); err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "invalid employee id", 400)
	}
	rows, err := s.eventRepo.FindAllByEmployee(ctx, companyID, employeeID, limit)
	if err != nil {
		return nil, err
	}
	res := make([]EventResponse, len(rows))
	for i, r := range rows {
		res[i] = mapEventToResponse(r)
	}
	return res, nil
}

func (s *engine) ListOpenConflicts(ctx context.Context, companyID string, limit int) ([]ConflictResponse, error) {
	rows, err := s.conflictRepo.FindOpenByCompany(ctx, companyID, limit)
	if err != nil {
		return nil, err
	}
	res := make([]ConflictResponse, len(rows))
	for i, r := range rows {
		res[i] = mapConflictToResponse(r)
	}
	return res, nil
}

func (s *engine) ResolveConflict(
	ctx context.Context,
	companyID, conflictID, actorID string,
	req ResolveConflictRequest,
) (ConflictResponse, error) {
	conflict, err := s.conflictRepo.FindByID(ctx, companyID, conflictID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ConflictResponse{}, checkinerrors.ErrConflictNotFound
		}
		return ConflictResponse{}, err
	}
	if conflict.ResolvedAt != nil {
		return ConflictResponse{}, checkinerrors.ErrConflictAlreadyResolved
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evRepo := s.eventRepo.WithTx(tx)
		cfRepo := s.conflictRepo.WithTx(tx)

		if err := cfRepo.Resolve(ctx, companyID, conflictID, actorID, req.Resolution, now); err != nil {
			return err
		}

		switch req.Resolution {
		case tenant.ResolutionClientWins:
			if err := evRepo.UpdateStatus(ctx, companyID, conflict.EventID.String(), StatusAccepted); err != nil {
				return err
			}
			if conflict.ConflictingEventID != nil {
				if err := evRepo.UpdateStatus(ctx, companyID, conflict.ConflictingEventID.String(), StatusRejected); err != nil {
					return err
				}
			}
		default:
			if err := evRepo.UpdateStatus(ctx, companyID, conflict.EventID.String(), StatusRejected); err != nil {
				return err
			}
		}

		// Resolution is security-critical: the audit write commits with
		// the resolution or the whole operation fails.
		_, err := s.recorder.RecordTx(ctx, tx, companyID, audit.Entry{
			ActorID:      actorID,
			Action:       audit.ActionResolveConflict,
			TargetEntity: "sync_conflict",
			TargetID:     conflictID,
			Outcome:      audit.OutcomeSuccess,
		})
		return err
	})
	if err != nil {
		return ConflictResponse{}, err
	}

	resolved, err := s.conflictRepo.FindByID(ctx, companyID, conflictID)
	if err != nil {
		return ConflictResponse{}, err
	}
	return mapConflictToResponse(*resolved), nil
}

package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"go-attend/internal/audit"
	checkinerrors "go-attend/internal/checkin/errors"
	"go-attend/internal/geofence"
	kafkaoutbox "go-attend/internal/messaging/kafka"
	"go-attend/internal/risk"
	"go-attend/internal/shared/apperror"
	"go-attend/internal/tenant"
)

// --- fakes ---

type fakeEventRepo struct {
	createFn       func(ctx context.Context, e *AttendanceEvent) error
	findByKeyFn    func(ctx context.Context, companyID, employeeID, key string) (*AttendanceEvent, error)
	findOpenFn     func(ctx context.Context, companyID, employeeID string, since time.Time) (*AttendanceEvent, error)
	findLatestFn   func(ctx context.Context, companyID, employeeID string) (*AttendanceEvent, error)
	updateStatusFn func(ctx context.Context, companyID, id, status string) error
	setPairedFn    func(ctx context.Context, companyID, checkInID, checkOutID string) error
}

func (f *fakeEventRepo) WithTx(tx *gorm.DB) EventRepository { return f }
func (f *fakeEventRepo) Create(ctx context.Context, e *AttendanceEvent) error {
	return f.createFn(ctx, e)
}
func (f *fakeEventRepo) FindByIdempotencyKey(ctx context.Context, companyID, employeeID, key string) (*AttendanceEvent, error) {
	return f.findByKeyFn(ctx, companyID, employeeID, key)
}
func (f *fakeEventRepo) FindOpenCheckIn(ctx context.Context, companyID, employeeID string, since time.Time) (*AttendanceEvent, error) {
	return f.findOpenFn(ctx, companyID, employeeID, since)
}
func (f *fakeEventRepo) FindLatestAccepted(ctx context.Context, companyID, employeeID string) (*AttendanceEvent, error) {
	return f.findLatestFn(ctx, companyID, employeeID)
}
func (f *fakeEventRepo) UpdateStatus(ctx context.Context, companyID, id, status string) error {
	return f.updateStatusFn(ctx, companyID, id, status)
}
func (f *fakeEventRepo) SetPairedEvent(ctx context.Context, companyID, checkInID, checkOutID string) error {
	return f.setPairedFn(ctx, companyID, checkInID, checkOutID)
}
func (f *fakeEventRepo) FindAllByEmployee(ctx context.Context, companyID, employeeID string, limit int) ([]AttendanceEvent, error) {
	return nil, nil
}

type fakeConflictRepo struct {
	createFn      func(ctx context.Context, c *SyncConflict) error
	findByIDFn    func(ctx context.Context, companyID, id string) (*SyncConflict, error)
	findByEventFn func(ctx context.Context, companyID, eventID string) (*SyncConflict, error)
	resolveFn     func(ctx context.Context, companyID, id, resolvedBy, resolution string, at time.Time) error
}

func (f *fakeConflictRepo) WithTx(tx *gorm.DB) ConflictRepository { return f }
func (f *fakeConflictRepo) Create(ctx context.Context, c *SyncConflict) error {
	return f.createFn(ctx, c)
}
func (f *fakeConflictRepo) FindByID(ctx context.Context, companyID, id string) (*SyncConflict, error) {
	return f.findByIDFn(ctx, companyID, id)
}
func (f *fakeConflictRepo) FindByEvent(ctx context.Context, companyID, eventID string) (*SyncConflict, error) {
	if f.findByEventFn == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.findByEventFn(ctx, companyID, eventID)
}
func (f *fakeConflictRepo) FindOpenByCompany(ctx context.Context, companyID string, limit int) ([]SyncConflict, error) {
	return nil, nil
}
func (f *fakeConflictRepo) Resolve(ctx context.Context, companyID, id, resolvedBy, resolution string, at time.Time) error {
	return f.resolveFn(ctx, companyID, id, resolvedBy, resolution, at)
}

type fakeGeofenceRepo struct {
	findActiveFn func(ctx context.Context, companyID, siteID string) (*geofence.Geofence, error)
}

func (f *fakeGeofenceRepo) Create(ctx context.Context, g *geofence.Geofence) error { return nil }
func (f *fakeGeofenceRepo) FindByID(ctx context.Context, companyID, id string) (*geofence.Geofence, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeGeofenceRepo) FindActiveBySite(ctx context.Context, companyID, siteID string) (*geofence.Geofence, error) {
	return f.findActiveFn(ctx, companyID, siteID)
}
func (f *fakeGeofenceRepo) FindAllByCompany(ctx context.Context, companyID string) ([]geofence.Geofence, error) {
	return nil, nil
}
func (f *fakeGeofenceRepo) Deactivate(ctx context.Context, companyID, id string) error { return nil }

type fakeSettingsRepo struct {
	strategy string
}

func (f *fakeSettingsRepo) Get(ctx context.Context, companyID string) (tenant.Settings, error) {
	return tenant.Settings{ResolutionStrategy: f.strategy}, nil
}
func (f *fakeSettingsRepo) Upsert(ctx context.Context, s tenant.Settings) error { return nil }

type fakeBaselineRepo struct{}

func (f *fakeBaselineRepo) GetSnapshot(ctx context.Context, companyID, employeeID string) (*risk.BaselineSnapshot, error) {
	return nil, nil
}
func (f *fakeBaselineRepo) Recompute(ctx context.Context, companyID string, lookbackDays, minSamples int) (int, error) {
	return 0, nil
}

type fakeDeviceRepo struct{}

func (f *fakeDeviceRepo) RecordSighting(ctx context.Context, s *risk.DeviceSighting) error {
	return nil
}
func (f *fakeDeviceRepo) Snapshot(ctx context.Context, companyID, employeeID, fingerprint string, shareWindow, switchWindow time.Duration) (*risk.DeviceSnapshot, error) {
	return &risk.DeviceSnapshot{UsersOnDevice: 1, DevicesForUser: 1}, nil
}

type fakeAssessmentRepo struct {
	created []*risk.RiskAssessment
}

func (f *fakeAssessmentRepo) WithTx(tx *gorm.DB) risk.AssessmentRepository { return f }
func (f *fakeAssessmentRepo) Create(ctx context.Context, a *risk.RiskAssessment) error {
	f.created = append(f.created, a)
	return nil
}
func (f *fakeAssessmentRepo) FindAllByCompany(ctx context.Context, companyID string, limit int) ([]risk.RiskAssessment, error) {
	return nil, nil
}
func (f *fakeAssessmentRepo) FindFlagged(ctx context.Context, companyID string, limit int) ([]risk.RiskAssessment, error) {
	return nil, nil
}
func (f *fakeAssessmentRepo) FindByEvent(ctx context.Context, companyID, eventID string) ([]risk.RiskAssessment, error) {
	out := make([]risk.RiskAssessment, 0, len(f.created))
	for _, a := range f.created {
		if a.EventID.String() == eventID {
			out = append(out, *a)
		}
	}
	return out, nil
}

type fakeOutbox struct {
	created []kafkaoutbox.OutboxEvent
}

func (f *fakeOutbox) WithTx(tx *gorm.DB) kafkaoutbox.OutboxRepository { return f }
func (f *fakeOutbox) Create(ctx context.Context, event kafkaoutbox.OutboxEvent) error {
	f.created = append(f.created, event)
	return nil
}
func (f *fakeOutbox) ListPending(ctx context.Context, limit int) ([]kafkaoutbox.OutboxEvent, error) {
	return nil, nil
}
func (f *fakeOutbox) MarkSent(ctx context.Context, id string) error                { return nil }
func (f *fakeOutbox) MarkFailed(ctx context.Context, id string, reason string) error { return nil }

type fakeRecorder struct {
	entries []audit.Entry
	async   []audit.Entry
	failure error
}

func (f *fakeRecorder) Record(ctx context.Context, companyID string, e audit.Entry) (*audit.AuditRecord, error) {
	if f.failure != nil {
		return nil, f.failure
	}
	f.entries = append(f.entries, e)
	return &audit.AuditRecord{}, nil
}
func (f *fakeRecorder) RecordTx(ctx context.Context, tx *gorm.DB, companyID string, e audit.Entry) (*audit.AuditRecord, error) {
	return f.Record(ctx, companyID, e)
}
func (f *fakeRecorder) RecordAsync(ctx context.Context, tx *gorm.DB, companyID string, e audit.Entry) error {
	f.async = append(f.async, e)
	return nil
}

// --- fixtures ---

type engineFixture struct {
	engine      Engine
	sqlMock     sqlmock.Sqlmock
	redisMock   redismock.ClientMock
	events      *fakeEventRepo
	conflicts   *fakeConflictRepo
	geofences   *fakeGeofenceRepo
	settings    *fakeSettingsRepo
	assessments *fakeAssessmentRepo
	outbox      *fakeOutbox
	recorder    *fakeRecorder
	cfg         EngineConfig
}

func ptr(v float64) *float64 { return &v }

func testFence(companyID, siteID uuid.UUID) *geofence.Geofence {
	return &geofence.Geofence{
		ID:          uuid.New(),
		CompanyID:   companyID,
		SiteID:      siteID,
		Kind:        geofence.KindCircle,
		CenterLat:   ptr(-6.2000),
		CenterLng:   ptr(106.8000),
		RadiusM:     ptr(100),
		HysteresisM: 10,
		Active:      true,
	}
}

func newEngineFixture(t *testing.T, strategy string) *engineFixture {
	t.Helper()

	sqlDB, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: sqlDB}),
		&gorm.Config{DisableAutomaticPing: true},
	)
	assert.NoError(t, err)

	rdb, redisMock := redismock.NewClientMock()

	f := &engineFixture{
		sqlMock:     sqlMock,
		redisMock:   redisMock,
		events:      &fakeEventRepo{},
		conflicts:   &fakeConflictRepo{},
		geofences:   &fakeGeofenceRepo{},
		settings:    &fakeSettingsRepo{strategy: strategy},
		assessments: &fakeAssessmentRepo{},
		outbox:      &fakeOutbox{},
		recorder:    &fakeRecorder{},
		cfg: EngineConfig{
			IdempotencyWindow:  24 * time.Hour,
			SubmitLockTTL:      30 * time.Second,
			ProcessingTimeout:  2 * time.Second,
			PersistMaxRetries:  2,
			PersistBackoffBase: time.Millisecond,
			ShiftWindow:        24 * time.Hour,
			GeoLimits:          geofence.Limits{MaxVelocityKmph: 150, MinAccuracyM: 1},
			DeviceShareWindow:  time.Hour,
			DeviceSwitchWindow: 24 * time.Hour,
		},
	}

	orchestrator := risk.NewOrchestrator(
		risk.Weights{Location: 0.4, Temporal: 0.2, Behavioral: 0.2, Device: 0.2},
		risk.Thresholds{Critical: 80, Warning: 50},
		risk.DeviceLimits{ShareMaxUsers: 1, SwitchMaxCount: 2},
		5,
		nil,
	)

	f.engine = NewEngine(
		gormDB,
		rdb,
		f.events,
		f.conflicts,
		f.geofences,
		f.settings,
		&fakeBaselineRepo{},
		&fakeDeviceRepo{},
		f.assessments,
		f.outbox,
		f.recorder,
		orchestrator,
		f.cfg,
		nil,
	)
	return f
}

func (f *engineFixture) expectSubmitRedis(companyID, employeeID, key string, cached bool) {
	cacheKey := fmt.Sprintf("idem:%s:%s:%s", companyID, employeeID, key)
	lockKey := fmt.Sprintf("submitlock:%s:%s", companyID, employeeID)

	f.redisMock.ExpectGet(cacheKey).RedisNil()
	f.redisMock.ExpectSetNX(lockKey, "locked", f.cfg.SubmitLockTTL).SetVal(true)
	if cached {
		f.redisMock.Regexp().ExpectSet(cacheKey, `.*`, f.cfg.IdempotencyWindow).SetVal("OK")
	}
	f.redisMock.ExpectDel(lockKey).SetVal(1)
}

func submitRequest(siteID uuid.UUID, eventType, key string, at time.Time) SubmitRequest {
	return SubmitRequest{
		SiteID:            siteID.String(),
		EventType:         eventType,
		EventTime:         at.Format(time.RFC3339),
		Latitude:          -6.2000,
		Longitude:         106.8000,
		AccuracyM:         15,
		DeviceFingerprint: "device-a",
		Channel:           ChannelMobile,
		IdempotencyKey:    key,
	}
}

// --- tests ---

func TestEngine_Submit_AcceptedCheckIn(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	var created *AttendanceEvent
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error {
		created = e
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "abc123", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "abc123", time.Now().UTC()))

	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, StatusAccepted, result.Status)
	assert.Equal(t, risk.LevelNone, result.RiskLevel)
	assert.Nil(t, result.ConflictID)
	assert.NotNil(t, created)
	assert.Equal(t, StatusAccepted, created.Status)
	assert.Len(t, f.assessments.created, 1)
	assert.Len(t, f.recorder.async, 1)
	assert.Equal(t, audit.ActionSubmitAttendance, f.recorder.async[0].Action)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestEngine_Submit_DuplicateKeyReturnsOriginalOutcome(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	original := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		SiteID:     siteID,
		Status:     StatusAccepted,
	}
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		assert.Equal(t, "abc123", k)
		return original, nil
	}

	cacheKey := fmt.Sprintf("idem:%s:%s:abc123", companyID, employeeID)
	lockKey := fmt.Sprintf("submitlock:%s:%s", companyID, employeeID)
	f.redisMock.ExpectGet(cacheKey).RedisNil()
	f.redisMock.ExpectSetNX(lockKey, "locked", f.cfg.SubmitLockTTL).SetVal(true)
	f.redisMock.Regexp().ExpectSet(cacheKey, `.*`, f.cfg.IdempotencyWindow).SetVal("OK")
	f.redisMock.ExpectDel(lockKey).SetVal(1)

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "abc123", time.Now().UTC()))

	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, original.ID.String(), result.EventID)
	// No second event row, no second assessment.
	assert.Empty(t, f.assessments.created)
}

func TestEngine_Submit_ReplayAfterCacheMissKeepsConflict(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionManual)

	original := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		SiteID:     siteID,
		EventType:  EventCheckIn,
		Status:     StatusPending,
	}
	conflict := &SyncConflict{
		ID:                 uuid.New(),
		CompanyID:          companyID,
		EmployeeID:         employeeID,
		EventID:            original.ID,
		Kind:               ConflictDuplicateCheckIn,
		ResolutionStrategy: tenant.ResolutionManual,
	}

	// The idempotency cache was evicted: only the database remembers.
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return original, nil
	}
	f.conflicts.findByEventFn = func(ctx context.Context, c, eventID string) (*SyncConflict, error) {
		assert.Equal(t, original.ID.String(), eventID)
		return conflict, nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "dup-replay", true)

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "dup-replay", time.Now().UTC()))

	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, StatusPending, result.Status)
	assert.NotNil(t, result.ConflictID)
	assert.Equal(t, conflict.ID.String(), *result.ConflictID)
	assert.Equal(t, ConflictDuplicateCheckIn, *result.ConflictKind)
}

func TestEngine_Submit_DuplicateCheckIn_ServerWins(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	open := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		EventType:  EventCheckIn,
		EventTime:  time.Now().UTC().Add(-2 * time.Hour),
		Status:     StatusAccepted,
	}
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return open, nil
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return open, nil
	}
	var createdEvent *AttendanceEvent
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error {
		createdEvent = e
		return nil
	}
	var createdConflict *SyncConflict
	f.conflicts.createFn = func(ctx context.Context, c *SyncConflict) error {
		createdConflict = c
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "dup-1", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "dup-1", time.Now().UTC()))

	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, StatusRejected, result.Status)
	assert.NotNil(t, result.ConflictKind)
	assert.Equal(t, ConflictDuplicateCheckIn, *result.ConflictKind)
	assert.Equal(t, StatusRejected, createdEvent.Status)
	// Server-wins closes the conflict immediately.
	assert.NotNil(t, createdConflict.ResolvedAt)
	assert.Equal(t, tenant.ResolutionServerWins, *createdConflict.Resolution)
	assert.Equal(t, open.ID, *createdConflict.ConflictingEventID)
}

func TestEngine_Submit_DuplicateCheckIn_ManualLeavesConflictOpen(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionManual)

	open := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		EventType:  EventCheckIn,
		EventTime:  time.Now().UTC().Add(-time.Hour),
		Status:     StatusAccepted,
	}
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return open, nil
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return open, nil
	}
	var createdEvent *AttendanceEvent
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error {
		createdEvent = e
		return nil
	}
	var createdConflict *SyncConflict
	f.conflicts.createFn = func(ctx context.Context, c *SyncConflict) error {
		createdConflict = c
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "dup-2", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "dup-2", time.Now().UTC()))

	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, StatusPending, result.Status)
	assert.Equal(t, StatusPending, createdEvent.Status)
	assert.Nil(t, createdConflict.ResolvedAt)
	assert.Equal(t, tenant.ResolutionManual, createdConflict.ResolutionStrategy)
}

func TestEngine_Submit_CheckOutWithoutCheckIn(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error { return nil }
	var createdConflict *SyncConflict
	f.conflicts.createFn = func(ctx context.Context, c *SyncConflict) error {
		createdConflict = c
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "out-1", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckOut, "out-1", time.Now().UTC()))

	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ConflictCheckOutWithoutIn, createdConflict.Kind)
	assert.Nil(t, createdConflict.ConflictingEventID)
}

func TestEngine_Submit_OutOfOrderCheckOut(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	checkInTime := time.Now().UTC()
	open := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		EventType:  EventCheckIn,
		EventTime:  checkInTime,
		Status:     StatusAccepted,
	}
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return open, nil
	}
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error { return nil }
	var createdConflict *SyncConflict
	f.conflicts.createFn = func(ctx context.Context, c *SyncConflict) error {
		createdConflict = c
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "out-2", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	// Check-out stamped one hour before its open check-in.
	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckOut, "out-2", checkInTime.Add(-time.Hour)))

	assert.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ConflictOutOfOrderCheckOut, createdConflict.Kind)
}

func TestEngine_Submit_CheckOutPairsOpenCheckIn(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	open := &AttendanceEvent{
		ID:         uuid.New(),
		CompanyID:  companyID,
		EmployeeID: employeeID,
		EventType:  EventCheckIn,
		EventTime:  time.Now().UTC().Add(-8 * time.Hour),
		Latitude:   -6.2000,
		Longitude:  106.8000,
		Status:     StatusAccepted,
	}
	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return open, nil
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return open, nil
	}
	var createdEvent *AttendanceEvent
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error {
		createdEvent = e
		return nil
	}
	var pairedCheckIn, pairedCheckOut string
	f.events.setPairedFn = func(ctx context.Context, c, checkInID, checkOutID string) error {
		pairedCheckIn = checkInID
		pairedCheckOut = checkOutID
		return nil
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "out-3", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckOut, "out-3", time.Now().UTC()))

	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, open.ID, *createdEvent.PairedEventID)
	assert.Equal(t, open.ID.String(), pairedCheckIn)
	assert.Equal(t, createdEvent.ID.String(), pairedCheckOut)
}

func TestEngine_Submit_NoActiveGeofence(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return nil, gorm.ErrRecordNotFound
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "no-fence", false)

	_, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "no-fence", time.Now().UTC()))

	assert.ErrorIs(t, err, checkinerrors.ErrNoActiveGeofence)
}

func TestEngine_Submit_DeadlineDuringLookupMapsToProcessingTimeout(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	// The deadline fires mid-lookup and the aborted query surfaces as a
	// generic driver error.
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		cancel()
		return nil, errors.New("pq: canceling statement due to user request")
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "slow-lookup", false)

	_, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "slow-lookup", time.Now().UTC()))

	assert.ErrorIs(t, err, apperror.ErrProcessingTimeout)
}

func TestEngine_Submit_OutsideGeofenceEnqueuesAlert(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error { return nil }
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "far-away", true)
	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	req := submitRequest(siteID, EventCheckIn, "far-away", time.Now().UTC())
	req.Latitude = -6.3000 // roughly 11 km south of the fence center

	result, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(), req)

	assert.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Contains(t, result.Flags, risk.FlagOutsideGeofence)
	assert.Len(t, f.outbox.created, 1)
	assert.Equal(t, "risk.alert", f.outbox.created[0].EventType)
}

func TestEngine_Submit_RetryExhaustionDeadLetters(t *testing.T) {
	companyID := uuid.New()
	employeeID := uuid.New()
	siteID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionServerWins)

	f.events.findByKeyFn = func(ctx context.Context, c, e, k string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findLatestFn = func(ctx context.Context, c, e string) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.findOpenFn = func(ctx context.Context, c, e string, since time.Time) (*AttendanceEvent, error) {
		return nil, gorm.ErrRecordNotFound
	}
	f.events.createFn = func(ctx context.Context, e *AttendanceEvent) error {
		return errors.New("relation attendance_events is on fire")
	}
	f.geofences.findActiveFn = func(ctx context.Context, c, s string) (*geofence.Geofence, error) {
		return testFence(companyID, siteID), nil
	}

	f.expectSubmitRedis(companyID.String(), employeeID.String(), "boom", false)
	for i := 0; i < f.cfg.PersistMaxRetries; i++ {
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectRollback()
	}

	_, err := f.engine.Submit(ctx, companyID.String(), employeeID.String(),
		submitRequest(siteID, EventCheckIn, "boom", time.Now().UTC()))

	assert.ErrorIs(t, err, checkinerrors.ErrSubmissionDeadLettered)
	assert.Len(t, f.outbox.created, 1)
	assert.Equal(t, "sync.deadletter", f.outbox.created[0].EventType)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

func TestEngine_ResolveConflict_ClientWins(t *testing.T) {
	companyID := uuid.New()
	actorID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionManual)

	eventID := uuid.New()
	conflictingID := uuid.New()
	conflict := &SyncConflict{
		ID:                 uuid.New(),
		CompanyID:          companyID,
		EmployeeID:         uuid.New(),
		EventID:            eventID,
		ConflictingEventID: &conflictingID,
		Kind:               ConflictDuplicateCheckIn,
		ResolutionStrategy: tenant.ResolutionManual,
	}

	resolved := false
	f.conflicts.findByIDFn = func(ctx context.Context, c, id string) (*SyncConflict, error) {
		if resolved {
			now := time.Now().UTC()
			res := tenant.ResolutionClientWins
			done := *conflict
			done.ResolvedAt = &now
			done.Resolution = &res
			return &done, nil
		}
		return conflict, nil
	}
	f.conflicts.resolveFn = func(ctx context.Context, c, id, by, resolution string, at time.Time) error {
		assert.Equal(t, tenant.ResolutionClientWins, resolution)
		resolved = true
		return nil
	}

	statusChanges := map[string]string{}
	f.events.updateStatusFn = func(ctx context.Context, c, id, status string) error {
		statusChanges[id] = status
		return nil
	}

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	resp, err := f.engine.ResolveConflict(ctx, companyID.String(), conflict.ID.String(), actorID.String(),
		ResolveConflictRequest{Resolution: tenant.ResolutionClientWins})

	assert.NoError(t, err)
	assert.NotNil(t, resp.ResolvedAt)
	assert.Equal(t, StatusAccepted, statusChanges[eventID.String()])
	assert.Equal(t, StatusRejected, statusChanges[conflictingID.String()])
	assert.Len(t, f.recorder.entries, 1)
	assert.Equal(t, audit.ActionResolveConflict, f.recorder.entries[0].Action)
}

func TestEngine_ResolveConflict_AlreadyResolved(t *testing.T) {
	companyID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionManual)

	now := time.Now().UTC()
	f.conflicts.findByIDFn = func(ctx context.Context, c, id string) (*SyncConflict, error) {
		return &SyncConflict{ID: uuid.New(), ResolvedAt: &now}, nil
	}

	_, err := f.engine.ResolveConflict(ctx, companyID.String(), uuid.New().String(), uuid.New().String(),
		ResolveConflictRequest{Resolution: tenant.ResolutionClientWins})

	assert.ErrorIs(t, err, checkinerrors.ErrConflictAlreadyResolved)
	assert.Empty(t, f.recorder.entries)
}

func TestEngine_ResolveConflict_AuditFailureRollsBack(t *testing.T) {
	companyID := uuid.New()
	ctx := context.Background()

	f := newEngineFixture(t, tenant.ResolutionManual)
	f.recorder.failure = errors.New("audit store down")

	conflict := &SyncConflict{
		ID:        uuid.New(),
		CompanyID: companyID,
		EventID:   uuid.New(),
		Kind:      ConflictDuplicateCheckIn,
	}
	f.conflicts.findByIDFn = func(ctx context.Context, c, id string) (*SyncConflict, error) {
		return conflict, nil
	}
	f.conflicts.resolveFn = func(ctx context.Context, c, id, by, resolution string, at time.Time) error {
		return nil
	}
	f.events.updateStatusFn = func(ctx context.Context, c, id, status string) error { return nil }

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectRollback()

	_, err := f.engine.ResolveConflict(ctx, companyID.String(), conflict.ID.String(), uuid.New().String(),
		ResolveConflictRequest{Resolution: tenant.ResolutionServerWins})

	assert.Error(t, err)
	assert.NoError(t, f.sqlMock.ExpectationsWereMet())
}

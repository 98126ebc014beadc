package risk

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-attend/internal/geofence"
)

// Component names used in the incomplete_components marker.
const (
	ComponentLocation   = "location"
	ComponentTemporal   = "temporal"
	ComponentBehavioral = "behavioral"
	ComponentDevice     = "device"
)

const (
	outsideGeofencePenalty = 60.0
	spoofReasonPenalty     = 20.0
	deviceSharedPenalty    = 70.0
	deviceSwitchPenalty    = 50.0

	// z-score to 0-100 mapping slope: 4 standard deviations saturate.
	zScoreSlope = 25.0

	// A component score at or above this raises its anomaly flag.
	componentFlagThreshold = 50.0
)

// Weights is the typed composite-score configuration. It is
// renormalized over the components that could actually be computed, so
// a missing baseline shifts weight to the rest instead of diluting the
// score.
type Weights struct {
	Location   float64
	Temporal   float64
	Behavioral float64
	Device     float64
}

type Thresholds struct {
	Critical float64
	Warning  float64
}

type DeviceLimits struct {
	ShareMaxUsers  int
	SwitchMaxCount int
}

// ScoreInput carries everything Score needs. Baseline and Device are
// immutable snapshots loaded by the caller; nil means unknown.
type ScoreInput struct {
	CompanyID   uuid.UUID
	EventID     uuid.UUID
	EmployeeID  uuid.UUID
	EventTime   time.Time
	SubmittedAt time.Time
	Validation  geofence.ValidationResult
	Baseline    *BaselineSnapshot
	Device      *DeviceSnapshot
}

type Orchestrator struct {
	weights      Weights
	thresholds   Thresholds
	deviceLimits DeviceLimits
	minSamples   int
	logger       *zap.Logger
}

func NewOrchestrator(
	weights Weights,
	thresholds Thresholds,
	deviceLimits DeviceLimits,
	minSamples int,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		weights:      weights,
		thresholds:   thresholds,
		deviceLimits: deviceLimits,
		minSamples:   minSamples,
		logger:       logger.Named("risk.orchestrator"),
	}
}

// Score computes a best-effort assessment. It never fails: components
// that cannot be computed are marked incomplete and excluded from the
// weighted sum, with the remaining weights renormalized.
func (o *Orchestrator) Score(input ScoreInput) RiskAssessment {
	assessment := RiskAssessment{
		ID:         uuid.New(),
		CompanyID:  input.CompanyID,
		EventID:    input.EventID,
		EmployeeID: input.EmployeeID,
		Flags:      StringList{},
		Incomplete: StringList{},
	}

	location := o.locationScore(input.Validation, &assessment)
	assessment.LocationScore = &location

	var weightedSum, weightTotal float64
	weightedSum += location * o.weights.Location
	weightTotal += o.weights.Location

	if temporal, ok := o.temporalScore(input, &assessment); ok {
		assessment.TemporalScore = &temporal
		weightedSum += temporal * o.weights.Temporal
		weightTotal += o.weights.Temporal
	} else {
		assessment.Incomplete = append(assessment.Incomplete, ComponentTemporal)
	}

	if behavioral, ok := o.behavioralScore(input, &assessment); ok {
		assessment.BehavioralScore = &behavioral
		weightedSum += behavioral * o.weights.Behavioral
		weightTotal += o.weights.Behavioral
	} else {
		assessment.Incomplete = append(assessment.Incomplete, ComponentBehavioral)
	}

	if device, ok := o.deviceScore(input.Device, &assessment); ok {
		assessment.DeviceScore = &device
		weightedSum += device * o.weights.Device
		weightTotal += o.weights.Device
	} else {
		assessment.Incomplete = append(assessment.Incomplete, ComponentDevice)
	}

	if weightTotal > 0 {
		assessment.CompositeScore = clampScore(weightedSum / weightTotal)
	}

	switch {
	case assessment.CompositeScore >= o.thresholds.Critical:
		assessment.Level = LevelCritical
	case assessment.CompositeScore >= o.thresholds.Warning:
		assessment.Level = LevelWarning
	default:
		assessment.Level = LevelNone
	}

	if len(assessment.Incomplete) > 0 {
		o.logger.Debug("assessment computed with incomplete components",
			zap.String("event_id", input.EventID.String()),
			zap.Strings("incomplete", assessment.Incomplete),
		)
	}

	return assessment
}

func (o *Orchestrator) locationScore(v geofence.ValidationResult, a *RiskAssessment) float64 {
	score := 0.0
	if !v.InsideGeofence {
		score += outsideGeofencePenalty
		a.Flags = append(a.Flags, FlagOutsideGeofence)
	}
	for _, reason := range v.Reasons {
		score += spoofReasonPenalty
		a.Flags = append(a.Flags, reason)
	}
	return clampScore(score)
}

func (o *Orchestrator) temporalScore(input ScoreInput, a *RiskAssessment) (float64, bool) {
	if input.Baseline == nil {
		return 0, false
	}
	stat, ok := input.Baseline.Weekdays[int(input.EventTime.UTC().Weekday())]
	if !ok || stat.Samples < o.minSamples || stat.StddevMinute <= 0 {
		return 0, false
	}

	minuteOfDay := float64(input.EventTime.UTC().Hour()*60 + input.EventTime.UTC().Minute())
	z := math.Abs(minuteOfDay-stat.MeanMinute) / stat.StddevMinute
	score := clampScore(z * zScoreSlope)
	if score >= componentFlagThreshold {
		a.Flags = append(a.Flags, FlagUnusualHour)
	}
	return score, true
}

func (o *Orchestrator) behavioralScore(input ScoreInput, a *RiskAssessment) (float64, bool) {
	if input.Baseline == nil ||
		input.Baseline.SubmitLagSamples < o.minSamples ||
		input.Baseline.SubmitLagStdSec <= 0 {
		return 0, false
	}

	lag := math.Abs(input.SubmittedAt.Sub(input.EventTime).Seconds())
	z := math.Abs(lag-input.Baseline.SubmitLagMeanSec) / input.Baseline.SubmitLagStdSec
	score := clampScore(z * zScoreSlope)
	if score >= componentFlagThreshold {
		a.Flags = append(a.Flags, FlagAbnormalSubmitLag)
	}
	return score, true
}

func (o *Orchestrator) deviceScore(device *DeviceSnapshot, a *RiskAssessment) (float64, bool) {
	if device == nil {
		return 0, false
	}

	score := 0.0
	if device.UsersOnDevice > o.deviceLimits.ShareMaxUsers {
		score += deviceSharedPenalty
		a.Flags = append(a.Flags, FlagDeviceShared)
	}
	if device.DevicesForUser > o.deviceLimits.SwitchMaxCount {
		score += deviceSwitchPenalty
		a.Flags = append(a.Flags, FlagRapidDeviceSwitch)
	}
	return clampScore(score), true
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

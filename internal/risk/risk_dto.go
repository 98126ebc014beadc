package risk

import "time"

type AssessmentResponse struct {
	ID              string   `json:"id"`
	EventID         string   `json:"event_id"`
	EmployeeID      string   `json:"employee_id"`
	CompositeScore  float64  `json:"composite_score"`
	LocationScore   *float64 `json:"location_score,omitempty"`
	TemporalScore   *float64 `json:"temporal_score,omitempty"`
	BehavioralScore *float64 `json:"behavioral_score,omitempty"`
	DeviceScore     *float64 `json:"device_score,omitempty"`
	Flags           []string `json:"flags"`
	Incomplete      []string `json:"incomplete_components,omitempty"`
	Level           string   `json:"level"`
	CreatedAt       string   `json:"created_at"`
}

func mapToResponse(a RiskAssessment) AssessmentResponse {
	return AssessmentResponse{
		ID:              a.ID.String(),
		EventID:         a.EventID.String(),
		EmployeeID:      a.EmployeeID.String(),
		CompositeScore:  a.CompositeScore,
		LocationScore:   a.LocationScore,
		TemporalScore:   a.TemporalScore,
		BehavioralScore: a.BehavioralScore,
		DeviceScore:     a.DeviceScore,
		Flags:           a.Flags,
		Incomplete:      a.Incomplete,
		Level:           a.Level,
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
}

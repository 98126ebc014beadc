package events

// RiskAlertEvent notifies supervisors about a critical risk flag or a
// geofence violation. Dispatch is fire-and-forget from the submitter's
// perspective.
type RiskAlertEvent struct {
	CompanyID      string   `json:"company_id"`
	EmployeeID     string   `json:"employee_id"`
	EventID        string   `json:"event_id"`
	AssessmentID   string   `json:"assessment_id"`
	CompositeScore float64  `json:"composite_score"`
	Level          string   `json:"level"`
	Flags          []string `json:"flags"`
	OccurredAt     string   `json:"occurred_at"`
}

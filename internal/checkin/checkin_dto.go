package checkin

import "time"

type SubmitRequest struct {
	SiteID            string  `json:"site_id" binding:"required,uuid"`
	EventType         string  `json:"event_type" binding:"required,oneof=CHECK_IN CHECK_OUT"`
	EventTime         string  `json:"event_time" binding:"required"`
	Latitude          float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude         float64 `json:"longitude" binding:"min=-180,max=180"`
	AccuracyM         float64 `json:"accuracy_m"`
	DeviceFingerprint string  `json:"device_fingerprint" binding:"required"`
	Channel           string  `json:"channel" binding:"omitempty,oneof=MOBILE WEB"`
	IdempotencyKey    string  `json:"idempotency_key" binding:"required,max=100"`
}

// SubmissionResult is the structured outcome returned to the client.
// Conflicts surface here, never as unstructured errors.
type SubmissionResult struct {
	Accepted       bool     `json:"accepted"`
	EventID        string   `json:"event_id"`
	Status         string   `json:"status"`
	RiskLevel      string   `json:"risk_level"`
	CompositeScore float64  `json:"composite_score"`
	Flags          []string `json:"flags,omitempty"`
	ConflictID     *string  `json:"conflict_id,omitempty"`
	ConflictKind   *string  `json:"conflict_kind,omitempty"`
}

type EventResponse struct {
	ID            string  `json:"id"`
	SiteID        string  `json:"site_id"`
	EventType     string  `json:"event_type"`
	EventTime     string  `json:"event_time"`
	Status        string  `json:"status"`
	Channel       string  `json:"channel"`
	PairedEventID *string `json:"paired_event_id,omitempty"`
}

func mapEventToResponse(e AttendanceEvent) EventResponse {
	resp := EventResponse{
		ID:        e.ID.String(),
		SiteID:    e.SiteID.String(),
		EventType: e.EventType,
		EventTime: e.EventTime.Format(time.RFC3339),
		Status:    e.Status,
		Channel:   e.Channel,
	}
	if e.PairedEventID != nil {
		v := e.PairedEventID.String()
		resp.PairedEventID = &v
	}
	return resp
}

type ConflictResponse struct {
	ID                 string  `json:"id"`
	EmployeeID         string  `json:"employee_id"`
	EventID            string  `json:"event_id"`
	ConflictingEventID *string `json:"conflicting_event_id,omitempty"`
	Kind               string  `json:"kind"`
	ResolutionStrategy string  `json:"resolution_strategy"`
	ResolvedAt         *string `json:"resolved_at,omitempty"`
	ResolvedBy         *string `json:"resolved_by,omitempty"`
	Resolution         *string `json:"resolution,omitempty"`
	CreatedAt          string  `json:"created_at"`
}

type ResolveConflictRequest struct {
	Resolution string `json:"resolution" binding:"required,oneof=SERVER_WINS CLIENT_WINS"`
}

func mapConflictToResponse(c SyncConflict) ConflictResponse {
	resp := ConflictResponse{
		ID:                 c.ID.String(),
		EmployeeID:         c.EmployeeID.String(),
		EventID:            c.EventID.String(),
		Kind:               c.Kind,
		ResolutionStrategy: c.ResolutionStrategy,
		Resolution:         c.Resolution,
		CreatedAt:          c.CreatedAt.Format(time.RFC3339),
	}
	if c.ConflictingEventID != nil {
		v := c.ConflictingEventID.String()
		resp.ConflictingEventID = &v
	}
	if c.ResolvedAt != nil {
		v := c.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &v
	}
	if c.ResolvedBy != nil {
		v := c.ResolvedBy.String()
		resp.ResolvedBy = &v
	}
	return resp
}

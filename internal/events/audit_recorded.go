package events

// AuditRecordedEvent is the async audit write payload. The consumer
// appends it to the audit_records table with guaranteed eventual
// delivery through the outbox.
type AuditRecordedEvent struct {
	RecordID     int64  `json:"record_id"`
	CompanyID    string `json:"company_id"`
	ActorID      string `json:"actor_id"`
	Action       string `json:"action"`
	TargetEntity string `json:"target_entity"`
	TargetID     string `json:"target_id"`
	Outcome      string `json:"outcome"`
	RequestID    string `json:"request_id,omitempty"`
	OccurredAt   string `json:"occurred_at"`
}

package events

// SubmissionDeadLetterEvent carries a submission whose persistence
// retries were exhausted. Operators replay or discard it by hand;
// nothing is ever dropped silently.
type SubmissionDeadLetterEvent struct {
	CompanyID      string `json:"company_id"`
	EmployeeID     string `json:"employee_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Payload        []byte `json:"payload"`
	FailureReason  string `json:"failure_reason"`
	FailedAt       string `json:"failed_at"`
}

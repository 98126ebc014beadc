package events

const (
	AuditRecordedTopic        = "goattend.audit.records"
	RiskAlertTopic            = "goattend.risk.alerts"
	SubmissionDeadLetterTopic = "goattend.sync.deadletter"
)

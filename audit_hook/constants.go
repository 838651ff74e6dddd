package audithook

// Action constants for audit events.
const (
	// Grant actions
	ActionGrantRecorded = "grant.recorded"
	ActionGrantRejected = "grant.rejected"

	// Quota actions
	ActionQuotaExhausted = "quota.exhausted"
)

// Resource constants for audit events.
const (
	ResourceGrant = "grant"
	ResourceQuota = "quota"
)

// Category constants for audit events.
const (
	CategoryRecognition = "recognition"
	CategoryQuota       = "quota"
)

// Severity levels for audit events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

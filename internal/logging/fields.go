package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldQueue is the standardized key for the queue kind (sos, contact).
	FieldQueue = "queue"
	// FieldEntryID is the standardized key for queue entry identifiers.
	FieldEntryID = "entry_id"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRetryCount records the retry counter of an entry after a transition.
	FieldRetryCount = "retry_count"
	// FieldStatus records an entry status.
	FieldStatus = "status"
)

package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for queued job identifiers.
	FieldJobID = "job_id"
	// FieldOwner is the standardized structured logging key for owner addresses.
	FieldOwner = "owner"
	// FieldGarden is the standardized structured logging key for garden addresses.
	FieldGarden = "garden"
	// FieldEventType is the standardized structured logging key for lifecycle event names.
	FieldEventType = "event_type"
	// FieldAttempts is the standardized structured logging key for submission attempt counts.
	FieldAttempts = "attempts"
	// FieldErrorHint suggests an operator action when an error is logged.
	FieldErrorHint = "error_hint"
)

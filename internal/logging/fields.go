// Package logging provides logging configuration types and utilities.
package logging

// StandardFields defines the standardized field names for structured logging
// across all components to ensure consistency and enable better log analysis.
//
// This ensures that all components use the same field names for similar data,
// making it easier to query, filter, and analyze logs in aggregation systems.
//
//nolint:gochecknoglobals // Intentional global constants for standardized field names
var StandardFields = struct {
	// Error Identity
	Fingerprint string
	ErrorType   string
	TenantID    string
	Platform    string

	// Aggregation Context
	Decision        string
	OccurrenceCount string
	JustReopened    string
	PriorityScore   string
	Severity        string

	// Timing and Performance
	DurationMs string
	StartTime  string
	EndTime    string
	Timestamp  string

	// Operation Context
	Component     string
	Operation     string
	CorrelationID string

	// Detection Context
	AnomalyLevel  string
	Multiplier    string
	PatternKind   string
	BurstCount    string
	ParentType    string
	ChildType     string
	CascadeProb   string
	PeriodType    string

	// Error Information
	Error     string
	ErrorCode string

	// Status and Progress
	Status string
}{
	// Error Identity
	Fingerprint: "fingerprint",
	ErrorType:   "error_type",
	TenantID:    "tenant_id",
	Platform:    "platform",

	// Aggregation Context
	Decision:        "decision",
	OccurrenceCount: "occurrence_count",
	JustReopened:    "just_reopened",
	PriorityScore:   "priority_score",
	Severity:        "severity",

	// Timing and Performance
	DurationMs: "duration_ms",
	StartTime:  "start_time",
	EndTime:    "end_time",
	Timestamp:  "timestamp",

	// Operation Context
	Component:     "component",
	Operation:     "operation",
	CorrelationID: "correlation_id",

	// Detection Context
	AnomalyLevel: "anomaly_level",
	Multiplier:   "multiplier",
	PatternKind:  "pattern_kind",
	BurstCount:   "burst_count",
	ParentType:   "parent_type",
	ChildType:    "child_type",
	CascadeProb:  "cascade_probability",
	PeriodType:   "period_type",

	// Error Information
	Error:     "error",
	ErrorCode: "error_code",

	// Status and Progress
	Status: "status",
}

package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// BaseModel contains common columns for all tables following GORM conventions
type BaseModel struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Metadata  Metadata       `gorm:"type:text" json:"metadata,omitempty"`
}

// Metadata is a JSON key/value map stored as TEXT, provides extensibility on every table
//
//nolint:recvcheck // mixed receivers required by driver.Valuer/sql.Scanner interface
type Metadata map[string]interface{}

// Value implements driver.Valuer for database storage
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil //nolint:nilnil // database/sql pattern for NULL values
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("%w for Metadata", ErrInvalidType)
	}

	return json.Unmarshal(bytes, m)
}

// JSONStringSlice stores []string as JSON TEXT (for seen_user_ids)
//
//nolint:recvcheck // mixed receivers required by driver.Valuer/sql.Scanner interface
type JSONStringSlice []string

// Value implements driver.Valuer
func (j JSONStringSlice) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil //nolint:nilnil // database/sql pattern for NULL values
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONStringSlice) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("%w for JSONStringSlice", ErrInvalidType)
	}

	return json.Unmarshal(bytes, j)
}

// Workflow statuses for an aggregated error. Status transitions past
// "new" are driven by external workflow collaborators; the aggregation
// engine itself only ever sets StatusNew (on create and on reopen).
const (
	StatusNew           = "new"
	StatusInProgress    = "in_progress"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusWontFix       = "wont_fix"
)

// TerminalStatuses are the statuses a record can be reopened from.
//
//nolint:gochecknoglobals // fixed status set shared by queries
var TerminalStatuses = []string{StatusResolved, StatusWontFix}

// MaxSeenUserIDs caps the per-record distinct user id list; beyond the
// cap only UniqueUserCount grows.
const MaxSeenUserIDs = 1000

// AggregatedError is the durable entity tracking one fingerprint's
// lifecycle and occurrence count. Rows are owned exclusively by the
// aggregation engine; at most one row exists per (tenant_id, fingerprint)
// and reopening reuses the row rather than creating a duplicate.
type AggregatedError struct {
	BaseModel

	Fingerprint string `gorm:"type:text;not null;uniqueIndex:idx_tenant_fingerprint" json:"fingerprint"`
	TenantID    string `gorm:"type:text;uniqueIndex:idx_tenant_fingerprint" json:"tenant_id"`

	ErrorType  string `gorm:"type:text;not null;index" json:"error_type"`
	Message    string `gorm:"type:text" json:"message"`
	Controller string `gorm:"type:text" json:"controller,omitempty"`
	Action     string `gorm:"type:text" json:"action,omitempty"`
	Platform   string `gorm:"type:text;index" json:"platform,omitempty"`

	// Counters. OccurrenceCount is monotonically non-decreasing while the
	// record is active; FirstSeenAt is immutable once set.
	OccurrenceCount int64     `gorm:"not null;default:1" json:"occurrence_count"`
	FirstSeenAt     time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt      time.Time `gorm:"not null;index" json:"last_seen_at"`

	// Lifecycle state
	Status     string     `gorm:"type:text;not null;default:new;index" json:"status"`
	Resolved   bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `gorm:"type:text" json:"resolved_by,omitempty"`

	// Scoring
	Severity      string `gorm:"type:text;index" json:"severity,omitempty"`
	PriorityScore int    `json:"priority_score"`

	// Denormalized last-occurrence attributes, refreshed on each increment
	LastUserID     string `gorm:"type:text" json:"last_user_id,omitempty"`
	LastRequestURL string `gorm:"type:text" json:"last_request_url,omitempty"`
	LastUserAgent  string `gorm:"type:text" json:"last_user_agent,omitempty"`
	LastIP         string `gorm:"type:text" json:"last_ip,omitempty"`

	// Distinct-user impact tracking (capped list, see MaxSeenUserIDs)
	UniqueUserCount int64           `json:"unique_user_count"`
	SeenUserIDs     JSONStringSlice `gorm:"type:text" json:"seen_user_ids,omitempty"`
}

// IsTerminal reports whether the record is in a reopenable terminal state.
func (e *AggregatedError) IsTerminal() bool {
	return e.Status == StatusResolved || e.Status == StatusWontFix
}

// ErrorOccurrence is one accepted signal, recorded as the time-series
// source for baselines and pattern/burst/cascade detection.
type ErrorOccurrence struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	AggregatedErrorID uint      `gorm:"index;not null" json:"aggregated_error_id"`
	Fingerprint       string    `gorm:"type:text;not null;index" json:"fingerprint"`
	ErrorType         string    `gorm:"type:text;not null;index:idx_occ_type_platform_time" json:"error_type"`
	Platform          string    `gorm:"type:text;index:idx_occ_type_platform_time" json:"platform,omitempty"`
	TenantID          string    `gorm:"type:text;index" json:"tenant_id,omitempty"`
	OccurredAt        time.Time `gorm:"not null;index:idx_occ_type_platform_time" json:"occurred_at"`
}

// Baseline period types
const (
	PeriodHourly = "hourly"
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

// Baseline holds the rolling statistical summary of historical error
// counts for one (error_type, platform, period_type) key. Only the latest
// computed window is retained per key; refreshes upsert in place.
type Baseline struct {
	BaseModel

	ErrorType  string `gorm:"type:text;not null;uniqueIndex:idx_baseline_key" json:"error_type"`
	Platform   string `gorm:"type:text;uniqueIndex:idx_baseline_key" json:"platform"`
	PeriodType string `gorm:"type:text;not null;uniqueIndex:idx_baseline_key" json:"period_type"`

	PeriodStart time.Time `gorm:"not null" json:"period_start"`
	PeriodEnd   time.Time `gorm:"not null" json:"period_end"`

	Count        int64   `json:"count"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
	SampleSize   int     `json:"sample_size"`
}

// CascadePattern is a directed parent->child edge recording how often the
// child error type followed the parent within the delay window. Created on
// first detection, mutated incrementally thereafter.
type CascadePattern struct {
	BaseModel

	ParentType string `gorm:"type:text;not null;uniqueIndex:idx_cascade_pair" json:"parent_type"`
	ChildType  string `gorm:"type:text;not null;uniqueIndex:idx_cascade_pair" json:"child_type"`

	Frequency       int64   `gorm:"not null;default:0" json:"frequency"`
	AvgDelaySeconds float64 `json:"avg_delay_seconds"`

	// CascadeProbability = Frequency / parent's total occurrence count.
	// Left nil when the parent has no recorded occurrences.
	CascadeProbability *float64 `json:"cascade_probability,omitempty"`

	LastDetectedAt time.Time `json:"last_detected_at"`
}

// Package severity maps error type names to severity ranks.
package severity

// Level is a severity rank for an error type.
type Level string

// Severity levels, ordered from most to least severe.
const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
)

// rank orders levels for threshold comparisons (higher is more severe).
var rank = map[Level]int{
	Critical: 4,
	High:     3,
	Medium:   2,
	Low:      1,
}

// Rank returns the numeric rank of a level; unknown levels rank below Low.
func Rank(l Level) int {
	return rank[l]
}

// AtLeast reports whether l is at least as severe as minimum.
func AtLeast(l, minimum Level) bool {
	return Rank(l) >= Rank(minimum)
}

// Built-in rank lists. An override table always wins over these.
var (
	criticalTypes = map[string]struct{}{
		"SecurityError":                          {},
		"NoMemoryError":                          {},
		"SystemStackError":                       {},
		"ActiveRecord::ConnectionNotEstablished": {},
		"PG::ConnectionBad":                      {},
		"Redis::CannotConnectError":              {},
		"SignalException":                        {},
		"fatal":                                  {},
	}

	highTypes = map[string]struct{}{
		"ActiveRecord::RecordNotUnique":  {},
		"ActiveRecord::StatementInvalid": {},
		"ActiveRecord::Deadlocked":       {},
		"Net::ReadTimeout":               {},
		"Net::OpenTimeout":               {},
		"Timeout::Error":                 {},
		"Errno::ECONNREFUSED":            {},
		"Errno::ETIMEDOUT":               {},
		"NoMethodError":                  {},
		"TypeError":                      {},
	}

	mediumTypes = map[string]struct{}{
		"ArgumentError":                      {},
		"KeyError":                           {},
		"IndexError":                         {},
		"JSON::ParserError":                  {},
		"ActiveRecord::RecordInvalid":        {},
		"ActionController::ParameterMissing": {},
		"ActionController::UnknownFormat":    {},
	}
)

// Classifier resolves error type names to severity levels.
//
// A configured override table is consulted first (exact type-name match),
// then the built-in lists, defaulting to Low. The zero value classifies
// with no overrides.
type Classifier struct {
	overrides map[string]Level
}

// NewClassifier creates a Classifier with the given override table.
// Override values that are not valid levels are ignored.
func NewClassifier(overrides map[string]Level) *Classifier {
	valid := make(map[string]Level, len(overrides))
	for errType, level := range overrides {
		if _, ok := rank[level]; ok {
			valid[errType] = level
		}
	}
	return &Classifier{overrides: valid}
}

// Classify returns the severity level for an error type name.
func (c *Classifier) Classify(errorType string) Level {
	if c != nil && c.overrides != nil {
		if level, ok := c.overrides[errorType]; ok {
			return level
		}
	}
	if _, ok := criticalTypes[errorType]; ok {
		return Critical
	}
	if _, ok := highTypes[errorType]; ok {
		return High
	}
	if _, ok := mediumTypes[errorType]; ok {
		return Medium
	}
	return Low
}

// IsCritical reports whether an error type classifies as Critical.
func (c *Classifier) IsCritical(errorType string) bool {
	return c.Classify(errorType) == Critical
}

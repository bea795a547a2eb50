// Package priority computes the 0-100 priority score for aggregated
// error records from severity, frequency, recency, and user impact.
package priority

import (
	"math"
	"time"

	"github.com/mrz1836/go-faultline/internal/severity"
)

// Component weights. They sum to 1.0 so the score stays within 0-100.
const (
	severityWeight  = 0.40
	frequencyWeight = 0.25
	recencyWeight   = 0.20
	impactWeight    = 0.15
)

// ScoreInput holds the post-aggregation record attributes the score is
// derived from.
type ScoreInput struct {
	Severity            severity.Level
	OccurrenceCount     int64
	LastSeenAt          time.Time
	UniqueAffectedUsers int64
	Now                 time.Time // zero means time.Now
}

// Score computes the weighted priority score, always within [0, 100].
func Score(in ScoreInput) int {
	raw := severityComponent(in.Severity)*severityWeight +
		frequencyComponent(in.OccurrenceCount)*frequencyWeight +
		recencyComponent(in.LastSeenAt, in.Now)*recencyWeight +
		impactComponent(in.UniqueAffectedUsers)*impactWeight

	score := int(math.Round(raw))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func severityComponent(level severity.Level) float64 {
	switch level {
	case severity.Critical:
		return 100
	case severity.High:
		return 75
	case severity.Medium:
		return 50
	case severity.Low:
		return 25
	default:
		return 10
	}
}

// frequencyComponent is logarithmic: a count of 1 scores 10, 1000 or more
// scores 100, with 10 + 30*log10(count) in between.
func frequencyComponent(count int64) float64 {
	if count <= 1 {
		return 10
	}
	if count >= 1000 {
		return 100
	}
	return clamp(10+30*math.Log10(float64(count)), 10, 100)
}

func recencyComponent(lastSeen, now time.Time) float64 {
	if lastSeen.IsZero() {
		return 10
	}
	if now.IsZero() {
		now = time.Now()
	}
	age := now.Sub(lastSeen)
	switch {
	case age < time.Hour:
		return 100
	case age < 24*time.Hour:
		return 80
	case age < 7*24*time.Hour:
		return 50
	case age < 30*24*time.Hour:
		return 20
	default:
		return 10
	}
}

// impactComponent scores distinct affected users logarithmically; zero
// when no distinct-user data exists.
func impactComponent(uniqueUsers int64) float64 {
	if uniqueUsers <= 0 {
		return 0
	}
	return clamp(10+30*math.Log10(float64(uniqueUsers+1)), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

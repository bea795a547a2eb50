// Package pattern detects temporal structure in error occurrence
// time series: cyclical patterns, bursts, and cascade relationships.
//
// The cyclical and burst detectors are pure functions over timestamp
// slices; the cascade tracker persists directed parent->child edges
// through the store. All three run periodically over aggregated history,
// never inline with signal ingestion.
package pattern

import (
	"math"
	"time"
)

// CyclicalKind labels a detected occurrence rhythm.
type CyclicalKind string

// Cyclical pattern kinds.
const (
	KindNone          CyclicalKind = "none" // empty input
	KindUniform       CyclicalKind = "uniform"
	KindBusinessHours CyclicalKind = "business_hours"
	KindNight         CyclicalKind = "night"
	KindWeekend       CyclicalKind = "weekend"
)

// CyclicalPattern describes the temporal rhythm of occurrences.
type CyclicalPattern struct {
	Kind     CyclicalKind
	Strength float64 // clamp(coefficient of variation of hourly histogram, 0, 1)

	HourHistogram [24]int64 // occurrences per hour-of-day
	DayHistogram  [7]int64  // occurrences per day-of-week (Sunday = 0)
	PeakHours     []int     // hours with count > 2x the hourly average
}

// DetectCyclical buckets occurrence timestamps by hour-of-day and
// day-of-week and classifies the rhythm:
//
//   - business_hours: at least 3 peak hours within 9-17
//   - night: at least 2 peak hours within 0-6
//   - weekend: weekend-day occurrences exceed 50% of the total
//   - uniform: none of the above
//   - none: empty input
func DetectCyclical(timestamps []time.Time) CyclicalPattern {
	if len(timestamps) == 0 {
		return CyclicalPattern{Kind: KindNone}
	}

	var p CyclicalPattern
	for _, ts := range timestamps {
		p.HourHistogram[ts.Hour()]++
		p.DayHistogram[int(ts.Weekday())]++
	}

	total := int64(len(timestamps))
	hourlyAvg := float64(total) / 24.0

	for hour, count := range p.HourHistogram {
		if float64(count) > 2*hourlyAvg {
			p.PeakHours = append(p.PeakHours, hour)
		}
	}

	p.Kind = classifyRhythm(&p, total)
	p.Strength = hourlyStrength(p.HourHistogram, hourlyAvg)
	return p
}

func classifyRhythm(p *CyclicalPattern, total int64) CyclicalKind {
	businessPeaks := 0
	nightPeaks := 0
	for _, hour := range p.PeakHours {
		if hour >= 9 && hour <= 17 {
			businessPeaks++
		}
		if hour <= 6 {
			nightPeaks++
		}
	}
	if businessPeaks >= 3 {
		return KindBusinessHours
	}
	if nightPeaks >= 2 {
		return KindNight
	}

	weekendCount := p.DayHistogram[time.Saturday] + p.DayHistogram[time.Sunday]
	if float64(weekendCount) > 0.5*float64(total) {
		return KindWeekend
	}
	return KindUniform
}

// hourlyStrength is the coefficient of variation of the hourly histogram,
// clamped to [0, 1]. A flat histogram scores 0; concentration in few
// hours pushes toward 1.
func hourlyStrength(histogram [24]int64, mean float64) float64 {
	if mean <= 0 {
		return 0
	}

	var variance float64
	for _, count := range histogram {
		diff := float64(count) - mean
		variance += diff * diff
	}
	variance /= 24.0

	cv := math.Sqrt(variance) / mean
	if cv > 1 {
		return 1
	}
	if cv < 0 {
		return 0
	}
	return cv
}

package pattern

import (
	"sort"
	"time"
)

// Burst detection parameters.
const (
	// BurstMaxGap is the largest inter-arrival gap that keeps two
	// occurrences in the same burst.
	BurstMaxGap = 60 * time.Second

	// BurstMinEvents is the smallest run that counts as a burst.
	BurstMinEvents = 5
)

// BurstIntensity classifies a burst by event count.
type BurstIntensity string

// Burst intensities.
const (
	IntensityLow    BurstIntensity = "low"
	IntensityMedium BurstIntensity = "medium" // >= 10 events
	IntensityHigh   BurstIntensity = "high"   // >= 20 events
)

// Burst is a maximal tight temporal cluster of occurrences.
type Burst struct {
	Start     time.Time
	End       time.Time
	Duration  time.Duration
	Count     int
	Intensity BurstIntensity
}

// DetectBursts finds maximal runs of occurrences whose consecutive
// inter-arrival gaps are at most BurstMaxGap and that contain at least
// BurstMinEvents events. Input order does not matter; timestamps are
// sorted before scanning.
func DetectBursts(timestamps []time.Time) []Burst {
	if len(timestamps) < BurstMinEvents {
		return nil
	}

	sorted := make([]time.Time, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var bursts []Burst
	runStart := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Sub(sorted[i-1]) <= BurstMaxGap {
			continue
		}
		if count := i - runStart; count >= BurstMinEvents {
			start := sorted[runStart]
			end := sorted[i-1]
			bursts = append(bursts, Burst{
				Start:     start,
				End:       end,
				Duration:  end.Sub(start),
				Count:     count,
				Intensity: classifyIntensity(count),
			})
		}
		runStart = i
	}
	return bursts
}

func classifyIntensity(count int) BurstIntensity {
	switch {
	case count >= 20:
		return IntensityHigh
	case count >= 10:
		return IntensityMedium
	default:
		return IntensityLow
	}
}

// Package adoption derives migration progress metrics from the record sets
// of the two tracked sources. All computation is pure: no I/O, no clock, no
// mutation of inputs, so identical inputs always produce identical results.
package adoption

import "github.com/qaops/migratrack/internal/tracker"

// Status labels how far a project's migration has progressed.
type Status string

const (
	// StatusNoData means neither source reported any records.
	StatusNoData Status = "no_data"
	// StatusInProgress means records exist in the primary source.
	StatusInProgress Status = "in_progress"
	// StatusComplete means every known record lives in the secondary source.
	StatusComplete Status = "complete"
)

// MetricsResult is the derived migration picture for one project. It is
// computed on demand and never persisted.
type MetricsResult struct {
	TotalTests     int     `json:"total_tests"`
	PrimaryCount   int     `json:"primary_count"`
	SecondaryCount int     `json:"secondary_count"`
	AdoptionRate   float64 `json:"adoption_rate"`
	Remaining      int     `json:"remaining"`
	Status         Status  `json:"status"`
}

// Compute derives metrics from the primary (legacy) and secondary (target)
// record sets. The adoption rate is the share of records already living in
// the secondary source, 0.0 when no records exist at all.
func Compute(primary, secondary []tracker.TestRecord) MetricsResult {
	primaryCount := len(primary)
	secondaryCount := len(secondary)
	total := primaryCount + secondaryCount

	rate := 0.0
	if total > 0 {
		rate = float64(secondaryCount) / float64(total)
	}

	return MetricsResult{
		TotalTests:     total,
		PrimaryCount:   primaryCount,
		SecondaryCount: secondaryCount,
		AdoptionRate:   rate,
		Remaining:      primaryCount,
		Status:         statusFor(total, rate),
	}
}

// ComputeFromSets is Compute over record sets, tolerating nil sets from
// degraded fetches.
func ComputeFromSets(primary, secondary *tracker.RecordSet) MetricsResult {
	var primaryRecords, secondaryRecords []tracker.TestRecord
	if primary != nil {
		primaryRecords = primary.Records
	}
	if secondary != nil {
		secondaryRecords = secondary.Records
	}
	return Compute(primaryRecords, secondaryRecords)
}

func statusFor(total int, rate float64) Status {
	switch {
	case total == 0:
		return StatusNoData
	case rate >= 1.0:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

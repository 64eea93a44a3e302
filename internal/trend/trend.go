// Package trend turns snapshot history into adoption-rate movement: one
// sample per UTC calendar day, a direction, the average daily change and a
// completion projection. Like the adoption package it is pure; the reference
// time is a parameter, so identical inputs always yield identical results.
package trend

import (
	"math"
	"sort"
	"time"

	"github.com/qaops/migratrack/internal/adoption"
	"github.com/qaops/migratrack/internal/snapshot"
	"github.com/qaops/migratrack/internal/tracker"
)

// Direction labels the movement of the adoption rate over the window.
type Direction string

const (
	DirectionIncreasing       Direction = "increasing"
	DirectionDecreasing       Direction = "decreasing"
	DirectionStable           Direction = "stable"
	DirectionInsufficientData Direction = "insufficient_data"
)

// Defaults for Options fields left at zero.
const (
	DefaultEpsilon       = 1e-6
	DefaultRecentSamples = 7
)

// TrendPoint is one historical sample: the adoption rate observed on a
// single UTC calendar day.
type TrendPoint struct {
	Date         time.Time `json:"date"`
	AdoptionRate float64   `json:"adoption_rate"`
	TotalTests   int       `json:"total_tests"`
}

// TrendResult is the derived movement summary. ProjectedCompletion is nil
// unless the rate is actually climbing.
type TrendResult struct {
	Direction           Direction    `json:"direction"`
	CurrentRate         float64      `json:"current_rate"`
	AverageRate         float64      `json:"average_rate"`
	DailyChange         float64      `json:"daily_change"`
	ProjectedCompletion *time.Time   `json:"projected_completion,omitempty"`
	SampleCount         int          `json:"sample_count"`
	Recent              []TrendPoint `json:"recent"`
}

// Options tunes the analysis. Zero values fall back to the defaults.
type Options struct {
	// Epsilon is the dead zone around zero daily change inside which the
	// direction reads as stable.
	Epsilon float64
	// RecentSamples caps how many trailing samples Analyze returns for display.
	RecentSamples int
}

func (o Options) withDefaults() Options {
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	if o.RecentSamples <= 0 {
		o.RecentSamples = DefaultRecentSamples
	}
	return o
}

// BuildDailyPoints buckets the snapshots of both sources into UTC calendar
// days and derives one adoption-rate sample per day that has any capture.
// When a day saw several captures from one source, the latest wins; when a
// day is missing one source entirely, that source contributes zero records.
// The result is ascending by date.
func BuildDailyPoints(primary, secondary []*snapshot.Snapshot) []TrendPoint {
	latestPrimary := latestPerDay(primary)
	latestSecondary := latestPerDay(secondary)

	days := make(map[time.Time]struct{}, len(latestPrimary)+len(latestSecondary))
	for day := range latestPrimary {
		days[day] = struct{}{}
	}
	for day := range latestSecondary {
		days[day] = struct{}{}
	}

	points := make([]TrendPoint, 0, len(days))
	for day := range days {
		var primaryRecords, secondaryRecords []tracker.TestRecord
		if snap := latestPrimary[day]; snap != nil {
			primaryRecords = snap.Records
		}
		if snap := latestSecondary[day]; snap != nil {
			secondaryRecords = snap.Records
		}
		metrics := adoption.Compute(primaryRecords, secondaryRecords)
		points = append(points, TrendPoint{
			Date:         day,
			AdoptionRate: metrics.AdoptionRate,
			TotalTests:   metrics.TotalTests,
		})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// Analyze summarizes the movement of the given samples relative to now.
// Fewer than two samples cannot establish a direction and yield
// insufficient_data with no projection. The projection is now plus
// ceil((1 - current) / dailyChange) days and is computed only for a rising
// rate, which also means it can never land in the past.
func Analyze(points []TrendPoint, now time.Time, opts Options) TrendResult {
	opts = opts.withDefaults()

	sorted := append([]TrendPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	result := TrendResult{
		Direction:   DirectionInsufficientData,
		SampleCount: len(sorted),
		Recent:      recentWindow(sorted, opts.RecentSamples),
	}
	if len(sorted) > 0 {
		result.CurrentRate = sorted[len(sorted)-1].AdoptionRate
		result.AverageRate = averageRate(sorted)
	}
	if len(sorted) < 2 {
		return result
	}

	first := sorted[0].AdoptionRate
	last := sorted[len(sorted)-1].AdoptionRate
	change := (last - first) / float64(len(sorted)-1)
	result.DailyChange = change

	switch {
	case change > opts.Epsilon:
		result.Direction = DirectionIncreasing
	case change < -opts.Epsilon:
		result.Direction = DirectionDecreasing
	default:
		result.Direction = DirectionStable
	}

	if result.Direction == DirectionIncreasing {
		days := int(math.Ceil((1.0 - last) / change))
		if days < 0 {
			days = 0
		}
		projected := now.UTC().Add(time.Duration(days) * 24 * time.Hour)
		result.ProjectedCompletion = &projected
	}
	return result
}

// latestPerDay keeps the newest capture per UTC calendar day.
func latestPerDay(snaps []*snapshot.Snapshot) map[time.Time]*snapshot.Snapshot {
	latest := make(map[time.Time]*snapshot.Snapshot, len(snaps))
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		day := snap.CapturedAt.UTC().Truncate(24 * time.Hour)
		if current, ok := latest[day]; !ok || snap.CapturedAt.After(current.CapturedAt) {
			latest[day] = snap
		}
	}
	return latest
}

func recentWindow(sorted []TrendPoint, k int) []TrendPoint {
	if len(sorted) <= k {
		return append([]TrendPoint(nil), sorted...)
	}
	return append([]TrendPoint(nil), sorted[len(sorted)-k:]...)
}

func averageRate(points []TrendPoint) float64 {
	if len(points) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.AdoptionRate
	}
	return sum / float64(len(points))
}

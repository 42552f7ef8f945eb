// Package activity derives per-intervention activity strengths from
// self-reported effectiveness and day-level activity history.
package activity

import (
	"time"
)

// WindowDays is the length of the trailing activity window.
const WindowDays = 7

// Record is the activity history of one intervention.
type Record struct {
	InterventionID string
	// Effectiveness is the self-reported weight in [0,1].
	Effectiveness float64
	// ActiveDays holds any instant within each day the intervention was done.
	ActiveDays []time.Time
}

// Strength returns effectiveness × the fraction of the WindowDays days
// ending on now's calendar day on which the intervention was active.
// Days are bucketed in now's location; repeats within a day count once.
func Strength(effectiveness float64, activeDays []time.Time, now time.Time) float64 {
	effectiveness = clamp01(effectiveness)
	if effectiveness == 0 {
		return 0
	}

	loc := now.Location()
	today := dayStart(now, loc)
	oldest := today.AddDate(0, 0, -(WindowDays - 1))

	seen := make(map[time.Time]bool, WindowDays)
	for _, t := range activeDays {
		day := dayStart(t.In(loc), loc)
		if day.Before(oldest) || day.After(today) {
			continue
		}
		seen[day] = true
	}
	return effectiveness * float64(len(seen)) / WindowDays
}

// Strengths computes Strength for every record, keyed by intervention id.
// When an id appears more than once the strongest result wins.
func Strengths(records []Record, now time.Time) map[string]float64 {
	out := make(map[string]float64, len(records))
	for _, r := range records {
		s := Strength(r.Effectiveness, r.ActiveDays, now)
		if prev, ok := out[r.InterventionID]; !ok || s > prev {
			out[r.InterventionID] = s
		}
	}
	return out
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Package overlap holds the pure interval math behind conflict detection.
//
// Two distinct overlap rules live here on purpose. PeriodsOverlap answers "do
// two commitment periods conflict" and is half-open: touching endpoints do not
// overlap. OverloadedDays answers "is capacity exceeded on a specific day" and
// is inclusive on both ends, so an allocation ending on a date and another
// starting the same date both load that day. Keep them separate; collapsing
// them into one parameterized function has broken boundary-day behavior before.
package overlap

import (
	"time"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/domain"
)

// PeriodsOverlap reports whether [aStart,aEnd) and [bStart,bEnd) intersect.
func PeriodsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Window is a contiguous date range.
type Window struct {
	Start time.Time
	End   time.Time
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ConcurrentPercent returns target.Percent plus the percent of every other
// allocation in all whose period overlaps target's. Self-exclusion is by
// record ID, so a proposed allocation with an empty ID is compared against
// every existing row.
func ConcurrentPercent(all []domain.Allocation, target domain.Allocation) float64 {
	ts, ok1 := parseDate(target.StartDate)
	te, ok2 := parseDate(target.EndDate)
	if !ok1 || !ok2 {
		return 0
	}
	total := target.Percent
	for _, a := range all {
		if target.ID != "" && a.ID == target.ID {
			continue
		}
		as, ok1 := parseDate(a.StartDate)
		ae, ok2 := parseDate(a.EndDate)
		if !ok1 || !ok2 {
			continue
		}
		if PeriodsOverlap(ts, te, as, ae) {
			total += a.Percent
		}
	}
	return total
}

// PeakConcurrent returns the highest concurrent percentage reached by any
// allocation in the list, together with the window where it first occurs: the
// intersection of the peak allocation's period with its overlapping peers.
// ok is false when the list is empty or no date parses.
func PeakConcurrent(all []domain.Allocation) (peak float64, w Window, ok bool) {
	for i, target := range all {
		ts, ok1 := parseDate(target.StartDate)
		te, ok2 := parseDate(target.EndDate)
		if !ok1 || !ok2 {
			continue
		}
		total := target.Percent
		start, end := ts, te
		for j, a := range all {
			if j == i {
				continue
			}
			as, aok := parseDate(a.StartDate)
			ae, bok := parseDate(a.EndDate)
			if !aok || !bok {
				continue
			}
			if !PeriodsOverlap(ts, te, as, ae) {
				continue
			}
			total += a.Percent
			if as.After(start) {
				start = as
			}
			if ae.Before(end) {
				end = ae
			}
		}
		if !ok || total > peak {
			peak = total
			w = Window{Start: start, End: end}
			ok = true
		}
	}
	return peak, w, ok
}

// DayLoad is one calendar day's total commitment for a resource with the
// allocations contributing to it.
type DayLoad struct {
	Date    time.Time
	Total   float64
	Entries []domain.Allocation
}

// OverloadedDays walks every date in [from, to] and returns the days whose
// summed commitment exceeds capacity. Containment is inclusive on both ends of
// each allocation. The walk is date-by-date so memory stays bounded by the
// horizon, not by allocations x dates.
func OverloadedDays(allocs []domain.Allocation, from, to time.Time, capacity float64) []DayLoad {
	var out []DayLoad
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		var total float64
		var entries []domain.Allocation
		for _, a := range allocs {
			as, ok1 := parseDate(a.StartDate)
			ae, ok2 := parseDate(a.EndDate)
			if !ok1 || !ok2 {
				continue
			}
			if !as.After(day) && !ae.Before(day) {
				total += a.Percent
				entries = append(entries, a)
			}
		}
		if total > capacity {
			out = append(out, DayLoad{Date: day, Total: total, Entries: entries})
		}
	}
	return out
}

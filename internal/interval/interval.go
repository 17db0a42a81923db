// Package interval holds the half-open time range predicates used when
// checking slots and appointments against each other.
package interval

import "time"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) conflict.
// Equal starts or equal ends always conflict, so a zero-length range still
// collides with itself. Ranges that only touch at a boundary do not.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aStart.Equal(bStart) || aEnd.Equal(bEnd) {
		return true
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Minutes returns the whole minutes between start and end, truncated toward zero.
func Minutes(start, end time.Time) int64 {
	return int64(end.Sub(start) / time.Minute)
}

// ValidDuration reports whether the whole-minute length of the range lies
// within [minMinutes, maxMinutes].
func ValidDuration(start, end time.Time, minMinutes, maxMinutes int64) bool {
	m := Minutes(start, end)
	return m >= minMinutes && m <= maxMinutes
}

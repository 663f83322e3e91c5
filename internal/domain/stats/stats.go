// Package stats derives read-only views from fencer and bout snapshots.
//
// Every function here is pure: it never mutates its inputs, never panics on
// well-typed input and never returns NaN or Inf. Calling a function twice with
// the same snapshot yields the same result.
package stats

import "math"

// round1 rounds to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// percent returns 100*part/whole rounded to one decimal, or 0 when whole is 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return round1(100 * float64(part) / float64(whole))
}

// mean returns sum/n rounded to one decimal, or 0 when n is 0.
func mean(sum, n int) float64 {
	if n <= 0 {
		return 0
	}
	return round1(float64(sum) / float64(n))
}

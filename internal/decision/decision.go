// Package decision decides whether a price observation qualifies as a drop.
package decision

import "math"

// Decision is the outcome of comparing a fresh price to the stored baseline
type Decision struct {
	ShouldNotify   bool `json:"shouldNotify"`
	DropPercentage int  `json:"dropPercentage"`
}

// Decide applies the drop rule:
//
//	shouldNotify   = current <= target || current < previous
//	dropPercentage = round(100 * (previous - current) / previous) when previous > current, else 0
//
// A notification triggered only by the target threshold reports 0%.
// Callers pass previous == current on a product's first observation.
func Decide(current, previous, target float64) Decision {
	d := Decision{
		ShouldNotify: current <= target || current < previous,
	}
	if previous > current && previous > 0 {
		d.DropPercentage = int(math.Round(100 * (previous - current) / previous))
	}
	return d
}

// Baseline returns the previous price to compare against, defaulting to the
// current price when nothing has been observed yet.
func Baseline(lastPrice *float64, current float64) float64 {
	if lastPrice == nil {
		return current
	}
	return *lastPrice
}

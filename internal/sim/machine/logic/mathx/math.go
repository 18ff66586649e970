package mathx

import "math"

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// Normalize maps v from [lo,hi] into [0,1]. A degenerate range maps to 0.
func Normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return Clamp01((v - lo) / (hi - lo))
}

// MoveToward steps cur toward target by at most maxDelta.
func MoveToward(cur, target, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return cur
	}
	d := target - cur
	if math.Abs(d) <= maxDelta {
		return target
	}
	if d > 0 {
		return cur + maxDelta
	}
	return cur - maxDelta
}

// Ratio returns num/den, or 0 when den is not positive.
func Ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

package stress

import "rigsim.ai/internal/sim/machine/logic/mathx"

type State uint8

const (
	Normal State = iota
	Stressed
	Broken
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Stressed:
		return "STRESSED"
	case Broken:
		return "BROKEN"
	default:
		return "UNKNOWN"
	}
}

func ParseState(s string) (State, bool) {
	switch s {
	case "NORMAL", "":
		return Normal, true
	case "STRESSED":
		return Stressed, true
	case "BROKEN":
		return Broken, true
	}
	return Normal, false
}

// Thresholds is the hysteresis band. Enter must be greater than Exit.
type Thresholds struct {
	Enter float64
	Exit  float64
	Break float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Enter: 0.8, Exit: 0.6, Break: 1.0}
}

// Ratio is max(force/maxForce, torque/maxTorque). A non-positive ceiling contributes nothing.
func Ratio(force, torque, maxForce, maxTorque float64) float64 {
	f := mathx.Ratio(abs(force), maxForce)
	t := mathx.Ratio(abs(torque), maxTorque)
	if t > f {
		return t
	}
	return f
}

// Classify returns the next state. Broken is terminal; canBreak=false caps at Stressed.
func Classify(cur State, stress float64, th Thresholds, canBreak bool) State {
	if cur == Broken {
		return Broken
	}
	if stress > th.Break {
		if canBreak {
			return Broken
		}
		return Stressed
	}
	switch cur {
	case Normal:
		if stress > th.Enter {
			return Stressed
		}
	case Stressed:
		if stress < th.Exit {
			return Normal
		}
	}
	return cur
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package gates

import (
	"math"
	"strings"

	"rigsim.ai/internal/sim/machine/logic/mathx"
)

type Kind uint8

const (
	AND Kind = iota
	OR
	NOT
	XOR
	XNOR
	NAND
	NOR
	Threshold
	Timer
	Buffer
)

var kindNames = [...]string{"AND", "OR", "NOT", "XOR", "XNOR", "NAND", "NOR", "THRESHOLD", "TIMER", "BUFFER"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

func ParseKind(s string) (Kind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return AND, false
}

// FixedInputs reports the input count a kind is pinned to, or 0 when configurable.
func FixedInputs(k Kind) int {
	switch k {
	case NOT, Buffer, Timer:
		return 1
	}
	return 0
}

type Input struct {
	On    bool
	Value float64
}

type Result struct {
	On    bool
	Value float64
}

type Params struct {
	Threshold float64
	Invert    bool
	Delay     float64
}

// TimerState is the only state carried between evaluations.
type TimerState struct {
	Phase float64
}

// Evaluate applies kind over inputs. Missing inputs read as zero; an empty input set
// behaves like a single false input. elapsed only advances Timer.
func Evaluate(k Kind, in []Input, p Params, ts *TimerState, elapsed float64) Result {
	if len(in) == 0 {
		in = []Input{{}}
	}

	var r Result
	switch k {
	case AND, NAND:
		on := true
		for _, v := range in {
			if !v.On {
				on = false
				break
			}
		}
		if k == NAND {
			on = !on
		}
		r = boolResult(on)
	case OR, NOR:
		on := false
		for _, v := range in {
			if v.On {
				on = true
				break
			}
		}
		if k == NOR {
			on = !on
		}
		r = boolResult(on)
	case XOR, XNOR:
		n := 0
		for _, v := range in {
			if v.On {
				n++
			}
		}
		on := n == 1
		if k == XNOR {
			on = !on
		}
		r = boolResult(on)
	case NOT:
		r = boolResult(!in[0].On)
	case Buffer:
		r = boolResult(in[0].On)
	case Threshold:
		sum := 0.0
		for _, v := range in {
			sum += v.Value
		}
		mean := sum / float64(len(in))
		r = Result{On: mean >= p.Threshold, Value: mathx.Clamp01(mean)}
	case Timer:
		r = timer(in[0], p.Delay, ts, elapsed)
	}

	if p.Invert {
		r.On = !r.On
		r.Value = 1 - r.Value
	}
	return r
}

func boolResult(on bool) Result {
	if on {
		return Result{On: true, Value: 1}
	}
	return Result{}
}

// timer emits a triangle wave with period delay while the gate input is on.
func timer(gate Input, delay float64, ts *TimerState, elapsed float64) Result {
	if ts == nil {
		ts = &TimerState{}
	}
	if !gate.On {
		ts.Phase = 0
		return Result{}
	}
	if delay <= 0 {
		return boolResult(true)
	}
	ts.Phase = math.Mod(ts.Phase+elapsed, delay)
	x := ts.Phase / delay
	v := 1 - math.Abs(2*x-1)
	return Result{On: v >= 0.5, Value: v}
}

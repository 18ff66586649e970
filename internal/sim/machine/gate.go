package machine

import (
	"rigsim.ai/internal/sim/machine/logic/gates"
)

// Gate backs both Controller and LogicGate parts. Slot counts are fixed when the part is
// built; wiring only fills existing slots.
type Gate struct {
	part *Part

	Logic     gates.Kind
	RateHz    float64
	Threshold float64
	Invert    bool
	Delay     float64

	inputs  []SignalSource
	outputs []Actuator

	result  gates.Result
	elapsed float64
	timer   gates.TimerState
}

func newGate(p *Part, logic gates.Kind, inputs, outputs int) *Gate {
	if n := gates.FixedInputs(logic); n > 0 {
		inputs = n
	}
	if inputs < 0 {
		inputs = 0
	}
	if outputs < 0 {
		outputs = 0
	}
	return &Gate{
		part:    p,
		Logic:   logic,
		inputs:  make([]SignalSource, inputs),
		outputs: make([]Actuator, outputs),
	}
}

func (g *Gate) Part() *Part      { return g.part }
func (g *Gate) InputCount() int  { return len(g.inputs) }
func (g *Gate) OutputCount() int { return len(g.outputs) }
func (g *Gate) SourceID() string { return string(g.part.ID) }

// Result is the last evaluated (state, value) pair.
func (g *Gate) Result() Signal { return Signal{On: g.result.On, Value: g.result.Value} }

// Signal lets gates feed other gates.
func (g *Gate) Signal() Signal {
	if g.part.destroyed {
		return Signal{}
	}
	return g.Result()
}

func (g *Gate) Input(i int) SignalSource {
	if i < 0 || i >= len(g.inputs) {
		return nil
	}
	return g.inputs[i]
}

func (g *Gate) Output(i int) Actuator {
	if i < 0 || i >= len(g.outputs) {
		return nil
	}
	return g.outputs[i]
}

// SetInput wires slot i. Out of range is rejected; src may be nil to unwire.
func (g *Gate) SetInput(i int, src SignalSource) bool {
	if i < 0 || i >= len(g.inputs) {
		return false
	}
	g.inputs[i] = src
	return true
}

func (g *Gate) SetOutput(i int, act Actuator) bool {
	if i < 0 || i >= len(g.outputs) {
		return false
	}
	g.outputs[i] = act
	return true
}

// unwire clears every slot pointing at a part that left the machine.
func (g *Gate) unwire(p *Part) {
	for i, src := range g.inputs {
		if src != nil && src.SourceID() == string(p.ID) {
			g.inputs[i] = nil
		}
	}
	for i, act := range g.outputs {
		if act != nil && act.ActuatorID() == string(p.ID) {
			g.outputs[i] = nil
		}
	}
}

func (g *Gate) unwireConn(c *Connection) {
	for i, act := range g.outputs {
		if act == Actuator(c) {
			g.outputs[i] = nil
		}
	}
}

// Update evaluates once 1/RateHz has elapsed and reports whether it did.
func (g *Gate) Update(dt float64) bool {
	if g.part.destroyed {
		return false
	}
	g.elapsed += dt
	if g.RateHz > 0 && g.elapsed+1e-9 < 1/g.RateHz {
		return false
	}
	step := g.elapsed
	g.elapsed = 0
	g.evaluate(step)
	return true
}

// Evaluate runs one evaluation without advancing the timer.
func (g *Gate) Evaluate() Signal {
	g.evaluate(0)
	return g.Result()
}

func (g *Gate) evaluate(step float64) {
	in := make([]gates.Input, len(g.inputs))
	for i, src := range g.inputs {
		if src == nil {
			continue
		}
		s := src.Signal()
		in[i] = gates.Input{On: s.On, Value: s.Value}
	}
	g.result = gates.Evaluate(g.Logic, in, gates.Params{
		Threshold: g.Threshold,
		Invert:    g.Invert,
		Delay:     g.Delay,
	}, &g.timer, step)

	out := g.Result()
	for _, act := range g.outputs {
		if act != nil {
			act.Drive(out)
		}
	}
}

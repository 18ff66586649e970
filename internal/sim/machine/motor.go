package machine

import (
	"rigsim.ai/internal/sim/machine/logic/mathx"
	"rigsim.ai/internal/sim/tuning"
)

// Motor is the power source. Invariant: running implies fuel > 0 and not overheating.
type Motor struct {
	part *Part

	Power           float64
	MaxRPM          float64
	FuelMax         float64
	FuelConsumption float64
	MaxTemperature  float64

	fuel        float64
	temperature float64
	running     bool
	overheating bool
	throttle    float64

	// wheels is materialized by ResolveWheels; the motor does not own them.
	wheels []*Wheel
}

func (m *Motor) Part() *Part              { return m.part }
func (m *Motor) Fuel() float64            { return m.fuel }
func (m *Motor) Temperature() float64     { return m.temperature }
func (m *Motor) Running() bool            { return m.running }
func (m *Motor) Overheating() bool        { return m.overheating }
func (m *Motor) Throttle() float64        { return m.throttle }
func (m *Motor) ActuatorID() string       { return string(m.part.ID) }
func (m *Motor) Wheels() []*Wheel         { return append([]*Wheel(nil), m.wheels...) }
func (m *Motor) SetFuel(v float64)        { m.fuel = mathx.Clamp(v, 0, m.FuelMax) }
func (m *Motor) SetTemperature(v float64) { m.temperature = v }

// StartEngine is a no-op when out of fuel, overheating, destroyed or already running.
func (m *Motor) StartEngine() bool {
	if m.running || m.fuel <= 0 || m.overheating || m.part.destroyed {
		return false
	}
	m.running = true
	m.part.emit(Event{Type: EventEngineStarted, PartID: m.part.ID})
	return true
}

func (m *Motor) StopEngine(reason string) {
	if !m.running {
		return
	}
	m.running = false
	m.throttle = 0
	for _, w := range m.liveWheels() {
		w.ApplyTorque(0)
	}
	m.part.emit(Event{Type: EventEngineStopped, PartID: m.part.ID, Reason: reason})
}

func (m *Motor) Refuel(amount float64) float64 {
	if !(amount > 0) || m.part.destroyed {
		return 0
	}
	before := m.fuel
	m.fuel = mathx.Clamp(m.fuel+amount, 0, m.FuelMax)
	return m.fuel - before
}

// ApplyPowerToWheels splits power evenly over live wheels: power/n*throttle each.
func (m *Motor) ApplyPowerToWheels(throttle float64) {
	if !m.running {
		return
	}
	m.throttle = mathx.Clamp01(throttle)
	wheels := m.liveWheels()
	if len(wheels) == 0 {
		return
	}
	per := m.Power / float64(len(wheels)) * m.throttle
	for _, w := range wheels {
		w.ApplyTorque(per)
	}
}

// Drive: a rising signal starts the engine, the value becomes the throttle.
func (m *Motor) Drive(sig Signal) {
	if sig.On && !m.running {
		m.StartEngine()
	}
	if !sig.On {
		m.ApplyPowerToWheels(0)
		return
	}
	m.ApplyPowerToWheels(sig.Value)
}

// Update advances fuel and the thermal model by dt seconds.
func (m *Motor) Update(dt float64, tm tuning.Motor) {
	if dt <= 0 {
		return
	}
	if m.running {
		m.fuel -= m.FuelConsumption * dt
		m.temperature += tm.HeatRate * dt
	} else {
		m.temperature -= tm.CoolRate * dt
		if m.temperature < tm.AmbientTemperature {
			m.temperature = tm.AmbientTemperature
		}
	}

	if m.MaxTemperature > 0 && m.temperature >= m.MaxTemperature && !m.overheating {
		m.overheating = true
		m.part.emit(Event{Type: EventEngineOverheated, PartID: m.part.ID, Value: m.temperature})
		m.StopEngine("overheat")
	}
	if m.fuel <= 0 {
		m.fuel = 0
		m.StopEngine("out_of_fuel")
	}
	if m.overheating && m.temperature < m.MaxTemperature*tm.RecoverRatio {
		m.overheating = false
		m.part.emit(Event{Type: EventEngineCooled, PartID: m.part.ID, Value: m.temperature})
	}
}

// ResolveWheels re-materializes the wheel list by walking the connection graph.
func (m *Motor) ResolveWheels(maxDepth, maxNodes int) {
	m.wheels = m.wheels[:0]
	for _, p := range walkConnected(m.part, maxDepth, maxNodes, func(p *Part) bool { return p.Wheel == nil }) {
		if p.Wheel != nil && p.Wheel.Motorized {
			m.wheels = append(m.wheels, p.Wheel)
		}
	}
}

func (m *Motor) dropWheel(w *Wheel) {
	for i, x := range m.wheels {
		if x == w {
			m.wheels = append(m.wheels[:i], m.wheels[i+1:]...)
			return
		}
	}
}

func (m *Motor) liveWheels() []*Wheel {
	out := make([]*Wheel, 0, len(m.wheels))
	for _, w := range m.wheels {
		if !w.part.destroyed {
			out = append(out, w)
		}
	}
	return out
}

// Wheel is a power consumer. RPM belongs to the physics collaborator.
type Wheel struct {
	part *Part

	Radius         float64
	TorqueCapacity float64
	MaxSpeed       float64
	Motorized      bool
	Steering       bool
	MaxSteerDeg    float64

	torque float64
	steer  float64
}

func (w *Wheel) Part() *Part         { return w.part }
func (w *Wheel) Torque() float64     { return w.torque }
func (w *Wheel) SteerAngle() float64 { return w.steer }

// ApplyTorque clamps to capacity, forwards to physics and returns the applied torque.
func (w *Wheel) ApplyTorque(t float64) float64 {
	if w.part.destroyed {
		t = 0
	}
	w.torque = mathx.Clamp(t, -w.TorqueCapacity, w.TorqueCapacity)
	if ph := w.part.physics(); ph != nil {
		ph.ApplyWheelTorque(w.part.ID, w.torque)
	}
	return w.torque
}

// Steer only affects steering wheels.
func (w *Wheel) Steer(deg float64) bool {
	if !w.Steering || w.part.destroyed {
		return false
	}
	w.steer = mathx.Clamp(deg, -w.MaxSteerDeg, w.MaxSteerDeg)
	if ph := w.part.physics(); ph != nil {
		ph.SetWheelSteer(w.part.ID, w.steer)
	}
	return true
}

func (w *Wheel) RPM() float64 {
	if ph := w.part.physics(); ph != nil {
		return ph.WheelRPM(w.part.ID)
	}
	return 0
}

package machine

import (
	"math"
	"strings"

	"rigsim.ai/internal/sim/machine/logic/mathx"
)

type SensorKind uint8

const (
	SensorDistance SensorKind = iota
	SensorProximity
	SensorPressure
	SensorTemperature
	SensorLight
	SensorMotion
)

var sensorNames = [...]string{"DISTANCE", "PROXIMITY", "PRESSURE", "TEMPERATURE", "LIGHT", "MOTION"}

func (k SensorKind) String() string {
	if int(k) < len(sensorNames) {
		return sensorNames[k]
	}
	return "UNKNOWN"
}

func ParseSensorKind(s string) (SensorKind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range sensorNames {
		if n == s {
			return SensorKind(i), true
		}
	}
	return SensorDistance, false
}

// Sensor is a signal source. Invariant: Min <= value <= Max.
type Sensor struct {
	part *Part

	Kind         SensorKind
	Range        float64
	UpdateRateHz float64
	Min, Max     float64
	// Trigger is the reading at which Pressure, Temperature, Light and Motion trigger.
	Trigger float64

	value     float64
	triggered bool
	elapsed   float64
}

func (s *Sensor) Part() *Part      { return s.part }
func (s *Sensor) Value() float64   { return s.value }
func (s *Sensor) Triggered() bool  { return s.triggered }
func (s *Sensor) SourceID() string { return string(s.part.ID) }

// Signal reports the triggered flag and the reading normalized into [0,1].
func (s *Sensor) Signal() Signal {
	if s.part.destroyed {
		return Signal{}
	}
	return Signal{On: s.triggered, Value: mathx.Normalize(s.value, s.Min, s.Max)}
}

// Update samples once 1/UpdateRateHz has elapsed and reports whether it did.
func (s *Sensor) Update(dt float64) bool {
	if s.part.destroyed {
		return false
	}
	s.elapsed += dt
	if s.UpdateRateHz > 0 && s.elapsed+1e-9 < 1/s.UpdateRateHz {
		return false
	}
	s.elapsed = 0
	s.Sample()
	return true
}

// Sample reads the physics port immediately. Missing data yields the sentinel reading
// with triggered=false.
func (s *Sensor) Sample() {
	ph := s.part.physics()
	pose := s.part.WorldPose()
	reading, trig := s.sentinel(), false

	if ph != nil {
		switch s.Kind {
		case SensorDistance, SensorProximity:
			if hit, ok := ph.Raycast(pose.Pos, pose.Forward(), s.Range); ok && hit.Distance <= s.Range {
				reading = hit.Distance
				if s.Kind == SensorDistance {
					trig = true
				} else {
					trig = hit.Distance < s.Range/2
				}
			}
		case SensorPressure:
			sum := 0.0
			for _, b := range s.foreign(ph.Overlap(pose.Pos, s.Range)) {
				sum += 1 / (1 + b.Pos.Sub(pose.Pos).Len())
			}
			reading = sum
			trig = sum > 0 && sum >= s.Trigger
		case SensorTemperature:
			reading = ph.Environment(pose.Pos).Temperature
			trig = reading >= s.Trigger
		case SensorLight:
			reading = ph.Environment(pose.Pos).Light
			trig = reading >= s.Trigger
		case SensorMotion:
			fastest := 0.0
			for _, b := range s.foreign(ph.Overlap(pose.Pos, s.Range)) {
				fastest = math.Max(fastest, b.Velocity.Len())
			}
			reading = fastest
			trig = fastest > s.Trigger
		}
	}

	s.value = mathx.Clamp(reading, s.Min, s.Max)
	s.triggered = trig
}

func (s *Sensor) sentinel() float64 {
	switch s.Kind {
	case SensorDistance, SensorProximity:
		return s.Range
	case SensorTemperature, SensorLight:
		return s.Min
	}
	return 0
}

// foreign drops the bodies that belong to the sensor's own machine.
func (s *Sensor) foreign(bodies []Body) []Body {
	if s.part.asm == nil {
		return bodies
	}
	own := s.part.asm.ID
	out := bodies[:0:0]
	for _, b := range bodies {
		if b.ID == own || strings.HasPrefix(b.ID, own+"/") {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Seat is the driver seat: player input exposed as a signal source.
type Seat struct {
	part *Part

	MaxSteerDeg float64

	occupied bool
	throttle float64
	steer    float64
}

func (s *Seat) Part() *Part       { return s.part }
func (s *Seat) Occupied() bool    { return s.occupied }
func (s *Seat) Throttle() float64 { return s.throttle }
func (s *Seat) Steer() float64    { return s.steer }
func (s *Seat) SourceID() string  { return string(s.part.ID) }

// SetInput takes throttle in [0,1] and steer in [-1,1].
func (s *Seat) SetInput(throttle, steer float64) {
	if s.part.destroyed {
		return
	}
	s.occupied = true
	s.throttle = mathx.Clamp01(throttle)
	s.steer = mathx.Clamp(steer, -1, 1)
}

func (s *Seat) Leave() {
	s.occupied = false
	s.throttle, s.steer = 0, 0
}

// SteerDegrees converts the normalized steer input to a wheel angle.
func (s *Seat) SteerDegrees() float64 { return s.steer * s.MaxSteerDeg }

func (s *Seat) Signal() Signal {
	if !s.occupied || s.part.destroyed {
		return Signal{}
	}
	return Signal{On: s.throttle > 0, Value: s.throttle}
}

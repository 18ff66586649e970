package machine

import (
	"math"
	"strings"
)

type PartID string
type ConnID string

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3      { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Len() float64         { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }
func (v Vec3) ToArray() [3]float64  { return [3]float64{v.X, v.Y, v.Z} }

func Vec3FromArray(a [3]float64) Vec3 { return Vec3{a[0], a[1], a[2]} }

// Pose is a position plus heading (yaw, degrees, 0 = +Z, clockwise seen from above).
type Pose struct {
	Pos Vec3
	Yaw float64
}

// Forward is the unit heading vector on the ground plane.
func (p Pose) Forward() Vec3 {
	r := p.Yaw * math.Pi / 180
	return Vec3{X: math.Sin(r), Z: math.Cos(r)}
}

type Kind uint8

const (
	KindBlock Kind = iota
	KindMotor
	KindWheel
	KindTool
	KindSensor
	KindController
	KindLogicGate
	KindConnection
	KindDriverSeat
	KindCylinder
)

var kindNames = [...]string{"BLOCK", "MOTOR", "WHEEL", "TOOL", "SENSOR", "CONTROLLER", "LOGIC_GATE", "CONNECTION", "DRIVER_SEAT", "CYLINDER"}

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
	return KindBlock, false
}

type JointKind uint8

const (
	JointFixed JointKind = iota
	JointHinge
	JointSpring
	JointSlider
	JointConfigurable
)

var jointNames = [...]string{"FIXED", "HINGE", "SPRING", "SLIDER", "CONFIGURABLE"}

func (k JointKind) String() string {
	if int(k) < len(jointNames) {
		return jointNames[k]
	}
	return "UNKNOWN"
}

func ParseJointKind(s string) (JointKind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range jointNames {
		if n == s {
			return JointKind(i), true
		}
	}
	return JointFixed, false
}

// Signal is the value carried on the signal network. Value is normalized to [0,1].
type Signal struct {
	On    bool
	Value float64
}

// SignalSource is anything a gate input slot can be wired to.
type SignalSource interface {
	SourceID() string
	Signal() Signal
}

// Actuator is anything a gate output slot can drive.
type Actuator interface {
	ActuatorID() string
	Drive(Signal)
}

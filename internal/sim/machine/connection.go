package machine

import (
	"fmt"
	"math"

	"rigsim.ai/internal/sim/machine/logic/stress"
)

type Limits struct {
	MaxForce    float64
	MaxTorque   float64
	BreakForce  float64
	BreakTorque float64
	CanBreak    bool
}

// DefaultHingeDriveSpeed is the joint motor velocity (deg/s) at full signal.
const DefaultHingeDriveSpeed = 180

// Connection joins two parts. It does not own its endpoints: removing a part breaks the
// connection and unlinks it rather than keeping the part alive.
type Connection struct {
	ID        ConnID
	Kind      JointKind
	A, B      *Part
	Limits    Limits
	Motorized bool
	Mass      float64
	Cost      int

	// DriveSpeed scales a gate signal into a joint motor velocity.
	DriveSpeed float64

	MaxHealth   float64
	UnlockLevel int

	force  float64
	torque float64
	stress float64
	state  stress.State

	motorEnabled  bool
	motorVelocity float64

	th  stress.Thresholds
	asm *Assembly
}

func (c *Connection) State() stress.State    { return c.state }
func (c *Connection) Broken() bool           { return c.state == stress.Broken }
func (c *Connection) Stress() float64        { return c.stress }
func (c *Connection) Force() float64         { return c.force }
func (c *Connection) Torque() float64        { return c.torque }
func (c *Connection) MotorEnabled() bool     { return c.motorEnabled }
func (c *Connection) MotorVelocity() float64 { return c.motorVelocity }
func (c *Connection) ActuatorID() string     { return string(c.ID) }

// Info is the human-readable joint summary shown by presentation.
func (c *Connection) Info() string {
	s := fmt.Sprintf("%s %s (%s-%s) %s, stress %.2f\nMax force: %.0f  Max torque: %.0f  Health: %.0f  Unlock: level %d",
		c.Kind, c.ID, c.A.ID, c.B.ID, c.state, c.stress, c.Limits.MaxForce, c.Limits.MaxTorque, c.MaxHealth, c.UnlockLevel)
	if c.Motorized {
		s += fmt.Sprintf("\nMotor: %v  velocity %.1f", c.motorEnabled, c.motorVelocity)
	}
	return s
}

// Other returns the endpoint opposite p, or nil if p is not an endpoint.
func (c *Connection) Other(p *Part) *Part {
	switch p {
	case c.A:
		return c.B
	case c.B:
		return c.A
	}
	return nil
}

// UpdateLoad classifies one tick of load. Once Broken it does nothing.
func (c *Connection) UpdateLoad(force, torque float64) {
	if c.state == stress.Broken {
		return
	}
	c.force, c.torque = force, torque
	c.stress = stress.Ratio(force, torque, c.Limits.MaxForce, c.Limits.MaxTorque)

	next := stress.Classify(c.state, c.stress, c.th, c.Limits.CanBreak)
	if next != stress.Broken && c.Limits.CanBreak && c.overBreakLimit() {
		next = stress.Broken
	}
	if next == c.state {
		return
	}
	c.state = next
	switch next {
	case stress.Stressed:
		c.emit(EventConnectionStressed, "", c.stress)
	case stress.Normal:
		c.emit(EventConnectionRecovered, "", c.stress)
	case stress.Broken:
		c.breakUnderLoad()
	}
}

func (c *Connection) overBreakLimit() bool {
	if c.Limits.BreakForce > 0 && math.Abs(c.force) >= c.Limits.BreakForce {
		return true
	}
	if c.Limits.BreakTorque > 0 && math.Abs(c.torque) >= c.Limits.BreakTorque {
		return true
	}
	return false
}

// breakUnderLoad stops load transmission and propagates as fatal damage to owner A.
func (c *Connection) breakUnderLoad() {
	c.stopJointMotor()
	c.emit(EventConnectionBroken, "overload", c.stress)
	c.A.fatal("connection_broken")
}

// Destroy disconnects the joint. Neither endpoint is damaged.
func (c *Connection) Destroy() {
	c.detach("disconnected", true)
}

// detach breaks without damage. unlink also drops the joint from both endpoints and the
// assembly, which is required whenever an endpoint leaves the assembly.
func (c *Connection) detach(reason string, unlink bool) {
	if c.state != stress.Broken {
		c.state = stress.Broken
		c.stopJointMotor()
		c.emit(EventConnectionBroken, reason, c.stress)
	}
	if !unlink {
		return
	}
	if c.A != nil {
		c.A.removeConn(c)
	}
	if c.B != nil {
		c.B.removeConn(c)
	}
	if c.asm != nil {
		c.asm.removeConn(c)
	}
}

// reset is the bulk-repair path.
func (c *Connection) reset() {
	c.state = stress.Normal
	c.force, c.torque, c.stress = 0, 0, 0
}

// ToggleMotor only touches the drive target of a motorized hinge.
func (c *Connection) ToggleMotor(enabled bool) bool {
	if !c.canDrive() {
		return false
	}
	c.motorEnabled = enabled
	c.pushJointMotor()
	return true
}

func (c *Connection) SetMotorVelocity(v float64) bool {
	if !c.canDrive() || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	c.motorVelocity = v
	c.pushJointMotor()
	return true
}

// Drive lets a gate output run a motorized hinge.
func (c *Connection) Drive(sig Signal) {
	if !c.canDrive() {
		return
	}
	speed := c.DriveSpeed
	if speed == 0 {
		speed = DefaultHingeDriveSpeed
	}
	c.motorVelocity = sig.Value * speed
	c.motorEnabled = sig.On
	c.pushJointMotor()
}

func (c *Connection) canDrive() bool {
	return c.Kind == JointHinge && c.Motorized && c.state != stress.Broken
}

func (c *Connection) pushJointMotor() {
	if ph := c.physics(); ph != nil {
		ph.SetJointMotor(c.ID, c.motorEnabled, c.motorVelocity)
	}
}

func (c *Connection) stopJointMotor() {
	if !c.motorEnabled {
		return
	}
	c.motorEnabled = false
	c.pushJointMotor()
}

func (c *Connection) physics() Physics {
	if c.asm == nil {
		return nil
	}
	return c.asm.physics
}

func (c *Connection) emit(t EventType, reason string, v float64) {
	if c.asm != nil {
		c.asm.publish(Event{Type: t, ConnectionID: c.ID, PartID: c.A.ID, Reason: reason, Value: v})
	}
}

package machine

import (
	"strings"

	"rigsim.ai/internal/sim/machine/logic/mathx"
)

type CylinderType uint8

const (
	Pneumatic CylinderType = iota
	Hydraulic
)

func (t CylinderType) String() string {
	if t == Hydraulic {
		return "HYDRAULIC"
	}
	return "PNEUMATIC"
}

func ParseCylinderType(s string) (CylinderType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PNEUMATIC":
		return Pneumatic, true
	case "HYDRAULIC":
		return Hydraulic, true
	}
	return Pneumatic, false
}

// Cylinder is a linear actuator. Extension moves toward its target at Speed per second.
type Cylinder struct {
	part *Part

	Type   CylinderType
	Stroke float64
	Speed  float64
	Force  float64

	extension float64
	target    float64
}

func (c *Cylinder) Part() *Part        { return c.part }
func (c *Cylinder) Extension() float64 { return c.extension }
func (c *Cylinder) Target() float64    { return c.target }
func (c *Cylinder) Extended() bool     { return c.target >= c.Stroke && c.Stroke > 0 }
func (c *Cylinder) ActuatorID() string { return string(c.part.ID) }

func (c *Cylinder) Extend() {
	if !c.part.destroyed {
		c.target = c.Stroke
	}
}

func (c *Cylinder) Retract() { c.target = 0 }

// Drive follows the boolean result only.
func (c *Cylinder) Drive(sig Signal) {
	if sig.On {
		c.Extend()
	} else {
		c.Retract()
	}
}

func (c *Cylinder) Update(dt float64) {
	if c.part.destroyed || dt <= 0 || c.extension == c.target {
		return
	}
	c.extension = mathx.MoveToward(c.extension, c.target, c.Speed*dt)
	if ph := c.part.physics(); ph != nil {
		ph.SetActuatorExtension(c.part.ID, c.extension)
	}
}

func (c *Cylinder) setExtension(v float64) {
	c.extension = mathx.Clamp(v, 0, c.Stroke)
	c.target = c.extension
}

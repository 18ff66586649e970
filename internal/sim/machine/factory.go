package machine

import (
	"fmt"

	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine/logic/gates"
)

// NewPart builds a part from its catalog definition. The kind tag selects which
// component block is read; a missing block is an error.
func NewPart(id PartID, def catalogs.PartDef, mats catalogs.MaterialCatalog) (*Part, error) {
	kind, ok := ParseKind(def.Kind)
	if !ok {
		return nil, fmt.Errorf("part %s: unknown kind %q", def.ID, def.Kind)
	}
	p := NewBasePart(id, kind, def.MaxHealth, mats.DamageMultiplier(def.Material))
	p.CatalogID = def.ID
	p.Name = def.Name
	p.Material = def.Material
	p.Mass = def.Mass
	p.Cost = def.Cost
	p.UnlockLevel = def.UnlockLevel

	missing := func(block string) error {
		return fmt.Errorf("part %s: kind %s needs a %s block", def.ID, kind, block)
	}

	switch kind {
	case KindMotor:
		d := def.Motor
		if d == nil {
			return nil, missing("motor")
		}
		p.Motor = &Motor{
			part:            p,
			Power:           d.Power,
			MaxRPM:          d.MaxRPM,
			FuelMax:         d.FuelMax,
			FuelConsumption: d.FuelConsumption,
			MaxTemperature:  d.MaxTemperature,
			fuel:            d.FuelMax,
		}
	case KindWheel:
		d := def.Wheel
		if d == nil {
			return nil, missing("wheel")
		}
		p.Wheel = &Wheel{
			part:           p,
			Radius:         d.Radius,
			TorqueCapacity: d.TorqueCapacity,
			MaxSpeed:       d.MaxSpeed,
			Motorized:      d.Motorized,
			Steering:       d.Steering,
			MaxSteerDeg:    d.MaxSteerDeg,
		}
	case KindSensor:
		d := def.Sensor
		if d == nil {
			return nil, missing("sensor")
		}
		sk, ok := ParseSensorKind(d.Kind)
		if !ok {
			return nil, fmt.Errorf("part %s: unknown sensor kind %q", def.ID, d.Kind)
		}
		p.Sensor = &Sensor{
			part:         p,
			Kind:         sk,
			Range:        d.Range,
			UpdateRateHz: d.UpdateRateHz,
			Min:          d.Min,
			Max:          d.Max,
			Trigger:      d.Trigger,
		}
		p.Sensor.value = p.Sensor.sentinel()
		if p.Sensor.value < d.Min || p.Sensor.value > d.Max {
			p.Sensor.value = d.Min
		}
	case KindController, KindLogicGate:
		d := def.Gate
		if d == nil {
			return nil, missing("gate")
		}
		lk, ok := gates.ParseKind(d.Logic)
		if !ok {
			return nil, fmt.Errorf("part %s: unknown logic %q", def.ID, d.Logic)
		}
		g := newGate(p, lk, d.Inputs, d.Outputs)
		g.RateHz = d.RateHz
		g.Threshold = d.Threshold
		g.Invert = d.Invert
		g.Delay = d.Delay
		p.Gate = g
	case KindCylinder:
		d := def.Cylinder
		if d == nil {
			return nil, missing("cylinder")
		}
		ct, ok := ParseCylinderType(d.Type)
		if !ok {
			return nil, fmt.Errorf("part %s: unknown cylinder type %q", def.ID, d.Type)
		}
		p.Cylinder = &Cylinder{part: p, Type: ct, Stroke: d.Stroke, Speed: d.Speed, Force: d.Force}
	case KindTool:
		d := def.Tool
		if d == nil {
			return nil, missing("tool")
		}
		tk, ok := ParseToolKind(d.Kind)
		if !ok {
			return nil, fmt.Errorf("part %s: unknown tool kind %q", def.ID, d.Kind)
		}
		p.Tool = &Tool{part: p, Kind: tk, Rate: d.Rate, Range: d.Range}
	case KindDriverSeat:
		s := &Seat{part: p}
		if def.Seat != nil {
			s.MaxSteerDeg = def.Seat.MaxSteerDeg
		}
		p.Seat = s
	}
	return p, nil
}

// NewGatePart builds a bare gate part, for wiring set up in code rather than catalogs.
func NewGatePart(id PartID, logic gates.Kind, inputs, outputs int, maxHealth float64) *Part {
	p := NewBasePart(id, KindLogicGate, maxHealth, 1)
	p.Gate = newGate(p, logic, inputs, outputs)
	return p
}

// NewMotorPart builds a bare motor part with a full tank.
func NewMotorPart(id PartID, power, fuelMax, consumption, maxTemp, maxHealth float64) *Part {
	p := NewBasePart(id, KindMotor, maxHealth, 1)
	p.Motor = &Motor{
		part:            p,
		Power:           power,
		FuelMax:         fuelMax,
		FuelConsumption: consumption,
		MaxTemperature:  maxTemp,
		fuel:            fuelMax,
	}
	return p
}

// NewWheelPart builds a bare motorized wheel.
func NewWheelPart(id PartID, torqueCapacity, maxHealth float64) *Part {
	p := NewBasePart(id, KindWheel, maxHealth, 1)
	p.Wheel = &Wheel{part: p, Radius: 0.5, TorqueCapacity: torqueCapacity, Motorized: true}
	return p
}

// JointSpecFromDef maps a joint catalog entry to Connect's input.
func JointSpecFromDef(def catalogs.JointDef) (JointSpec, error) {
	kind, ok := ParseJointKind(def.Kind)
	if !ok {
		return JointSpec{}, fmt.Errorf("unknown joint kind %q", def.Kind)
	}
	return JointSpec{
		Kind: kind,
		Limits: Limits{
			MaxForce:    def.MaxForce,
			MaxTorque:   def.MaxTorque,
			BreakForce:  def.BreakForce,
			BreakTorque: def.BreakTorque,
			CanBreak:    def.CanBreak,
		},
		Motorized:   def.Motorized && kind == JointHinge,
		Mass:        def.Mass,
		Cost:        def.Cost,
		MaxHealth:   def.MaxHealth,
		UnlockLevel: def.UnlockLevel,
	}, nil
}

// JointSpecFor looks a joint kind up in the catalog.
func JointSpecFor(cat catalogs.JointCatalog, kind JointKind) (JointSpec, error) {
	def, ok := cat.Defs[kind.String()]
	if !ok {
		return JointSpec{}, fmt.Errorf("joint kind %s not in catalog", kind)
	}
	return JointSpecFromDef(def)
}

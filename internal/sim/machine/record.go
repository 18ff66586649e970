package machine

import (
	"fmt"
	"math"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine/logic/mathx"
	"rigsim.ai/internal/sim/machine/logic/stress"
)

// Export flattens the machine into its persisted record.
func (a *Assembly) Export() snapshot.AssemblyV1 {
	rec := snapshot.AssemblyV1{
		ID:           a.ID,
		Name:         a.Name,
		Active:       a.active,
		Broken:       a.broken,
		BrokenReason: a.brokenReason,
		NextJoint:    a.nextConn,
		Parts:        make([]snapshot.PartV1, 0, len(a.order)),
	}
	for _, id := range a.order {
		rec.Parts = append(rec.Parts, exportPart(a.parts[id]))
	}
	for _, id := range a.connOrder {
		c := a.conns[id]
		rec.Joints = append(rec.Joints, snapshot.JointV1{
			ID:            string(c.ID),
			Kind:          c.Kind.String(),
			A:             string(c.A.ID),
			B:             string(c.B.ID),
			State:         c.state.String(),
			Stress:        c.stress,
			MaxForce:      c.Limits.MaxForce,
			MaxTorque:     c.Limits.MaxTorque,
			BreakForce:    c.Limits.BreakForce,
			BreakTorque:   c.Limits.BreakTorque,
			CanBreak:      c.Limits.CanBreak,
			Motorized:     c.Motorized,
			Mass:          c.Mass,
			Cost:          c.Cost,
			DriveSpeed:    c.DriveSpeed,
			MaxHealth:     c.MaxHealth,
			UnlockLevel:   c.UnlockLevel,
			MotorEnabled:  c.motorEnabled,
			MotorVelocity: c.motorVelocity,
		})
	}
	for _, g := range a.gates {
		gid := string(g.part.ID)
		for i, src := range g.inputs {
			if src != nil {
				rec.Wires = append(rec.Wires, snapshot.WireV1{Gate: gid, Dir: "in", Slot: i, Target: src.SourceID()})
			}
		}
		for i, act := range g.outputs {
			if act == nil {
				continue
			}
			_, joint := act.(*Connection)
			rec.Wires = append(rec.Wires, snapshot.WireV1{Gate: gid, Dir: "out", Slot: i, Target: act.ActuatorID(), Joint: joint})
		}
	}
	return rec
}

func exportPart(p *Part) snapshot.PartV1 {
	out := snapshot.PartV1{
		ID:        string(p.ID),
		Kind:      p.Kind.String(),
		CatalogID: p.CatalogID,
		Material:  p.Material,
		Pos:       p.Pose.Pos.ToArray(),
		Yaw:       p.Pose.Yaw,
		Health:    p.health,
		MaxHealth: p.maxHealth,
		Mass:      p.Mass,
	}
	switch {
	case p.Motor != nil:
		m := p.Motor
		out.Motor = &snapshot.MotorStateV1{Fuel: m.fuel, Temperature: m.temperature, Running: m.running, Overheating: m.overheating, Throttle: m.throttle}
	case p.Wheel != nil:
		out.Wheel = &snapshot.WheelStateV1{Torque: p.Wheel.torque, Steer: p.Wheel.steer}
	case p.Sensor != nil:
		out.Sensor = &snapshot.SensorStateV1{Value: p.Sensor.value, Triggered: p.Sensor.triggered, Elapsed: p.Sensor.elapsed}
	case p.Gate != nil:
		g := p.Gate
		out.Gate = &snapshot.GateStateV1{On: g.result.On, Value: g.result.Value, TimerPhase: g.timer.Phase, Elapsed: g.elapsed}
	case p.Seat != nil:
		out.Seat = &snapshot.SeatStateV1{Occupied: p.Seat.occupied, Throttle: p.Seat.throttle, Steer: p.Seat.steer}
	case p.Cylinder != nil:
		out.Cylinder = &snapshot.CylinderStateV1{Extension: p.Cylinder.extension, Extended: p.Cylinder.target > 0}
	case p.Tool != nil:
		out.Tool = &snapshot.ToolStateV1{Active: p.Tool.active}
	}
	return out
}

// Import rebuilds a machine from its record. Parts with a catalog id are rebuilt from the
// catalog; the rest come back as bare parts of their kind. Import does not publish the
// build-up events.
func Import(rec snapshot.AssemblyV1, cats *catalogs.Catalogs, opts Options) (*Assembly, error) {
	bus := opts.Bus
	opts.Bus = nil
	a := NewAssembly(rec.ID, rec.Name, opts)

	for _, pr := range rec.Parts {
		p, err := importPart(pr, cats)
		if err != nil {
			return nil, fmt.Errorf("assembly %s: %w", rec.ID, err)
		}
		if !a.AddPart(p) {
			return nil, fmt.Errorf("assembly %s: duplicate part %s", rec.ID, pr.ID)
		}
	}

	for _, jr := range rec.Joints {
		kind, ok := ParseJointKind(jr.Kind)
		if !ok {
			return nil, fmt.Errorf("assembly %s: joint %s: unknown kind %q", rec.ID, jr.ID, jr.Kind)
		}
		st, ok := stress.ParseState(jr.State)
		if !ok {
			return nil, fmt.Errorf("assembly %s: joint %s: unknown state %q", rec.ID, jr.ID, jr.State)
		}
		A, B := a.parts[PartID(jr.A)], a.parts[PartID(jr.B)]
		if A == nil || B == nil || A == B {
			return nil, fmt.Errorf("assembly %s: joint %s: bad endpoints %s-%s", rec.ID, jr.ID, jr.A, jr.B)
		}
		// Linked directly: Connect refuses destroyed endpoints, which a record may hold.
		c := &Connection{
			ID:   ConnID(jr.ID),
			Kind: kind,
			A:    A,
			B:    B,
			Limits: Limits{
				MaxForce:    jr.MaxForce,
				MaxTorque:   jr.MaxTorque,
				BreakForce:  jr.BreakForce,
				BreakTorque: jr.BreakTorque,
				CanBreak:    jr.CanBreak,
			},
			Motorized:     jr.Motorized,
			Mass:          jr.Mass,
			Cost:          jr.Cost,
			DriveSpeed:    jr.DriveSpeed,
			MaxHealth:     jr.MaxHealth,
			UnlockLevel:   jr.UnlockLevel,
			stress:        jr.Stress,
			state:         st,
			motorEnabled:  jr.MotorEnabled,
			motorVelocity: jr.MotorVelocity,
			th:            a.thresholds(),
			asm:           a,
		}
		if _, dup := a.conns[c.ID]; dup {
			return nil, fmt.Errorf("assembly %s: duplicate joint %s", rec.ID, jr.ID)
		}
		a.conns[c.ID] = c
		a.connOrder = append(a.connOrder, c.ID)
		A.addConn(c)
		B.addConn(c)
	}

	for _, w := range rec.Wires {
		if err := a.ApplyWire(w); err != nil {
			return nil, fmt.Errorf("assembly %s: wire: %w", rec.ID, err)
		}
	}

	a.RescanDrivetrain()
	a.active = rec.Active && !rec.Broken
	a.broken = rec.Broken
	a.brokenReason = rec.BrokenReason
	a.nextConn = rec.NextJoint
	a.RecomputeAggregateHealth()
	a.bus = bus
	return a, nil
}

func importPart(pr snapshot.PartV1, cats *catalogs.Catalogs) (*Part, error) {
	kind, ok := ParseKind(pr.Kind)
	if !ok {
		return nil, fmt.Errorf("part %s: unknown kind %q", pr.ID, pr.Kind)
	}

	var p *Part
	if pr.CatalogID != "" && cats != nil {
		def, ok := cats.Parts.Defs[pr.CatalogID]
		if !ok {
			return nil, fmt.Errorf("part %s: unknown catalog id %q", pr.ID, pr.CatalogID)
		}
		var err error
		if p, err = NewPart(PartID(pr.ID), def, cats.Materials); err != nil {
			return nil, err
		}
		if p.Kind != kind {
			return nil, fmt.Errorf("part %s: kind %s does not match catalog %s", pr.ID, kind, p.Kind)
		}
	} else {
		mult := 1.0
		if cats != nil {
			mult = cats.Materials.DamageMultiplier(pr.Material)
		}
		p = NewBasePart(PartID(pr.ID), kind, pr.MaxHealth, mult)
		p.Material = pr.Material
		p.Mass = pr.Mass
	}

	p.Pose = Pose{Pos: Vec3FromArray(pr.Pos), Yaw: pr.Yaw}
	p.setHealth(pr.Health)

	if s := pr.Motor; s != nil && p.Motor != nil {
		m := p.Motor
		m.SetFuel(s.Fuel)
		m.temperature = s.Temperature
		m.overheating = s.Overheating
		m.running = s.Running && m.fuel > 0 && !m.overheating && !p.destroyed
		if m.running {
			m.throttle = mathx.Clamp01(s.Throttle)
		}
	}
	if s := pr.Wheel; s != nil && p.Wheel != nil {
		w := p.Wheel
		w.torque = mathx.Clamp(s.Torque, -w.TorqueCapacity, w.TorqueCapacity)
		if w.Steering {
			w.steer = mathx.Clamp(s.Steer, -w.MaxSteerDeg, w.MaxSteerDeg)
		}
	}
	if s := pr.Sensor; s != nil && p.Sensor != nil {
		p.Sensor.value = mathx.Clamp(s.Value, p.Sensor.Min, p.Sensor.Max)
		p.Sensor.triggered = s.Triggered
		p.Sensor.elapsed = math.Max(s.Elapsed, 0)
	}
	if s := pr.Gate; s != nil && p.Gate != nil {
		p.Gate.result.On = s.On
		p.Gate.result.Value = s.Value
		p.Gate.timer.Phase = s.TimerPhase
		p.Gate.elapsed = math.Max(s.Elapsed, 0)
	}
	if s := pr.Seat; s != nil && p.Seat != nil && s.Occupied {
		p.Seat.occupied = true
		p.Seat.throttle = mathx.Clamp01(s.Throttle)
		p.Seat.steer = mathx.Clamp(s.Steer, -1, 1)
	}
	if s := pr.Cylinder; s != nil && p.Cylinder != nil {
		p.Cylinder.setExtension(s.Extension)
		if s.Extended {
			p.Cylinder.target = p.Cylinder.Stroke
		}
	}
	if s := pr.Tool; s != nil && p.Tool != nil {
		p.Tool.active = s.Active && !p.destroyed
	}
	return p, nil
}

// ApplyWire connects one gate slot. Output wires may target a motorized joint.
func (a *Assembly) ApplyWire(w snapshot.WireV1) error {
	gp := a.parts[PartID(w.Gate)]
	if gp == nil || gp.Gate == nil {
		return fmt.Errorf("%s is not a gate", w.Gate)
	}
	switch w.Dir {
	case "in":
		src := a.SignalSourceOf(PartID(w.Target))
		if src == nil || !gp.Gate.SetInput(w.Slot, src) {
			return fmt.Errorf("%s in[%d] <- %s", w.Gate, w.Slot, w.Target)
		}
	case "out":
		var act Actuator
		if w.Joint {
			if c := a.conns[ConnID(w.Target)]; c != nil {
				act = c
			}
		} else {
			act = a.ActuatorOf(PartID(w.Target))
		}
		if act == nil || !gp.Gate.SetOutput(w.Slot, act) {
			return fmt.Errorf("%s out[%d] -> %s", w.Gate, w.Slot, w.Target)
		}
	default:
		return fmt.Errorf("bad direction %q", w.Dir)
	}
	return nil
}

// SignalSourceOf returns the signal source behind a part: sensor, seat or gate.
func (a *Assembly) SignalSourceOf(id PartID) SignalSource {
	p := a.parts[id]
	switch {
	case p == nil:
		return nil
	case p.Sensor != nil:
		return p.Sensor
	case p.Seat != nil:
		return p.Seat
	case p.Gate != nil:
		return p.Gate
	}
	return nil
}

// ActuatorOf returns the actuator behind a part: motor, cylinder or tool.
func (a *Assembly) ActuatorOf(id PartID) Actuator {
	p := a.parts[id]
	switch {
	case p == nil:
		return nil
	case p.Motor != nil:
		return p.Motor
	case p.Cylinder != nil:
		return p.Cylinder
	case p.Tool != nil:
		return p.Tool
	}
	return nil
}

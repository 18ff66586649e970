package world

import (
	"fmt"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/machine/logic/mathx"
)

func reject(code, format string, args ...any) Result {
	return Result{Code: code, Message: fmt.Sprintf(format, args...)}
}

// apply executes one command against the hosted machines. Commands never panic and never
// fail the tick; refusals come back as a Result code.
func (w *World) apply(cmd protocol.Command) Result {
	if !protocol.IsCommandKind(cmd.Kind) {
		return reject(protocol.ErrBadRequest, "unknown command kind %q", cmd.Kind)
	}
	a := w.asms[cmd.Assembly]
	if a == nil {
		return reject(protocol.ErrUnknownAssembly, "%v: %s", ErrUnknownAssembly, cmd.Assembly)
	}

	switch cmd.Kind {
	case protocol.CmdActivate:
		if !a.Activate() {
			return reject(protocol.ErrBroken, "%s is broken", a.ID)
		}
	case protocol.CmdDeactivate:
		a.Deactivate()
	case protocol.CmdRepair:
		a.Repair()
	case protocol.CmdReportFatal:
		a.ReportFatal(cmd.Reason)

	case protocol.CmdIgnition:
		if cmd.On && a.IsBroken() {
			return reject(protocol.ErrBroken, "%s is broken", a.ID)
		}
		if cmd.On && !a.IsActive() {
			return reject(protocol.ErrRejected, "%s is not active", a.ID)
		}
		if a.Ignition(cmd.On) == 0 && cmd.On && !anyRunning(a) {
			return reject(protocol.ErrRejected, "no motor could start")
		}
	case protocol.CmdThrottle, protocol.CmdSteer:
		if !a.IsActive() {
			return reject(protocol.ErrRejected, "%s is not active", a.ID)
		}
		in := w.inputs[a.ID]
		if cmd.Kind == protocol.CmdThrottle {
			in.throttle = mathx.Clamp(cmd.Value, 0, 1)
		} else {
			in.steer = mathx.Clamp(cmd.Value, -1, 1)
		}
		w.inputs[a.ID] = in
		a.Drive(in.throttle, in.steer)
	case protocol.CmdRefuel:
		if !(cmd.Value > 0) {
			return reject(protocol.ErrBadRequest, "refuel amount must be positive")
		}
		if cmd.Part == "" {
			for _, m := range a.Motors() {
				m.Refuel(cmd.Value)
			}
			return Result{}
		}
		p := a.Part(machine.PartID(cmd.Part))
		if p == nil || p.Motor == nil {
			return reject(protocol.ErrInvalidTarget, "%s is not a motor", cmd.Part)
		}
		p.Motor.Refuel(cmd.Value)

	case protocol.CmdDamage, protocol.CmdRepairPart:
		p := a.Part(machine.PartID(cmd.Part))
		if p == nil {
			return reject(protocol.ErrInvalidTarget, "no part %s", cmd.Part)
		}
		if !(cmd.Value > 0) {
			return reject(protocol.ErrBadRequest, "amount must be positive")
		}
		if cmd.Kind == protocol.CmdDamage {
			p.TakeDamage(cmd.Value)
		} else if p.Destroyed() {
			return reject(protocol.ErrRejected, "%s is destroyed; use REPAIR", cmd.Part)
		} else {
			p.Repair(cmd.Value)
		}
	case protocol.CmdRemovePart:
		if !a.RemovePart(machine.PartID(cmd.Part)) {
			return reject(protocol.ErrInvalidTarget, "no part %s", cmd.Part)
		}
	case protocol.CmdTool:
		p := a.Part(machine.PartID(cmd.Part))
		if p == nil || p.Tool == nil {
			return reject(protocol.ErrInvalidTarget, "%s is not a tool", cmd.Part)
		}
		if !cmd.On {
			p.Tool.Deactivate()
		} else if !p.Tool.Activate() {
			return reject(protocol.ErrRejected, "%s cannot run", cmd.Part)
		}
	case protocol.CmdCylinder:
		p := a.Part(machine.PartID(cmd.Part))
		if p == nil || p.Cylinder == nil {
			return reject(protocol.ErrInvalidTarget, "%s is not a cylinder", cmd.Part)
		}
		if cmd.On {
			p.Cylinder.Extend()
		} else {
			p.Cylinder.Retract()
		}

	case protocol.CmdConnect:
		kind, ok := machine.ParseJointKind(cmd.JointKind)
		if !ok {
			return reject(protocol.ErrBadRequest, "unknown joint kind %q", cmd.JointKind)
		}
		spec, err := machine.JointSpecFor(w.cats.Joints, kind)
		if err != nil {
			return reject(protocol.ErrBadRequest, "%v", err)
		}
		if _, ok := a.Connect(machine.ConnID(cmd.Joint), machine.PartID(cmd.Part), machine.PartID(cmd.PartB), spec); !ok {
			return reject(protocol.ErrInvalidTarget, "cannot join %s and %s", cmd.Part, cmd.PartB)
		}
	case protocol.CmdDisconnect:
		if !a.Disconnect(machine.ConnID(cmd.Joint)) {
			return reject(protocol.ErrInvalidTarget, "no joint %s", cmd.Joint)
		}
	case protocol.CmdJointMotor:
		c := a.Connection(machine.ConnID(cmd.Joint))
		if c == nil {
			return reject(protocol.ErrInvalidTarget, "no joint %s", cmd.Joint)
		}
		if !c.ToggleMotor(cmd.On) {
			return reject(protocol.ErrRejected, "joint %s has no usable motor", cmd.Joint)
		}
		if cmd.On {
			c.SetMotorVelocity(cmd.Value)
		}
	case protocol.CmdSetLoad:
		if a.Connection(machine.ConnID(cmd.Joint)) == nil {
			return reject(protocol.ErrInvalidTarget, "no joint %s", cmd.Joint)
		}
		w.phys.SetLoad(a.ID, machine.ConnID(cmd.Joint), cmd.Force, cmd.Torque)
	}
	return Result{}
}

func anyRunning(a *machine.Assembly) bool {
	for _, m := range a.Motors() {
		if m.Running() {
			return true
		}
	}
	return false
}

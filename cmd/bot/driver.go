package main

import (
	"github.com/google/uuid"

	"rigsim.ai/internal/protocol"
)

// driver keeps one machine running from telemetry alone: repair when broken, activate,
// refuel below a threshold, restart stopped engines and weave the steering.
type driver struct {
	assembly    string
	refuelBelow float64
	refuelBy    float64
	throttle    float64
	weaveEvery  uint64
	cooldown    uint64

	lastSent map[string]uint64
	steer    float64
}

func newDriver(assembly string) *driver {
	return &driver{
		assembly:    assembly,
		refuelBelow: 10,
		refuelBy:    25,
		throttle:    0.6,
		weaveEvery:  100,
		cooldown:    20,
		lastSent:    map[string]uint64{},
		steer:       0.5,
	}
}

// next returns the commands to send after one telemetry frame.
func (d *driver) next(tick uint64, asms []protocol.AssemblyObs) []protocol.Command {
	var a *protocol.AssemblyObs
	for i := range asms {
		if asms[i].ID == d.assembly {
			a = &asms[i]
			break
		}
	}
	if a == nil {
		return nil
	}

	var out []protocol.Command
	add := func(c protocol.Command) {
		if last, ok := d.lastSent[c.Kind]; ok && tick < last+d.cooldown {
			return
		}
		d.lastSent[c.Kind] = tick
		c.ID = uuid.NewString()
		c.Assembly = d.assembly
		out = append(out, c)
	}

	if a.Broken {
		add(protocol.Command{Kind: protocol.CmdRepair})
		return out
	}
	if !a.Active {
		add(protocol.Command{Kind: protocol.CmdActivate})
		return out
	}

	running, startable := false, false
	for _, m := range a.Motors {
		if m.Fuel < d.refuelBelow {
			add(protocol.Command{Kind: protocol.CmdRefuel, Part: m.Part, Value: d.refuelBy})
		}
		if m.Running {
			running = true
		} else if !m.Overheating && m.Fuel > 0 {
			startable = true
		}
	}
	if !running && startable {
		add(protocol.Command{Kind: protocol.CmdIgnition, On: true})
		add(protocol.Command{Kind: protocol.CmdThrottle, Value: d.throttle})
	}
	if running && d.weaveEvery > 0 && tick%d.weaveEvery == 0 {
		d.steer = -d.steer
		add(protocol.Command{Kind: protocol.CmdSteer, Value: d.steer})
	}
	return out
}

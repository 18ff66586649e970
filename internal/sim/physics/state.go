package physics

import (
	"encoding/binary"
	"hash"
	"math"
	"sort"
	"strings"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/machine"
)

// Export captures bodies, wheel state, scripted loads and obstacles. Wheel and load ids
// are qualified as "<assembly>/<id>".
func (w *World) Export() snapshot.PhysicsV1 {
	out := snapshot.PhysicsV1{
		Ambient: snapshot.AmbientV1{Temperature: w.cfg.Ambient.Temperature, Light: w.cfg.Ambient.Light},
	}
	for _, id := range w.order {
		b := w.bodies[id]
		out.Bodies = append(out.Bodies, snapshot.BodyV1{ID: id, Pos: b.pos.ToArray(), Yaw: b.yaw, Speed: b.speed, Fallen: b.fallen})
		for _, pid := range sortedKeys(b.wheels) {
			st := b.wheels[machine.PartID(pid)]
			out.Wheels = append(out.Wheels, snapshot.WheelV1{ID: id + "/" + pid, RPM: st.rpm, Torque: st.torque, Steer: st.steer})
		}
		for _, cid := range sortedKeys(b.loads) {
			l := b.loads[machine.ConnID(cid)]
			out.Loads = append(out.Loads, snapshot.LoadV1{Joint: id + "/" + cid, Force: l.force, Torque: l.torque})
		}
	}
	for _, o := range w.obstacles {
		out.Obstacles = append(out.Obstacles, snapshot.ObstacleV1{
			ID:     o.ID,
			Pos:    o.Pos.ToArray(),
			Radius: o.Radius,
			Vel:    o.Velocity.ToArray(),
			Mass:   o.Mass,
		})
	}
	return out
}

// Restore applies exported state to bodies already attached. Entries for machines that
// are not attached are ignored.
func (w *World) Restore(s snapshot.PhysicsV1) {
	w.cfg.Ambient = machine.Ambient{Temperature: s.Ambient.Temperature, Light: s.Ambient.Light}
	for _, bs := range s.Bodies {
		if b, ok := w.bodies[bs.ID]; ok {
			b.pos = machine.Vec3FromArray(bs.Pos)
			b.yaw = bs.Yaw
			b.speed = bs.Speed
			b.fallen = bs.Fallen
		}
	}
	for _, ws := range s.Wheels {
		asm, pid, ok := strings.Cut(ws.ID, "/")
		if b, found := w.bodies[asm]; ok && found {
			b.wheels[machine.PartID(pid)] = &wheelState{torque: ws.Torque, rpm: ws.RPM, steer: ws.Steer}
		}
	}
	for _, ls := range s.Loads {
		asm, cid, ok := strings.Cut(ls.Joint, "/")
		if b, found := w.bodies[asm]; ok && found {
			b.loads[machine.ConnID(cid)] = load{force: ls.Force, torque: ls.Torque}
		}
	}
	w.obstacles = w.obstacles[:0]
	for _, o := range s.Obstacles {
		w.AddObstacle(Obstacle{ID: o.ID, Pos: machine.Vec3FromArray(o.Pos), Radius: o.Radius, Velocity: machine.Vec3FromArray(o.Vel), Mass: o.Mass})
	}
}

// WriteDigest feeds body kinematics and wheel state into h in a fixed order.
func (w *World) WriteDigest(h hash.Hash) {
	var tmp [8]byte
	f := func(v float64) {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		h.Write(tmp[:])
	}
	for _, id := range w.order {
		b := w.bodies[id]
		h.Write([]byte(id))
		f(b.pos.X)
		f(b.pos.Y)
		f(b.pos.Z)
		f(b.yaw)
		f(b.speed)
		for _, pid := range sortedKeys(b.wheels) {
			st := b.wheels[machine.PartID(pid)]
			h.Write([]byte(pid))
			f(st.rpm)
			f(st.torque)
		}
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

package machine

import (
	"encoding/binary"
	"hash"
	"math"
)

// WriteDigest feeds the machine's simulation state into h in a fixed order. Two
// machines with equal digests behave identically on the next tick.
func (a *Assembly) WriteDigest(h hash.Hash) {
	var tmp [8]byte
	writeStr(h, &tmp, a.ID)
	writeBool(h, a.active)
	writeBool(h, a.broken)
	writeStr(h, &tmp, a.brokenReason)

	writeU64(h, &tmp, uint64(len(a.order)))
	for _, id := range a.order {
		p := a.parts[id]
		writeStr(h, &tmp, string(p.ID))
		h.Write([]byte{byte(p.Kind)})
		writeF64(h, &tmp, p.health)
		writeBool(h, p.destroyed)
		switch {
		case p.Motor != nil:
			m := p.Motor
			writeF64(h, &tmp, m.fuel)
			writeF64(h, &tmp, m.temperature)
			writeF64(h, &tmp, m.throttle)
			writeBool(h, m.running)
			writeBool(h, m.overheating)
			writeU64(h, &tmp, uint64(len(m.liveWheels())))
		case p.Wheel != nil:
			writeF64(h, &tmp, p.Wheel.torque)
			writeF64(h, &tmp, p.Wheel.steer)
		case p.Sensor != nil:
			writeF64(h, &tmp, p.Sensor.value)
			writeBool(h, p.Sensor.triggered)
			writeF64(h, &tmp, p.Sensor.elapsed)
		case p.Gate != nil:
			writeBool(h, p.Gate.result.On)
			writeF64(h, &tmp, p.Gate.result.Value)
			writeF64(h, &tmp, p.Gate.timer.Phase)
			writeF64(h, &tmp, p.Gate.elapsed)
		case p.Cylinder != nil:
			writeF64(h, &tmp, p.Cylinder.extension)
			writeF64(h, &tmp, p.Cylinder.target)
		case p.Tool != nil:
			writeBool(h, p.Tool.active)
		case p.Seat != nil:
			writeBool(h, p.Seat.occupied)
			writeF64(h, &tmp, p.Seat.throttle)
			writeF64(h, &tmp, p.Seat.steer)
		}
	}

	writeU64(h, &tmp, uint64(len(a.connOrder)))
	for _, id := range a.connOrder {
		c := a.conns[id]
		writeStr(h, &tmp, string(c.ID))
		h.Write([]byte{byte(c.state)})
		writeF64(h, &tmp, c.stress)
		writeBool(h, c.motorEnabled)
		writeF64(h, &tmp, c.motorVelocity)
	}
}

func writeU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF64(h hash.Hash, tmp *[8]byte, v float64) {
	writeU64(h, tmp, math.Float64bits(v))
}

func writeStr(h hash.Hash, tmp *[8]byte, s string) {
	writeU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}

func writeBool(h hash.Hash, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

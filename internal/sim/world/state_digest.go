package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// stateDigest hashes everything that determines the next tick: every machine in id
// order, the driver inputs and the physics bodies.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}

	put(nowTick)
	put(uint64(len(w.order)))
	for _, id := range w.order {
		w.asms[id].WriteDigest(h)
		in := w.inputs[id]
		put(math.Float64bits(in.throttle))
		put(math.Float64bits(in.steer))
	}
	w.phys.WriteDigest(h)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest is the state digest at the current tick. Loop goroutine only.
func (w *World) Digest() string { return w.stateDigest(w.tick.Load()) }

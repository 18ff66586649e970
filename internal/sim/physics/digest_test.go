package physics

import (
	"crypto/sha256"
	"encoding/hex"
)

func digestOf(w *World) string {
	h := sha256.New()
	w.WriteDigest(h)
	return hex.EncodeToString(h.Sum(nil))
}

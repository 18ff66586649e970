package worldtest

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/tuning"
	world "rigsim.ai/internal/sim/world"
)

// ConfigDir is the repository configs directory, relative to this package.
const ConfigDir = "../../../configs"

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Spawn()/Despawn() go through StepOnce() so they land in the tick log
// - Step()/StepN() apply commands and return the recorded tick entry
// - Events() returns everything the machines published so far
// - SaveSnapshot()/Resume() round-trip through the on-disk snapshot format
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	tun     tuning.Tuning
	entries []world.TickLogEntry
	events  []machine.Event
}

func NewHarness(t *testing.T, tun tuning.Tuning) *Harness {
	t.Helper()
	cats, err := catalogs.Load(ConfigDir)
	if err != nil {
		t.Fatalf("catalogs.Load: %v", err)
	}
	w, err := world.New(world.Config{ID: "worldtest", Tuning: tun}, cats, zerolog.Nop())
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return newHarnessWithWorld(t, w, cats, tun)
}

func newHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, tun tuning.Tuning) *Harness {
	h := &Harness{T: t, Cats: cats, W: w, tun: tun}
	w.SetTickLogger(h)
	w.SetEventLogger(h)
	return h
}

func (h *Harness) WriteTick(e world.TickLogEntry) error {
	h.entries = append(h.entries, e)
	return nil
}

func (h *Harness) WriteEvent(ev machine.Event) error {
	h.events = append(h.events, ev)
	return nil
}

// Blueprint loads a file from configs/blueprints.
func (h *Harness) Blueprint(name string) *blueprint.Blueprint {
	h.T.Helper()
	bp, err := blueprint.Load(filepath.Join(ConfigDir, "blueprints", name))
	if err != nil {
		h.T.Fatalf("blueprint %s: %v", name, err)
	}
	return bp
}

// Spawn builds bp on the next tick and fails the test unless it was hosted.
func (h *Harness) Spawn(bp *blueprint.Blueprint, id string) *machine.Assembly {
	h.T.Helper()
	e := h.step(world.StepInput{Spawns: []world.RecordedSpawn{{ID: id, Blueprint: bp}}})
	if len(e.Spawns) != 1 {
		h.T.Fatalf("spawn %s was rejected", bp.ID)
	}
	a := h.W.Assembly(e.Spawns[0].ID)
	if a == nil {
		h.T.Fatalf("spawned %s is not hosted", e.Spawns[0].ID)
	}
	return a
}

func (h *Harness) Despawn(id string) {
	h.T.Helper()
	if e := h.step(world.StepInput{Despawns: []string{id}}); len(e.Despawns) != 1 {
		h.T.Fatalf("despawn %s was rejected", id)
	}
}

// Step applies cmds in one tick and returns what the tick log recorded for it.
func (h *Harness) Step(cmds ...protocol.Command) world.TickLogEntry {
	h.T.Helper()
	return h.step(world.StepInput{Commands: cmds})
}

// StepN advances n ticks with no input and returns the last digest.
func (h *Harness) StepN(n int) string {
	h.T.Helper()
	var d string
	for i := 0; i < n; i++ {
		d = h.step(world.StepInput{}).Digest
	}
	return d
}

// StepUntil advances at most max ticks until cond holds and reports whether it did.
func (h *Harness) StepUntil(max int, cond func() bool) bool {
	h.T.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return true
		}
		h.step(world.StepInput{})
	}
	return cond()
}

func (h *Harness) step(in world.StepInput) world.TickLogEntry {
	h.T.Helper()
	n := len(h.entries)
	tick, digest := h.W.StepOnce(in)
	if len(h.entries) != n+1 {
		h.T.Fatalf("tick %d wrote %d log entries", tick, len(h.entries)-n)
	}
	e := h.entries[n]
	if e.Tick != tick || e.Digest != digest {
		h.T.Fatalf("tick log entry %d/%s does not match step %d/%s", e.Tick, e.Digest, tick, digest)
	}
	return e
}

// Codes returns the rejection code of each command in e, "" for accepted ones.
func Codes(e world.TickLogEntry) []string {
	out := make([]string, len(e.Commands))
	for i, c := range e.Commands {
		out[i] = c.Code
	}
	return out
}

// Events returns the published events of one type, or all of them when typ is empty.
func (h *Harness) Events(typ machine.EventType) []machine.Event {
	var out []machine.Event
	for _, ev := range h.events {
		if typ == "" || ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Harness) ClearEvents() { h.events = nil }

func (h *Harness) Entries() []world.TickLogEntry { return h.entries }

// SaveSnapshot writes the state after the last executed tick to dir and returns the path.
func (h *Harness) SaveSnapshot(dir string) string {
	h.T.Helper()
	// Keep tick stable: export at currentTick-1 then import would restore to currentTick.
	cur := h.W.CurrentTick()
	if cur == 0 {
		h.T.Fatalf("SaveSnapshot before the first tick")
	}
	path := filepath.Join(snapshot.Dir(dir), snapshot.FileName(cur-1))
	if err := snapshot.WriteSnapshot(path, h.W.ExportSnapshot(cur-1)); err != nil {
		h.T.Fatalf("WriteSnapshot: %v", err)
	}
	return path
}

// Resume reads a snapshot written by SaveSnapshot into a fresh world with the same tuning.
func (h *Harness) Resume(path string) *Harness {
	h.T.Helper()
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		h.T.Fatalf("ReadSnapshot: %v", err)
	}
	w, err := world.New(world.Config{ID: snap.Header.WorldID, Tuning: h.tun}, h.Cats, zerolog.Nop())
	if err != nil {
		h.T.Fatalf("world.New: %v", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		h.T.Fatalf("ImportSnapshot: %v", err)
	}
	return newHarnessWithWorld(h.T, w, h.Cats, h.tun)
}

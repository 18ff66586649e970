package world

import (
	"fmt"
	"sort"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/physics"
)

// ExportSnapshot captures every machine and the physics state. Loop goroutine only.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			RunID:   w.runID,
			Tick:    nowTick,
		},
		TickRate:           w.cfg.Tuning.TickRateHz,
		SnapshotEveryTicks: w.cfg.Tuning.SnapshotEveryTicks,
		PartsDigest:        w.cats.Parts.Digest,
		JointsDigest:       w.cats.Joints.Digest,
		MaterialsDigest:    w.cats.Materials.Digest,
		Physics:            w.phys.Export(),
	}
	for _, id := range w.order {
		s.Assemblies = append(s.Assemblies, w.asms[id].Export())
		if in, ok := w.inputs[id]; ok {
			s.Inputs = append(s.Inputs, snapshot.InputV1{Assembly: id, Throttle: in.throttle, Steer: in.steer})
		}
	}
	return s
}

// ImportSnapshot replaces the hosted machines with the snapshot's. The world resumes at
// the tick after the snapshot. It must be called before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if s.PartsDigest != "" && w.cats.Parts.Digest != "" && s.PartsDigest != w.cats.Parts.Digest {
		w.log.Warn().Str("snapshot", s.PartsDigest).Str("loaded", w.cats.Parts.Digest).Msg("part catalog changed since snapshot")
	}

	asms := map[string]*machine.Assembly{}
	for _, rec := range s.Assemblies {
		a, err := machine.Import(rec, w.cats, w.machineOptions())
		if err != nil {
			return fmt.Errorf("snapshot tick %d: %w", s.Header.Tick, err)
		}
		if _, dup := asms[a.ID]; dup {
			return fmt.Errorf("snapshot tick %d: duplicate assembly %s", s.Header.Tick, a.ID)
		}
		asms[a.ID] = a
	}

	w.asms = asms
	w.order = w.order[:0]
	for id := range asms {
		w.order = append(w.order, id)
	}
	sort.Strings(w.order)
	w.phys = physics.New(physics.ConfigFromTuning(w.cfg.Tuning.Physics))
	for _, id := range w.order {
		w.phys.Attach(asms[id], machine.Pose{})
	}
	w.phys.Restore(s.Physics)

	w.inputs = map[string]driverInput{}
	for _, in := range s.Inputs {
		if _, ok := asms[in.Assembly]; ok {
			w.inputs[in.Assembly] = driverInput{throttle: in.Throttle, steer: in.Steer}
		}
	}
	w.tick.Store(s.Header.Tick + 1)
	w.publishRefs()
	w.log.Info().Uint64("tick", s.Header.Tick).Int("assemblies", len(w.order)).Msg("snapshot restored")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/indexdb"
	persistlog "rigsim.ai/internal/persistence/log"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
)

var errStop = errors.New("stop")

type replayOpts struct {
	WorldDir string
	// Snapshot to start from; the empty world at tick 0 when empty.
	Snapshot string
	FromTick uint64 // first tick whose digest is checked (default: first replayed)
	ToTick   uint64 // last tick replayed, 0 for the whole log
	// Index, when set, is cross-checked against the recorded digests.
	Index *indexdb.Reader
}

type replayReport struct {
	Start        uint64
	Last         uint64
	Stepped      uint64
	Checked      uint64
	IndexChecked uint64
	Commands     uint64
	Rejected     uint64
}

// openWorld builds the world a replay steps: restored from a snapshot, or empty.
func openWorld(cats *catalogs.Catalogs, tune tuning.Tuning, snapPath string, log zerolog.Logger) (*world.World, error) {
	if snapPath == "" {
		return world.New(world.Config{ID: "replay", Tuning: tune}, cats, log)
	}
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, err
	}
	// The tick length must match the recording, whatever the local tuning says.
	if snap.TickRate > 0 {
		tune.TickRateHz = snap.TickRate
	}
	w, err := world.New(world.Config{ID: snap.Header.WorldID, Tuning: tune}, cats, log)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, err
	}
	return w, nil
}

// replay re-steps w through the tick log under opts.WorldDir and compares every state
// digest with the recorded one.
func replay(ctx context.Context, w *world.World, opts replayOpts) (replayReport, error) {
	rep := replayReport{Start: w.CurrentTick()}
	verifyFrom := opts.FromTick
	if verifyFrom < rep.Start {
		verifyFrom = rep.Start
	}

	err := persistlog.ReadTicks(opts.WorldDir, func(e world.TickLogEntry) error {
		if e.Tick < rep.Start {
			return nil
		}
		if opts.ToTick != 0 && e.Tick > opts.ToTick {
			return errStop
		}
		if e.Tick < w.CurrentTick() {
			// The server restarted from an older snapshot and logged these ticks again.
			return fmt.Errorf("tick log rewinds to %d after %d; replay from the snapshot the server resumed from", e.Tick, w.CurrentTick()-1)
		}
		if e.Tick != w.CurrentTick() {
			return fmt.Errorf("tick log gap: want tick %d, log has %d", w.CurrentTick(), e.Tick)
		}

		in := world.StepInput{Spawns: e.Spawns, Despawns: e.Despawns}
		for _, rc := range e.Commands {
			in.Commands = append(in.Commands, rc.Cmd)
			rep.Commands++
			if rc.Code != "" {
				rep.Rejected++
			}
		}
		tick, digest := w.StepOnce(in)
		if tick != e.Tick {
			return fmt.Errorf("stepped tick %d for log tick %d", tick, e.Tick)
		}
		rep.Stepped++
		rep.Last = tick
		if tick < verifyFrom {
			return nil
		}
		rep.Checked++
		if digest != e.Digest {
			return fmt.Errorf("digest mismatch at tick %d: replayed=%s recorded=%s", tick, digest, e.Digest)
		}
		if opts.Index != nil {
			idxDigest, ok, err := opts.Index.TickDigest(ctx, tick)
			if err != nil {
				return fmt.Errorf("index tick %d: %w", tick, err)
			}
			if ok {
				rep.IndexChecked++
				if idxDigest != e.Digest {
					return fmt.Errorf("index digest at tick %d is %s, log has %s", tick, idxDigest, e.Digest)
				}
			}
		}
		return ctx.Err()
	})
	if err != nil && !errors.Is(err, errStop) {
		return rep, err
	}
	if rep.Stepped == 0 {
		return rep, fmt.Errorf("no ticks from %d in %s", rep.Start, persistlog.TickDir(opts.WorldDir))
	}
	return rep, nil
}

type eventSummary struct {
	Total      uint64
	First      uint64
	Last       uint64
	ByType     map[string]uint64
	ByAssembly map[string]uint64
}

func summarizeEvents(worldDir string) (eventSummary, error) {
	s := eventSummary{ByType: map[string]uint64{}, ByAssembly: map[string]uint64{}}
	err := persistlog.ReadEvents(worldDir, func(ev protocol.EventObs) error {
		if s.Total == 0 || ev.Tick < s.First {
			s.First = ev.Tick
		}
		if ev.Tick > s.Last {
			s.Last = ev.Tick
		}
		s.Total++
		s.ByType[ev.Type]++
		if ev.Assembly != "" {
			s.ByAssembly[ev.Assembly]++
		}
		return nil
	})
	return s, err
}

func sortedKeys(m map[string]uint64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/indexdb"
	persistlog "rigsim.ai/internal/persistence/log"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
)

const (
	recordTicks = 60
	snapTick    = 20
)

func commandsAt(tick uint64) []protocol.Command {
	switch tick {
	case 1:
		return []protocol.Command{
			{Kind: protocol.CmdIgnition, Assembly: "buggy", On: true},
			{Kind: protocol.CmdThrottle, Assembly: "buggy", Value: 0.7},
			{Kind: protocol.CmdRepair, Assembly: "ghost"},
		}
	case 12:
		return []protocol.Command{{Kind: protocol.CmdSteer, Assembly: "buggy", Value: 0.4}}
	case 30:
		return []protocol.Command{{Kind: protocol.CmdDamage, Assembly: "sentry", Part: "eye", Value: 25}}
	}
	return nil
}

// record runs a world for recordTicks ticks through the real tick logger and sqlite
// index, and writes one snapshot. It returns the world dir and the snapshot path.
func record(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatal(err)
	}
	library, err := blueprint.LoadDir("../../configs/blueprints")
	if err != nil {
		t.Fatal(err)
	}
	w, err := world.New(world.Config{ID: "w1", Tuning: tuning.Defaults()}, cats, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	tl := persistlog.NewTickLogger(dir)
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "world.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	w.SetTickLogger(persistlog.TeeTicks(tl, idx))

	var spawns []world.RecordedSpawn
	for _, bp := range library {
		spawns = append(spawns, world.RecordedSpawn{ID: bp.ID, Blueprint: bp})
	}
	snapPath := filepath.Join(snapshot.Dir(dir), snapshot.FileName(snapTick))
	for tick := uint64(0); tick < recordTicks; tick++ {
		in := world.StepInput{Commands: commandsAt(tick)}
		if tick == 0 {
			in.Spawns = spawns
		}
		got, _ := w.StepOnce(in)
		if got == snapTick {
			if err := snapshot.WriteSnapshot(snapPath, w.ExportSnapshot(snapTick)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tl.Close(); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	return dir, snapPath
}

func newReplayWorld(t *testing.T, snap string) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatal(err)
	}
	w, err := openWorld(cats, tuning.Defaults(), snap, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestReplay_FromEmptyWorldMatchesEveryDigest(t *testing.T) {
	dir, _ := record(t)
	r, err := indexdb.OpenReader(filepath.Join(dir, "index", "world.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	rep, err := replay(context.Background(), newReplayWorld(t, ""), replayOpts{WorldDir: dir, Index: r})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rep.Start != 0 || rep.Last != recordTicks-1 || rep.Checked != recordTicks {
		t.Fatalf("report %+v", rep)
	}
	if rep.IndexChecked != recordTicks {
		t.Fatalf("index checked %d ticks, want %d", rep.IndexChecked, recordTicks)
	}
	if rep.Commands != 5 || rep.Rejected != 1 {
		t.Fatalf("commands %d rejected %d", rep.Commands, rep.Rejected)
	}
}

func TestReplay_FromSnapshotResumesAfterItsTick(t *testing.T) {
	dir, snap := record(t)
	rep, err := replay(context.Background(), newReplayWorld(t, snap), replayOpts{WorldDir: dir, FromTick: 40, ToTick: 50})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rep.Start != snapTick+1 || rep.Last != 50 {
		t.Fatalf("range %d..%d", rep.Start, rep.Last)
	}
	if rep.Stepped != 50-snapTick || rep.Checked != 11 {
		t.Fatalf("stepped %d checked %d", rep.Stepped, rep.Checked)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	dir, _ := record(t)
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatal(err)
	}
	tun := tuning.Defaults()
	tun.Motor.HeatRate *= 3
	w, err := openWorld(cats, tun, "", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = replay(context.Background(), w, replayOpts{WorldDir: dir})
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestReplay_EmptyLog(t *testing.T) {
	if _, err := replay(context.Background(), newReplayWorld(t, ""), replayOpts{WorldDir: t.TempDir()}); err == nil {
		t.Fatalf("expected an error for a world without ticks")
	}
}

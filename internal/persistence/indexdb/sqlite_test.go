package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/physics"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
)

func openIndex(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return idx, path
}

func openReader(t *testing.T, path string) *Reader {
	t.Helper()
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteIndex_TicksEventsAndSnapshots(t *testing.T) {
	idx, path := openIndex(t)

	entries := []world.TickLogEntry{
		{
			Tick:   10,
			Digest: "d10",
			Commands: []world.RecordedCommand{
				{Cmd: protocol.Command{Kind: protocol.CmdIgnition, Assembly: "buggy", On: true}},
				{Cmd: protocol.Command{Kind: protocol.CmdRepair, Assembly: "ghost"}, Code: protocol.ErrUnknownAssembly},
			},
		},
		{
			Tick:   11,
			Digest: "d11",
			Fatal:  []physics.Fatal{{AssemblyID: "buggy", Reason: "fell_out_of_world"}},
		},
	}
	for _, e := range entries {
		if err := idx.WriteTick(e); err != nil {
			t.Fatal(err)
		}
	}
	events := []machine.Event{
		{Tick: 10, Type: machine.EventEngineStarted, AssemblyID: "buggy", PartID: "engine"},
		{Tick: 11, Type: machine.EventConnectionBroken, AssemblyID: "buggy", ConnectionID: "axle_rl", Reason: "overload", Value: 1.1},
		{Tick: 11, Type: machine.EventAssemblyBroken, AssemblyID: "buggy", Reason: "fell_out_of_world"},
	}
	for _, ev := range events {
		if err := idx.WriteEvent(ev); err != nil {
			t.Fatal(err)
		}
	}

	snapPath := filepath.Join(t.TempDir(), "11.snap.zst")
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: "w1", RunID: "run", Tick: 11},
		Assemblies: []snapshot.AssemblyV1{
			{ID: "buggy", Parts: []snapshot.PartV1{{ID: "a"}, {ID: "b"}}, Joints: []snapshot.JointV1{{ID: "j"}}},
			{ID: "sentry", Parts: []snapshot.PartV1{{ID: "c"}}},
		},
	}
	if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
		t.Fatal(err)
	}
	idx.RecordSnapshot(snapPath, snap)

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if idx.Dropped() != 0 {
		t.Fatalf("dropped %d rows", idx.Dropped())
	}

	r := openReader(t, path)
	ctx := context.Background()

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := Stats{FirstTick: 10, LastTick: 11, Ticks: 2, Commands: 2, Rejected: 1, Events: 3, Losses: 1, Snapshots: 1}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Fatalf("stats (-want +got):\n%s", diff)
	}

	rejected, err := r.Commands(ctx, "", true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rejected) != 1 || rejected[0].Assembly != "ghost" || rejected[0].Code != protocol.ErrUnknownAssembly || rejected[0].Seq != 1 {
		t.Fatalf("rejected commands %+v", rejected)
	}

	broken, err := r.Events(ctx, "buggy", string(machine.EventConnectionBroken), 0)
	if err != nil {
		t.Fatal(err)
	}
	wantEv := []EventRow{{Tick: 11, Seq: 0, Type: "CONNECTION_BROKEN", Assembly: "buggy", Joint: "axle_rl", Reason: "overload", Value: 1.1}}
	if diff := cmp.Diff(wantEv, broken); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	all, err := r.Events(ctx, "", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].Type != "ASSEMBLY_BROKEN" {
		t.Fatalf("newest events first, got %+v", all)
	}

	losses, err := r.Losses(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]LossRow{{Tick: 11, Assembly: "buggy", Reason: "fell_out_of_world"}}, losses); diff != "" {
		t.Fatalf("losses (-want +got):\n%s", diff)
	}

	latest, ok, err := r.LatestSnapshot(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.Tick != 11 || latest.Assemblies != 2 || latest.Parts != 3 || latest.Joints != 1 || latest.Bytes <= 0 || latest.RunID != "run" {
		t.Fatalf("snapshot row %+v", latest)
	}

	d, ok, err := r.TickDigest(ctx, 10)
	if err != nil || !ok || d != "d10" {
		t.Fatalf("digest %q ok=%v err=%v", d, ok, err)
	}
	if _, ok, _ := r.TickDigest(ctx, 99); ok {
		t.Fatalf("unexpected digest for unknown tick")
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx, path := openIndex(t)
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Idempotent.
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	rows, err := openReader(t, path).Catalogs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
		if r.Name == "parts" && r.Digest != cats.Parts.Digest {
			t.Fatalf("parts digest %s, want %s", r.Digest, cats.Parts.Digest)
		}
	}
	if diff := cmp.Diff([]string{"joints", "materials", "parts", "parts_palette", "tuning"}, names); diff != "" {
		t.Fatalf("catalog rows (-want +got):\n%s", diff)
	}
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx, _ := openIndex(t)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatal(err)
	}
	if err := idx.WriteEvent(machine.Event{Tick: 1}); err != nil {
		t.Fatal(err)
	}
	idx.RecordSnapshot("missing", snapshot.SnapshotV1{})
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	var nilIdx *SQLiteIndex
	if err := nilIdx.WriteTick(world.TickLogEntry{}); err != nil {
		t.Fatal(err)
	}
}

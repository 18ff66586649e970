package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/archive"
	"rigsim.ai/internal/persistence/indexdb"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
)

func TestSnapshotWriter_ArchivesAndPrunes(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatal(err)
	}
	bp, err := blueprint.Load("../../configs/blueprints/buggy.json")
	if err != nil {
		t.Fatal(err)
	}
	w, err := world.New(world.Config{ID: "w1", Tuning: tuning.Defaults()}, cats, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	w.StepOnce(world.StepInput{Spawns: []world.RecordedSpawn{{ID: "buggy", Blueprint: bp}}})

	worldDir := t.TempDir()
	idx, err := indexdb.OpenSQLite(IndexPath(worldDir))
	if err != nil {
		t.Fatal(err)
	}
	sw := &snapshotWriter{worldDir: worldDir, archiveEvery: 200, keep: 2, index: idx, log: zerolog.Nop()}
	for _, tick := range []uint64{50, 100, 150, 200, 250} {
		if _, err := sw.write(w.ExportSnapshot(tick)); err != nil {
			t.Fatalf("write %d: %v", tick, err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	ents, err := os.ReadDir(snapshot.Dir(worldDir))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range ents {
		names = append(names, e.Name())
	}
	if len(names) != 2 || names[0] != "200.snap.zst" || names[1] != "250.snap.zst" {
		t.Fatalf("rolling snapshots %v", names)
	}

	archived := filepath.Join(archive.Dir(worldDir), "epoch_001", "200.snap.zst")
	snap, err := snapshot.ReadSnapshot(archived)
	if err != nil {
		t.Fatalf("archived snapshot: %v", err)
	}
	if snap.Header.Tick != 200 || len(snap.Assemblies) != 1 {
		t.Fatalf("archived header %+v with %d assemblies", snap.Header, len(snap.Assemblies))
	}

	r, err := indexdb.OpenReader(IndexPath(worldDir))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	rows, err := r.Snapshots(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("indexed %d snapshots, want every write", len(rows))
	}
}

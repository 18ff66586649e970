package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rigsim.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveSnapshot_CopiesEpochEndSnapshot(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")
	src := filepath.Join(snapshot.Dir(worldDir), snapshot.FileName(2400))
	writeDummy(t, src, "dummy")

	snap := snapshot.SnapshotV1{
		Header:     snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: 2400},
		Assemblies: make([]snapshot.AssemblyV1, 2),
	}
	epoch, archivedPath, ok, err := ArchiveSnapshot(worldDir, src, snap, 1200)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !ok || epoch != 2 {
		t.Fatalf("archived=%v epoch=%d", ok, epoch)
	}
	if filepath.Dir(archivedPath) != filepath.Join(Dir(worldDir), "epoch_002") {
		t.Fatalf("archived to %s", archivedPath)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != "dummy" {
		t.Fatalf("archived content %q %v", got, err)
	}

	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta.json: %v", err)
	}
	var meta Meta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	meta.CreatedAt = ""
	want := Meta{Epoch: 2, EndTick: 2400, EpochTicks: 1200, WorldID: "w1", Snapshot: "2400.snap.zst", Assemblies: 2}
	if diff := cmp.Diff(want, meta); diff != "" {
		t.Fatalf("meta (-want +got):\n%s", diff)
	}
}

func TestArchiveSnapshot_SkipsOffBoundary(t *testing.T) {
	worldDir := t.TempDir()
	for _, tc := range []struct {
		tick, every uint64
	}{
		{tick: 1300, every: 1200},
		{tick: 0, every: 1200},
		{tick: 2400, every: 0},
	} {
		snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: tc.tick}}
		_, _, ok, err := ArchiveSnapshot(worldDir, "unused", snap, tc.every)
		if err != nil || ok {
			t.Fatalf("tick %d every %d: archived=%v err=%v", tc.tick, tc.every, ok, err)
		}
	}
	if _, err := os.Stat(Dir(worldDir)); !os.IsNotExist(err) {
		t.Fatalf("archives dir should not exist: %v", err)
	}
}

func TestPrune_KeepsNewestByTick(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{100, 1200, 2400, 3600, 999} {
		writeDummy(t, filepath.Join(dir, snapshot.FileName(tick)), "x")
	}
	writeDummy(t, filepath.Join(dir, "notes.txt"), "keep me")

	removed, err := Prune(dir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	var names []string
	for _, p := range removed {
		names = append(names, filepath.Base(p))
	}
	if diff := cmp.Diff([]string{"100.snap.zst", "999.snap.zst", "1200.snap.zst"}, names); diff != "" {
		t.Fatalf("removed (-want +got):\n%s", diff)
	}
	if got := snapshot.Latest(dir); filepath.Base(got) != "3600.snap.zst" {
		t.Fatalf("latest after prune: %s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}

	if removed, err := Prune(dir, 0); err != nil || removed != nil {
		t.Fatalf("keep=0 should be a no-op: %v %v", removed, err)
	}
	if removed, err := Prune(filepath.Join(dir, "missing"), 3); err != nil || removed != nil {
		t.Fatalf("missing dir: %v %v", removed, err)
	}
}

// Package archive keeps long-lived copies of epoch-boundary snapshots and prunes the
// rolling snapshot directory.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"rigsim.ai/internal/persistence/snapshot"
)

type Meta struct {
	Epoch      int    `json:"epoch"`
	EndTick    uint64 `json:"end_tick"`
	EpochTicks uint64 `json:"epoch_ticks"`
	WorldID    string `json:"world_id"`
	Snapshot   string `json:"snapshot"`
	Assemblies int    `json:"assemblies"`
	CreatedAt  string `json:"created_at"`
}

// Dir is where a world keeps its archived epochs.
func Dir(worldDir string) string { return filepath.Join(worldDir, "archives") }

// ArchiveSnapshot copies an epoch-end snapshot into `worldDir/archives/epoch_<NNN>/`.
// It returns (epoch, archivedPath, archived=true) when the snapshot lands on an epoch boundary.
func ArchiveSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, epochTicks uint64) (epoch int, archivedPath string, archived bool, err error) {
	if epochTicks == 0 || snap.Header.Tick == 0 || snap.Header.Tick%epochTicks != 0 {
		return 0, "", false, nil
	}
	epoch = int(snap.Header.Tick / epochTicks)

	dir := filepath.Join(Dir(worldDir), fmt.Sprintf("epoch_%03d", epoch))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", false, err
	}
	dst := filepath.Join(dir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := Meta{
		Epoch:      epoch,
		EndTick:    snap.Header.Tick,
		EpochTicks: epochTicks,
		WorldID:    snap.Header.WorldID,
		Snapshot:   filepath.Base(dst),
		Assemblies: len(snap.Assemblies),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, "", false, err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return 0, "", false, err
	}
	return epoch, dst, true, nil
}

// Prune deletes all but the newest keep snapshots in dir and returns what it removed.
// keep <= 0 keeps everything.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	type snap struct {
		path string
		tick uint64
	}
	var snaps []snap
	for _, e := range ents {
		base, ok := strings.CutSuffix(e.Name(), ".snap.zst")
		if e.IsDir() || !ok {
			continue
		}
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		snaps = append(snaps, snap{path: filepath.Join(dir, e.Name()), tick: tick})
	}
	if len(snaps) <= keep {
		return nil, nil
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].tick < snaps[j].tick })

	var removed []string
	for _, s := range snaps[:len(snaps)-keep] {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, s.path)
	}
	return removed, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

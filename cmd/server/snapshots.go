package main

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/archive"
	"rigsim.ai/internal/persistence/indexdb"
	"rigsim.ai/internal/persistence/mirror"
	"rigsim.ai/internal/persistence/snapshot"
)

type snapshotWriter struct {
	worldDir     string
	archiveEvery uint64
	keep         int

	mirror *mirror.Mirror
	index  *indexdb.SQLiteIndex
	log    zerolog.Logger
}

// write persists one snapshot, hands it to the mirror and the index, archives it when it
// ends an epoch and then prunes the rolling directory.
func (s *snapshotWriter) write(snap snapshot.SnapshotV1) (string, error) {
	dir := snapshot.Dir(s.worldDir)
	path := filepath.Join(dir, snapshot.FileName(snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	s.mirror.Enqueue(path)
	if s.index != nil {
		s.index.RecordSnapshot(path, snap)
	}

	epoch, archived, ok, err := archive.ArchiveSnapshot(s.worldDir, path, snap, s.archiveEvery)
	switch {
	case err != nil:
		s.log.Error().Err(err).Uint64("tick", snap.Header.Tick).Msg("snapshot archive")
	case ok:
		s.log.Info().Int("epoch", epoch).Str("path", archived).Msg("snapshot archived")
		s.mirror.Enqueue(archived)
	}

	removed, err := archive.Prune(dir, s.keep)
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot prune")
	}
	if len(removed) > 0 {
		s.log.Debug().Int("removed", len(removed)).Msg("snapshots pruned")
	}
	return path, nil
}

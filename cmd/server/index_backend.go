package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/indexdb"
)

// IndexPath is where the server keeps the sqlite read model of a world.
func IndexPath(worldDir string) string { return filepath.Join(worldDir, "index", "world.sqlite") }

func openRuntimeIndex(worldDir string, disableDB bool, logger zerolog.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Info().Msg("index backend disabled")
		return nil, nil
	case "sqlite":
		path := IndexPath(worldDir)
		idx, err := indexdb.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", path, err)
		}
		logger.Info().Str("path", path).Msg("index backend: sqlite")
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported RS_INDEX_BACKEND: %s", backend)
	}
}

package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/world"
)

// Files lists the log files for prefix under dir, oldest first. The hourly names sort
// chronologically.
func Files(dir, prefix string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadJSONL calls fn for every line of one compressed log file.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadTicks streams every tick entry under worldDir in log order.
func ReadTicks(worldDir string, fn func(world.TickLogEntry) error) error {
	paths, err := Files(TickDir(worldDir), TickPrefix)
	if err != nil {
		return err
	}
	for _, p := range paths {
		err := ReadJSONL(p, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadEvents streams every recorded machine event under worldDir.
func ReadEvents(worldDir string, fn func(protocol.EventObs) error) error {
	paths, err := Files(EventDir(worldDir), EventPrefix)
	if err != nil {
		return err
	}
	for _, p := range paths {
		err := ReadJSONL(p, func(line []byte) error {
			var ev protocol.EventObs
			if err := json.Unmarshal(line, &ev); err != nil {
				return err
			}
			return fn(ev)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

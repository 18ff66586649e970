package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "rigsim.ai/internal/persistence/log"
	"rigsim.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "spawn":
			spawnCmd(os.Args[2:])
			return
		case "despawn":
			despawnCmd(os.Args[2:])
			return
		case "cmd":
			commandCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional; lists its files)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
		if err != nil {
			fail("read:", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				fmt.Println(e.Name())
			}
		}
		return
	}
	files, err := worldFiles(filepath.Join(*dataDir, "worlds", *worldID))
	if err != nil {
		fail("read:", err)
	}
	printFiles(os.Stdout, files)
}

type worldFile struct {
	Kind  string
	Path  string
	Bytes int64
}

// worldFiles lists the snapshots and log segments of one world, oldest first per kind.
func worldFiles(worldDir string) ([]worldFile, error) {
	if _, err := os.Stat(worldDir); err != nil {
		return nil, err
	}
	var out []worldFile
	add := func(kind string, paths []string) {
		for _, p := range paths {
			fi, err := os.Stat(p)
			if err != nil {
				continue
			}
			out = append(out, worldFile{Kind: kind, Path: p, Bytes: fi.Size()})
		}
	}
	snaps, _ := filepath.Glob(filepath.Join(snapshot.Dir(worldDir), "*.snap.zst"))
	sort.Slice(snaps, func(i, j int) bool { return snapTick(snaps[i]) < snapTick(snaps[j]) })
	add("snapshot", snaps)
	ticks, err := persistlog.Files(persistlog.TickDir(worldDir), persistlog.TickPrefix)
	if err != nil {
		return nil, err
	}
	add("ticks", ticks)
	events, err := persistlog.Files(persistlog.EventDir(worldDir), persistlog.EventPrefix)
	if err != nil {
		return nil, err
	}
	add("events", events)
	return out, nil
}

func snapTick(path string) uint64 {
	var t uint64
	_, _ = fmt.Sscanf(filepath.Base(path), "%d.snap.zst", &t)
	return t
}

func printFiles(w io.Writer, files []worldFile) {
	var total int64
	for _, f := range files {
		total += f.Bytes
		fmt.Fprintf(w, "%-8s %9s  %s\n", f.Kind, humanize.Bytes(uint64(f.Bytes)), filepath.Base(f.Path))
	}
	fmt.Fprintf(w, "%d files, %s\n", len(files), humanize.Bytes(uint64(total)))
}

func printJSON(w io.Writer, v any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(w, string(b))
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

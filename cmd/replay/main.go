package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/indexdb"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "world_1", "world id")
		worldDir   = flag.String("world_dir", "", "world directory (default: <data>/worlds/<world>)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		snapPath   = flag.String("snapshot", "", `snapshot to start from ("latest" for the newest; empty replays from tick 0)`)
		inspect    = flag.Bool("inspect", false, "print the snapshot and exit")
		events     = flag.Bool("events", false, "summarize the event log and exit")
		checkIndex = flag.Bool("check_index", false, "also compare digests with the sqlite index")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		verbose    = flag.Bool("v", false, "log world activity to stderr")
	)
	flag.Parse()

	dir := strings.TrimSpace(*worldDir)
	if dir == "" {
		dir = filepath.Join(*dataDir, "worlds", *worldID)
	}
	log := zerolog.Nop()
	if *verbose {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	snap := strings.TrimSpace(*snapPath)
	if snap == "latest" {
		snap = snapshot.Latest(snapshot.Dir(dir))
		if snap == "" {
			fail("no snapshots in", snapshot.Dir(dir))
		}
	}

	if *events {
		s, err := summarizeEvents(dir)
		if err != nil {
			fail("read events:", err)
		}
		fmt.Printf("events=%s ticks=%d..%d\n", humanize.Comma(int64(s.Total)), s.First, s.Last)
		for _, k := range sortedKeys(s.ByType) {
			fmt.Printf("  type %-22s %s\n", k, humanize.Comma(int64(s.ByType[k])))
		}
		for _, k := range sortedKeys(s.ByAssembly) {
			fmt.Printf("  assembly %-18s %s\n", k, humanize.Comma(int64(s.ByAssembly[k])))
		}
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fail("load catalogs:", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fail("load tuning:", err)
		}
		tune = tuning.Defaults()
	}

	w, err := openWorld(cats, tune, snap, log)
	if err != nil {
		fail("world:", err)
	}

	if snap != "" {
		h, err := snapshot.ReadHeader(snap)
		if err != nil {
			fail("read snapshot:", err)
		}
		size := "?"
		if st, err := os.Stat(snap); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		fmt.Printf("snapshot v%d world=%s run=%s tick=%d size=%s machines=%d\n",
			h.Version, h.WorldID, h.RunID, h.Tick, size, len(w.Assemblies()))
		for _, id := range w.Assemblies() {
			fmt.Printf("  %s\n", strings.ReplaceAll(w.Assembly(id).Summary(), "\n", "\n    "))
		}
	}
	if *inspect {
		if snap == "" {
			fail("-inspect needs -snapshot")
		}
		return
	}

	opts := replayOpts{WorldDir: dir, Snapshot: snap, FromTick: *fromTick, ToTick: *toTick}
	if *checkIndex {
		r, err := indexdb.OpenReader(filepath.Join(dir, "index", "world.sqlite"))
		if err != nil {
			fail("open index:", err)
		}
		defer r.Close()
		opts.Index = r
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	rep, err := replay(ctx, w, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed after %d ticks (%d..%d): %v\n", rep.Stepped, rep.Start, rep.Last, err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: ticks=%d..%d checked=%s commands=%s rejected=%s",
		rep.Start, rep.Last, humanize.Comma(int64(rep.Checked)), humanize.Comma(int64(rep.Commands)), humanize.Comma(int64(rep.Rejected)))
	if opts.Index != nil {
		fmt.Printf(" index_checked=%s", humanize.Comma(int64(rep.IndexChecked)))
	}
	fmt.Println()
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

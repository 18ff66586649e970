package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"rigsim.ai/internal/persistence/indexdb"
)

type dbQuery struct {
	What     string
	Assembly string
	Type     string
	Rejected bool
	Limit    int
	Tick     uint64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	var q dbQuery
	fs.StringVar(&q.Assembly, "assembly", "", "assembly filter (commands, events)")
	fs.StringVar(&q.Type, "type", "", "event type filter (events)")
	fs.BoolVar(&q.Rejected, "rejected", false, "only rejected commands (commands)")
	fs.IntVar(&q.Limit, "limit", 20, "result limit")
	fs.Uint64Var(&q.Tick, "tick", 0, "tick (tick)")
	_ = fs.Parse(args)

	q.What = "stats"
	if fs.NArg() > 0 {
		q.What = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fail("open:", err)
	}
	defer r.Close()

	if err := runDB(context.Background(), r, q, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runDB prints one JSON object per row, except for stats which is a short report.
func runDB(ctx context.Context, r *indexdb.Reader, q dbQuery, out io.Writer) error {
	switch q.What {
	case "stats":
		s, err := r.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ticks %s (%d..%d)\n", humanize.Comma(s.Ticks), s.FirstTick, s.LastTick)
		fmt.Fprintf(out, "commands %s (%s rejected)\n", humanize.Comma(s.Commands), humanize.Comma(s.Rejected))
		fmt.Fprintf(out, "events %s\n", humanize.Comma(s.Events))
		fmt.Fprintf(out, "losses %s\n", humanize.Comma(s.Losses))
		fmt.Fprintf(out, "snapshots %s\n", humanize.Comma(s.Snapshots))
		return nil
	case "snapshots":
		rows, err := r.Snapshots(ctx, q.Limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printJSON(out, struct {
				indexdb.SnapshotRow
				Size string `json:"size"`
			}{row, humanize.Bytes(uint64(row.Bytes))})
		}
		return nil
	case "commands":
		rows, err := r.Commands(ctx, q.Assembly, q.Rejected, q.Limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printJSON(out, row)
		}
		return nil
	case "events":
		rows, err := r.Events(ctx, q.Assembly, q.Type, q.Limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printJSON(out, row)
		}
		return nil
	case "losses":
		rows, err := r.Losses(ctx, q.Limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printJSON(out, row)
		}
		return nil
	case "catalogs":
		rows, err := r.Catalogs(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			printJSON(out, row)
		}
		return nil
	case "tick":
		digest, ok, err := r.TickDigest(ctx, q.Tick)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("tick %d not indexed", q.Tick)
		}
		printJSON(out, map[string]any{"tick": q.Tick, "digest": digest})
		return nil
	default:
		return fmt.Errorf("unknown query %q (stats|snapshots|commands|events|losses|catalogs|tick)", q.What)
	}
}

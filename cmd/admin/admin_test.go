package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rigsim.ai/internal/persistence/indexdb"
	persistlog "rigsim.ai/internal/persistence/log"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/world"
)

func seedIndex(t *testing.T) *indexdb.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.WriteTick(world.TickLogEntry{Tick: 1, Digest: "d1", Commands: []world.RecordedCommand{
		{Cmd: protocol.Command{Kind: protocol.CmdIgnition, Assembly: "buggy", On: true}},
		{Cmd: protocol.Command{Kind: protocol.CmdRepair, Assembly: "ghost"}, Code: protocol.ErrUnknownAssembly},
	}})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 2, Digest: "d2"})
	_ = idx.WriteEvent(machine.Event{Tick: 1, Type: machine.EventEngineStarted, AssemblyID: "buggy", PartID: "engine"})
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func TestRunDB(t *testing.T) {
	r := seedIndex(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runDB(ctx, r, dbQuery{What: "stats"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "ticks 2 (1..2)") || !strings.Contains(out.String(), "commands 2 (1 rejected)") {
		t.Fatalf("stats:\n%s", out.String())
	}

	out.Reset()
	if err := runDB(ctx, r, dbQuery{What: "commands", Rejected: true, Limit: 10}, &out); err != nil {
		t.Fatal(err)
	}
	var cmd indexdb.CommandRow
	if got := lines(out.String()); len(got) != 1 {
		t.Fatalf("rejected commands: %q", got)
	} else if err := json.Unmarshal([]byte(got[0]), &cmd); err != nil || cmd.Assembly != "ghost" || cmd.Code != protocol.ErrUnknownAssembly {
		t.Fatalf("row %+v %v", cmd, err)
	}

	out.Reset()
	if err := runDB(ctx, r, dbQuery{What: "events", Assembly: "buggy"}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"type":"ENGINE_STARTED"`) {
		t.Fatalf("events: %s", out.String())
	}

	out.Reset()
	if err := runDB(ctx, r, dbQuery{What: "tick", Tick: 2}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"digest":"d2"`) {
		t.Fatalf("tick: %s", out.String())
	}
	if err := runDB(ctx, r, dbQuery{What: "tick", Tick: 99}, &out); err == nil {
		t.Fatalf("expected error for a tick that is not indexed")
	}
	if err := runDB(ctx, r, dbQuery{What: "agents"}, &out); err == nil {
		t.Fatalf("expected error for an unknown query")
	}
}

func TestWorldFiles(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{
		filepath.Join(snapshot.Dir(dir), snapshot.FileName(24000)),
		filepath.Join(snapshot.Dir(dir), snapshot.FileName(1200)),
		filepath.Join(persistlog.TickDir(dir), "ticks-2026-03-01-10.jsonl.zst"),
		filepath.Join(persistlog.EventDir(dir), "events-2026-03-01-10.jsonl.zst"),
	} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, make([]byte, 2048), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	files, err := worldFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	var kinds, names []string
	for _, f := range files {
		kinds = append(kinds, f.Kind)
		names = append(names, filepath.Base(f.Path))
	}
	if strings.Join(kinds, ",") != "snapshot,snapshot,ticks,events" || names[0] != "1200.snap.zst" {
		t.Fatalf("files %v %v", kinds, names)
	}

	var out bytes.Buffer
	printFiles(&out, files)
	if !strings.Contains(out.String(), "4 files, 8.2 kB") {
		t.Fatalf("listing:\n%s", out.String())
	}
	if _, err := worldFiles(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for a missing world")
	}
}

func TestCall_SendsJSONAndReturnsStatus(t *testing.T) {
	var gotBody map[string]any
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		rw.WriteHeader(http.StatusConflict)
		_, _ = rw.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	b, status, err := call(srv.Client(), http.MethodPost, srv.URL+"/", "/admin/v1/spawn", map[string]string{"blueprint": "buggy"})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusConflict || string(b) != `{"ok":false}` {
		t.Fatalf("status %d body %s", status, b)
	}
	if gotMethod != http.MethodPost || gotPath != "/admin/v1/spawn" || gotBody["blueprint"] != "buggy" {
		t.Fatalf("request %s %s %v", gotMethod, gotPath, gotBody)
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
	"rigsim.ai/internal/transport/ws"
)

func startApp(t *testing.T, enableAdmin bool) (*httptest.Server, *world.World) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatal(err)
	}
	library, err := blueprint.LoadDir("../../configs/blueprints")
	if err != nil {
		t.Fatal(err)
	}
	tun := tuning.Defaults()
	tun.TickRateHz = 100
	w, err := world.New(world.Config{ID: "w1", Tuning: tun}, cats, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Spawn(library[0], ""); err != nil {
		t.Fatal(err)
	}
	w.SetSnapshotSink(make(chan snapshot.SnapshotV1, 4))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	a := &app{worldID: "w1", world: w, hub: ws.NewHub(0), library: library, log: zerolog.Nop()}
	mux := http.NewServeMux()
	a.routes(mux, enableAdmin)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv, w
}

func postJSON(t *testing.T, url string, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := startApp(t, false)

	if code, body := get(t, srv.URL+"/healthz"); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz %d %q", code, body)
	}
	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics %d", code)
	}
	for _, want := range []string{
		`rigsim_world_tick{world="w1"}`,
		`rigsim_world_assemblies{world="w1"} 1`,
		"# TYPE rigsim_world_lost_total counter",
		`rigsim_ws_sessions{world="w1"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "rigsim_index_dropped_total") {
		t.Fatalf("index metrics without an index")
	}
}

func TestAdmin_DisabledRoutesAreAbsent(t *testing.T) {
	srv, _ := startApp(t, false)
	if code, _ := get(t, srv.URL+"/admin/v1/state"); code != http.StatusNotFound {
		t.Fatalf("state with admin disabled: %d", code)
	}
}

func TestAdmin_RejectsNonLoopback(t *testing.T) {
	a := &app{}
	h := loopbackOnly(a.handleState)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.9:4100"
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:9000":     true,
		"::1":            true,
		"10.1.2.3:80":    false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v want %v", addr, got, want)
		}
	}
}

func TestAdmin_StateSpawnDespawn(t *testing.T) {
	srv, w := startApp(t, true)

	code, body := get(t, srv.URL+"/admin/v1/state")
	if code != http.StatusOK {
		t.Fatalf("state %d", code)
	}
	var st stateResp
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		t.Fatal(err)
	}
	if st.WorldID != "w1" || len(st.Assemblies) != 1 || !slices.Contains(st.Blueprints, "sentry") {
		t.Fatalf("state %+v", st)
	}

	if code, out := postJSON(t, srv.URL+"/admin/v1/spawn", `{"blueprint":"sentry","id":"sentry-2"}`); code != http.StatusOK || out["id"] != "sentry-2" {
		t.Fatalf("spawn %d %v", code, out)
	}
	if code, _ := postJSON(t, srv.URL+"/admin/v1/spawn", `{"blueprint":"sentry","id":"sentry-2"}`); code != http.StatusConflict {
		t.Fatalf("duplicate spawn %d", code)
	}
	if code, _ := postJSON(t, srv.URL+"/admin/v1/spawn", `{"blueprint":"zeppelin"}`); code != http.StatusNotFound {
		t.Fatalf("unknown blueprint %d", code)
	}
	if code, _ := postJSON(t, srv.URL+"/admin/v1/spawn", `{}`); code != http.StatusBadRequest {
		t.Fatalf("empty spawn %d", code)
	}
	inline := `{"id":"crate","definition":{"id":"crate","parts":[{"id":"box","catalog_id":"BLOCK_METAL"}]}}`
	if code, out := postJSON(t, srv.URL+"/admin/v1/spawn", inline); code != http.StatusOK {
		t.Fatalf("inline spawn %d %v", code, out)
	}

	ids := func() []string {
		var out []string
		for _, r := range w.AssemblyRefs() {
			out = append(out, r.ID)
		}
		return out
	}
	if got := ids(); !slices.Contains(got, "sentry-2") || !slices.Contains(got, "crate") {
		t.Fatalf("assemblies after spawn %v", got)
	}

	if code, _ := postJSON(t, srv.URL+"/admin/v1/despawn", `{"id":"ghost"}`); code != http.StatusNotFound {
		t.Fatalf("despawn ghost %d", code)
	}
	if code, _ := postJSON(t, srv.URL+"/admin/v1/despawn", `{"id":"sentry-2"}`); code != http.StatusOK {
		t.Fatalf("despawn %d", code)
	}
	if slices.Contains(ids(), "sentry-2") {
		t.Fatalf("sentry-2 still hosted")
	}

	resp, err := http.Get(srv.URL + "/admin/v1/spawn")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET spawn %d", resp.StatusCode)
	}
}

func TestAdmin_CommandAndSnapshot(t *testing.T) {
	srv, w := startApp(t, true)
	id := w.AssemblyRefs()[0].ID

	body, _ := json.Marshal(protocol.Command{ID: "c1", Kind: protocol.CmdRepair, Assembly: id})
	code, out := postJSON(t, srv.URL+"/admin/v1/command", string(body))
	if code != http.StatusOK || out["accepted"] != true || out["ack_for"] != "c1" {
		t.Fatalf("command %d %v", code, out)
	}

	body, _ = json.Marshal(protocol.Command{Kind: protocol.CmdRepair, Assembly: "ghost"})
	code, out = postJSON(t, srv.URL+"/admin/v1/command", string(body))
	if code != http.StatusOK || out["accepted"] != false || out["code"] != protocol.ErrUnknownAssembly {
		t.Fatalf("ghost command %d %v", code, out)
	}

	if code, _ := postJSON(t, srv.URL+"/admin/v1/command", `{"kind":"FLY","assembly":"x"}`); code != http.StatusBadRequest {
		t.Fatalf("unknown kind %d", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/admin/v1/snapshot", bytes.NewReader(nil))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot %d", resp.StatusCode)
	}
}

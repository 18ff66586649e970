package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/indexdb"
	"rigsim.ai/internal/persistence/mirror"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/world"
	"rigsim.ai/internal/transport/ws"
)

// app holds what the HTTP handlers need. The world is only reached through its
// goroutine-safe methods.
type app struct {
	worldID string
	world   *world.World
	hub     *ws.Hub
	idx     *indexdb.SQLiteIndex
	mirror  *mirror.Mirror
	library []*blueprint.Blueprint
	log     zerolog.Logger
}

func (a *app) routes(mux *http.ServeMux, enableAdmin bool) {
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", a.handleMetrics)

	if !enableAdmin {
		a.log.Info().Msg("admin endpoints disabled (RS_ENABLE_ADMIN_HTTP=false)")
		return
	}
	// Local-only admin endpoints. Everything that changes the world goes through the
	// loop's request channels.
	mux.HandleFunc("/admin/v1/state", loopbackOnly(a.handleState))
	mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(post(a.handleSnapshot)))
	mux.HandleFunc("/admin/v1/spawn", loopbackOnly(post(a.handleSpawn)))
	mux.HandleFunc("/admin/v1/despawn", loopbackOnly(post(a.handleDespawn)))
	mux.HandleFunc("/admin/v1/command", loopbackOnly(post(a.handleCommand)))
}

func (a *app) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	m := a.world.Metrics()
	tick := a.world.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP rigsim_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE rigsim_%s gauge\n", name)
		fmt.Fprintf(rw, "rigsim_%s{world=%q} %v\n", name, a.worldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP rigsim_%s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE rigsim_%s counter\n", name)
		fmt.Fprintf(rw, "rigsim_%s{world=%q} %d\n", name, a.worldID, v)
	}

	gauge("world_tick", "Current world tick.", tick)
	gauge("world_assemblies", "Hosted machines.", m.Assemblies)
	gauge("world_assemblies_active", "Active machines.", m.Active)
	gauge("world_assemblies_broken", "Broken machines.", m.Broken)
	gauge("world_inbox_depth", "Commands waiting for the next tick.", m.InboxDepth)
	gauge("world_commands_last_tick", "Commands applied in the last tick.", m.Commands)
	counter("world_lost_total", "Fatal physics reports (machines lost).", uint64(m.Lost))
	gauge("world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	gauge("ws_sessions", "Connected websocket sessions.", a.hub.Sessions())
	gauge("ws_event_cursor", "Cursor of the most recent streamed event.", a.hub.Cursor())
	counter("ws_dropped_total", "Stream messages dropped on full session queues.", a.hub.Dropped())

	if a.idx != nil {
		counter("index_dropped_total", "Index rows dropped because the writer fell behind.", a.idx.Dropped())
	}
	if a.mirror != nil {
		s := a.mirror.Stats()
		gauge("mirror_queue_depth", "Files waiting for upload.", s.QueueDepth)
		counter("mirror_uploaded_total", "Files uploaded.", s.Uploaded)
		counter("mirror_failed_total", "Uploads that failed after retries.", s.Failed)
		counter("mirror_dropped_total", "Files dropped on a saturated queue.", s.Dropped)
		gauge("mirror_last_success_unix", "Unix time of the last upload.", s.LastSuccess)
	}
}

type stateResp struct {
	WorldID    string                 `json:"world_id"`
	Tick       uint64                 `json:"tick"`
	Metrics    world.Metrics          `json:"metrics"`
	Assemblies []protocol.AssemblyRef `json:"assemblies"`
	Blueprints []string               `json:"blueprints"`
	Cursor     uint64                 `json:"event_cursor"`
	Mirror     *mirror.Stats          `json:"mirror,omitempty"`
}

func (a *app) handleState(rw http.ResponseWriter, r *http.Request) {
	resp := stateResp{
		WorldID:    a.worldID,
		Tick:       a.world.CurrentTick(),
		Metrics:    a.world.Metrics(),
		Assemblies: a.world.AssemblyRefs(),
		Blueprints: make([]string, 0, len(a.library)),
		Cursor:     a.hub.Cursor(),
	}
	for _, bp := range a.library {
		resp.Blueprints = append(resp.Blueprints, bp.ID)
	}
	if a.mirror != nil {
		s := a.mirror.Stats()
		resp.Mirror = &s
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (a *app) handleSnapshot(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tick, err := a.world.RequestSnapshot(ctx)
	if err != nil {
		writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
}

type spawnReq struct {
	// Blueprint names a blueprint from the server's library; Definition is an inline
	// blueprint document. Exactly one must be set.
	Blueprint  string          `json:"blueprint,omitempty"`
	Definition json.RawMessage `json:"definition,omitempty"`
	ID         string          `json:"id,omitempty"`
}

func (a *app) handleSpawn(rw http.ResponseWriter, r *http.Request) {
	var req spawnReq
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	var bp *blueprint.Blueprint
	switch {
	case req.Blueprint != "" && len(req.Definition) > 0:
		writeError(rw, http.StatusBadRequest, errors.New("set blueprint or definition, not both"))
		return
	case req.Blueprint != "":
		for _, b := range a.library {
			if b.ID == req.Blueprint {
				bp = b
				break
			}
		}
		if bp == nil {
			writeError(rw, http.StatusNotFound, fmt.Errorf("unknown blueprint %q", req.Blueprint))
			return
		}
	case len(req.Definition) > 0:
		b, err := blueprint.Parse(req.Definition)
		if err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		bp = b
	default:
		writeError(rw, http.StatusBadRequest, errors.New("blueprint or definition required"))
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = bp.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.world.RequestSpawn(ctx, bp, id); err != nil {
		writeError(rw, http.StatusConflict, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (a *app) handleDespawn(rw http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.ID) == "" {
		writeError(rw, http.StatusBadRequest, errors.New("id required"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.world.RequestDespawn(ctx, req.ID); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, world.ErrUnknownAssembly) {
			status = http.StatusNotFound
		}
		writeError(rw, status, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "id": req.ID})
}

// handleCommand applies one command the way a websocket CMD would, without a session.
func (a *app) handleCommand(rw http.ResponseWriter, r *http.Request) {
	var cmd protocol.Command
	if err := decodeBody(r, &cmd); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	raw, _ := json.Marshal(protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, Cmd: cmd})
	if err := protocol.ValidateCommand(raw); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	res, err := a.world.Submit(ctx, cmd)
	if err != nil && res.Code == "" {
		writeError(rw, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          cmd.ID,
		Accepted:        res.Accepted(),
		Code:            res.Code,
		Message:         res.Message,
		ServerTick:      res.Tick,
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("bad request body: %w", err)
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	writeJSON(rw, status, map[string]any{"ok": false, "error": err.Error()})
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

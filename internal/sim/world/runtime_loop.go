package world

import (
	"context"
	"errors"
	"time"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", interval).Int("assemblies", len(w.order)).Str("run_id", w.runID).Msg("world loop started")

	var pendingCmds []CommandEnvelope
	pendingSpawns := w.preload
	w.preload = nil
	var pendingDespawns []despawnReq
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case req := <-w.spawn:
			pendingSpawns = append(pendingSpawns, req)
		case req := <-w.despawn:
			pendingDespawns = append(pendingDespawns, req)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.step(pendingSpawns, pendingDespawns, pendingCmds)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingCmds = pendingCmds[:0]
			pendingSpawns = pendingSpawns[:0]
			pendingDespawns = pendingDespawns[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Preload queues a spawn for the first tick Run executes. Unlike Spawn, the machine then
// appears in the tick log, so a replay from an empty world rebuilds it. Call before Run.
func (w *World) Preload(bp *blueprint.Blueprint, id string) {
	w.preload = append(w.preload, spawnReq{ID: id, Blueprint: bp})
}

// StepInput is one tick's worth of recorded inputs, as read back from a tick log.
type StepInput struct {
	Spawns   []RecordedSpawn
	Despawns []string
	Commands []protocol.Command
}

// StepOnce advances the world by a single tick using the same ordering semantics as the
// loop. It is intended for deterministic replays and tests.
func (w *World) StepOnce(in StepInput) (tick uint64, digest string) {
	spawns := make([]spawnReq, 0, len(in.Spawns))
	for _, s := range in.Spawns {
		spawns = append(spawns, spawnReq{ID: s.ID, Blueprint: s.Blueprint})
	}
	despawns := make([]despawnReq, 0, len(in.Despawns))
	for _, id := range in.Despawns {
		despawns = append(despawns, despawnReq{ID: id})
	}
	cmds := make([]CommandEnvelope, 0, len(in.Commands))
	for _, c := range in.Commands {
		cmds = append(cmds, CommandEnvelope{Cmd: c})
	}
	return w.step(spawns, despawns, cmds)
}

// RequestSpawn asks the loop to build a blueprint at the next tick boundary.
func (w *World) RequestSpawn(ctx context.Context, bp *blueprint.Blueprint, id string) error {
	resp := make(chan error, 1)
	select {
	case w.spawn <- spawnReq{ID: id, Blueprint: bp, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) RequestDespawn(ctx context.Context, id string) error {
	resp := make(chan error, 1)
	select {
	case w.despawn <- despawnReq{ID: id, Resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a command and waits until it has been applied.
func (w *World) Submit(ctx context.Context, cmd protocol.Command) (Result, error) {
	resp := make(chan Result, 1)
	select {
	case w.inbox <- CommandEnvelope{Cmd: cmd, Resp: resp}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
		return Result{Code: protocol.ErrBusy, Message: "inbox full"}, errors.New("inbox full")
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

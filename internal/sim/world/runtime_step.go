package world

import (
	"time"

	"rigsim.ai/internal/sim/physics"
)

// step runs one tick: spawns and despawns, then commands in inbox order, then every
// machine, then physics. Losses reported by physics become fatal reports before the
// digest is taken.
func (w *World) step(spawns []spawnReq, despawns []despawnReq, cmds []CommandEnvelope) (uint64, string) {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	dt := w.cfg.Tuning.TickDuration()

	var recordedDespawns []string
	for _, req := range despawns {
		err := w.Despawn(req.ID)
		if err == nil {
			recordedDespawns = append(recordedDespawns, req.ID)
		}
		if req.Resp != nil {
			req.Resp <- err
		}
	}
	var recordedSpawns []RecordedSpawn
	for _, req := range spawns {
		_, err := w.Spawn(req.Blueprint, req.ID)
		if err == nil {
			id := req.ID
			if id == "" {
				id = req.Blueprint.ID
			}
			recordedSpawns = append(recordedSpawns, RecordedSpawn{ID: id, Blueprint: req.Blueprint})
		} else {
			w.log.Warn().Err(err).Msg("spawn rejected")
		}
		if req.Resp != nil {
			req.Resp <- err
		}
	}

	recorded := make([]RecordedCommand, 0, len(cmds))
	for _, env := range cmds {
		res := w.apply(env.Cmd)
		res.Tick = nowTick
		recorded = append(recorded, RecordedCommand{Cmd: env.Cmd, Code: res.Code})
		if env.Resp != nil {
			select {
			case env.Resp <- res:
			default:
			}
		}
	}

	for _, id := range w.order {
		w.asms[id].Tick(dt)
	}
	fatal := w.phys.Step(dt)
	for _, f := range fatal {
		if a := w.asms[f.AssemblyID]; a != nil {
			a.ReportFatal(f.Reason)
		}
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:     nowTick,
			Spawns:   recordedSpawns,
			Despawns: recordedDespawns,
			Commands: recorded,
			Fatal:    fatal,
			Digest:   digest,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn().Err(err).Uint64("tick", nowTick).Msg("tick log write failed")
		}
	}
	if w.streamSink != nil {
		tm := w.Telemetry(nowTick, digest)
		select {
		case w.streamSink <- StreamItem{Telemetry: &tm}:
		default:
		}
	}

	// Snapshot every N ticks, starting after tick 0.
	if w.snapshotSink != nil && nowTick != 0 && w.cfg.Tuning.SnapshotEveryTicks > 0 {
		if nowTick%uint64(w.cfg.Tuning.SnapshotEveryTicks) == 0 {
			select {
			case w.snapshotSink <- w.ExportSnapshot(nowTick):
			default:
				w.log.Warn().Uint64("tick", nowTick).Msg("snapshot dropped, sink backed up")
			}
		}
	}

	w.tick.Add(1)
	w.storeMetrics(nowTick, fatal, len(cmds), time.Since(stepStart))
	return nowTick, digest
}

// Metrics is a point-in-time view of the loop for admin endpoints.
type Metrics struct {
	Tick       uint64  `json:"tick"`
	Assemblies int     `json:"assemblies"`
	Active     int     `json:"active"`
	Broken     int     `json:"broken"`
	InboxDepth int     `json:"inbox_depth"`
	Commands   int     `json:"commands_last_tick"`
	Lost       int     `json:"lost_total"`
	StepMS     float64 `json:"step_ms"`
}

func (w *World) storeMetrics(tick uint64, fatal []physics.Fatal, cmds int, took time.Duration) {
	prev, _ := w.metrics.Load().(Metrics)
	m := Metrics{
		Tick:       tick + 1,
		Assemblies: len(w.order),
		InboxDepth: len(w.inbox),
		Commands:   cmds,
		Lost:       prev.Lost + len(fatal),
		StepMS:     float64(took.Microseconds()) / 1000.0,
	}
	w.countAssemblies(&m)
	w.metrics.Store(m)
}

// refreshCounts updates the machine gauges between steps, so a spawn or despawn shows up
// before the next tick.
func (w *World) refreshCounts() {
	m, _ := w.metrics.Load().(Metrics)
	m.Tick = w.CurrentTick()
	w.countAssemblies(&m)
	w.metrics.Store(m)
}

func (w *World) countAssemblies(m *Metrics) {
	m.Assemblies, m.Active, m.Broken = len(w.order), 0, 0
	for _, id := range w.order {
		a := w.asms[id]
		if a.IsActive() {
			m.Active++
		}
		if a.IsBroken() {
			m.Broken++
		}
	}
}

// Metrics is safe to call from any goroutine.
func (w *World) Metrics() Metrics {
	m, _ := w.metrics.Load().(Metrics)
	return m
}

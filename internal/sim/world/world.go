// Package world hosts machines: it owns every assembly and the physics they live in,
// applies operator commands at tick boundaries and records what happened.
package world

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/physics"
	"rigsim.ai/internal/sim/tuning"
)

var ErrUnknownAssembly = errors.New("unknown assembly")

type Config struct {
	ID     string
	Tuning tuning.Tuning
}

// CommandEnvelope carries one command into the loop. Resp, when set, receives the result
// once the command has been applied.
type CommandEnvelope struct {
	Cmd  protocol.Command
	Resp chan Result
}

// Result is the outcome of one command. Code is empty when the command was accepted.
type Result struct {
	Tick    uint64
	Code    string
	Message string
}

func (r Result) Accepted() bool { return r.Code == "" }

type spawnReq struct {
	ID        string
	Blueprint *blueprint.Blueprint
	Resp      chan error
}

type despawnReq struct {
	ID   string
	Resp chan error
}

type driverInput struct {
	throttle float64
	steer    float64
}

// StreamItem is one message for live observers: a machine event or the per-tick
// telemetry frame.
type StreamItem struct {
	Event     *protocol.EventObs
	Telemetry *protocol.TelemetryMsg
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type EventLogger interface {
	WriteEvent(ev machine.Event) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Spawns   []RecordedSpawn   `json:"spawns,omitempty"`
	Despawns []string          `json:"despawns,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Fatal    []physics.Fatal   `json:"fatal,omitempty"`
	Digest   string            `json:"digest"`
}

type RecordedSpawn struct {
	ID        string               `json:"id"`
	Blueprint *blueprint.Blueprint `json:"blueprint"`
}

type RecordedCommand struct {
	Cmd  protocol.Command `json:"cmd"`
	Code string           `json:"code,omitempty"`
}

// World is a single-threaded authoritative host. All state must be accessed only from
// the loop goroutine, or before Run starts.
type World struct {
	cfg   Config
	cats  *catalogs.Catalogs
	log   zerolog.Logger
	runID string

	tick atomic.Uint64

	bus    *machine.EventBus
	phys   *physics.World
	asms   map[string]*machine.Assembly
	order  []string
	inputs map[string]driverInput

	inbox   chan CommandEnvelope
	spawn   chan spawnReq
	despawn chan despawnReq
	admin   chan adminSnapshotReq
	stop    chan struct{}
	preload []spawnReq

	// Optional sinks (may be nil). Implemented in internal/persistence/* and transport/ws.
	tickLogger   TickLogger
	eventLogger  EventLogger
	snapshotSink chan<- snapshot.SnapshotV1
	streamSink   chan<- StreamItem

	metrics atomic.Value // Metrics
	refs    atomic.Value // []protocol.AssemblyRef
}

func New(cfg Config, cats *catalogs.Catalogs, log zerolog.Logger) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world %s: catalogs required", cfg.ID)
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("world %s: %w", cfg.ID, err)
	}
	w := &World{
		cfg:     cfg,
		cats:    cats,
		log:     log.With().Str("world", cfg.ID).Logger(),
		runID:   uuid.NewString(),
		bus:     machine.NewEventBus(),
		phys:    physics.New(physics.ConfigFromTuning(cfg.Tuning.Physics)),
		asms:    map[string]*machine.Assembly{},
		inputs:  map[string]driverInput{},
		inbox:   make(chan CommandEnvelope, 1024),
		spawn:   make(chan spawnReq, 64),
		despawn: make(chan despawnReq, 64),
		admin:   make(chan adminSnapshotReq, 8),
		stop:    make(chan struct{}),
	}
	w.bus.SetClock(w.tick.Load)
	w.bus.Subscribe(w.onEvent)
	w.metrics.Store(Metrics{})
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetEventLogger(l EventLogger)                  { w.eventLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) SetStreamSink(ch chan<- StreamItem)            { w.streamSink = ch }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }

func (w *World) ID() string                   { return w.cfg.ID }
func (w *World) RunID() string                { return w.runID }
func (w *World) TickRateHz() int              { return w.cfg.Tuning.TickRateHz }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }
func (w *World) Physics() *physics.World      { return w.phys }
func (w *World) Bus() *machine.EventBus       { return w.bus }

// Assembly returns a hosted machine. Loop goroutine only.
func (w *World) Assembly(id string) *machine.Assembly { return w.asms[id] }

// Assemblies returns the hosted machine ids in sorted order.
func (w *World) Assemblies() []string { return append([]string(nil), w.order...) }

// ResolvePart finds a part across every hosted machine by "<assembly>/<part>".
func (w *World) ResolvePart(bodyID string) *machine.Part {
	asm, _, ok := strings.Cut(bodyID, "/")
	if !ok {
		return nil
	}
	if a := w.asms[asm]; a != nil {
		return a.ResolvePart(bodyID)
	}
	return nil
}

func (w *World) machineOptions() machine.Options {
	t := w.cfg.Tuning
	return machine.Options{Bus: w.bus, Tuning: &t, Resolver: w}
}

// Spawn builds a blueprint into the world under id (the blueprint id when empty). Call it
// before Run, or use RequestSpawn while the loop is running.
func (w *World) Spawn(bp *blueprint.Blueprint, id string) (*machine.Assembly, error) {
	if bp == nil {
		return nil, fmt.Errorf("spawn: nil blueprint")
	}
	if id == "" {
		id = bp.ID
	}
	if _, dup := w.asms[id]; dup {
		return nil, fmt.Errorf("spawn %s: already hosted", id)
	}
	a, err := bp.Build(id, w.cats, w.machineOptions())
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", id, err)
	}
	w.host(a, bp.SpawnPose())
	w.log.Info().Str("assembly", id).Str("blueprint", bp.ID).Int("parts", a.PartCount()).Msg("spawned")
	return a, nil
}

// Despawn removes a machine and its physics body.
func (w *World) Despawn(id string) error {
	if _, ok := w.asms[id]; !ok {
		return fmt.Errorf("despawn %s: %w", id, ErrUnknownAssembly)
	}
	w.phys.Detach(id)
	delete(w.asms, id)
	delete(w.inputs, id)
	for i, x := range w.order {
		if x == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.publishRefs()
	w.log.Info().Str("assembly", id).Msg("despawned")
	return nil
}

func (w *World) host(a *machine.Assembly, pose machine.Pose) {
	w.asms[a.ID] = a
	w.order = append(w.order, a.ID)
	sort.Strings(w.order)
	w.phys.Attach(a, pose)
	w.publishRefs()
}

// onEvent forwards machine events to the event log and live observers.
func (w *World) onEvent(ev machine.Event) {
	if w.eventLogger != nil {
		if err := w.eventLogger.WriteEvent(ev); err != nil {
			w.log.Warn().Err(err).Msg("event log write failed")
		}
	}
	if w.streamSink != nil {
		obs := EventObs(ev)
		select {
		case w.streamSink <- StreamItem{Event: &obs}:
		default:
		}
	}
	if ev.Type == machine.EventAssemblyBroken {
		w.log.Info().Str("assembly", ev.AssemblyID).Str("reason", ev.Reason).Uint64("tick", ev.Tick).Msg("machine broken")
	}
}

// EventObs converts a machine event to its wire form.
func EventObs(ev machine.Event) protocol.EventObs {
	return protocol.EventObs{
		Tick:     ev.Tick,
		Type:     string(ev.Type),
		Assembly: ev.AssemblyID,
		Part:     string(ev.PartID),
		Joint:    string(ev.ConnectionID),
		Reason:   ev.Reason,
		Value:    ev.Value,
	}
}

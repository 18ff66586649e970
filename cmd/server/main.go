package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	persistlog "rigsim.ai/internal/persistence/log"
	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/blueprint"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/tuning"
	"rigsim.ai/internal/sim/world"
	"rigsim.ai/internal/transport/ws"
)

func main() {
	var (
		addr          = flag.String("addr", ":8080", "http listen address")
		worldID       = flag.String("world", "world_1", "world id")
		configDir     = flag.String("configs", "./configs", "config directory")
		blueprintsDir = flag.String("blueprints", "", "blueprint directory (default: <configs>/blueprints)")
		dataDir       = flag.String("data", "./data", "runtime data directory")
		tuningPath    = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB     = flag.Bool("disable_db", false, "disable indexing (ticks/events + catalogs + snapshot metadata)")
		token         = flag.String("token", "", "websocket HELLO token (or set RS_WS_TOKEN)")
		pretty        = flag.Bool("pretty", false, "human readable console logs")
		level         = flag.String("log_level", "info", "log level")

		snapPath     = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest   = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		archiveEvery = flag.Uint64("archive_every_ticks", 72000, "copy snapshots on this tick boundary into archives/ (0 disables)")
		keepSnaps    = flag.Int("keep_snapshots", 48, "rolling snapshots to keep on disk (0 keeps all)")
	)
	flag.Parse()

	root := newLogger(*pretty, *level)
	logger := root.With().Str("component", "server").Logger()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalogs")
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	bpDir := strings.TrimSpace(*blueprintsDir)
	if bpDir == "" {
		bpDir = filepath.Join(*configDir, "blueprints")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.Latest(snapshot.Dir(worldDir))
	}

	tune, err := tuning.Load(tp)
	if err != nil {
		if snapshotToLoad == "" || !os.IsNotExist(err) {
			logger.Fatal().Err(err).Str("path", tp).Msg("load tuning")
		}
		logger.Warn().Str("path", tp).Msg("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	library, err := blueprint.LoadDir(bpDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("load blueprints")
	}

	// Optional read-model index (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open index backend")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Warn().Err(err).Msg("index backend: upsert catalogs")
		}
	}

	w, err := world.New(world.Config{ID: *worldID, Tuning: tune}, cats, root.With().Str("component", "world").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("world")
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatal().Err(err).Msg("read snapshot")
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatal().Str("flag", *worldID).Str("snapshot", snap.Header.WorldID).Msg("snapshot world id mismatch")
		}
		if err := w.ImportSnapshot(snap); err != nil {
			logger.Fatal().Err(err).Msg("import snapshot")
		}
		logger.Info().Str("snapshot", filepath.Base(snapshotToLoad)).Uint64("tick", w.CurrentTick()).Msg("resumed")
	} else {
		for _, bp := range library {
			w.Preload(bp, bp.ID)
		}
		logger.Info().Int("blueprints", len(library)).Msg("fresh world")
	}

	ctx, cancel := signalContext()
	defer cancel()

	mir, err := buildMirror(*dataDir, root)
	if err != nil {
		logger.Fatal().Err(err).Msg("mirror")
	}
	// Deferred first so it drains after the loggers have handed over their last segments.
	defer mir.Close()

	logOpts := persistlog.Options{}
	if mir != nil {
		logOpts.OnClose = mir.Enqueue
	}
	tickLog := persistlog.NewTickLoggerWithOptions(worldDir, logOpts)
	eventLog := persistlog.NewEventLoggerWithOptions(worldDir, logOpts)
	defer tickLog.Close()
	defer eventLog.Close()
	if idx != nil {
		w.SetTickLogger(persistlog.TeeTicks(tickLog, idx))
		w.SetEventLogger(persistlog.TeeEvents(eventLog, idx))
	} else {
		w.SetTickLogger(tickLog)
		w.SetEventLogger(eventLog)
	}

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	sw := &snapshotWriter{worldDir: worldDir, archiveEvery: *archiveEvery, keep: *keepSnaps, mirror: mir, index: idx, log: logger}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				if _, err := sw.write(snap); err != nil {
					logger.Error().Err(err).Uint64("tick", snap.Header.Tick).Msg("snapshot write")
				}
			}
		}
	}()

	hub := ws.NewHub(envInt("RS_WS_HISTORY", ws.DefaultHistory))
	stream := make(chan world.StreamItem, 1024)
	w.SetStreamSink(stream)
	go hub.Run(ctx, stream)

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("world stopped")
		}
	}()

	wsToken := strings.TrimSpace(*token)
	if wsToken == "" {
		wsToken = strings.TrimSpace(os.Getenv("RS_WS_TOKEN"))
	}

	a := &app{
		worldID: *worldID,
		world:   w,
		hub:     hub,
		idx:     idx,
		mirror:  mir,
		library: library,
		log:     logger,
	}
	mux := http.NewServeMux()
	a.routes(mux, envBool("RS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()))
	if envBool("RS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Info().Msg("pprof endpoints disabled (RS_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, hub, ws.Options{
		Catalogs:     cats,
		TuningDigest: tune.Digest(),
		Token:        wsToken,
		QueueSize:    envInt("RS_WS_QUEUE", 256),
	}, root).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info().Str("addr", *addr).Str("world", *worldID).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("ListenAndServe")
		cancel()
	}
	<-worldDone
}

func newLogger(pretty bool, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

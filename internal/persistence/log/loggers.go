package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	onClose func(path string)

	mu      sync.Mutex
	curHour string
	curPath string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// Options tune a log writer. OnClose, when set, receives the path of every segment
// once it is complete (rotation or Close).
type Options struct {
	OnClose func(path string)
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return NewJSONLZstdWriterWithOptions(baseDir, prefix, Options{})
}

func NewJSONLZstdWriterWithOptions(baseDir, prefix string, opts Options) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
		onClose: opts.OnClose,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Flush ends the current zstd block so a tailing reader sees every line written.
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.curPath = path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if w.curPath != "" && w.onClose != nil {
		w.onClose(w.curPath)
	}
	w.curPath = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed). The log is what replay reads.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return NewTickLoggerWithOptions(worldDir, Options{})
}

func NewTickLoggerWithOptions(worldDir string, opts Options) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriterWithOptions(TickDir(worldDir), TickPrefix, opts)}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// EventLogger writes machine events in their wire form (compressed).
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(worldDir string) *EventLogger {
	return NewEventLoggerWithOptions(worldDir, Options{})
}

func NewEventLoggerWithOptions(worldDir string, opts Options) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriterWithOptions(EventDir(worldDir), EventPrefix, opts)}
}

func (l *EventLogger) WriteEvent(ev machine.Event) error { return l.w.Write(world.EventObs(ev)) }
func (l *EventLogger) Close() error                      { return l.w.Close() }

const (
	TickPrefix  = "ticks"
	EventPrefix = "events"
)

func TickDir(worldDir string) string  { return filepath.Join(worldDir, "ticks") }
func EventDir(worldDir string) string { return filepath.Join(worldDir, "events") }

// TeeTicks fans one tick entry out to several loggers. Every logger sees the entry; the
// first error is returned.
func TeeTicks(ls ...world.TickLogger) world.TickLogger { return tickTee(ls) }

type tickTee []world.TickLogger

func (t tickTee) WriteTick(e world.TickLogEntry) error {
	var first error
	for _, l := range t {
		if err := l.WriteTick(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// TeeEvents is TeeTicks for event loggers.
func TeeEvents(ls ...world.EventLogger) world.EventLogger { return eventTee(ls) }

type eventTee []world.EventLogger

func (t eventTee) WriteEvent(ev machine.Event) error {
	var first error
	for _, l := range t {
		if err := l.WriteEvent(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	RunID   string `json:"run_id,omitempty"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate           int `json:"tick_rate_hz"`
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`

	// Catalog digests the machines were built against.
	PartsDigest     string `json:"parts_digest,omitempty"`
	JointsDigest    string `json:"joints_digest,omitempty"`
	MaterialsDigest string `json:"materials_digest,omitempty"`

	Assemblies []AssemblyV1 `json:"assemblies"`
	Physics    PhysicsV1    `json:"physics"`
	Inputs     []InputV1    `json:"inputs,omitempty"`
}

// InputV1 is the last driver input the host applied to a machine.
type InputV1 struct {
	Assembly string  `json:"assembly"`
	Throttle float64 `json:"throttle"`
	Steer    float64 `json:"steer"`
}

// AssemblyV1 is the flat machine record: per part id, kind, pose and current health, plus
// the joints and signal wiring needed to rebuild the graph.
type AssemblyV1 struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Active       bool      `json:"active"`
	Broken       bool      `json:"broken"`
	BrokenReason string    `json:"broken_reason,omitempty"`
	NextJoint    int       `json:"next_joint,omitempty"`
	Parts        []PartV1  `json:"parts"`
	Joints       []JointV1 `json:"joints,omitempty"`
	Wires        []WireV1  `json:"wires,omitempty"`
}

type PartV1 struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	CatalogID string     `json:"catalog_id,omitempty"`
	Material  string     `json:"material,omitempty"`
	Pos       [3]float64 `json:"pos"`
	Yaw       float64    `json:"yaw,omitempty"`
	Health    float64    `json:"health"`
	MaxHealth float64    `json:"max_health"`
	Mass      float64    `json:"mass,omitempty"`

	Motor    *MotorStateV1    `json:"motor,omitempty"`
	Sensor   *SensorStateV1   `json:"sensor,omitempty"`
	Gate     *GateStateV1     `json:"gate,omitempty"`
	Cylinder *CylinderStateV1 `json:"cylinder,omitempty"`
	Tool     *ToolStateV1     `json:"tool,omitempty"`
	Wheel    *WheelStateV1    `json:"wheel,omitempty"`
	Seat     *SeatStateV1     `json:"seat,omitempty"`
}

type MotorStateV1 struct {
	Fuel        float64 `json:"fuel"`
	Temperature float64 `json:"temperature"`
	Running     bool    `json:"running"`
	Overheating bool    `json:"overheating"`
	Throttle    float64 `json:"throttle,omitempty"`
}

// SensorStateV1.Elapsed is the time since the last sample, so a restored sensor keeps its
// sampling phase.
type SensorStateV1 struct {
	Value     float64 `json:"value"`
	Triggered bool    `json:"triggered"`
	Elapsed   float64 `json:"elapsed,omitempty"`
}

type GateStateV1 struct {
	On         bool    `json:"on"`
	Value      float64 `json:"value"`
	TimerPhase float64 `json:"timer_phase,omitempty"`
	Elapsed    float64 `json:"elapsed,omitempty"`
}

// WheelStateV1 is the last torque and steer angle the machine commanded.
type WheelStateV1 struct {
	Torque float64 `json:"torque,omitempty"`
	Steer  float64 `json:"steer,omitempty"`
}

type SeatStateV1 struct {
	Occupied bool    `json:"occupied"`
	Throttle float64 `json:"throttle,omitempty"`
	Steer    float64 `json:"steer,omitempty"`
}

type CylinderStateV1 struct {
	Extension float64 `json:"extension"`
	Extended  bool    `json:"extended"`
}

type ToolStateV1 struct {
	Active bool `json:"active"`
}

type JointV1 struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	A      string  `json:"a"`
	B      string  `json:"b"`
	State  string  `json:"state"`
	Stress float64 `json:"stress,omitempty"`

	MaxForce    float64 `json:"max_force"`
	MaxTorque   float64 `json:"max_torque"`
	BreakForce  float64 `json:"break_force,omitempty"`
	BreakTorque float64 `json:"break_torque,omitempty"`
	CanBreak    bool    `json:"can_break"`
	Motorized   bool    `json:"motorized,omitempty"`
	Mass        float64 `json:"mass,omitempty"`
	Cost        int     `json:"cost,omitempty"`
	DriveSpeed  float64 `json:"drive_speed,omitempty"`
	MaxHealth   float64 `json:"max_health,omitempty"`
	UnlockLevel int     `json:"unlock_level,omitempty"`

	MotorEnabled  bool    `json:"motor_enabled,omitempty"`
	MotorVelocity float64 `json:"motor_velocity,omitempty"`
}

// WireV1 is one filled gate slot. Dir is "in" or "out"; Target is a part id, or a joint
// id when Joint is set.
type WireV1 struct {
	Gate   string `json:"gate"`
	Dir    string `json:"dir"`
	Slot   int    `json:"slot"`
	Target string `json:"target"`
	Joint  bool   `json:"joint,omitempty"`
}

type PhysicsV1 struct {
	Ambient   AmbientV1    `json:"ambient"`
	Bodies    []BodyV1     `json:"bodies,omitempty"`
	Wheels    []WheelV1    `json:"wheels,omitempty"`
	Loads     []LoadV1     `json:"loads,omitempty"`
	Obstacles []ObstacleV1 `json:"obstacles,omitempty"`
}

type AmbientV1 struct {
	Temperature float64 `json:"temperature"`
	Light       float64 `json:"light"`
}

type BodyV1 struct {
	ID     string     `json:"id"`
	Pos    [3]float64 `json:"pos"`
	Yaw    float64    `json:"yaw"`
	Speed  float64    `json:"speed"`
	Fallen bool       `json:"fallen,omitempty"`
}

type WheelV1 struct {
	ID     string  `json:"id"`
	RPM    float64 `json:"rpm"`
	Torque float64 `json:"torque"`
	Steer  float64 `json:"steer,omitempty"`
}

type LoadV1 struct {
	Joint  string  `json:"joint"`
	Force  float64 `json:"force"`
	Torque float64 `json:"torque"`
}

type ObstacleV1 struct {
	ID     string     `json:"id"`
	Pos    [3]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	Vel    [3]float64 `json:"velocity,omitempty"`
	Mass   float64    `json:"mass,omitempty"`
}

// WriteSnapshot writes to a temporary file and renames it into place, so a reader never
// sees a half-written snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is duplicated inside the gob payload.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the JSON header line, for listing snapshots cheaply.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

// FileName is the on-disk name for a snapshot taken at tick.
func FileName(tick uint64) string { return fmt.Sprintf("%d.snap.zst", tick) }

// Dir is where a world keeps its snapshots.
func Dir(worldDir string) string { return filepath.Join(worldDir, "snapshots") }

// Latest returns the snapshot with the highest tick under dir, or "" when there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		base, ok := strings.CutSuffix(e.Name(), ".snap.zst")
		if !ok {
			continue
		}
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, e.Name())
		}
	}
	return best
}

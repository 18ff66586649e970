package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	Stress  Stress  `yaml:"stress" json:"stress"`
	Motor   Motor   `yaml:"motor" json:"motor"`
	Sensor  Sensor  `yaml:"sensor" json:"sensor"`
	Gate    Gate    `yaml:"gate" json:"gate"`
	Physics Physics `yaml:"physics" json:"physics"`
}

// Stress is the connection hysteresis band, uniform across joint kinds.
type Stress struct {
	Enter float64 `yaml:"enter" json:"enter"`
	Exit  float64 `yaml:"exit" json:"exit"`
	Break float64 `yaml:"break" json:"break"`
}

type Motor struct {
	AmbientTemperature float64 `yaml:"ambient_temperature" json:"ambient_temperature"`
	HeatRate           float64 `yaml:"heat_rate" json:"heat_rate"`
	CoolRate           float64 `yaml:"cool_rate" json:"cool_rate"`
	RecoverRatio       float64 `yaml:"recover_ratio" json:"recover_ratio"`
	WheelSearchDepth   int     `yaml:"wheel_search_depth" json:"wheel_search_depth"`
	WheelSearchNodes   int     `yaml:"wheel_search_nodes" json:"wheel_search_nodes"`
}

type Sensor struct {
	DefaultRateHz float64 `yaml:"default_rate_hz" json:"default_rate_hz"`
}

type Gate struct {
	DefaultRateHz float64 `yaml:"default_rate_hz" json:"default_rate_hz"`
}

type Physics struct {
	WheelInertia   float64 `yaml:"wheel_inertia" json:"wheel_inertia"`
	WheelDrag      float64 `yaml:"wheel_drag" json:"wheel_drag"`
	BoundaryRadius float64 `yaml:"boundary_radius" json:"boundary_radius"`
	KillDepth      float64 `yaml:"kill_depth" json:"kill_depth"`
	Gravity        float64 `yaml:"gravity" json:"gravity"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickRateHz:         20,
		SnapshotEveryTicks: 1200,
		Stress:             Stress{Enter: 0.8, Exit: 0.6, Break: 1.0},
		Motor: Motor{
			AmbientTemperature: 20,
			HeatRate:           4,
			CoolRate:           6,
			RecoverRatio:       0.8,
			WheelSearchDepth:   3,
			WheelSearchNodes:   256,
		},
		Sensor: Sensor{DefaultRateHz: 10},
		Gate:   Gate{DefaultRateHz: 20},
		Physics: Physics{
			WheelInertia:   2,
			WheelDrag:      0.05,
			BoundaryRadius: 500,
			KillDepth:      -50,
			Gravity:        9.81,
		},
	}
}

// Load reads a tuning file over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if t.SnapshotEveryTicks < 0 {
		return fmt.Errorf("snapshot_every_ticks must not be negative")
	}
	s := t.Stress
	if !(s.Exit > 0 && s.Exit < s.Enter && s.Enter <= s.Break) {
		return fmt.Errorf("stress: want 0 < exit < enter <= break, got exit=%v enter=%v break=%v", s.Exit, s.Enter, s.Break)
	}
	m := t.Motor
	if m.HeatRate < 0 || m.CoolRate < 0 {
		return fmt.Errorf("motor: heat/cool rates must not be negative")
	}
	if m.RecoverRatio <= 0 || m.RecoverRatio > 1 {
		return fmt.Errorf("motor: recover_ratio must be in (0,1]")
	}
	if m.WheelSearchDepth <= 0 || m.WheelSearchNodes <= 0 {
		return fmt.Errorf("motor: wheel search limits must be positive")
	}
	if t.Sensor.DefaultRateHz <= 0 || t.Gate.DefaultRateHz <= 0 {
		return fmt.Errorf("sensor/gate default rates must be positive")
	}
	return nil
}

func (t Tuning) TickDuration() float64 {
	if t.TickRateHz <= 0 {
		return 0
	}
	return 1 / float64(t.TickRateHz)
}

// Digest is the sha256 of the canonical JSON form, reported to clients and the index.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Parts     PartCatalog
	Joints    JointCatalog
	Materials MaterialCatalog
}

type PartCatalog struct {
	Palette []string
	Defs    map[string]PartDef
	Digest  string
}

// PartDef is one buildable part. Exactly one component block is expected to match Kind
// (motor for MOTOR, wheel for WHEEL, ...). BLOCK and CONNECTION kinds carry none.
type PartDef struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"` // BLOCK, MOTOR, WHEEL, TOOL, SENSOR, CONTROLLER, LOGIC_GATE, DRIVER_SEAT, CYLINDER
	Name        string  `json:"name"`
	Material    string  `json:"material,omitempty"`
	Mass        float64 `json:"mass"`
	Cost        int     `json:"cost"`
	UnlockLevel int     `json:"unlock_level"`
	MaxHealth   float64 `json:"max_health"`

	Motor    *MotorDef    `json:"motor,omitempty"`
	Wheel    *WheelDef    `json:"wheel,omitempty"`
	Sensor   *SensorDef   `json:"sensor,omitempty"`
	Gate     *GateDef     `json:"gate,omitempty"`
	Cylinder *CylinderDef `json:"cylinder,omitempty"`
	Tool     *ToolDef     `json:"tool,omitempty"`
	Seat     *SeatDef     `json:"seat,omitempty"`
}

type MotorDef struct {
	Power           float64 `json:"power"`
	MaxRPM          float64 `json:"max_rpm"`
	FuelMax         float64 `json:"fuel_max"`
	FuelConsumption float64 `json:"fuel_consumption"`
	MaxTemperature  float64 `json:"max_temperature"`
}

type WheelDef struct {
	Radius         float64 `json:"radius"`
	TorqueCapacity float64 `json:"torque_capacity"`
	MaxSpeed       float64 `json:"max_speed"`
	Motorized      bool    `json:"motorized"`
	Steering       bool    `json:"steering"`
	MaxSteerDeg    float64 `json:"max_steer_deg,omitempty"`
}

type SensorDef struct {
	Kind         string  `json:"kind"` // DISTANCE, PROXIMITY, PRESSURE, TEMPERATURE, LIGHT, MOTION
	Range        float64 `json:"range"`
	UpdateRateHz float64 `json:"update_rate_hz"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Trigger      float64 `json:"trigger,omitempty"`
}

type GateDef struct {
	Logic     string  `json:"logic"`
	Inputs    int     `json:"inputs"`
	Outputs   int     `json:"outputs"`
	RateHz    float64 `json:"rate_hz"`
	Threshold float64 `json:"threshold,omitempty"`
	Invert    bool    `json:"invert,omitempty"`
	Delay     float64 `json:"delay,omitempty"`
}

type CylinderDef struct {
	Type   string  `json:"type"` // PNEUMATIC, HYDRAULIC
	Stroke float64 `json:"stroke"`
	Speed  float64 `json:"speed"`
	Force  float64 `json:"force"`
}

type ToolDef struct {
	Kind  string  `json:"kind"` // DRILL, WELDER
	Rate  float64 `json:"rate"`
	Range float64 `json:"range"`
}

type SeatDef struct {
	MaxSteerDeg float64 `json:"max_steer_deg,omitempty"`
}

type JointCatalog struct {
	Defs   map[string]JointDef
	Digest string
}

type JointDef struct {
	Kind        string  `json:"kind"` // FIXED, HINGE, SPRING, SLIDER, CONFIGURABLE
	Mass        float64 `json:"mass"`
	MaxHealth   float64 `json:"max_health"`
	Cost        int     `json:"cost"`
	UnlockLevel int     `json:"unlock_level"`
	MaxForce    float64 `json:"max_force"`
	MaxTorque   float64 `json:"max_torque"`
	BreakForce  float64 `json:"break_force,omitempty"`
	BreakTorque float64 `json:"break_torque,omitempty"`
	CanBreak    bool    `json:"can_break"`
	Motorized   bool    `json:"motorized,omitempty"`
}

type MaterialCatalog struct {
	Defs   map[string]MaterialDef
	Digest string
}

type MaterialDef struct {
	ID               string  `json:"id"`
	DamageMultiplier float64 `json:"damage_multiplier"`
}

// DamageMultiplier returns the multiplier for a material, 1 when unknown.
func (c MaterialCatalog) DamageMultiplier(id string) float64 {
	if d, ok := c.Defs[id]; ok && d.DamageMultiplier > 0 {
		return d.DamageMultiplier
	}
	return 1
}

// Load reads parts.json, joints.json and materials.json from configDir. A missing joints
// or materials file falls back to the built-in tables; parts.json is required.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadParts(filepath.Join(configDir, "parts.json"), &c.Parts); err != nil {
		return nil, err
	}
	if err := loadJoints(filepath.Join(configDir, "joints.json"), &c.Joints); err != nil {
		return nil, err
	}
	if err := loadMaterials(filepath.Join(configDir, "materials.json"), &c.Materials); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadParts(path string, out *PartCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []PartDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("parts.json: %w", err)
	}
	if err := out.set(defs); err != nil {
		return fmt.Errorf("parts.json: %w", err)
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func (out *PartCatalog) set(defs []PartDef) error {
	out.Defs = make(map[string]PartDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("empty id")
		}
		if d.MaxHealth <= 0 {
			return fmt.Errorf("%s: max_health must be positive", d.ID)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("%s: duplicate id", d.ID)
		}
		out.Defs[d.ID] = d
	}
	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	return nil
}

func loadJoints(path string, out *JointCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			*out = Defaults().Joints
			return nil
		}
		return err
	}
	var defs []JointDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("joints.json: %w", err)
	}
	out.Defs = map[string]JointDef{}
	for _, d := range defs {
		if d.Kind == "" {
			return fmt.Errorf("joints.json: empty kind")
		}
		out.Defs[d.Kind] = d
	}
	out.Digest = sha256Hex(raw)
	return nil
}

func loadMaterials(path string, out *MaterialCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			*out = Defaults().Materials
			return nil
		}
		return err
	}
	var defs []MaterialDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("materials.json: %w", err)
	}
	out.Defs = map[string]MaterialDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("materials.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Digest = sha256Hex(raw)
	return nil
}

// Package blueprint reads machine definition files and builds assemblies from them.
// A blueprint names parts by catalog id, joins them by joint kind and wires gate slots.
package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/machine/logic/stress"
)

var (
	ErrUnknownPart = errors.New("unknown part")
	ErrBadJoint    = errors.New("bad joint")
	ErrBadWire     = errors.New("bad wire")
)

type Blueprint struct {
	ID     string      `json:"id"`
	Name   string      `json:"name,omitempty"`
	Active bool        `json:"active,omitempty"`
	Spawn  *Pose       `json:"spawn,omitempty"`
	Parts  []PartSpec  `json:"parts"`
	Joints []JointSpec `json:"joints,omitempty"`
	Wires  []Wire      `json:"wires,omitempty"`
}

type Pose struct {
	Pos [3]float64 `json:"pos"`
	Yaw float64    `json:"yaw,omitempty"`
}

type PartSpec struct {
	ID        string     `json:"id"`
	CatalogID string     `json:"catalog_id"`
	Pos       [3]float64 `json:"pos"`
	Yaw       float64    `json:"yaw,omitempty"`
}

type JointSpec struct {
	ID     string  `json:"id,omitempty"`
	A      string  `json:"a"`
	B      string  `json:"b"`
	Kind   string  `json:"kind"`
	Limits *Limits `json:"limits,omitempty"`
}

// Limits overrides the catalog limits field by field; nil fields keep the catalog value.
type Limits struct {
	MaxForce    *float64 `json:"max_force,omitempty"`
	MaxTorque   *float64 `json:"max_torque,omitempty"`
	BreakForce  *float64 `json:"break_force,omitempty"`
	BreakTorque *float64 `json:"break_torque,omitempty"`
	CanBreak    *bool    `json:"can_break,omitempty"`
}

// Wire has the same shape as a recorded wire: a gate slot and what it connects to.
type Wire = snapshot.WireV1

// Parse validates raw against the blueprint schema and decodes it.
func Parse(raw []byte) (*Blueprint, error) {
	if err := protocol.ValidateBlueprint(raw); err != nil {
		return nil, err
	}
	var b Blueprint
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func Load(path string) (*Blueprint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// LoadDir loads every *.json file in dir, sorted by file name. Blueprint ids must be
// unique across the directory.
func LoadDir(dir string) ([]*Blueprint, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	seen := map[string]string{}
	var out []*Blueprint
	for _, p := range paths {
		b, err := Load(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%s: blueprint id %q already defined in %s", filepath.Base(p), b.ID, prev)
		}
		seen[b.ID] = filepath.Base(p)
		out = append(out, b)
	}
	return out, nil
}

func (b *Blueprint) SpawnPose() machine.Pose {
	if b.Spawn == nil {
		return machine.Pose{}
	}
	return machine.Pose{Pos: machine.Vec3FromArray(b.Spawn.Pos), Yaw: b.Spawn.Yaw}
}

// Build creates the assembly the blueprint describes under id (the blueprint id when
// empty). The machine is activated when the blueprint says so.
func (b *Blueprint) Build(id string, cats *catalogs.Catalogs, opts machine.Options) (*machine.Assembly, error) {
	if id == "" {
		id = b.ID
	}
	name := b.Name
	if name == "" {
		name = b.ID
	}
	a := machine.NewAssembly(id, name, opts)

	for _, ps := range b.Parts {
		def, ok := cats.Parts.Defs[ps.CatalogID]
		if !ok {
			return nil, fmt.Errorf("part %s: %w %q", ps.ID, ErrUnknownPart, ps.CatalogID)
		}
		p, err := machine.NewPart(machine.PartID(ps.ID), def, cats.Materials)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", ps.ID, err)
		}
		p.Pose = machine.Pose{Pos: machine.Vec3FromArray(ps.Pos), Yaw: ps.Yaw}
		if !a.AddPart(p) {
			return nil, fmt.Errorf("part %s: duplicate id", ps.ID)
		}
	}

	for i, js := range b.Joints {
		spec, err := b.jointSpec(js, cats.Joints)
		if err != nil {
			return nil, fmt.Errorf("joint %d (%s-%s): %w", i, js.A, js.B, err)
		}
		if _, ok := a.Connect(machine.ConnID(js.ID), machine.PartID(js.A), machine.PartID(js.B), spec); !ok {
			return nil, fmt.Errorf("joint %d (%s-%s): %w: endpoints missing, equal or already joined", i, js.A, js.B, ErrBadJoint)
		}
	}

	for _, w := range b.Wires {
		if err := a.ApplyWire(w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadWire, err)
		}
	}

	if b.Active {
		a.Activate()
	}
	return a, nil
}

func (b *Blueprint) jointSpec(js JointSpec, cat catalogs.JointCatalog) (machine.JointSpec, error) {
	kind, ok := machine.ParseJointKind(js.Kind)
	if !ok {
		return machine.JointSpec{}, fmt.Errorf("%w: kind %q", ErrBadJoint, js.Kind)
	}
	spec, err := machine.JointSpecFor(cat, kind)
	if err != nil {
		return machine.JointSpec{}, fmt.Errorf("%w: %v", ErrBadJoint, err)
	}
	if l := js.Limits; l != nil {
		if l.MaxForce != nil {
			spec.Limits.MaxForce = *l.MaxForce
		}
		if l.MaxTorque != nil {
			spec.Limits.MaxTorque = *l.MaxTorque
		}
		if l.BreakForce != nil {
			spec.Limits.BreakForce = *l.BreakForce
		}
		if l.BreakTorque != nil {
			spec.Limits.BreakTorque = *l.BreakTorque
		}
		if l.CanBreak != nil {
			spec.Limits.CanBreak = *l.CanBreak
		}
	}
	return spec, nil
}

// FromAssembly writes a live machine back out as a blueprint. Parts built without a
// catalog entry cannot be described and are reported as ErrUnknownPart.
func FromAssembly(a *machine.Assembly) (*Blueprint, error) {
	rec := a.Export()
	b := &Blueprint{ID: rec.ID, Name: rec.Name, Active: rec.Active}
	for _, p := range rec.Parts {
		if p.CatalogID == "" {
			return nil, fmt.Errorf("part %s: %w: no catalog id", p.ID, ErrUnknownPart)
		}
		b.Parts = append(b.Parts, PartSpec{ID: p.ID, CatalogID: p.CatalogID, Pos: p.Pos, Yaw: p.Yaw})
	}
	dropped := map[string]bool{}
	for _, j := range rec.Joints {
		if j.State == stress.Broken.String() {
			dropped[j.ID] = true
			continue
		}
		mf, mt, bf, bt, cb := j.MaxForce, j.MaxTorque, j.BreakForce, j.BreakTorque, j.CanBreak
		b.Joints = append(b.Joints, JointSpec{
			ID:   j.ID,
			A:    j.A,
			B:    j.B,
			Kind: j.Kind,
			Limits: &Limits{
				MaxForce:    &mf,
				MaxTorque:   &mt,
				BreakForce:  &bf,
				BreakTorque: &bt,
				CanBreak:    &cb,
			},
		})
	}
	for _, w := range rec.Wires {
		if w.Joint && dropped[w.Target] {
			continue
		}
		b.Wires = append(b.Wires, w)
	}
	return b, nil
}

// Marshal renders the blueprint in the on-disk format.
func (b *Blueprint) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

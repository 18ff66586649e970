package blueprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine"
)

const cartJSON = `{
  "id": "cart",
  "name": "Test Cart",
  "parts": [
    {"id": "frame", "catalog_id": "BLOCK_WOOD"},
    {"id": "engine", "catalog_id": "MOTOR_SMALL", "pos": [0, 0, -1]},
    {"id": "wheel", "catalog_id": "WHEEL_SMALL", "pos": [1, 0, 0], "yaw": 90},
    {"id": "eye", "catalog_id": "SENSOR_PROXIMITY", "pos": [0, 0, 1]},
    {"id": "not", "catalog_id": "GATE_NOT"}
  ],
  "joints": [
    {"id": "j1", "a": "frame", "b": "engine", "kind": "FIXED", "limits": {"max_force": 42, "can_break": false}},
    {"a": "frame", "b": "wheel", "kind": "HINGE"},
    {"a": "frame", "b": "eye", "kind": "FIXED"}
  ],
  "wires": [
    {"gate": "not", "dir": "in", "slot": 0, "target": "eye"},
    {"gate": "not", "dir": "out", "slot": 0, "target": "engine"}
  ]
}`

func TestBuild_Cart(t *testing.T) {
	bp, err := Parse([]byte(cartJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	a, err := bp.Build("", catalogs.Defaults(), machine.Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if a.ID != "cart" || a.Name != "Test Cart" || a.IsActive() {
		t.Fatalf("assembly header: id=%s name=%s active=%v", a.ID, a.Name, a.IsActive())
	}
	if a.PartCount() != 5 || a.ConnectionCount() != 3 {
		t.Fatalf("parts=%d joints=%d", a.PartCount(), a.ConnectionCount())
	}
	j1 := a.Connection("j1")
	if j1 == nil || j1.Limits.MaxForce != 42 || j1.Limits.CanBreak {
		t.Fatalf("j1 limits not overridden: %+v", j1)
	}
	if j1.Limits.MaxTorque != catalogs.Defaults().Joints.Defs["FIXED"].MaxTorque {
		t.Fatalf("unset limit should keep the catalog value")
	}
	if w := a.Part("wheel"); w.Pose.Yaw != 90 || w.Pose.Pos.X != 1 {
		t.Fatalf("wheel pose %+v", w.Pose)
	}
	if ws := a.Part("engine").Motor.Wheels(); len(ws) != 1 {
		t.Fatalf("motor should have found its wheel, got %d", len(ws))
	}
	g := a.Part("not").Gate
	if g.Input(0) != a.Part("eye").Sensor || g.Output(0) != a.Part("engine").Motor {
		t.Fatalf("gate wiring not applied")
	}
}

func TestBuild_IDOverrideAndActive(t *testing.T) {
	bp, err := Parse([]byte(`{"id":"x","active":true,"parts":[{"id":"p","catalog_id":"BLOCK_METAL"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	a, err := bp.Build("x-2", catalogs.Defaults(), machine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "x-2" || a.Name != "x" || !a.IsActive() {
		t.Fatalf("got id=%s name=%s active=%v", a.ID, a.Name, a.IsActive())
	}
}

func TestBuild_Errors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"unknown catalog id", `{"id":"x","parts":[{"id":"p","catalog_id":"FLUX_CAPACITOR"}]}`, ErrUnknownPart},
		{"joint to missing part", `{"id":"x","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"}],"joints":[{"a":"p","b":"q","kind":"FIXED"}]}`, ErrBadJoint},
		{"self joint", `{"id":"x","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"}],"joints":[{"a":"p","b":"p","kind":"FIXED"}]}`, ErrBadJoint},
		{"second joint on a pair", `{"id":"x","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"},{"id":"q","catalog_id":"BLOCK_WOOD"}],"joints":[{"a":"p","b":"q","kind":"FIXED"},{"a":"q","b":"p","kind":"HINGE"}]}`, ErrBadJoint},
		{"wire from non-gate", `{"id":"x","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"}],"wires":[{"gate":"p","dir":"in","slot":0,"target":"p"}]}`, ErrBadWire},
		{"wire slot out of range", `{"id":"x","parts":[{"id":"g","catalog_id":"GATE_NOT"},{"id":"s","catalog_id":"SENSOR_LIGHT"}],"wires":[{"gate":"g","dir":"in","slot":3,"target":"s"}]}`, ErrBadWire},
		{"wire output to a block", `{"id":"x","parts":[{"id":"g","catalog_id":"GATE_NOT"},{"id":"b","catalog_id":"BLOCK_WOOD"}],"wires":[{"gate":"g","dir":"out","slot":0,"target":"b"}]}`, ErrBadWire},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bp, err := Parse([]byte(tc.doc))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			_, err = bp.Build("", catalogs.Defaults(), machine.Options{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParse_SchemaRejects(t *testing.T) {
	if _, err := Parse([]byte(`{"id":"x","parts":[{"id":"p"}]}`)); err == nil {
		t.Fatalf("part without catalog_id accepted")
	}
	if _, err := Parse([]byte(`{"id":"x","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"}],"joints":[{"a":"p","b":"q","kind":"GLUE"}]}`)); err == nil {
		t.Fatalf("unknown joint kind accepted")
	}
}

func TestFromAssembly_RoundTrip(t *testing.T) {
	cats := catalogs.Defaults()
	bp, err := Parse([]byte(cartJSON))
	if err != nil {
		t.Fatal(err)
	}
	a, err := bp.Build("", cats, machine.Options{})
	if err != nil {
		t.Fatal(err)
	}

	out, err := FromAssembly(a)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := out.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	again, err := Parse(raw)
	if err != nil {
		t.Fatalf("written blueprint does not validate: %v\n%s", err, raw)
	}
	b, err := again.Build("", cats, machine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Export(), b.Export()); diff != "" {
		t.Fatalf("rebuilt machine differs (-want +got):\n%s", diff)
	}
}

func TestFromAssembly_SkipsBrokenJoints(t *testing.T) {
	bp, err := Parse([]byte(cartJSON))
	if err != nil {
		t.Fatal(err)
	}
	a, err := bp.Build("", catalogs.Defaults(), machine.Options{})
	if err != nil {
		t.Fatal(err)
	}
	a.Connection("j1").Destroy()
	out, err := FromAssembly(a)
	if err != nil {
		t.Fatal(err)
	}
	for _, j := range out.Joints {
		if j.ID == "j1" {
			t.Fatalf("broken joint written out")
		}
	}
}

func TestLoadDir_RepoBlueprints(t *testing.T) {
	bps, err := LoadDir("../../../configs/blueprints")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(bps) < 2 {
		t.Fatalf("expected sample blueprints, got %d", len(bps))
	}
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatal(err)
	}
	for _, bp := range bps {
		if _, err := bp.Build("", cats, machine.Options{}); err != nil {
			t.Fatalf("%s: %v", bp.ID, err)
		}
	}
}

func TestLoadDir_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`{"id":"same","parts":[{"id":"p","catalog_id":"BLOCK_WOOD"}]}`)
	for _, name := range []string{"a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), doc, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("duplicate blueprint ids accepted")
	}
}

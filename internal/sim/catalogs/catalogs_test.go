package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfigsMatchDefaults(t *testing.T) {
	cats, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := Defaults()
	if len(cats.Parts.Defs) != len(def.Parts.Defs) {
		t.Fatalf("parts: configs=%d defaults=%d", len(cats.Parts.Defs), len(def.Parts.Defs))
	}
	for id, d := range def.Parts.Defs {
		got, ok := cats.Parts.Defs[id]
		if !ok {
			t.Fatalf("configs missing part %s", id)
		}
		if got.Kind != d.Kind || got.MaxHealth != d.MaxHealth || got.Cost != d.Cost {
			t.Fatalf("part %s differs: configs=%+v defaults=%+v", id, got, d)
		}
	}
	for kind, d := range def.Joints.Defs {
		if cats.Joints.Defs[kind] != d {
			t.Fatalf("joint %s differs", kind)
		}
	}
	if cats.Parts.Digest == "" || cats.Joints.Digest == "" || cats.Materials.Digest == "" {
		t.Fatalf("expected digests to be set")
	}
}

func TestDefaults_JointsIncreaseInCapabilityAndPrice(t *testing.T) {
	order := []string{"FIXED", "HINGE", "SPRING", "SLIDER", "CONFIGURABLE"}
	def := Defaults()
	for i := 1; i < len(order); i++ {
		prev, cur := def.Joints.Defs[order[i-1]], def.Joints.Defs[order[i]]
		if cur.MaxForce <= prev.MaxForce || cur.MaxTorque <= prev.MaxTorque || cur.Cost <= prev.Cost {
			t.Fatalf("%s should exceed %s", order[i], order[i-1])
		}
	}
}

func TestMaterials_DamageMultiplier(t *testing.T) {
	m := Defaults().Materials
	if got := m.DamageMultiplier("METAL"); got != 0.7 {
		t.Fatalf("metal: %v", got)
	}
	if got := m.DamageMultiplier("PLASTIC"); got != 1.3 {
		t.Fatalf("plastic: %v", got)
	}
	if got := m.DamageMultiplier("UNOBTAINIUM"); got != 1 {
		t.Fatalf("unknown material should be 1, got %v", got)
	}
}

func TestLoad_MissingOptionalFilesFallBack(t *testing.T) {
	dir := t.TempDir()
	raw := `[{"id":"B","kind":"BLOCK","name":"b","mass":1,"cost":1,"unlock_level":1,"max_health":10}]`
	if err := os.WriteFile(filepath.Join(dir, "parts.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cats, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cats.Joints.Defs) != 5 || len(cats.Materials.Defs) == 0 {
		t.Fatalf("expected built-in joints/materials, got %d/%d", len(cats.Joints.Defs), len(cats.Materials.Defs))
	}
}

func TestLoad_RejectsBadParts(t *testing.T) {
	cases := map[string]string{
		"empty id":   `[{"id":"","kind":"BLOCK","max_health":1}]`,
		"no health":  `[{"id":"X","kind":"BLOCK","max_health":0}]`,
		"duplicate":  `[{"id":"X","kind":"BLOCK","max_health":1},{"id":"X","kind":"BLOCK","max_health":1}]`,
		"not json":   `{`,
	}
	for name, raw := range cases {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "parts.json"), []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

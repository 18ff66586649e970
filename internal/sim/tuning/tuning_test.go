package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoTuning(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu != Defaults() {
		t.Fatalf("repo tuning.yaml drifted from Defaults():\n got=%+v\nwant=%+v", tu, Defaults())
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_rate_hz: 50\nmotor:\n  heat_rate: 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz != 50 || tu.Motor.HeatRate != 9 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Motor.CoolRate != Defaults().Motor.CoolRate || tu.Stress != Defaults().Stress {
		t.Fatalf("unspecified fields should keep defaults: %+v", tu)
	}
	if got := tu.TickDuration(); got != 0.02 {
		t.Fatalf("tick duration: %v", got)
	}
}

func TestValidate_RejectsInvertedBand(t *testing.T) {
	tu := Defaults()
	tu.Stress = Stress{Enter: 0.5, Exit: 0.7, Break: 1}
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected error for exit >= enter")
	}
	tu = Defaults()
	tu.TickRateHz = 0
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected error for zero tick rate")
	}
}

package stress

import "testing"

func TestClassify_Hysteresis(t *testing.T) {
	th := DefaultThresholds()
	steps := []struct {
		stress float64
		want   State
	}{
		{0.5, Normal},
		{0.8, Normal}, // enter is strict
		{0.9, Stressed},
		{0.7, Stressed}, // inside the band, stays
		{0.6, Stressed}, // exit is strict
		{0.4, Normal},
		{0.85, Stressed},
		{1.1, Broken},
		{0, Broken},
	}
	s := Normal
	for i, st := range steps {
		s = Classify(s, st.stress, th, true)
		if s != st.want {
			t.Fatalf("step %d stress=%v: got %v want %v", i, st.stress, s, st.want)
		}
	}
}

func TestClassify_BreakFromNormal(t *testing.T) {
	if got := Classify(Normal, 1.5, DefaultThresholds(), true); got != Broken {
		t.Fatalf("expected broken from normal, got %v", got)
	}
}

func TestClassify_UnbreakableCapsAtStressed(t *testing.T) {
	if got := Classify(Normal, 5, DefaultThresholds(), false); got != Stressed {
		t.Fatalf("expected stressed, got %v", got)
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(90, 0, 100, 50); got != 0.9 {
		t.Fatalf("got %v", got)
	}
	if got := Ratio(10, 40, 100, 50); got != 0.8 {
		t.Fatalf("torque term should dominate, got %v", got)
	}
	if got := Ratio(-120, 0, 100, 0); got != 1.2 {
		t.Fatalf("negative force counts by magnitude, got %v", got)
	}
	if got := Ratio(1e6, 1e6, 0, 0); got != 0 {
		t.Fatalf("no ceilings means no stress, got %v", got)
	}
}

func TestParseState(t *testing.T) {
	for _, s := range []State{Normal, Stressed, Broken} {
		got, ok := ParseState(s.String())
		if !ok || got != s {
			t.Fatalf("parse %v: got %v ok=%v", s, got, ok)
		}
	}
	if _, ok := ParseState("WOBBLY"); ok {
		t.Fatalf("expected unknown state to fail")
	}
}

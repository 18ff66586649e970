package machine

import (
	"testing"

	"rigsim.ai/internal/sim/catalogs"
)

type jointCmd struct {
	enabled  bool
	velocity float64
}

type fakePhysics struct {
	loads   map[ConnID][2]float64
	hit     *Hit
	bodies  []Body
	ambient Ambient

	torque map[PartID]float64
	steer  map[PartID]float64
	rpm    map[PartID]float64
	joints map[ConnID]jointCmd
	ext    map[PartID]float64
}

func newFakePhysics() *fakePhysics {
	return &fakePhysics{
		loads:  map[ConnID][2]float64{},
		torque: map[PartID]float64{},
		steer:  map[PartID]float64{},
		rpm:    map[PartID]float64{},
		joints: map[ConnID]jointCmd{},
		ext:    map[PartID]float64{},
	}
}

func (f *fakePhysics) Raycast(origin, dir Vec3, maxDist float64) (Hit, bool) {
	if f.hit == nil || f.hit.Distance > maxDist {
		return Hit{}, false
	}
	return *f.hit, true
}

func (f *fakePhysics) Overlap(center Vec3, radius float64) []Body {
	var out []Body
	for _, b := range f.bodies {
		if b.Pos.Sub(center).Len() <= radius {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakePhysics) Environment(Vec3) Ambient { return f.ambient }

func (f *fakePhysics) JointLoad(id ConnID) (float64, float64, bool) {
	l, ok := f.loads[id]
	return l[0], l[1], ok
}

func (f *fakePhysics) ApplyWheelTorque(id PartID, t float64)     { f.torque[id] = t }
func (f *fakePhysics) SetWheelSteer(id PartID, deg float64)      { f.steer[id] = deg }
func (f *fakePhysics) WheelRPM(id PartID) float64                { return f.rpm[id] }
func (f *fakePhysics) SetActuatorExtension(id PartID, x float64) { f.ext[id] = x }
func (f *fakePhysics) PartPose(PartID) (Pose, bool)              { return Pose{}, false }

func (f *fakePhysics) SetJointMotor(id ConnID, enabled bool, v float64) {
	f.joints[id] = jointCmd{enabled: enabled, velocity: v}
}

// fakeSource is a hand-set signal source.
type fakeSource struct {
	id  string
	sig Signal
}

func (s *fakeSource) SourceID() string { return s.id }
func (s *fakeSource) Signal() Signal   { return s.sig }

// fakeActuator records every drive call.
type fakeActuator struct {
	id  string
	got []Signal
}

func (a *fakeActuator) ActuatorID() string { return a.id }
func (a *fakeActuator) Drive(s Signal)     { a.got = append(a.got, s) }

// recorder collects published events.
type recorder struct{ events []Event }

func (r *recorder) fn(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) count(t EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) types() []EventType {
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func newTestAssembly(t *testing.T, ph Physics) (*Assembly, *recorder) {
	t.Helper()
	bus := NewEventBus()
	rec := &recorder{}
	bus.Subscribe(rec.fn)
	a := NewAssembly("rig", "test rig", Options{Bus: bus, Physics: ph})
	return a, rec
}

func mustPart(t *testing.T, id PartID, catalogID string) *Part {
	t.Helper()
	cats := catalogs.Defaults()
	def, ok := cats.Parts.Defs[catalogID]
	if !ok {
		t.Fatalf("catalog id %s missing", catalogID)
	}
	p, err := NewPart(id, def, cats.Materials)
	if err != nil {
		t.Fatalf("NewPart %s: %v", catalogID, err)
	}
	return p
}

func mustAdd(t *testing.T, a *Assembly, parts ...*Part) {
	t.Helper()
	for _, p := range parts {
		if !a.AddPart(p) {
			t.Fatalf("AddPart %s rejected", p.ID)
		}
	}
}

func mustConnect(t *testing.T, a *Assembly, id ConnID, pa, pb PartID, spec JointSpec) *Connection {
	t.Helper()
	c, ok := a.Connect(id, pa, pb, spec)
	if !ok {
		t.Fatalf("Connect %s-%s rejected", pa, pb)
	}
	return c
}

func fixed(maxForce float64) JointSpec {
	return JointSpec{Kind: JointFixed, Limits: Limits{MaxForce: maxForce, CanBreak: true}}
}

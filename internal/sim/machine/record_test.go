package machine

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rigsim.ai/internal/persistence/snapshot"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/machine/logic/gates"
)

type partTuple struct {
	ID     PartID
	Kind   Kind
	Pose   Pose
	Health float64
}

func tuples(a *Assembly) []partTuple {
	var out []partTuple
	for _, p := range a.Parts() {
		out = append(out, partTuple{ID: p.ID, Kind: p.Kind, Pose: p.Pose, Health: p.Health()})
	}
	return out
}

func buildRig(t *testing.T) *Assembly {
	t.Helper()
	a, _ := newTestAssembly(t, newFakePhysics())
	parts := []*Part{
		mustPart(t, "frame", "BLOCK_METAL"),
		mustPart(t, "engine", "MOTOR_SMALL"),
		mustPart(t, "wl", "WHEEL_SMALL"),
		mustPart(t, "wr", "WHEEL_SMALL"),
		mustPart(t, "eye", "SENSOR_DISTANCE"),
		mustPart(t, "and", "GATE_AND"),
		mustPart(t, "arm", "CYLINDER_PNEUMATIC"),
		NewBasePart("custom", KindBlock, 33, 1),
	}
	for i, p := range parts {
		p.Pose = Pose{Pos: Vec3{X: float64(i), Y: 0.5, Z: -float64(i)}, Yaw: float64(15 * i)}
	}
	mustAdd(t, a, parts...)
	cats := catalogs.Defaults()
	fx, err := JointSpecFor(cats.Joints, JointFixed)
	if err != nil {
		t.Fatal(err)
	}
	hinge, err := JointSpecFor(cats.Joints, JointHinge)
	if err != nil {
		t.Fatal(err)
	}
	mustConnect(t, a, "j1", "frame", "engine", fx)
	mustConnect(t, a, "j2", "frame", "wl", fx)
	mustConnect(t, a, "j3", "frame", "wr", fx)
	mustConnect(t, a, "j4", "frame", "arm", hinge)
	mustConnect(t, a, "j5", "frame", "custom", fx)

	g := a.Part("and").Gate
	g.SetInput(0, a.SignalSourceOf("eye"))
	g.SetOutput(0, a.ActuatorOf("engine"))

	a.Part("frame").TakeDamage(20)
	a.Part("wr").Destroy("test")
	a.Part("engine").Motor.SetFuel(12.5)
	return a
}

func TestRecord_RoundTripKeepsPartTuples(t *testing.T) {
	a := buildRig(t)
	rec := a.Export()

	b, err := Import(rec, catalogs.Defaults(), Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if diff := cmp.Diff(tuples(a), tuples(b)); diff != "" {
		t.Fatalf("part tuples differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rec, b.Export()); diff != "" {
		t.Fatalf("record not stable (-first +second):\n%s", diff)
	}
}

func TestRecord_RoundTripRestoresBehavior(t *testing.T) {
	a := buildRig(t)
	b, err := Import(a.Export(), catalogs.Defaults(), Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !b.Part("wr").Destroyed() || b.Part("engine").Motor.Fuel() != 12.5 {
		t.Fatalf("state lost: wr destroyed=%v fuel=%v", b.Part("wr").Destroyed(), b.Part("engine").Motor.Fuel())
	}
	if got := b.Part("and").Gate.Input(0); got == nil || got.SourceID() != "eye" {
		t.Fatalf("gate input not rewired")
	}
	if got := b.Connection("j3"); got == nil || !got.Broken() {
		t.Fatalf("joint to destroyed wheel should stay broken")
	}
	if n := len(b.Part("engine").Motor.Wheels()); n != 1 {
		t.Fatalf("drivetrain rescan found %d live wheels", n)
	}

	ha, hb := sha256.New(), sha256.New()
	a.WriteDigest(ha)
	b.WriteDigest(hb)
	if hex.EncodeToString(ha.Sum(nil)) != hex.EncodeToString(hb.Sum(nil)) {
		t.Fatalf("digest differs after round trip")
	}
}

func TestRecord_ImportRejectsUnknownCatalogID(t *testing.T) {
	a := buildRig(t)
	rec := a.Export()
	rec.Parts[0].CatalogID = "NOPE"
	if _, err := Import(rec, catalogs.Defaults(), Options{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRecord_ImportRejectsBadWire(t *testing.T) {
	for _, w := range []snapshot.WireV1{
		{Gate: "and", Dir: "in", Slot: 5, Target: "eye"},
		{Gate: "and", Dir: "in", Slot: 1, Target: "ghost"},
		{Gate: "and", Dir: "out", Slot: 0, Target: "frame"},
		{Gate: "frame", Dir: "in", Slot: 0, Target: "eye"},
	} {
		rec := buildRig(t).Export()
		rec.Wires = append(rec.Wires, w)
		if _, err := Import(rec, catalogs.Defaults(), Options{}); err == nil {
			t.Fatalf("wire %+v accepted", w)
		}
	}
}

func TestRecord_ImportBareGateKeepsKind(t *testing.T) {
	a, _ := newTestAssembly(t, nil)
	mustAdd(t, a, NewGatePart("g", gates.AND, 2, 1, 10))
	b, err := Import(a.Export(), nil, Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if b.Part("g").Kind != KindLogicGate {
		t.Fatalf("kind %v", b.Part("g").Kind)
	}
}

func digestOf(a *Assembly) string {
	h := sha256.New()
	a.WriteDigest(h)
	return hex.EncodeToString(h.Sum(nil))
}

type driveState struct {
	Throttle    float64
	WheelTorque float64
	Steer       float64
	Occupied    bool
	SeatInput   [2]float64
	SensorPhase float64
	GatePhase   float64
	NextJoint   ConnID
}

func driveStateOf(a *Assembly) driveState {
	seat := a.Part("seat").Seat
	return driveState{
		Throttle:    a.Part("engine").Motor.Throttle(),
		WheelTorque: a.Part("wl").Wheel.Torque(),
		Steer:       a.Part("ws").Wheel.SteerAngle(),
		Occupied:    seat.Occupied(),
		SeatInput:   [2]float64{seat.Throttle(), seat.Steer()},
		SensorPhase: a.Part("eye").Sensor.elapsed,
		GatePhase:   a.Part("and").Gate.elapsed,
		NextJoint:   a.newConnID(),
	}
}

func TestRecord_RoundTripKeepsDriveState(t *testing.T) {
	a := buildRig(t)
	mustAdd(t, a, mustPart(t, "seat", "DRIVER_SEAT"), mustPart(t, "ws", "WHEEL_STEER"))
	fx, err := JointSpecFor(catalogs.Defaults().Joints, JointFixed)
	if err != nil {
		t.Fatal(err)
	}
	mustConnect(t, a, "", "frame", "seat", fx)
	mustConnect(t, a, "", "frame", "ws", fx)
	a.Disconnect("j5")

	eng := a.Part("engine").Motor
	if !eng.StartEngine() {
		t.Fatalf("start failed")
	}
	eng.ApplyPowerToWheels(0.8)
	a.Part("seat").Seat.SetInput(0.8, -0.5)
	a.Part("ws").Wheel.Steer(12)
	a.Part("eye").Sensor.elapsed = 0.05
	a.Part("and").Gate.elapsed = 0.03

	b, err := Import(a.Export(), catalogs.Defaults(), Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if b.Part("wl").Wheel.Torque() == 0 || b.Part("engine").Motor.Throttle() != 0.8 {
		t.Fatalf("drive lost: torque=%v throttle=%v", b.Part("wl").Wheel.Torque(), b.Part("engine").Motor.Throttle())
	}
	if digestOf(a) != digestOf(b) {
		t.Fatalf("digest differs after round trip")
	}
	if diff := cmp.Diff(driveStateOf(a), driveStateOf(b)); diff != "" {
		t.Fatalf("drive state (-want +got):\n%s", diff)
	}
}

func TestRecord_ImportClampsOutOfRangeState(t *testing.T) {
	rec := buildRig(t).Export()
	for i := range rec.Parts {
		switch {
		case rec.Parts[i].Motor != nil:
			rec.Parts[i].Motor.Fuel = 1e6
			rec.Parts[i].Motor.Throttle = 7
			rec.Parts[i].Motor.Running = true
		case rec.Parts[i].Sensor != nil:
			rec.Parts[i].Sensor.Value = -5
			rec.Parts[i].Sensor.Elapsed = -1
		}
	}
	b, err := Import(rec, catalogs.Defaults(), Options{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	m := b.Part("engine").Motor
	if m.Fuel() != m.FuelMax || m.Throttle() != 1 {
		t.Fatalf("fuel=%v (max %v) throttle=%v", m.Fuel(), m.FuelMax, m.Throttle())
	}
	s := b.Part("eye").Sensor
	if s.Value() != s.Min || s.elapsed != 0 {
		t.Fatalf("sensor value=%v elapsed=%v, min %v", s.Value(), s.elapsed, s.Min)
	}
}

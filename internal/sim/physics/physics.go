// Package physics is a deterministic flat-ground stand-in for a rigid-body engine. Each
// machine is one body on the ground plane; parts are spheres at their local poses.
package physics

import (
	"math"
	"sort"

	"rigsim.ai/internal/sim/machine"
	"rigsim.ai/internal/sim/tuning"
)

// PartRadius is the collision radius of one part for rays and overlaps.
const PartRadius = 0.5

// wheelbase turns a steer angle into a yaw rate.
const wheelbase = 2.0

type Config struct {
	WheelInertia   float64
	WheelDrag      float64
	BoundaryRadius float64
	KillDepth      float64
	Gravity        float64
	Ambient        machine.Ambient
}

func ConfigFromTuning(t tuning.Physics) Config {
	return Config{
		WheelInertia:   t.WheelInertia,
		WheelDrag:      t.WheelDrag,
		BoundaryRadius: t.BoundaryRadius,
		KillDepth:      t.KillDepth,
		Gravity:        t.Gravity,
		Ambient:        machine.Ambient{Temperature: 20, Light: 1},
	}
}

type Obstacle struct {
	ID       string
	Pos      machine.Vec3
	Radius   float64
	Velocity machine.Vec3
	Mass     float64
}

// Fatal is a machine the world lost this step.
type Fatal struct {
	AssemblyID string `json:"assembly"`
	Reason     string `json:"reason"`
}

type wheelState struct {
	torque float64
	rpm    float64
	steer  float64
}

type load struct {
	force  float64
	torque float64
}

type body struct {
	asm *machine.Assembly

	pos    machine.Vec3
	yaw    float64
	speed  float64
	vy     float64
	fallen bool

	wheels    map[machine.PartID]*wheelState
	loads     map[machine.ConnID]load
	joints    map[machine.ConnID]jointMotor
	extension map[machine.PartID]float64
}

type jointMotor struct {
	enabled  bool
	velocity float64
}

// World owns every body. It is single-threaded like the machines it serves.
type World struct {
	cfg       Config
	bodies    map[string]*body
	order     []string
	obstacles []Obstacle
}

func New(cfg Config) *World {
	return &World{cfg: cfg, bodies: map[string]*body{}}
}

func (w *World) Config() Config { return w.cfg }

func (w *World) SetAmbient(a machine.Ambient) { w.cfg.Ambient = a }

// Attach registers a machine at a spawn pose and wires its physics port.
func (w *World) Attach(a *machine.Assembly, spawn machine.Pose) *Port {
	b, ok := w.bodies[a.ID]
	if !ok {
		b = &body{
			wheels:    map[machine.PartID]*wheelState{},
			loads:     map[machine.ConnID]load{},
			joints:    map[machine.ConnID]jointMotor{},
			extension: map[machine.PartID]float64{},
		}
		w.bodies[a.ID] = b
		w.order = append(w.order, a.ID)
		sort.Strings(w.order)
	}
	b.asm = a
	b.pos = spawn.Pos
	b.yaw = spawn.Yaw
	p := &Port{w: w, b: b}
	a.SetPhysics(p)
	return p
}

func (w *World) Detach(id string) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	if b.asm != nil {
		b.asm.SetPhysics(nil)
	}
	delete(w.bodies, id)
	for i, x := range w.order {
		if x == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

func (w *World) AddObstacle(o Obstacle) {
	for i := range w.obstacles {
		if w.obstacles[i].ID == o.ID {
			w.obstacles[i] = o
			return
		}
	}
	w.obstacles = append(w.obstacles, o)
	sort.Slice(w.obstacles, func(i, j int) bool { return w.obstacles[i].ID < w.obstacles[j].ID })
}

func (w *World) RemoveObstacle(id string) bool {
	for i := range w.obstacles {
		if w.obstacles[i].ID == id {
			w.obstacles = append(w.obstacles[:i], w.obstacles[i+1:]...)
			return true
		}
	}
	return false
}

// SetLoad scripts a joint load; it persists until changed. A zero load clears it.
func (w *World) SetLoad(asmID string, joint machine.ConnID, force, torque float64) bool {
	b, ok := w.bodies[asmID]
	if !ok {
		return false
	}
	if force == 0 && torque == 0 {
		delete(b.loads, joint)
		return true
	}
	b.loads[joint] = load{force: force, torque: torque}
	return true
}

// BodyState is a read-only view of one body.
type BodyState struct {
	Pos    machine.Vec3
	Yaw    float64
	Speed  float64
	Fallen bool
}

func (w *World) Body(id string) (BodyState, bool) {
	b, ok := w.bodies[id]
	if !ok {
		return BodyState{}, false
	}
	return BodyState{Pos: b.pos, Yaw: b.yaw, Speed: b.speed, Fallen: b.fallen}, true
}

// Step integrates every body by dt seconds and returns the machines lost this step.
func (w *World) Step(dt float64) []Fatal {
	if dt <= 0 {
		return nil
	}
	var lost []Fatal
	for _, id := range w.order {
		b := w.bodies[id]
		if b.fallen {
			continue
		}
		w.stepBody(b, dt)
		if b.pos.Y < w.cfg.KillDepth {
			b.fallen = true
			b.speed = 0
			lost = append(lost, Fatal{AssemblyID: id, Reason: "fell_out_of_world"})
		}
	}
	return lost
}

func (w *World) stepBody(b *body, dt float64) {
	inertia := w.cfg.WheelInertia
	if inertia <= 0 {
		inertia = 1
	}

	ground, steer, driven, steering := 0.0, 0.0, 0, 0
	for _, wh := range b.asm.Wheels() {
		p := wh.Part()
		st := b.wheel(p.ID)
		if p.Destroyed() {
			st.torque, st.rpm = 0, 0
			continue
		}
		st.rpm += (st.torque/inertia*60/(2*math.Pi) - w.cfg.WheelDrag*st.rpm) * dt
		if limit := maxRPM(wh); limit > 0 {
			st.rpm = clamp(st.rpm, -limit, limit)
		}
		if wh.Motorized {
			ground += st.rpm * 2 * math.Pi * wh.Radius / 60
			driven++
		}
		if wh.Steering {
			steer += st.steer
			steering++
		}
	}

	if driven > 0 {
		b.speed = ground / float64(driven)
	} else {
		b.speed *= math.Max(0, 1-w.cfg.WheelDrag)
	}
	if steering > 0 && b.speed != 0 {
		avg := steer / float64(steering) * math.Pi / 180
		b.yaw += b.speed * math.Tan(avg) / wheelbase * 180 / math.Pi * dt
		b.yaw = math.Mod(b.yaw+360, 360)
	}
	fwd := machine.Pose{Yaw: b.yaw}.Forward()
	b.pos = b.pos.Add(fwd.Scale(b.speed * dt))

	flat := math.Hypot(b.pos.X, b.pos.Z)
	if w.cfg.BoundaryRadius > 0 && flat > w.cfg.BoundaryRadius {
		b.vy -= w.cfg.Gravity * dt
	} else if b.pos.Y >= 0 {
		b.vy = 0
	}
	b.pos.Y += b.vy * dt
}

func (b *body) wheel(id machine.PartID) *wheelState {
	st, ok := b.wheels[id]
	if !ok {
		st = &wheelState{}
		b.wheels[id] = st
	}
	return st
}

// maxRPM converts a wheel's linear speed limit into rpm.
func maxRPM(wh *machine.Wheel) float64 {
	if wh.MaxSpeed <= 0 || wh.Radius <= 0 {
		return 0
	}
	return wh.MaxSpeed / (2 * math.Pi * wh.Radius) * 60
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// partWorld places a part of body b in world space.
func (b *body) partWorld(local machine.Pose) machine.Pose {
	fwd := machine.Pose{Yaw: b.yaw}.Forward()
	right := machine.Vec3{X: fwd.Z, Z: -fwd.X}
	pos := b.pos.Add(right.Scale(local.Pos.X)).Add(fwd.Scale(local.Pos.Z))
	pos.Y += local.Pos.Y
	return machine.Pose{Pos: pos, Yaw: math.Mod(b.yaw+local.Yaw+360, 360)}
}

// raycast finds the nearest obstacle or part along dir, ignoring the body named skip.
// Spheres containing the origin are skipped too.
func (w *World) raycast(origin, dir machine.Vec3, maxDist float64, skip string) (machine.Hit, bool) {
	if l := dir.Len(); l > 0 {
		dir = dir.Scale(1 / l)
	} else {
		return machine.Hit{}, false
	}
	best, bestID := math.Inf(1), ""
	try := func(id string, center machine.Vec3, r float64) {
		if d, ok := raySphere(origin, dir, center, r); ok && d <= maxDist && d < best {
			best, bestID = d, id
		}
	}
	for _, o := range w.obstacles {
		try(o.ID, o.Pos, o.Radius)
	}
	for _, id := range w.order {
		if id == skip {
			continue
		}
		b := w.bodies[id]
		for _, p := range b.asm.Parts() {
			if p.Destroyed() {
				continue
			}
			try(b.asm.BodyID(p.ID), b.partWorld(p.Pose).Pos, PartRadius)
		}
	}
	if bestID == "" {
		return machine.Hit{}, false
	}
	return machine.Hit{Distance: best, BodyID: bestID}, true
}

func raySphere(origin, dir, center machine.Vec3, r float64) (float64, bool) {
	oc := origin.Sub(center)
	if oc.Len() <= r {
		return 0, false
	}
	bq := oc.X*dir.X + oc.Y*dir.Y + oc.Z*dir.Z
	c := oc.X*oc.X + oc.Y*oc.Y + oc.Z*oc.Z - r*r
	disc := bq*bq - c
	if disc < 0 {
		return 0, false
	}
	t := -bq - math.Sqrt(disc)
	if t < 0 {
		return 0, false
	}
	return t, true
}

func (w *World) overlap(center machine.Vec3, radius float64) []machine.Body {
	var out []machine.Body
	for _, o := range w.obstacles {
		if o.Pos.Sub(center).Len() <= radius+o.Radius {
			out = append(out, machine.Body{ID: o.ID, Pos: o.Pos, Velocity: o.Velocity, Mass: o.Mass})
		}
	}
	for _, id := range w.order {
		b := w.bodies[id]
		if b.pos.Sub(center).Len() > radius {
			continue
		}
		vel := machine.Pose{Yaw: b.yaw}.Forward().Scale(b.speed)
		out = append(out, machine.Body{ID: id, Pos: b.pos, Velocity: vel, Mass: b.asm.TotalMass()})
	}
	return out
}

// Port is one machine's view of the world; it implements machine.Physics.
type Port struct {
	w *World
	b *body
}

func (p *Port) Raycast(origin, dir machine.Vec3, maxDist float64) (machine.Hit, bool) {
	return p.w.raycast(origin, dir, maxDist, p.b.asm.ID)
}

func (p *Port) Overlap(center machine.Vec3, radius float64) []machine.Body {
	return p.w.overlap(center, radius)
}

func (p *Port) Environment(machine.Vec3) machine.Ambient { return p.w.cfg.Ambient }

// JointLoad is the scripted load plus the reaction of any wheel the joint carries.
func (p *Port) JointLoad(id machine.ConnID) (float64, float64, bool) {
	c := p.b.asm.Connection(id)
	if c == nil {
		return 0, 0, false
	}
	l := p.b.loads[id]
	torque := l.torque
	for _, end := range []*machine.Part{c.A, c.B} {
		if end.Wheel != nil {
			if st, ok := p.b.wheels[end.ID]; ok {
				torque += math.Abs(st.torque)
			}
		}
	}
	return l.force, torque, true
}

func (p *Port) ApplyWheelTorque(id machine.PartID, torque float64) { p.b.wheel(id).torque = torque }
func (p *Port) SetWheelSteer(id machine.PartID, degrees float64)   { p.b.wheel(id).steer = degrees }

func (p *Port) WheelRPM(id machine.PartID) float64 {
	if st, ok := p.b.wheels[id]; ok {
		return st.rpm
	}
	return 0
}

func (p *Port) SetJointMotor(id machine.ConnID, enabled bool, velocity float64) {
	p.b.joints[id] = jointMotor{enabled: enabled, velocity: velocity}
}

func (p *Port) SetActuatorExtension(id machine.PartID, extension float64) {
	p.b.extension[id] = extension
}

func (p *Port) PartPose(id machine.PartID) (machine.Pose, bool) {
	part := p.b.asm.Part(id)
	if part == nil {
		return machine.Pose{}, false
	}
	return p.b.partWorld(part.Pose), true
}

// JointMotor reports the last drive target a joint received.
func (p *Port) JointMotor(id machine.ConnID) (enabled bool, velocity float64) {
	jm := p.b.joints[id]
	return jm.enabled, jm.velocity
}

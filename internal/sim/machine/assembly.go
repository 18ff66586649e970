package machine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"rigsim.ai/internal/sim/machine/logic/stress"
	"rigsim.ai/internal/sim/tuning"
)

// Options carries an assembly's collaborators. Every field may be left zero.
type Options struct {
	Bus      *EventBus
	Physics  Physics
	Tuning   *tuning.Tuning
	Resolver PartResolver
}

// JointSpec is everything Connect needs besides the endpoints.
type JointSpec struct {
	Kind       JointKind
	Limits     Limits
	Motorized  bool
	Mass       float64
	Cost       int
	DriveSpeed float64

	// MaxHealth and UnlockLevel are catalog metadata; joints take no damage of their own.
	MaxHealth   float64
	UnlockLevel int
}

// Assembly owns the parts of one machine exclusively and the joints between them.
// Invariant: broken implies not active.
type Assembly struct {
	ID   string
	Name string

	bus      *EventBus
	physics  Physics
	tun      tuning.Tuning
	resolver PartResolver

	parts     map[PartID]*Part
	order     []PartID
	conns     map[ConnID]*Connection
	connOrder []ConnID
	nextConn  int

	motors    []*Motor
	wheels    []*Wheel
	sensors   []*Sensor
	gates     []*Gate
	cylinders []*Cylinder
	tools     []*Tool
	seats     []*Seat

	health   float64
	baseline float64

	active       bool
	broken       bool
	brokenReason string
}

func NewAssembly(id, name string, opts Options) *Assembly {
	a := &Assembly{
		ID:       id,
		Name:     name,
		bus:      opts.Bus,
		physics:  opts.Physics,
		tun:      tuning.Defaults(),
		resolver: opts.Resolver,
		parts:    map[PartID]*Part{},
		conns:    map[ConnID]*Connection{},
	}
	if opts.Tuning != nil {
		a.tun = *opts.Tuning
	}
	return a
}

func (a *Assembly) SetPhysics(ph Physics)            { a.physics = ph }
func (a *Assembly) SetResolver(r PartResolver)       { a.resolver = r }
func (a *Assembly) Bus() *EventBus                   { return a.bus }
func (a *Assembly) Physics() Physics                 { return a.physics }
func (a *Assembly) IsActive() bool                   { return a.active }
func (a *Assembly) IsBroken() bool                   { return a.broken }
func (a *Assembly) BrokenReason() string             { return a.brokenReason }
func (a *Assembly) Health() float64                  { return a.health }
func (a *Assembly) BaselineHealth() float64          { return a.baseline }
func (a *Assembly) PartCount() int                   { return len(a.order) }
func (a *Assembly) Part(id PartID) *Part             { return a.parts[id] }
func (a *Assembly) Connection(id ConnID) *Connection { return a.conns[id] }
func (a *Assembly) ConnectionCount() int             { return len(a.connOrder) }
func (a *Assembly) Motors() []*Motor                 { return append([]*Motor(nil), a.motors...) }
func (a *Assembly) Wheels() []*Wheel                 { return append([]*Wheel(nil), a.wheels...) }
func (a *Assembly) Sensors() []*Sensor               { return append([]*Sensor(nil), a.sensors...) }
func (a *Assembly) Gates() []*Gate                   { return append([]*Gate(nil), a.gates...) }
func (a *Assembly) Cylinders() []*Cylinder           { return append([]*Cylinder(nil), a.cylinders...) }
func (a *Assembly) Tools() []*Tool                   { return append([]*Tool(nil), a.tools...) }
func (a *Assembly) Seats() []*Seat                   { return append([]*Seat(nil), a.seats...) }

// Parts returns owned parts in insertion order, destroyed ones included.
func (a *Assembly) Parts() []*Part {
	out := make([]*Part, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.parts[id])
	}
	return out
}

func (a *Assembly) Connections() []*Connection {
	out := make([]*Connection, 0, len(a.connOrder))
	for _, id := range a.connOrder {
		out = append(out, a.conns[id])
	}
	return out
}

// LivePartCount counts parts that are not destroyed.
func (a *Assembly) LivePartCount() int {
	n := 0
	for _, id := range a.order {
		if !a.parts[id].destroyed {
			n++
		}
	}
	return n
}

// TotalMass sums live parts and the joints still holding.
func (a *Assembly) TotalMass() float64 {
	m := 0.0
	for _, id := range a.order {
		if p := a.parts[id]; !p.destroyed {
			m += p.Mass
		}
	}
	for _, id := range a.connOrder {
		if c := a.conns[id]; !c.Broken() {
			m += c.Mass
		}
	}
	return m
}

// TotalCost sums every owned part and joint.
func (a *Assembly) TotalCost() int {
	n := 0
	for _, id := range a.order {
		n += a.parts[id].Cost
	}
	for _, id := range a.connOrder {
		n += a.conns[id].Cost
	}
	return n
}

// AddPart takes ownership of p. A part already owned by any assembly is rejected.
func (a *Assembly) AddPart(p *Part) bool {
	if p == nil || p.ID == "" || p.asm != nil {
		return false
	}
	if _, dup := a.parts[p.ID]; dup {
		return false
	}
	p.asm = a
	a.parts[p.ID] = p
	a.order = append(a.order, p.ID)

	if p.Sensor != nil && p.Sensor.UpdateRateHz == 0 {
		p.Sensor.UpdateRateHz = a.tun.Sensor.DefaultRateHz
	}
	if p.Gate != nil && p.Gate.RateHz == 0 {
		p.Gate.RateHz = a.tun.Gate.DefaultRateHz
	}
	if p.Motor != nil && p.Motor.temperature < a.tun.Motor.AmbientTemperature {
		p.Motor.temperature = a.tun.Motor.AmbientTemperature
	}

	a.rebuildDerived()
	a.publish(Event{Type: EventPartAdded, PartID: p.ID})
	a.RecomputeAggregateHealth()
	return true
}

// RemovePart releases ownership. Every joint touching the part breaks immediately and
// is dropped; gate slots pointing at it are cleared.
func (a *Assembly) RemovePart(id PartID) bool {
	p, ok := a.parts[id]
	if !ok {
		return false
	}
	if p.Motor != nil {
		p.Motor.StopEngine("removed")
	}
	for _, c := range p.Connections() {
		c.detach("part_removed", true)
		for _, g := range a.gates {
			g.unwireConn(c)
		}
	}
	for _, g := range a.gates {
		g.unwire(p)
	}
	if p.Wheel != nil {
		for _, m := range a.motors {
			m.dropWheel(p.Wheel)
		}
	}

	delete(a.parts, id)
	for i, x := range a.order {
		if x == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	p.asm = nil
	p.conns = nil

	a.rebuildDerived()
	a.publish(Event{Type: EventPartRemoved, PartID: id})
	a.RecomputeAggregateHealth()
	return true
}

// Connect joins two owned, live parts. An empty id is generated. The drivetrain is
// rescanned afterwards.
func (a *Assembly) Connect(id ConnID, pa, pb PartID, spec JointSpec) (*Connection, bool) {
	A, B := a.parts[pa], a.parts[pb]
	if A == nil || B == nil || A == B || A.destroyed || B.destroyed {
		return nil, false
	}
	if A.JoinedTo(B) {
		return nil, false
	}
	if id == "" {
		id = a.newConnID()
	}
	if _, dup := a.conns[id]; dup {
		return nil, false
	}
	c := &Connection{
		ID:          id,
		Kind:        spec.Kind,
		A:           A,
		B:           B,
		Limits:      spec.Limits,
		Motorized:   spec.Motorized,
		Mass:        spec.Mass,
		Cost:        spec.Cost,
		DriveSpeed:  spec.DriveSpeed,
		MaxHealth:   spec.MaxHealth,
		UnlockLevel: spec.UnlockLevel,
		state:       stress.Normal,
		th:          a.thresholds(),
		asm:         a,
	}
	a.conns[id] = c
	a.connOrder = append(a.connOrder, id)
	A.addConn(c)
	B.addConn(c)

	a.publish(Event{Type: EventConnectionCreated, ConnectionID: id, PartID: A.ID})
	a.RescanDrivetrain()
	return c, true
}

// Disconnect breaks and drops a joint without damaging either endpoint.
func (a *Assembly) Disconnect(id ConnID) bool {
	c, ok := a.conns[id]
	if !ok {
		return false
	}
	for _, g := range a.gates {
		g.unwireConn(c)
	}
	c.Destroy()
	return true
}

// RescanDrivetrain re-materializes every motor's wheel list.
func (a *Assembly) RescanDrivetrain() {
	for _, m := range a.motors {
		m.ResolveWheels(a.tun.Motor.WheelSearchDepth, a.tun.Motor.WheelSearchNodes)
	}
}

// RecomputeAggregateHealth sums current and max health over owned parts. A non-empty
// assembly whose current total reaches zero is marked broken.
func (a *Assembly) RecomputeAggregateHealth() {
	cur, base := 0.0, 0.0
	for _, id := range a.order {
		p := a.parts[id]
		cur += p.health
		base += p.maxHealth
	}
	a.health, a.baseline = cur, base
	if len(a.order) > 0 && cur <= 0 {
		a.MarkBroken("health_depleted")
	}
}

func (a *Assembly) Activate() bool {
	if a.broken {
		return false
	}
	if !a.active {
		a.active = true
		a.publish(Event{Type: EventAssemblyActivated})
	}
	return true
}

func (a *Assembly) Deactivate() {
	if !a.active {
		return
	}
	a.active = false
	for _, m := range a.motors {
		m.StopEngine("deactivated")
	}
	for _, t := range a.tools {
		t.Deactivate()
	}
	a.publish(Event{Type: EventAssemblyDeactivated})
}

// MarkBroken is idempotent and irreversible short of Repair.
func (a *Assembly) MarkBroken(reason string) {
	if a.broken {
		return
	}
	a.Deactivate()
	for _, m := range a.motors {
		m.StopEngine("broken")
	}
	a.broken = true
	a.brokenReason = reason
	a.publish(Event{Type: EventAssemblyBroken, Reason: reason})
}

// ReportFatal is the entry point for external fatal conditions such as falling out of
// the world.
func (a *Assembly) ReportFatal(reason string) {
	if reason == "" {
		reason = "fatal"
	}
	a.MarkBroken(reason)
}

// Repair is the bulk reset: every owned part back to full health, every joint still in
// the machine back to Normal. Joints dropped with removed parts stay gone.
func (a *Assembly) Repair() {
	for _, id := range a.order {
		p := a.parts[id]
		p.resetHealth()
		if p.Motor != nil {
			p.Motor.overheating = false
		}
	}
	for _, id := range a.connOrder {
		a.conns[id].reset()
	}
	a.broken = false
	a.brokenReason = ""
	a.RescanDrivetrain()
	a.RecomputeAggregateHealth()
	a.publish(Event{Type: EventAssemblyRepaired})
}

// Drive applies driver input: seats record it, running motors take the throttle and
// steering wheels turn by steer in [-1,1] of their max angle.
func (a *Assembly) Drive(throttle, steer float64) {
	if !a.active {
		return
	}
	for _, s := range a.seats {
		s.SetInput(throttle, steer)
	}
	for _, m := range a.motors {
		m.ApplyPowerToWheels(throttle)
	}
	for _, w := range a.wheels {
		if w.Steering {
			w.Steer(steer * w.MaxSteerDeg)
		}
	}
}

// Ignition starts or stops every motor. It reports how many motors changed state.
func (a *Assembly) Ignition(on bool) int {
	n := 0
	for _, m := range a.motors {
		if on {
			if a.active && m.StartEngine() {
				n++
			}
		} else if m.running {
			m.StopEngine("ignition_off")
			n++
		}
	}
	return n
}

// Tick advances the machine by dt seconds. Within a tick: joint loads, then sensors,
// then gates, then actuators and motors, then the broken check. Inactive machines only
// take load and cool down.
func (a *Assembly) Tick(dt float64) {
	if a.broken || dt <= 0 {
		return
	}

	if a.physics != nil {
		for _, id := range a.connOrder {
			c := a.conns[id]
			if c == nil || c.Broken() {
				continue
			}
			if f, t, ok := a.physics.JointLoad(id); ok {
				c.UpdateLoad(f, t)
			}
		}
	}
	if a.broken {
		return
	}

	if a.active {
		for _, s := range a.sensors {
			s.Update(dt)
		}
		for _, g := range a.gates {
			g.Update(dt)
		}
		for _, c := range a.cylinders {
			c.Update(dt)
		}
		resolver := a.resolver
		if resolver == nil {
			resolver = a
		}
		for _, t := range a.tools {
			t.Update(dt, resolver)
		}
	}
	for _, m := range a.motors {
		m.Update(dt, a.tun.Motor)
	}

	a.RecomputeAggregateHealth()
}

// ResolvePart resolves a body id of the form "<assembly>/<part>" or a bare part id.
func (a *Assembly) ResolvePart(bodyID string) *Part {
	if asm, part, ok := strings.Cut(bodyID, "/"); ok {
		if asm != a.ID {
			return nil
		}
		bodyID = part
	}
	return a.parts[PartID(bodyID)]
}

// BodyID is the physics body id of one of this assembly's parts.
func (a *Assembly) BodyID(id PartID) string { return a.ID + "/" + string(id) }

// Summary is the one-line status presentation shows for the whole machine.
func (a *Assembly) Summary() string {
	state := "idle"
	switch {
	case a.broken:
		state = "broken (" + a.brokenReason + ")"
	case a.active:
		state = "active"
	}
	name := a.Name
	if name == "" {
		name = a.ID
	}
	return fmt.Sprintf("%s: %s, %d/%d parts, %s joints, health %.0f/%.0f, mass %s kg, cost %s, unlock level %d",
		name, state, a.LivePartCount(), a.PartCount(), humanize.Comma(int64(a.ConnectionCount())),
		a.health, a.baseline, humanize.FtoaWithDigits(a.TotalMass(), 1), humanize.Comma(int64(a.TotalCost())), a.UnlockLevel())
}

// UnlockLevel is the highest unlock level among the machine's parts and joints.
func (a *Assembly) UnlockLevel() int {
	lvl := 0
	for _, id := range a.order {
		lvl = max(lvl, a.parts[id].UnlockLevel)
	}
	for _, id := range a.connOrder {
		lvl = max(lvl, a.conns[id].UnlockLevel)
	}
	return lvl
}

func (a *Assembly) publish(ev Event) {
	if a.bus == nil {
		return
	}
	ev.AssemblyID = a.ID
	a.bus.Publish(ev)
}

func (a *Assembly) onPartDestroyed(p *Part) {
	a.RecomputeAggregateHealth()
}

func (a *Assembly) removeConn(c *Connection) {
	if a.conns[c.ID] != c {
		return
	}
	delete(a.conns, c.ID)
	for i, id := range a.connOrder {
		if id == c.ID {
			a.connOrder = append(a.connOrder[:i], a.connOrder[i+1:]...)
			return
		}
	}
}

func (a *Assembly) newConnID() ConnID {
	for {
		a.nextConn++
		id := ConnID(fmt.Sprintf("j%d", a.nextConn))
		if _, used := a.conns[id]; !used {
			return id
		}
	}
}

func (a *Assembly) thresholds() stress.Thresholds {
	return stress.Thresholds{Enter: a.tun.Stress.Enter, Exit: a.tun.Stress.Exit, Break: a.tun.Stress.Break}
}

// rebuildDerived refreshes the per-kind component lists from the owned parts.
func (a *Assembly) rebuildDerived() {
	a.motors, a.wheels, a.sensors = a.motors[:0], a.wheels[:0], a.sensors[:0]
	a.gates, a.cylinders, a.tools, a.seats = a.gates[:0], a.cylinders[:0], a.tools[:0], a.seats[:0]
	for _, id := range a.order {
		p := a.parts[id]
		switch {
		case p.Motor != nil:
			a.motors = append(a.motors, p.Motor)
		case p.Wheel != nil:
			a.wheels = append(a.wheels, p.Wheel)
		case p.Sensor != nil:
			a.sensors = append(a.sensors, p.Sensor)
		case p.Gate != nil:
			a.gates = append(a.gates, p.Gate)
		case p.Cylinder != nil:
			a.cylinders = append(a.cylinders, p.Cylinder)
		case p.Tool != nil:
			a.tools = append(a.tools, p.Tool)
		case p.Seat != nil:
			a.seats = append(a.seats, p.Seat)
		}
	}
}

package machine

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"rigsim.ai/internal/sim/machine/logic/mathx"
)

// Part is the data-driven part record. Behavior beyond health is selected by Kind and
// lives in at most one component pointer.
type Part struct {
	ID          PartID
	CatalogID   string
	Name        string
	Kind        Kind
	Material    string
	Mass        float64
	Cost        int
	UnlockLevel int
	Unlocked    bool

	// Pose is local to the assembly origin.
	Pose Pose

	health     float64
	maxHealth  float64
	damageMult float64
	destroyed  bool

	Motor    *Motor
	Wheel    *Wheel
	Sensor   *Sensor
	Gate     *Gate
	Cylinder *Cylinder
	Tool     *Tool
	Seat     *Seat

	asm   *Assembly
	conns []*Connection
}

// NewBasePart builds a bare part. damageMult <= 0 means 1.
func NewBasePart(id PartID, kind Kind, maxHealth, damageMult float64) *Part {
	if maxHealth < 0 {
		maxHealth = 0
	}
	if damageMult <= 0 {
		damageMult = 1
	}
	return &Part{
		ID:         id,
		Kind:       kind,
		Unlocked:   true,
		health:     maxHealth,
		maxHealth:  maxHealth,
		damageMult: damageMult,
	}
}

func (p *Part) Health() float64           { return p.health }
func (p *Part) MaxHealth() float64        { return p.maxHealth }
func (p *Part) DamageMultiplier() float64 { return p.damageMult }
func (p *Part) Destroyed() bool           { return p.destroyed }
func (p *Part) Assembly() *Assembly       { return p.asm }

// Connections returns the joints this part participates in, broken ones included.
func (p *Part) Connections() []*Connection {
	return append([]*Connection(nil), p.conns...)
}

// TakeDamage applies amount scaled by the material multiplier and returns the health
// actually removed. Destroyed parts and non-positive amounts are no-ops.
func (p *Part) TakeDamage(amount float64) float64 {
	if p == nil || p.destroyed || !(amount > 0) {
		return 0
	}
	before := p.health
	p.health = mathx.Clamp(p.health-amount*p.damageMult, 0, p.maxHealth)
	applied := before - p.health
	if applied > 0 {
		p.emit(Event{Type: EventPartDamaged, PartID: p.ID, Value: applied})
	}
	if p.health <= 0 {
		p.Destroy("damage")
	} else if p.asm != nil {
		p.asm.RecomputeAggregateHealth()
	}
	return applied
}

// Repair adds unscaled health and returns the amount restored.
func (p *Part) Repair(amount float64) float64 {
	if p == nil || p.destroyed || !(amount > 0) {
		return 0
	}
	before := p.health
	p.health = mathx.Clamp(p.health+amount, 0, p.maxHealth)
	if p.asm != nil {
		p.asm.RecomputeAggregateHealth()
	}
	return p.health - before
}

// Destroy zeroes health and detaches every joint. It fires PART_DESTROYED once.
func (p *Part) Destroy(reason string) {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true
	p.health = 0
	if p.Motor != nil {
		p.Motor.StopEngine("destroyed")
	}
	if p.Tool != nil {
		p.Tool.Deactivate()
	}
	p.emit(Event{Type: EventPartDestroyed, PartID: p.ID, Reason: reason})
	for _, c := range p.Connections() {
		c.detach("part_destroyed", false)
	}
	if p.asm != nil {
		p.asm.onPartDestroyed(p)
	}
}

// fatal is the load-break path: damage equal to current health, bypassing the multiplier.
func (p *Part) fatal(reason string) {
	if p == nil || p.destroyed {
		return
	}
	p.emit(Event{Type: EventPartDamaged, PartID: p.ID, Value: p.health, Reason: reason})
	p.Destroy(reason)
}

// resetHealth is the bulk-repair path.
func (p *Part) resetHealth() {
	p.destroyed = false
	p.health = p.maxHealth
}

// setHealth restores a persisted value. Zero health restores as destroyed.
func (p *Part) setHealth(h float64) {
	if math.IsNaN(h) {
		h = p.maxHealth
	}
	p.health = mathx.Clamp(h, 0, p.maxHealth)
	p.destroyed = p.health <= 0
}

// WorldPose asks the physics port first and falls back to the local pose.
func (p *Part) WorldPose() Pose {
	if ph := p.physics(); ph != nil {
		if pose, ok := ph.PartPose(p.ID); ok {
			return pose
		}
	}
	return p.Pose
}

func (p *Part) physics() Physics {
	if p == nil || p.asm == nil {
		return nil
	}
	return p.asm.physics
}

func (p *Part) emit(ev Event) {
	if p.asm != nil {
		p.asm.publish(ev)
	}
}

func (p *Part) addConn(c *Connection) { p.conns = append(p.conns, c) }

// JoinedTo reports whether a joint between p and q is still in the machine, broken or not.
func (p *Part) JoinedTo(q *Part) bool {
	for _, c := range p.conns {
		if c.Other(p) == q {
			return true
		}
	}
	return false
}

func (p *Part) removeConn(c *Connection) {
	for i, x := range p.conns {
		if x == c {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return
		}
	}
}

// Info is the human-readable summary shown by presentation.
func (p *Part) Info() string {
	var b strings.Builder
	name := p.Name
	if name == "" {
		name = string(p.ID)
	}
	fmt.Fprintf(&b, "%s (%s)\n", name, p.Kind)
	fmt.Fprintf(&b, "Health: %.0f/%.0f", p.health, p.maxHealth)
	if p.destroyed {
		b.WriteString(" DESTROYED")
	}
	fmt.Fprintf(&b, "\nMass: %s kg  Cost: %s  Unlock: level %d", humanize.FtoaWithDigits(p.Mass, 2), humanize.Comma(int64(p.Cost)), p.UnlockLevel)
	if p.Material != "" {
		fmt.Fprintf(&b, "  Material: %s", p.Material)
	}

	switch {
	case p.Motor != nil:
		m := p.Motor
		fmt.Fprintf(&b, "\nPower: %.0f  Max RPM: %.0f\nFuel: %.1f/%.1f  Temp: %.1f/%.1f", m.Power, m.MaxRPM, m.fuel, m.FuelMax, m.temperature, m.MaxTemperature)
		if m.running {
			b.WriteString("  RUNNING")
		}
		if m.overheating {
			b.WriteString("  OVERHEATING")
		}
		fmt.Fprintf(&b, "\nWheels: %d", len(m.wheels))
	case p.Wheel != nil:
		w := p.Wheel
		fmt.Fprintf(&b, "\nTorque capacity: %.0f  Max speed: %.1f", w.TorqueCapacity, w.MaxSpeed)
		if w.Motorized {
			b.WriteString("  motorized")
		}
		if w.Steering {
			b.WriteString("  steering")
		}
	case p.Sensor != nil:
		s := p.Sensor
		fmt.Fprintf(&b, "\nSensor: %s  Range: %.1f  Rate: %.0f Hz\nValue: %.2f [%.1f..%.1f]", s.Kind, s.Range, s.UpdateRateHz, s.value, s.Min, s.Max)
		if s.triggered {
			b.WriteString("  TRIGGERED")
		}
	case p.Gate != nil:
		g := p.Gate
		fmt.Fprintf(&b, "\nLogic: %s  Inputs: %d  Outputs: %d  Rate: %.0f Hz", g.Logic, len(g.inputs), len(g.outputs), g.RateHz)
		fmt.Fprintf(&b, "\nOutput: %v (%.2f)", g.result.On, g.result.Value)
	case p.Cylinder != nil:
		c := p.Cylinder
		fmt.Fprintf(&b, "\n%s cylinder  Extension: %.2f/%.2f", c.Type, c.extension, c.Stroke)
	case p.Tool != nil:
		fmt.Fprintf(&b, "\nTool: %s  Active: %v", p.Tool.Kind, p.Tool.active)
	case p.Seat != nil:
		fmt.Fprintf(&b, "\nOccupied: %v  Throttle: %.2f", p.Seat.occupied, p.Seat.throttle)
	}
	return b.String()
}

package machine

import "strings"

type ToolKind uint8

const (
	ToolDrill ToolKind = iota
	ToolWelder
)

func (k ToolKind) String() string {
	if k == ToolWelder {
		return "WELDER"
	}
	return "DRILL"
}

func ParseToolKind(s string) (ToolKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DRILL":
		return ToolDrill, true
	case "WELDER", "WELDING_MACHINE":
		return ToolWelder, true
	}
	return ToolDrill, false
}

// Tool works on whatever part sits in front of it. A drill damages the target at Rate per
// second, a welder repairs it. Parts of the tool's own machine are never targeted.
type Tool struct {
	part *Part

	Kind  ToolKind
	Rate  float64
	Range float64

	active bool
	target PartID
}

func (t *Tool) Part() *Part        { return t.part }
func (t *Tool) Active() bool       { return t.active }
func (t *Tool) ActuatorID() string { return string(t.part.ID) }

// Target is the part hit on the last update, empty when nothing was in range.
func (t *Tool) Target() PartID { return t.target }

func (t *Tool) Activate() bool {
	if t.part.destroyed {
		return false
	}
	t.active = true
	return true
}

func (t *Tool) Deactivate() {
	t.active = false
	t.target = ""
}

func (t *Tool) Drive(sig Signal) {
	if sig.On {
		t.Activate()
	} else {
		t.Deactivate()
	}
}

// Update returns the health changed on the target (negative for damage).
func (t *Tool) Update(dt float64, resolver PartResolver) float64 {
	t.target = ""
	if !t.active || t.part.destroyed || dt <= 0 || resolver == nil {
		return 0
	}
	ph := t.part.physics()
	if ph == nil {
		return 0
	}
	pose := t.part.WorldPose()
	hit, ok := ph.Raycast(pose.Pos, pose.Forward(), t.Range)
	if !ok || hit.Distance > t.Range {
		return 0
	}
	target := resolver.ResolvePart(hit.BodyID)
	if target == nil || target == t.part || (target.asm != nil && target.asm == t.part.asm) {
		return 0
	}
	t.target = target.ID
	amount := t.Rate * dt
	switch t.Kind {
	case ToolWelder:
		return target.Repair(amount)
	default:
		return -target.TakeDamage(amount)
	}
}

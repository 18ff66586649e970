package machine

// Hit is a raycast result.
type Hit struct {
	Distance float64
	BodyID   string
}

// Body is an overlap query result.
type Body struct {
	ID       string
	Pos      Vec3
	Velocity Vec3
	Mass     float64
}

type Ambient struct {
	Temperature float64
	Light       float64
}

// Sensing is the read side of the world the sensors and tools sample.
type Sensing interface {
	Raycast(origin, dir Vec3, maxDist float64) (Hit, bool)
	Overlap(center Vec3, radius float64) []Body
	Environment(pos Vec3) Ambient
}

// Loads supplies per-tick joint force/torque samples.
type Loads interface {
	JointLoad(id ConnID) (force, torque float64, ok bool)
}

// Drive receives the core's outputs.
type Drive interface {
	ApplyWheelTorque(id PartID, torque float64)
	SetWheelSteer(id PartID, degrees float64)
	WheelRPM(id PartID) float64
	SetJointMotor(id ConnID, enabled bool, velocity float64)
	SetActuatorExtension(id PartID, extension float64)
}

// Physics is the full collaborator port. A nil Physics is valid: reads resolve to
// sentinels and writes are dropped.
type Physics interface {
	Sensing
	Loads
	Drive
	PartPose(id PartID) (Pose, bool)
}

// PartResolver finds a part by the body id a raycast returned. The world implements it
// across assemblies; an Assembly resolves its own parts.
type PartResolver interface {
	ResolvePart(bodyID string) *Part
}

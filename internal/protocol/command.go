package protocol

// Command kinds accepted by the host. Each is applied at the next tick boundary.
const (
	CmdIgnition    = "IGNITION"
	CmdThrottle    = "THROTTLE"
	CmdSteer       = "STEER"
	CmdRefuel      = "REFUEL"
	CmdDamage      = "DAMAGE"
	CmdRepairPart  = "REPAIR_PART"
	CmdRepair      = "REPAIR"
	CmdRemovePart  = "REMOVE_PART"
	CmdConnect     = "CONNECT"
	CmdDisconnect  = "DISCONNECT"
	CmdActivate    = "ACTIVATE"
	CmdDeactivate  = "DEACTIVATE"
	CmdJointMotor  = "JOINT_MOTOR"
	CmdReportFatal = "REPORT_FATAL"
	CmdSetLoad     = "SET_LOAD"
	CmdTool        = "TOOL"
	CmdCylinder    = "CYLINDER"
)

var commandKinds = map[string]struct{}{
	CmdIgnition: {}, CmdThrottle: {}, CmdSteer: {}, CmdRefuel: {}, CmdDamage: {},
	CmdRepairPart: {}, CmdRepair: {}, CmdRemovePart: {}, CmdConnect: {}, CmdDisconnect: {},
	CmdActivate: {}, CmdDeactivate: {}, CmdJointMotor: {}, CmdReportFatal: {}, CmdSetLoad: {},
	CmdTool: {}, CmdCylinder: {},
}

func IsCommandKind(kind string) bool {
	_, ok := commandKinds[kind]
	return ok
}

// Command is one operator instruction against a machine. Fields not used by a kind are
// left zero; Value carries the kind's scalar (throttle, steer, amount, velocity).
type Command struct {
	ID        string  `json:"id,omitempty"`
	Kind      string  `json:"kind"`
	Assembly  string  `json:"assembly"`
	Part      string  `json:"part,omitempty"`
	PartB     string  `json:"part_b,omitempty"`
	Joint     string  `json:"joint,omitempty"`
	JointKind string  `json:"joint_kind,omitempty"`
	On        bool    `json:"on,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Force     float64 `json:"force,omitempty"`
	Torque    float64 `json:"torque,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// CMD (client -> server)
type CommandMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Cmd             Command `json:"cmd"`
}

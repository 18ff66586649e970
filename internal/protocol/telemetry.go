package protocol

// EventObs is the wire form of one machine event.
type EventObs struct {
	Tick     uint64  `json:"tick"`
	Type     string  `json:"type"`
	Assembly string  `json:"assembly"`
	Part     string  `json:"part,omitempty"`
	Joint    string  `json:"joint,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// EVENT (server -> client)
type EventMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Cursor          uint64   `json:"cursor"`
	Event           EventObs `json:"event"`
}

// TELEMETRY (server -> client), once per tick.
type TelemetryMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            uint64        `json:"tick"`
	Digest          string        `json:"digest"`
	Assemblies      []AssemblyObs `json:"assemblies"`
}

type AssemblyObs struct {
	ID      string     `json:"id"`
	Name    string     `json:"name,omitempty"`
	Active  bool       `json:"active"`
	Broken  bool       `json:"broken"`
	Reason  string     `json:"reason,omitempty"`
	Health  float64    `json:"health"`
	Parts   int        `json:"parts"`
	Pos     [3]float64 `json:"pos"`
	Yaw     float64    `json:"yaw"`
	Speed   float64    `json:"speed"`
	Summary string     `json:"summary"`
	Motors  []MotorObs `json:"motors,omitempty"`
}

type MotorObs struct {
	Part        string  `json:"part"`
	Running     bool    `json:"running"`
	Overheating bool    `json:"overheating"`
	Fuel        float64 `json:"fuel"`
	Temperature float64 `json:"temperature"`
}

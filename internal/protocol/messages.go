package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type              string   `json:"type"`
	ProtocolVersion   string   `json:"protocol_version"`
	SupportedVersions []string `json:"supported_versions,omitempty"`
	ClientName        string   `json:"client_name"`
	// Assemblies filters the event stream; empty means every machine.
	Assemblies []string   `json:"assemblies,omitempty"`
	Auth       *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SelectedVersion string         `json:"selected_version,omitempty"`
	SessionID       string         `json:"session_id"`
	WorldID         string         `json:"world_id"`
	TickRateHz      int            `json:"tick_rate_hz"`
	CurrentTick     uint64         `json:"current_tick"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Assemblies      []AssemblyRef  `json:"assemblies"`
}

type AssemblyRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type CatalogDigests struct {
	PartsDigest     string `json:"parts_digest"`
	JointsDigest    string `json:"joints_digest"`
	MaterialsDigest string `json:"materials_digest"`
	TuningDigest    string `json:"tuning_digest,omitempty"`
	PartCount       int    `json:"part_count"`
}

// CATALOG (server -> client): one catalog, sent whole.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // "parts", "joints" or "materials"
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}

type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AckFor          string `json:"ack_for"`
	Accepted        bool   `json:"accepted"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	ServerTick      uint64 `json:"server_tick,omitempty"`
}

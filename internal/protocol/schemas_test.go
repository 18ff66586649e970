package protocol_test

import (
	"encoding/json"
	"testing"

	"rigsim.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(fn func([]byte) error, v string) {
		t.Helper()
		if err := fn([]byte(v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(protocol.ValidateHello, `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"viewer",
	  "assemblies":["buggy"]
	}`)

	validate(protocol.ValidateCommand, `{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "cmd":{"id":"c1","kind":"THROTTLE","assembly":"buggy","value":0.5}
	}`)

	validate(protocol.ValidateCommand, `{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "cmd":{"kind":"CONNECT","assembly":"buggy","part":"a","part_b":"b","joint_kind":"HINGE"}
	}`)

	validate(protocol.ValidateBlueprint, `{
	  "id":"cart",
	  "parts":[
	    {"id":"frame","catalog_id":"BLOCK_WOOD"},
	    {"id":"gate","catalog_id":"GATE_AND","pos":[0,1,0],"yaw":90}
	  ],
	  "joints":[{"a":"frame","b":"gate","kind":"FIXED","limits":{"max_force":10,"can_break":false}}],
	  "wires":[{"gate":"gate","dir":"in","slot":0,"target":"frame"}]
	}`)
}

func TestSchemas_RejectBadDocuments(t *testing.T) {
	cases := []struct {
		name string
		fn   func([]byte) error
		doc  string
	}{
		{"unknown command kind", protocol.ValidateCommand, `{"type":"CMD","protocol_version":"1.0","cmd":{"kind":"FLY","assembly":"a"}}`},
		{"damage without part", protocol.ValidateCommand, `{"type":"CMD","protocol_version":"1.0","cmd":{"kind":"DAMAGE","assembly":"a","value":3}}`},
		{"negative refuel", protocol.ValidateCommand, `{"type":"CMD","protocol_version":"1.0","cmd":{"kind":"REFUEL","assembly":"a","value":-1}}`},
		{"connect without kind", protocol.ValidateCommand, `{"type":"CMD","protocol_version":"1.0","cmd":{"kind":"CONNECT","assembly":"a","part":"x","part_b":"y"}}`},
		{"blueprint without parts", protocol.ValidateBlueprint, `{"id":"x","parts":[]}`},
		{"part id with slash", protocol.ValidateBlueprint, `{"id":"x","parts":[{"id":"a/b","catalog_id":"BLOCK_WOOD"}]}`},
		{"bad wire direction", protocol.ValidateBlueprint, `{"id":"x","parts":[{"id":"a","catalog_id":"GATE_AND"}],"wires":[{"gate":"a","dir":"up","slot":0,"target":"a"}]}`},
		{"extra blueprint field", protocol.ValidateBlueprint, `{"id":"x","parts":[{"id":"a","catalog_id":"GATE_AND"}],"color":"red"}`},
		{"hello without name", protocol.ValidateHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{"not json", protocol.ValidateHello, `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn([]byte(tc.doc)); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestCommandKinds_MatchSchema(t *testing.T) {
	raw, ok := protocol.SchemaJSON("command.schema.json")
	if !ok {
		t.Fatalf("command schema not embedded")
	}
	var doc struct {
		Properties struct {
			Cmd struct {
				Properties struct {
					Kind struct {
						Enum []string `json:"enum"`
					} `json:"kind"`
				} `json:"properties"`
			} `json:"cmd"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}
	kinds := doc.Properties.Cmd.Properties.Kind.Enum
	if len(kinds) == 0 {
		t.Fatalf("no kinds in schema")
	}
	for _, k := range kinds {
		if !protocol.IsCommandKind(k) {
			t.Fatalf("schema kind %s unknown to IsCommandKind", k)
		}
	}
}

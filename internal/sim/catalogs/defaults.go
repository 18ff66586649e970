package catalogs

import "encoding/json"

// Defaults returns the built-in tables. They mirror configs/*.json and are used when a
// config directory is not available (tests, replays of snapshots without configs).
func Defaults() *Catalogs {
	c := &Catalogs{}
	_ = c.Parts.set(defaultParts())

	c.Joints.Defs = map[string]JointDef{}
	for _, d := range defaultJoints() {
		c.Joints.Defs[d.Kind] = d
	}
	c.Materials.Defs = map[string]MaterialDef{}
	for _, d := range defaultMaterials() {
		c.Materials.Defs[d.ID] = d
	}

	pb, _ := json.Marshal(defaultParts())
	jb, _ := json.Marshal(defaultJoints())
	mb, _ := json.Marshal(defaultMaterials())
	c.Parts.Digest = sha256Hex(pb)
	c.Joints.Digest = sha256Hex(jb)
	c.Materials.Digest = sha256Hex(mb)
	return c
}

func defaultMaterials() []MaterialDef {
	return []MaterialDef{
		{ID: "WOOD", DamageMultiplier: 1.0},
		{ID: "METAL", DamageMultiplier: 0.7},
		{ID: "PLASTIC", DamageMultiplier: 1.3},
		{ID: "RUBBER", DamageMultiplier: 0.9},
		{ID: "ELECTRONIC", DamageMultiplier: 1.5},
	}
}

// Joint kinds increase in capability and price in declaration order.
func defaultJoints() []JointDef {
	return []JointDef{
		{Kind: "FIXED", Mass: 0.5, MaxHealth: 50, Cost: 10, UnlockLevel: 1, MaxForce: 1000, MaxTorque: 500, BreakForce: 1500, BreakTorque: 750, CanBreak: true},
		{Kind: "HINGE", Mass: 1, MaxHealth: 60, Cost: 25, UnlockLevel: 2, MaxForce: 1500, MaxTorque: 800, BreakForce: 2250, BreakTorque: 1200, CanBreak: true, Motorized: true},
		{Kind: "SPRING", Mass: 1.5, MaxHealth: 70, Cost: 40, UnlockLevel: 3, MaxForce: 2000, MaxTorque: 1000, BreakForce: 3000, BreakTorque: 1500, CanBreak: true},
		{Kind: "SLIDER", Mass: 2, MaxHealth: 80, Cost: 60, UnlockLevel: 4, MaxForce: 2500, MaxTorque: 1200, BreakForce: 3750, BreakTorque: 1800, CanBreak: true},
		{Kind: "CONFIGURABLE", Mass: 3, MaxHealth: 100, Cost: 100, UnlockLevel: 5, MaxForce: 4000, MaxTorque: 2000, BreakForce: 6000, BreakTorque: 3000, CanBreak: true, Motorized: true},
	}
}

func defaultParts() []PartDef {
	return []PartDef{
		{ID: "BLOCK_WOOD", Kind: "BLOCK", Name: "Wooden Block", Material: "WOOD", Mass: 5, Cost: 10, UnlockLevel: 1, MaxHealth: 80},
		{ID: "BLOCK_METAL", Kind: "BLOCK", Name: "Metal Block", Material: "METAL", Mass: 12, Cost: 40, UnlockLevel: 2, MaxHealth: 150},
		{ID: "BLOCK_PLASTIC", Kind: "BLOCK", Name: "Plastic Block", Material: "PLASTIC", Mass: 2, Cost: 8, UnlockLevel: 1, MaxHealth: 50},

		{ID: "MOTOR_SMALL", Kind: "MOTOR", Name: "Small Motor", Material: "METAL", Mass: 20, Cost: 120, UnlockLevel: 1, MaxHealth: 100,
			Motor: &MotorDef{Power: 200, MaxRPM: 3000, FuelMax: 50, FuelConsumption: 0.5, MaxTemperature: 110}},
		{ID: "MOTOR_V8", Kind: "MOTOR", Name: "V8 Engine", Material: "METAL", Mass: 80, Cost: 900, UnlockLevel: 5, MaxHealth: 250,
			Motor: &MotorDef{Power: 1200, MaxRPM: 6500, FuelMax: 120, FuelConsumption: 2, MaxTemperature: 130}},

		{ID: "WHEEL_SMALL", Kind: "WHEEL", Name: "Small Wheel", Material: "RUBBER", Mass: 4, Cost: 30, UnlockLevel: 1, MaxHealth: 60,
			Wheel: &WheelDef{Radius: 0.3, TorqueCapacity: 150, MaxSpeed: 12, Motorized: true}},
		{ID: "WHEEL_LARGE", Kind: "WHEEL", Name: "Large Wheel", Material: "RUBBER", Mass: 10, Cost: 70, UnlockLevel: 3, MaxHealth: 120,
			Wheel: &WheelDef{Radius: 0.6, TorqueCapacity: 600, MaxSpeed: 20, Motorized: true}},
		{ID: "WHEEL_STEER", Kind: "WHEEL", Name: "Steering Wheel", Material: "RUBBER", Mass: 5, Cost: 50, UnlockLevel: 2, MaxHealth: 60,
			Wheel: &WheelDef{Radius: 0.3, TorqueCapacity: 150, MaxSpeed: 12, Steering: true, MaxSteerDeg: 35}},
		{ID: "WHEEL_CASTER", Kind: "WHEEL", Name: "Caster", Material: "PLASTIC", Mass: 1, Cost: 5, UnlockLevel: 1, MaxHealth: 30,
			Wheel: &WheelDef{Radius: 0.15, TorqueCapacity: 0, MaxSpeed: 15}},

		{ID: "SENSOR_DISTANCE", Kind: "SENSOR", Name: "Distance Sensor", Material: "ELECTRONIC", Mass: 0.5, Cost: 60, UnlockLevel: 2, MaxHealth: 25,
			Sensor: &SensorDef{Kind: "DISTANCE", Range: 20, UpdateRateHz: 10, Min: 0, Max: 20}},
		{ID: "SENSOR_PROXIMITY", Kind: "SENSOR", Name: "Proximity Sensor", Material: "ELECTRONIC", Mass: 0.5, Cost: 50, UnlockLevel: 2, MaxHealth: 25,
			Sensor: &SensorDef{Kind: "PROXIMITY", Range: 6, UpdateRateHz: 10, Min: 0, Max: 6}},
		{ID: "SENSOR_PRESSURE", Kind: "SENSOR", Name: "Pressure Plate", Material: "METAL", Mass: 2, Cost: 45, UnlockLevel: 3, MaxHealth: 60,
			Sensor: &SensorDef{Kind: "PRESSURE", Range: 3, UpdateRateHz: 5, Min: 0, Max: 5, Trigger: 1}},
		{ID: "SENSOR_TEMPERATURE", Kind: "SENSOR", Name: "Thermometer", Material: "ELECTRONIC", Mass: 0.3, Cost: 40, UnlockLevel: 3, MaxHealth: 20,
			Sensor: &SensorDef{Kind: "TEMPERATURE", Range: 1, UpdateRateHz: 2, Min: -40, Max: 160, Trigger: 90}},
		{ID: "SENSOR_LIGHT", Kind: "SENSOR", Name: "Light Sensor", Material: "ELECTRONIC", Mass: 0.3, Cost: 35, UnlockLevel: 2, MaxHealth: 20,
			Sensor: &SensorDef{Kind: "LIGHT", Range: 1, UpdateRateHz: 4, Min: 0, Max: 1, Trigger: 0.5}},
		{ID: "SENSOR_MOTION", Kind: "SENSOR", Name: "Motion Sensor", Material: "ELECTRONIC", Mass: 0.5, Cost: 70, UnlockLevel: 4, MaxHealth: 25,
			Sensor: &SensorDef{Kind: "MOTION", Range: 8, UpdateRateHz: 10, Min: 0, Max: 30, Trigger: 0.5}},

		{ID: "GATE_AND", Kind: "LOGIC_GATE", Name: "AND Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 20, UnlockLevel: 2, MaxHealth: 15,
			Gate: &GateDef{Logic: "AND", Inputs: 2, Outputs: 1, RateHz: 20}},
		{ID: "GATE_OR", Kind: "LOGIC_GATE", Name: "OR Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 20, UnlockLevel: 2, MaxHealth: 15,
			Gate: &GateDef{Logic: "OR", Inputs: 2, Outputs: 1, RateHz: 20}},
		{ID: "GATE_NOT", Kind: "LOGIC_GATE", Name: "NOT Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 15, UnlockLevel: 2, MaxHealth: 15,
			Gate: &GateDef{Logic: "NOT", Inputs: 1, Outputs: 1, RateHz: 20}},
		{ID: "GATE_XOR", Kind: "LOGIC_GATE", Name: "XOR Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 25, UnlockLevel: 3, MaxHealth: 15,
			Gate: &GateDef{Logic: "XOR", Inputs: 2, Outputs: 1, RateHz: 20}},
		{ID: "GATE_NAND", Kind: "LOGIC_GATE", Name: "NAND Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 20, UnlockLevel: 3, MaxHealth: 15,
			Gate: &GateDef{Logic: "NAND", Inputs: 2, Outputs: 1, RateHz: 20}},
		{ID: "GATE_NOR", Kind: "LOGIC_GATE", Name: "NOR Gate", Material: "ELECTRONIC", Mass: 0.2, Cost: 20, UnlockLevel: 3, MaxHealth: 15,
			Gate: &GateDef{Logic: "NOR", Inputs: 2, Outputs: 1, RateHz: 20}},
		{ID: "GATE_BUFFER", Kind: "LOGIC_GATE", Name: "Relay", Material: "ELECTRONIC", Mass: 0.2, Cost: 10, UnlockLevel: 1, MaxHealth: 15,
			Gate: &GateDef{Logic: "BUFFER", Inputs: 1, Outputs: 4, RateHz: 20}},
		{ID: "CONTROLLER_THRESHOLD", Kind: "CONTROLLER", Name: "Threshold Controller", Material: "ELECTRONIC", Mass: 1, Cost: 80, UnlockLevel: 3, MaxHealth: 30,
			Gate: &GateDef{Logic: "THRESHOLD", Inputs: 2, Outputs: 2, RateHz: 10, Threshold: 0.5}},
		{ID: "CONTROLLER_TIMER", Kind: "CONTROLLER", Name: "Timer Controller", Material: "ELECTRONIC", Mass: 1, Cost: 60, UnlockLevel: 3, MaxHealth: 30,
			Gate: &GateDef{Logic: "TIMER", Inputs: 1, Outputs: 2, RateHz: 10, Delay: 2}},

		{ID: "DRIVER_SEAT", Kind: "DRIVER_SEAT", Name: "Driver Seat", Material: "PLASTIC", Mass: 8, Cost: 30, UnlockLevel: 1, MaxHealth: 70,
			Seat: &SeatDef{MaxSteerDeg: 35}},

		{ID: "CYLINDER_PNEUMATIC", Kind: "CYLINDER", Name: "Pneumatic Cylinder", Material: "METAL", Mass: 3, Cost: 90, UnlockLevel: 3, MaxHealth: 60,
			Cylinder: &CylinderDef{Type: "PNEUMATIC", Stroke: 1, Speed: 4, Force: 400}},
		{ID: "CYLINDER_HYDRAULIC", Kind: "CYLINDER", Name: "Hydraulic Cylinder", Material: "METAL", Mass: 9, Cost: 220, UnlockLevel: 5, MaxHealth: 120,
			Cylinder: &CylinderDef{Type: "HYDRAULIC", Stroke: 1.5, Speed: 1, Force: 3000}},

		{ID: "TOOL_DRILL", Kind: "TOOL", Name: "Drill", Material: "METAL", Mass: 15, Cost: 300, UnlockLevel: 4, MaxHealth: 120,
			Tool: &ToolDef{Kind: "DRILL", Rate: 25, Range: 1.5}},
		{ID: "TOOL_WELDER", Kind: "TOOL", Name: "Welding Machine", Material: "METAL", Mass: 12, Cost: 350, UnlockLevel: 4, MaxHealth: 100,
			Tool: &ToolDef{Kind: "WELDER", Rate: 15, Range: 1.5}},
	}
}

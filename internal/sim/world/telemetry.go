package world

import "rigsim.ai/internal/protocol"

// Telemetry builds the per-tick status frame for observers.
func (w *World) Telemetry(tick uint64, digest string) protocol.TelemetryMsg {
	msg := protocol.TelemetryMsg{
		Type:            protocol.TypeTelemetry,
		ProtocolVersion: protocol.Version,
		Tick:            tick,
		Digest:          digest,
		Assemblies:      make([]protocol.AssemblyObs, 0, len(w.order)),
	}
	for _, id := range w.order {
		a := w.asms[id]
		obs := protocol.AssemblyObs{
			ID:      a.ID,
			Name:    a.Name,
			Active:  a.IsActive(),
			Broken:  a.IsBroken(),
			Reason:  a.BrokenReason(),
			Health:  a.Health(),
			Parts:   a.LivePartCount(),
			Summary: a.Summary(),
		}
		if b, ok := w.phys.Body(id); ok {
			obs.Pos = b.Pos.ToArray()
			obs.Yaw = b.Yaw
			obs.Speed = b.Speed
		}
		for _, m := range a.Motors() {
			obs.Motors = append(obs.Motors, protocol.MotorObs{
				Part:        string(m.Part().ID),
				Running:     m.Running(),
				Overheating: m.Overheating(),
				Fuel:        m.Fuel(),
				Temperature: m.Temperature(),
			})
		}
		msg.Assemblies = append(msg.Assemblies, obs)
	}
	return msg
}

// publishRefs refreshes the machine list other goroutines read through AssemblyRefs, and
// the machine gauges in Metrics.
func (w *World) publishRefs() {
	out := make([]protocol.AssemblyRef, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, protocol.AssemblyRef{ID: id, Name: w.asms[id].Name})
	}
	w.refs.Store(out)
	w.refreshCounts()
}

// AssemblyRefs lists the hosted machines for a WELCOME message. Safe from any goroutine.
func (w *World) AssemblyRefs() []protocol.AssemblyRef {
	refs, _ := w.refs.Load().([]protocol.AssemblyRef)
	return append([]protocol.AssemblyRef(nil), refs...)
}

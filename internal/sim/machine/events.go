package machine

type EventType string

const (
	EventPartAdded           EventType = "PART_ADDED"
	EventPartRemoved         EventType = "PART_REMOVED"
	EventPartDamaged         EventType = "PART_DAMAGED"
	EventPartDestroyed       EventType = "PART_DESTROYED"
	EventConnectionCreated   EventType = "CONNECTION_CREATED"
	EventConnectionStressed  EventType = "CONNECTION_STRESSED"
	EventConnectionRecovered EventType = "CONNECTION_RECOVERED"
	EventConnectionBroken    EventType = "CONNECTION_BROKEN"
	EventEngineStarted       EventType = "ENGINE_STARTED"
	EventEngineStopped       EventType = "ENGINE_STOPPED"
	EventEngineOverheated    EventType = "ENGINE_OVERHEATED"
	EventEngineCooled        EventType = "ENGINE_COOLED"
	EventAssemblyActivated   EventType = "ASSEMBLY_ACTIVATED"
	EventAssemblyDeactivated EventType = "ASSEMBLY_DEACTIVATED"
	EventAssemblyBroken      EventType = "ASSEMBLY_BROKEN"
	EventAssemblyRepaired    EventType = "ASSEMBLY_REPAIRED"
)

type Event struct {
	Tick         uint64    `json:"tick"`
	Type         EventType `json:"type"`
	AssemblyID   string    `json:"assembly_id,omitempty"`
	PartID       PartID    `json:"part_id,omitempty"`
	ConnectionID ConnID    `json:"connection_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Value        float64   `json:"value,omitempty"`
}

// EventBus is a synchronous observer list. Handlers run on the publishing goroutine,
// in subscription order.
type EventBus struct {
	subs   []subscription
	nextID int
	clock  func() uint64
}

type subscription struct {
	id int
	fn func(Event)
}

func NewEventBus() *EventBus { return &EventBus{} }

// SetClock stamps published events with the host tick.
func (b *EventBus) SetClock(fn func() uint64) { b.clock = fn }

func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *EventBus) Publish(ev Event) {
	if b == nil {
		return
	}
	if b.clock != nil && ev.Tick == 0 {
		ev.Tick = b.clock()
	}
	// Snapshot so handlers may unsubscribe while being called.
	subs := append([]subscription(nil), b.subs...)
	for _, s := range subs {
		s.fn(ev)
	}
}

func (b *EventBus) Len() int {
	if b == nil {
		return 0
	}
	return len(b.subs)
}

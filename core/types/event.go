package types

// Attribute is a single key/value pair carried by an event. Attributes keep the
// order in which the emitting module declared them.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// NewEvent builds an event from alternating key/value strings. A trailing key
// without a value is ignored.
func NewEvent(eventType string, kv ...string) *Event {
	attrs := make([]Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return &Event{Type: eventType, Attributes: attrs}
}

// Attr returns the value of the first attribute with the given key.
func (e *Event) Attr(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Keys lists the attribute keys in emission order.
func (e *Event) Keys() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, len(e.Attributes))
	for i, attr := range e.Attributes {
		keys[i] = attr.Key
	}
	return keys
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Attributes: make([]Attribute, len(e.Attributes))}
	copy(clone.Attributes, e.Attributes)
	return clone
}

// JournalEntry is an event after it has been committed to the event journal.
type JournalEntry struct {
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"`
	Event     Event  `json:"event"`
}

package bus

import "time"

// Event is a domain event published on the bus. Lifecycle events carry the
// number they belong to in NumberID; Kind uses dotted namespaces
// ("number.connected", "message.recorded", ...).
type Event struct {
	Kind      string
	NumberID  string
	Timestamp time.Time
	Payload   any
}

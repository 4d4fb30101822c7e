package session

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hivechat/wafleet/internal/bus"
)

// State is one per-number lifecycle state.
type State string

const (
	// Uninitialized means no client is tracked for the number.
	Uninitialized State = "uninitialized"
	// PendingQR means a client exists and is waiting for a QR scan.
	PendingQR State = "pending_qr"
	// Connected means the client is authenticated and able to send/receive.
	Connected State = "connected"
	// Disconnected is terminal for the client instance; a reconnect may
	// construct a fresh one.
	Disconnected State = "disconnected"
)

// validTransitions is the closed transition table. A ready event lands in
// Connected from any state (a resumed credential store skips PendingQR), and
// repeated QR codes self-loop on PendingQR.
var validTransitions = map[State][]State{
	Uninitialized: {PendingQR, Connected, Disconnected},
	PendingQR:     {PendingQR, Connected, Disconnected},
	Connected:     {PendingQR, Connected, Disconnected},
	Disconnected:  {PendingQR, Connected, Uninitialized},
}

// Machine tracks the lifecycle state of every number the manager services.
// Transitions are published on the bus for observers.
type Machine struct {
	mu     sync.Mutex
	states map[string]State
	bus    *bus.Bus
}

// NewMachine creates an empty machine; every unknown number starts
// Uninitialized.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		states: make(map[string]State),
		bus:    b,
	}
}

// Current returns the number's state.
func (m *Machine) Current(numberID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[numberID]; ok {
		return s
	}
	return Uninitialized
}

// Transition moves a number to a new state. Returns an error for moves the
// table does not allow.
func (m *Machine) Transition(numberID string, to State) error {
	m.mu.Lock()
	from, ok := m.states[numberID]
	if !ok {
		from = Uninitialized
	}
	if !slices.Contains(validTransitions[from], to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid transition for %s: %s -> %s", numberID, from, to)
	}
	m.states[numberID] = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.state_changed",
			NumberID:  numberID,
			Timestamp: time.Now(),
			Payload:   StateChange{From: from, To: to},
		})
	}
	return nil
}

// Forget drops a number from the machine, returning it to Uninitialized.
// Called when a client is removed from the registry.
func (m *Machine) Forget(numberID string) {
	m.mu.Lock()
	delete(m.states, numberID)
	m.mu.Unlock()
}

// StateChange is the payload for session.state_changed events.
type StateChange struct {
	From State
	To   State
}

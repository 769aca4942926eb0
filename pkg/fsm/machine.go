package fsm

import (
	"fmt"
	"sync"
)

type State string
type Event string

// Handler runs when a transition fires. The machine has already moved to the
// destination state by the time the handler executes, so a handler may read
// Current or fire a follow-up event without deadlocking.
type Handler func(event Event, args ...interface{}) error

// StateMachine is a small table-driven machine. Castellan uses it to pin the
// boot phases to a fixed order: an out-of-order Fire is an invalid transition,
// not a silent reordering.
type StateMachine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
	callbacks   map[State]map[Event]Handler
}

func New(initial State) *StateMachine {
	return &StateMachine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
		callbacks:   make(map[State]map[Event]Handler),
	}
}

func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) AddTransition(from, to State, event Event, callback Handler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.transitions[from]; !ok {
		sm.transitions[from] = make(map[Event]State)
		sm.callbacks[from] = make(map[Event]Handler)
	}
	sm.transitions[from][event] = to
	sm.callbacks[from][event] = callback
}

// Fire triggers a state transition. The state moves first; the handler's
// error is then returned to the caller. A handler error does not roll the
// state back — the caller decides whether the sequence continues.
func (sm *StateMachine) Fire(event Event, args ...interface{}) error {
	sm.mu.Lock()
	next, ok := sm.transitions[sm.current][event]
	if !ok {
		from := sm.current
		sm.mu.Unlock()
		return fmt.Errorf("invalid transition from %s via %s", from, event)
	}
	handler := sm.callbacks[sm.current][event]
	sm.current = next
	sm.mu.Unlock()

	if handler != nil {
		return handler(event, args...)
	}
	return nil
}

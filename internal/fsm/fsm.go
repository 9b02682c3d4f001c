// Package fsm models the push-connection lifecycle as an explicit state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

const (
	EventConnect     Event = "connect"
	EventEstablished Event = "established"
	EventLost        Event = "lost"
	EventClose       Event = "close"
	EventReset       Event = "reset"
)

// Transition returns the next lifecycle state for event.
// A close is accepted from every live state; reset only leaves closed.
func Transition(current State, event Event) (State, error) {
	if event == EventClose && current != StateClosed {
		return StateClosed, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventConnect:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting, StateReconnecting:
		switch event {
		case EventEstablished:
			return StateConnected, nil
		case EventLost:
			return StateReconnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnected:
		switch event {
		case EventLost:
			return StateReconnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateClosed:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Live reports whether a push connection is wanted in state s.
func Live(s State) bool {
	switch s {
	case StateConnecting, StateConnected, StateReconnecting:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

// Package fsm defines the capture session transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

const (
	EventStart  Event = "start"
	EventStop   Event = "stop"
	EventExited Event = "exited"
)

// Transition applies one event to a capture session state.
//
// A session leaves Recording either by an explicit stop (video only) or by the
// encoder exiting on its own; both paths end in Idle once the process is gone.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopping, nil
		case EventExited:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventExited:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a session exists in state.
func Active(state State) bool {
	return state == StateRecording || state == StateStopping
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

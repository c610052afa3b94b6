// Package pmoremote pilote un MediaRenderer UPnP à travers l'interface
// pmoengine.Engine.
package pmoremote

import "gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"

// State est l'état du transport tel que le renderer le rapporte.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateStarted
	StatePaused
	StateStopped
	StateError
	StateEnd
)

var stateNames = [...]string{
	StateIdle:      "IDLE",
	StatePreparing: "PREPARING",
	StateStarted:   "STARTED",
	StatePaused:    "PAUSED",
	StateStopped:   "STOPPED",
	StateError:     "ERROR",
	StateEnd:       "END",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// StateFromTransport convertit la variable TransportState d'AVTransport.
func StateFromTransport(ts pmoupnp.TransportState) State {
	switch ts {
	case pmoupnp.StatePlaying:
		return StateStarted
	case pmoupnp.StatePausedPlayback:
		return StatePaused
	case pmoupnp.StateStopped:
		return StateStopped
	case pmoupnp.StateNoMediaPresent:
		return StateIdle
	case pmoupnp.StateTransitioning:
		return StatePreparing
	}
	return StateError
}

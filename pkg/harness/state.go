package harness

import "fmt"

// State is the lifecycle state of a plugin instance
type State int

const (
	// Declared: the section is known, nothing is loaded
	Declared State = iota
	// Loaded: the module is open and its manifest validated
	Loaded
	// Initialized: init succeeded for the module and all its dependencies
	Initialized
	// Started: the start hook is running, or returned normally and the
	// module is not deinitialized yet
	Started
	// Stopped: the start hook, if any, returned normally and the module was
	// deinitialized
	Stopped
	// Failed: absorbing; the error is recorded on the instance
	Failed
)

var stateNames = [...]string{
	Declared:    "declared",
	Loaded:      "loaded",
	Initialized: "initialized",
	Started:     "started",
	Stopped:     "stopped",
	Failed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == Stopped || s == Failed
}

// CanTransition reports whether an instance may move from s to next.
// Failed is reachable from every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == Failed {
		return true
	}
	switch s {
	case Declared:
		return next == Loaded
	case Loaded:
		return next == Initialized
	case Initialized:
		return next == Started || next == Stopped
	case Started:
		return next == Stopped
	}
	return false
}

package coordinator

import "fmt"

// State is the capture state of a tab as seen by the coordinator.
type State int

const (
	StateInactive State = iota
	StateStarting
	StateActive
	StateStopping
)

var stateNames = [...]string{
	StateInactive: "inactive",
	StateStarting: "starting",
	StateActive:   "active",
	StateStopping: "stopping",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState is the inverse of State.String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return StateInactive, fmt.Errorf("unknown state %q", name)
}

// Busy reports whether the tab holds or is acquiring engine resources.
func (s State) Busy() bool {
	return s != StateInactive
}

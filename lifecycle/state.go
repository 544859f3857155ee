package lifecycle

import "fmt"

// State is a position in the tarball lifecycle. The string form of a state
// is also the top-level prefix its metadata lives under, both in the object
// store and in the review repository.
type State int

const (
	StateNew State = iota
	StateStaged
	StateReviewRequested
	StateApproved
	StateRejected
	StateIngested
)

var stateNames = [...]string{
	StateNew:             "new",
	StateStaged:          "staged",
	StateReviewRequested: "review_requested",
	StateApproved:        "approved",
	StateRejected:        "rejected",
	StateIngested:        "ingested",
}

// AllStates lists every state in processing order.
func AllStates() []State {
	return []State{StateNew, StateStaged, StateReviewRequested, StateApproved, StateRejected, StateIngested}
}

func (s State) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Valid reports whether s is one of the lifecycle states.
func (s State) Valid() bool {
	return s >= StateNew && s <= StateIngested
}

// Terminal reports whether no handler runs for s.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateIngested
}

// ParseState parses a state name. "pr_opened" is accepted as an alias of
// review_requested.
func ParseState(name string) (State, error) {
	if name == "pr_opened" {
		return StateReviewRequested, nil
	}
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

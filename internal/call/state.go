package call

// State is the single enumerated lifecycle state of a call session. It
// replaces the scattered boolean flags of the browser client with one
// tagged value and a transition table; invalid transitions are rejected
// instead of silently proceeding.
type State int

const (
	StateIdle State = iota
	StateCalling
	StateRinging
	StateConnected
	StateEnded
	StateRejected
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateCalling:   "calling",
	StateRinging:   "ringing",
	StateConnected: "connected",
	StateEnded:     "ended",
	StateRejected:  "rejected",
	StateFailed:    "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state releases the busy slots of both
// parties.
func (s State) Terminal() bool {
	switch s {
	case StateEnded, StateRejected, StateFailed:
		return true
	}
	return false
}

// transitions lists the legal next states per current state. Terminal
// states have no successors.
var transitions = map[State][]State{
	StateIdle:      {StateCalling},
	StateCalling:   {StateRinging, StateEnded, StateFailed},
	StateRinging:   {StateConnected, StateRejected, StateEnded, StateFailed},
	StateConnected: {StateEnded, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

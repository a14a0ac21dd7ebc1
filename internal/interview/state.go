package interview

import "fmt"

// State is the single tagged state of a voice session.
type State int

const (
	Idle State = iota
	Greeting
	AwaitingInput
	Recording
	Transcribing
	Generating
	Speaking
	Paused
	Ended
	DeviceError
)

var stateNames = [...]string{
	Idle:          "idle",
	Greeting:      "greeting",
	AwaitingInput: "awaiting_input",
	Recording:     "recording",
	Transcribing:  "transcribing",
	Generating:    "generating",
	Speaking:      "speaking",
	Paused:        "paused",
	Ended:         "ended",
	DeviceError:   "device_error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON snapshots.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Busy reports whether a collaborator call is in flight in this state.
func (s State) Busy() bool {
	switch s {
	case Greeting, Transcribing, Generating, Speaking:
		return true
	}
	return false
}

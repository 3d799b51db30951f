package checkout

import "fmt"

// State is the single position of a checkout session.
type State int

const (
	StateReviewing State = iota
	StateSelectingMethod
	StateMethodDetails
	StateContactForm
	StateSubmitting
	StateConfirmed
	// StateExited is reached by ReturnToMenu; the flow accepts no further events.
	StateExited
)

var stateNames = [...]string{
	StateReviewing:       "REVIEWING",
	StateSelectingMethod: "SELECTING_METHOD",
	StateMethodDetails:   "METHOD_DETAILS",
	StateContactForm:     "CONTACT_FORM",
	StateSubmitting:      "SUBMITTING",
	StateConfirmed:       "CONFIRMED",
	StateExited:          "EXITED",
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

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown checkout state %q", text)
}

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateExited
}

// cancellable reports whether Cancel may return the session to Reviewing.
func (s State) cancellable() bool {
	return s == StateSelectingMethod || s == StateMethodDetails || s == StateContactForm
}

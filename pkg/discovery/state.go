package discovery

import "fmt"

// State is the client's discovery state machine. Transitions are explicit;
// anything else is a programming error surfaced at the call site.
type State uint8

const (
	StateStartup State = iota
	StateLookingForServer
	StateSpeedTest
)

func (s State) String() string {
	switch s {
	case StateStartup:
		return "startup"
	case StateLookingForServer:
		return "looking_for_server"
	case StateSpeedTest:
		return "speed_test"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// StartLooking enters LOOKING_FOR_SERVER from startup or after a finished
// round.
func (s State) StartLooking() (State, error) {
	if s != StateStartup && s != StateSpeedTest {
		return s, fmt.Errorf("cannot start looking from %s", s)
	}
	return StateLookingForServer, nil
}

// OfferAccepted enters SPEED_TEST once a valid offer has been received.
func (s State) OfferAccepted() (State, error) {
	if s != StateLookingForServer {
		return s, fmt.Errorf("cannot accept an offer from %s", s)
	}
	return StateSpeedTest, nil
}

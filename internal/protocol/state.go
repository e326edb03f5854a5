package protocol

// State is a connection's protocol phase.
type State uint8

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StatePlay
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StatePlay:
		return "play"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Direction is the side a packet travels toward.
type Direction uint8

const (
	// Serverbound packets are sent by the client.
	Serverbound Direction = iota
	// Clientbound packets are sent by the server.
	Clientbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

// Handshake next-state values.
const (
	IntentStatus   = 1
	IntentLogin    = 2
	IntentTransfer = 3
)

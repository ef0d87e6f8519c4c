package agent

// Status is the connection status reported to controllers.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "Connected"
	case StatusFailed:
		return "Failed"
	default:
		return "Disconnected"
	}
}

// State is the full lifecycle state. Connecting covers both the settings fetch
// and the network handshake; Status keeps its previous value meanwhile.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Disconnected"
	}
}

func stateOf(s Status) State {
	switch s {
	case StatusConnected:
		return StateConnected
	case StatusFailed:
		return StateFailed
	default:
		return StateDisconnected
	}
}

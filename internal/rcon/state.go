package rcon

// State is the session's position in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

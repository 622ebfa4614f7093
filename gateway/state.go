package gateway

// State is the lifecycle position of a shard. It is mutated only by the
// shard's state machine, through setStateLocked.
type State int32

const (
	// StateOffline means no socket exists and no reconnect is pending.
	StateOffline State = iota
	// StateConnecting means the socket dial is in flight.
	StateConnecting
	// StateUnidentified means the socket is open but no Identify was sent.
	StateUnidentified
	// StateIdentifying means an Identify handshake is in flight.
	StateIdentifying
	// StateConnected means the session is live (Ready or Resumed seen).
	StateConnected
	// StateResuming means the shard is rejoining an existing session.
	StateResuming
	// StateDisconnected means the socket closed and the next step is owned
	// by whoever initiated the close.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "Offline"
	case StateConnecting:
		return "Connecting"
	case StateUnidentified:
		return "Unidentified"
	case StateIdentifying:
		return "Identifying"
	case StateConnected:
		return "Connected"
	case StateResuming:
		return "Resuming"
	case StateDisconnected:
		return "Disconnected"
	}
	return "Unknown"
}

package contracts

// ClientState is the life cycle state of the periodic engine client.
type ClientState int32

const (
	// ClientClosed means no engine session is open (initial state).
	ClientClosed ClientState = iota
	// ClientIdle means the engine session is open but the cycle callback is not invoked.
	ClientIdle
	// ClientRunning means the engine invokes the cycle callback.
	ClientRunning
)

func (s ClientState) String() string {
	switch s {
	case ClientClosed:
		return "closed"
	case ClientIdle:
		return "idle"
	case ClientRunning:
		return "running"
	}
	return "unknown"
}

// ChainState is the life cycle state of the event chain.
type ChainState int32

const (
	// ChainStopped means no listener is active (initial state).
	ChainStopped ChainState = iota
	// ChainRunning means a listener is waiting for incoming events.
	ChainRunning
)

func (s ChainState) String() string {
	switch s {
	case ChainStopped:
		return "stopped"
	case ChainRunning:
		return "running"
	}
	return "unknown"
}

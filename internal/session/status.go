package session

type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
	// Recovering means a reconnect is scheduled.
	Recovering
	// Offline is terminal: the attempt budget is spent and only a manual
	// Connect starts over.
	Offline
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Recovering:
		return "recovering"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

package router

// Wire shapes published by this client. Inbound parsing is lenient and
// lives with the handlers; these are what we put on the wire ourselves.

type PresenceMessage struct {
	Identity  string  `json:"identity"`
	SessionID string  `json:"sessionId,omitempty"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type RemovalMessage struct {
	Identity  string `json:"identity"`
	SessionID string `json:"sessionId,omitempty"`
}

package types

// ClientMessage is what the chat-platform layer sends over the websocket.
// HTTP clients use the REST routes instead; both funnel into the same
// session commands.
type ClientMessage struct {
	Type    string `json:"type"` // "Join" | "VoteStart" | "Attack" | "Leave"
	ActorID string `json:"actor_id,omitempty"`
}

// ServerMessage wraps every outbound frame.
type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	State   *SessionView `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`
}

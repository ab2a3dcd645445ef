package models

// ChannelState tracks the lifecycle of a realtime channel session.
type ChannelState int

const (
	ChannelDisconnected ChannelState = iota
	ChannelConnecting
	ChannelConnected
	ChannelReconnecting
)

func (s ChannelState) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	case ChannelReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// ChannelSession holds the connection context for one conversation.
type ChannelSession struct {
	ConversationID    string       `json:"conversation_id"`
	State             ChannelState `json:"state"`
	ReconnectAttempts int          `json:"reconnect_attempts"`
}

// Client -> server realtime message types.
const (
	WSTypePing         = "ping"
	WSTypeRequestState = "request_state"
)

// Server -> client realtime message types handled by the channel itself.
const (
	WSTypePong           = "pong"
	WSTypeConnectionLost = "connection_lost"
)

// PingMessage is the periodic heartbeat sent over the websocket. It is purely
// a liveness signal; consumers never see it or its acknowledgement.
type PingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// RequestStateMessage asks the backend to replay the latest known state.
type RequestStateMessage struct {
	Type string `json:"type"`
}

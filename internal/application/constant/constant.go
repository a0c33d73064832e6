package constant

// Ключи атрибутов slog
const (
	Error        = "error"
	ConnectionID = "connection_id"
	PeerID       = "peer_id"
	RoomID       = "room_id"
	Identity     = "identity"
	MessageType  = "message_type"
	State        = "state"
	Reason       = "reason"
	Kind         = "kind"
)

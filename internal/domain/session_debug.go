package domain

// SessionDebug is an optional verbose event describing launcher transitions.
type SessionDebug struct {
	Type          string `json:"type"` // session_debug
	SchemaVersion int    `json:"schemaVersion"`
	State         string `json:"state"`
	PrevState     string `json:"prev_state,omitempty"`
	Port          int    `json:"port,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Reason        string `json:"reason,omitempty"` // e.g., reattached, timeout, cancelled
}

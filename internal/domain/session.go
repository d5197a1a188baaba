package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionID is the opaque identity of a session. It is never used as a lookup
// key by the registry: the debug port is, because the debuggee's real PID is
// not reliably obtainable.
type SessionID string

// RestoredSessionID is the placeholder identity given to sessions synthesized
// from a persisted record; the original id does not survive a restart.
const RestoredSessionID SessionID = "restored"

// NewSessionID generates a fresh session identity
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Status is the advisory state of a debug session
type Status string

const (
	StatusPending      Status = "pending"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// ParseStatus converts a string to a Status, returning false for unknown values
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConnected, StatusDisconnected, StatusError:
		return Status(s), true
	}
	return "", false
}

// PathMapping translates source paths between the development machine and the
// debuggee's runtime view.
type PathMapping struct {
	LocalRoot  string `json:"localRoot" mapstructure:"local_root"`
	RemoteRoot string `json:"remoteRoot" mapstructure:"remote_root"`
}

// Session identifies one debuggable target instance
type Session struct {
	ID                SessionID     `json:"id"`
	DebugIP           string        `json:"debug_ip"`
	DebugPort         int           `json:"debug_port"` // registry primary key
	Status            Status        `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	PathMappings      []PathMapping `json:"path_mappings"`
	WorkspacePath     string        `json:"workspace_path"`
	ExternalSessionID string        `json:"external_session_id,omitempty"` // debug adapter's own session id
}

// NewSession creates a pending session for a freshly allocated port
func NewSession(workspacePath, ip string, port int, extra []PathMapping) *Session {
	return &Session{
		ID:            NewSessionID(),
		DebugIP:       ip,
		DebugPort:     port,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
		PathMappings:  BuildPathMappings(workspacePath, extra),
		WorkspacePath: workspacePath,
	}
}

// BuildPathMappings returns the workspace root mapped to itself followed by extra
func BuildPathMappings(workspacePath string, extra []PathMapping) []PathMapping {
	mappings := make([]PathMapping, 0, len(extra)+1)
	mappings = append(mappings, PathMapping{LocalRoot: workspacePath, RemoteRoot: workspacePath})
	return append(mappings, extra...)
}

// Clone returns a deep copy so callers never share registry-owned state
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.PathMappings = append([]PathMapping(nil), s.PathMappings...)
	return &c
}

// Record projects the session onto its durable form
func (s *Session) Record(savedAt time.Time) PersistedRecord {
	return PersistedRecord{
		Port:          s.DebugPort,
		IP:            s.DebugIP,
		WorkspacePath: s.WorkspacePath,
		SavedAt:       savedAt.UnixMilli(),
	}
}

// PersistedRecord is the minimal durable projection of a session
type PersistedRecord struct {
	Port          int    `json:"port"`
	IP            string `json:"ip"`
	WorkspacePath string `json:"workspacePath"`
	SavedAt       int64  `json:"savedAt"` // unix milliseconds
}

// SavedTime returns SavedAt as a time.Time
func (r PersistedRecord) SavedTime() time.Time {
	return time.UnixMilli(r.SavedAt)
}

// Valid reports whether the record carries enough data to be probed
func (r PersistedRecord) Valid() bool {
	return r.Port > 0 && r.Port <= 65535 && r.IP != ""
}

// RestoredSession synthesizes a transient connected session from a record
func RestoredSession(r PersistedRecord) *Session {
	return &Session{
		ID:            RestoredSessionID,
		DebugIP:       r.IP,
		DebugPort:     r.Port,
		Status:        StatusConnected,
		CreatedAt:     r.SavedTime(),
		PathMappings:  BuildPathMappings(r.WorkspacePath, nil),
		WorkspacePath: r.WorkspacePath,
	}
}

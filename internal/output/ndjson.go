package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/vburojevic/dbgl/internal/domain"
)

// SchemaVersion is stamped on every NDJSON object
const SchemaVersion = 1

// NDJSONWriter writes one JSON object per line
type NDJSONWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{encoder: json.NewEncoder(w)}
}

// Encode writes v as a single line
func (w *NDJSONWriter) Encode(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(v)
}

// ErrorOutput is a coded failure
type ErrorOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WriteError writes an error object
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.Encode(out)
}

// AttachOutput carries the attach configuration of a ready session
type AttachOutput struct {
	Type          string              `json:"type"`
	SchemaVersion int                 `json:"schemaVersion"`
	SessionID     string              `json:"session_id"`
	Workspace     string              `json:"workspace"`
	Reattached    bool                `json:"reattached"`
	PID           int                 `json:"pid,omitempty"`
	Tmux          string              `json:"tmux_attach,omitempty"`
	Config        domain.AttachConfig `json:"config"`
}

// NewAttachOutput builds the attach object for a session
func NewAttachOutput(s *domain.Session, cfg domain.AttachConfig, reattached bool) *AttachOutput {
	return &AttachOutput{
		Type:          "attach",
		SchemaVersion: SchemaVersion,
		SessionID:     string(s.ID),
		Workspace:     s.WorkspacePath,
		Reattached:    reattached,
		Config:        cfg,
	}
}

// WriteAttach writes an attach object
func (w *NDJSONWriter) WriteAttach(out *AttachOutput) error {
	return w.Encode(out)
}

// WriteState writes a launcher transition
func (w *NDJSONWriter) WriteState(d domain.SessionDebug) error {
	d.Type = "session_debug"
	d.SchemaVersion = SchemaVersion
	return w.Encode(d)
}

// RecordOutput is one persisted session
type RecordOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Port          int    `json:"port"`
	IP            string `json:"ip"`
	Workspace     string `json:"workspace"`
	SavedAt       string `json:"saved_at"`
	Status        string `json:"status,omitempty"` // set only when probed
}

// WriteRecord writes a persisted session
func (w *NDJSONWriter) WriteRecord(r domain.PersistedRecord) error {
	return w.Encode(RecordOutput{
		Type:          "session",
		SchemaVersion: SchemaVersion,
		Port:          r.Port,
		IP:            r.IP,
		Workspace:     r.WorkspacePath,
		SavedAt:       r.SavedTime().UTC().Format(time.RFC3339),
	})
}

// WriteProbedSession writes a persisted session with the status its debug
// port answered with
func (w *NDJSONWriter) WriteProbedSession(s *domain.Session) error {
	return w.Encode(RecordOutput{
		Type:          "session",
		SchemaVersion: SchemaVersion,
		Port:          s.DebugPort,
		IP:            s.DebugIP,
		Workspace:     s.WorkspacePath,
		SavedAt:       s.CreatedAt.UTC().Format(time.RFC3339),
		Status:        string(s.Status),
	})
}

// ProbeOutput reports a readiness check
type ProbeOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Reachable     bool   `json:"reachable"`
	WaitedMs      int64  `json:"waited_ms"`
}

// WriteProbe writes a probe result
func (w *NDJSONWriter) WriteProbe(host string, port int, reachable bool, waited time.Duration) error {
	return w.Encode(ProbeOutput{
		Type:          "probe",
		SchemaVersion: SchemaVersion,
		Host:          host,
		Port:          port,
		Reachable:     reachable,
		WaitedMs:      waited.Milliseconds(),
	})
}

// InfoOutput is a free-form status line
type InfoOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	Port          int    `json:"port,omitempty"`
	PID           int    `json:"pid,omitempty"`
}

// WriteInfo writes an info object
func (w *NDJSONWriter) WriteInfo(message string, port, pid int) error {
	return w.Encode(InfoOutput{
		Type:          "info",
		SchemaVersion: SchemaVersion,
		Message:       message,
		Port:          port,
		PID:           pid,
	})
}

// SessionEndOutput reports that a watched session went away
type SessionEndOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Port          int    `json:"port"`
	SessionID     string `json:"session_id"`
	AdapterID     string `json:"adapter_id,omitempty"`
	Reason        string `json:"reason"`
}

// WriteSessionEnd writes a session_end object
func (w *NDJSONWriter) WriteSessionEnd(s *domain.Session, reason string) error {
	return w.Encode(SessionEndOutput{
		Type:          "session_end",
		SchemaVersion: SchemaVersion,
		Port:          s.DebugPort,
		SessionID:     string(s.ID),
		AdapterID:     s.ExternalSessionID,
		Reason:        reason,
	})
}

// TriggerOutput reports a trigger command run
type TriggerOutput struct {
	Type          string `json:"type"` // trigger or trigger_error
	SchemaVersion int    `json:"schemaVersion"`
	Trigger       string `json:"trigger"`
	Command       string `json:"command"`
	Error         string `json:"error,omitempty"`
}

// WriteTrigger writes a trigger or trigger_error object
func (w *NDJSONWriter) WriteTrigger(trigger, command string, err error) error {
	out := TriggerOutput{
		Type:          "trigger",
		SchemaVersion: SchemaVersion,
		Trigger:       trigger,
		Command:       command,
	}
	if err != nil {
		out.Type = "trigger_error"
		out.Error = err.Error()
	}
	return w.Encode(out)
}

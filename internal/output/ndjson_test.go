package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dbgl/internal/domain"
)

// decodeLine consumes exactly one line so later lines stay in buf
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line, err := buf.ReadBytes('\n')
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &m))
	return m
}

func TestWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteError("READINESS_TIMEOUT", "port 5678 never opened", "raise --timeout"))

	m := decodeLine(t, buf)
	require.Equal(t, "error", m["type"])
	require.EqualValues(t, 1, m["schemaVersion"])
	require.Equal(t, "READINESS_TIMEOUT", m["code"])
	require.Equal(t, "port 5678 never opened", m["message"])
	require.Equal(t, "raise --timeout", m["hint"])

	require.NoError(t, w.WriteError("CANCELLED", "launch cancelled"))
	m = decodeLine(t, buf)
	_, hasHint := m["hint"]
	require.False(t, hasHint)
}

func TestWriteAttach(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	s := domain.NewSession("/ws", "localhost", 5678, nil)
	out := NewAttachOutput(s, domain.NewAttachConfig(s, false, domain.DebugOptions{ShowSpecialMembers: true}), true)
	out.PID = 99
	require.NoError(t, w.WriteAttach(out))

	m := decodeLine(t, buf)
	require.Equal(t, "attach", m["type"])
	require.Equal(t, string(s.ID), m["session_id"])
	require.Equal(t, true, m["reattached"])
	require.EqualValues(t, 99, m["pid"])

	cfg, ok := m["config"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Remote Debug (Port: 5678)", cfg["name"])
	assert.Equal(t, "python", cfg["type"])
	assert.Equal(t, "attach", cfg["request"])
	assert.Equal(t, "localhost", cfg["host"])
	assert.EqualValues(t, 5678, cfg["port"])
	assert.Equal(t, true, cfg["redirectOutput"])
	assert.Equal(t, true, cfg["subProcess"])
	assert.Equal(t, []interface{}{"ShowSpecialMembers"}, cfg["extraFlags"])
	mappings, ok := cfg["pathMappings"].([]interface{})
	require.True(t, ok)
	require.Len(t, mappings, 1)
	assert.Equal(t, map[string]interface{}{"localRoot": "/ws", "remoteRoot": "/ws"}, mappings[0])
}

func TestWriteStateStampsType(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteState(domain.SessionDebug{State: "probing", PrevState: "spawning", Port: 5678}))

	m := decodeLine(t, buf)
	require.Equal(t, "session_debug", m["type"])
	require.EqualValues(t, SchemaVersion, m["schemaVersion"])
	require.Equal(t, "probing", m["state"])
	require.Equal(t, "spawning", m["prev_state"])
}

func TestWriteRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	saved := time.Date(2025, 12, 14, 22, 0, 0, 0, time.UTC)
	require.NoError(t, w.WriteRecord(domain.PersistedRecord{Port: 5678, IP: "localhost", WorkspacePath: "/ws", SavedAt: saved.UnixMilli()}))

	m := decodeLine(t, buf)
	require.Equal(t, "session", m["type"])
	require.EqualValues(t, 5678, m["port"])
	require.Equal(t, "/ws", m["workspace"])
	require.Equal(t, "2025-12-14T22:00:00Z", m["saved_at"])
}

func TestWriteProbedSession(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)
	saved := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := domain.RestoredSession(domain.PersistedRecord{Port: 5678, IP: "localhost", WorkspacePath: "/ws", SavedAt: saved.UnixMilli()})
	s.Status = domain.StatusDisconnected

	require.NoError(t, w.WriteProbedSession(s))
	require.NoError(t, w.WriteRecord(domain.PersistedRecord{Port: 6001, IP: "localhost", WorkspacePath: "/ws", SavedAt: saved.UnixMilli()}))

	m := decodeLine(t, buf)
	assert.Equal(t, "session", m["type"])
	assert.EqualValues(t, 5678, m["port"])
	assert.Equal(t, "2024-03-01T12:00:00Z", m["saved_at"])
	assert.Equal(t, "disconnected", m["status"])

	m = decodeLine(t, buf)
	_, hasStatus := m["status"]
	assert.False(t, hasStatus, "unprobed records carry no status")
}

func TestWriteProbeAndInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteProbe("127.0.0.1", 5678, true, 1500*time.Millisecond))
	require.NoError(t, w.WriteInfo("target started", 0, 42))

	m := decodeLine(t, buf)
	require.Equal(t, "probe", m["type"])
	require.Equal(t, true, m["reachable"])
	require.EqualValues(t, 1500, m["waited_ms"])

	m = decodeLine(t, buf)
	require.Equal(t, "info", m["type"])
	require.EqualValues(t, 42, m["pid"])
	_, hasPort := m["port"]
	require.False(t, hasPort)
}

func TestWriteSessionEndAndTrigger(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)
	s := domain.NewSession("/ws", "localhost", 5678, nil)

	require.NoError(t, w.WriteSessionEnd(s, "port_closed"))
	require.NoError(t, w.WriteTrigger("exit", "notify.sh", nil))
	require.NoError(t, w.WriteTrigger("exit", "notify.sh", errors.New("exit status 1")))

	m := decodeLine(t, buf)
	require.Equal(t, "session_end", m["type"])
	require.Equal(t, "port_closed", m["reason"])

	m = decodeLine(t, buf)
	require.Equal(t, "trigger", m["type"])

	m = decodeLine(t, buf)
	require.Equal(t, "trigger_error", m["type"])
	require.Equal(t, "exit status 1", m["error"])
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vburojevic/dbgl/internal/domain"
)

var schemaTypes = []string{"attach", "session_debug", "session", "probe", "info", "session_end", "trigger", "error"}

// SchemaCmd outputs JSON Schema for dbgl output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (attach,session_debug,session,probe,info,session_end,trigger,error). Default: all"`
	List bool     `help:"List output types instead of printing schemas"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if c.List {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]interface{}{
		"attach":        attachSchema(),
		"session_debug": sessionDebugSchema(),
		"session":       sessionSchema(),
		"probe":         probeSchema(),
		"info":          infoSchema(),
		"session_end":   sessionEndSchema(),
		"trigger":       triggerSchema(),
		"error":         errorSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	output := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "dbgl Output Schemas",
		"description": "JSON Schema definitions for all dbgl NDJSON output types",
		"definitions": map[string]interface{}{},
	}

	defs := output["definitions"].(map[string]interface{})
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func constType(t string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "const": t}
}

func object(title, description string, props map[string]interface{}, required ...string) map[string]interface{} {
	props["schemaVersion"] = map[string]interface{}{"type": "integer", "const": 1}
	return map[string]interface{}{
		"type":        "object",
		"title":       title,
		"description": description,
		"properties":  props,
		"required":    append([]string{"type", "schemaVersion"}, required...),
	}
}

func attachSchema() map[string]interface{} {
	mapping := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"localRoot":  prop("string", "Path on this machine"),
			"remoteRoot": prop("string", "Path as seen by the debuggee"),
		},
		"required": []string{"localRoot", "remoteRoot"},
	}
	return object("Attach Configuration", "A debug session is ready; config completes the debug-adapter attach", map[string]interface{}{
		"type":        constType("attach"),
		"session_id":  prop("string", "Session id, or 'restored' for a session recovered from the store"),
		"workspace":   prop("string", "Workspace root"),
		"reattached":  prop("boolean", "True when an existing debuggee was reused"),
		"pid":         prop("integer", "PID of the started target (absent when reattached)"),
		"tmux_attach": prop("string", "Command to attach to the target's tmux session"),
		"config": map[string]interface{}{
			"type":        "object",
			"description": "Attach configuration",
			"properties": map[string]interface{}{
				"name":           prop("string", "Remote Debug (Port: N)"),
				"type":           constType("python"),
				"request":        constType("attach"),
				"host":           prop("string", "Debug host"),
				"port":           prop("integer", "Debug port"),
				"pathMappings":   map[string]interface{}{"type": "array", "items": mapping},
				"justMyCode":     prop("boolean", "Only step through workspace code"),
				"redirectOutput": prop("boolean", "Always true"),
				"subProcess":     prop("boolean", "Always true"),
				"extraFlags":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required": []string{"name", "type", "request", "host", "port", "pathMappings"},
		},
	}, "session_id", "workspace", "reattached", "config")
}

func sessionDebugSchema() map[string]interface{} {
	states := []string{"idle", "reattach_check", "attached", "allocating", "spawning", "probing", "ready", "timed_out", "cancelled", "failed"}
	return object("Launcher Transition", "Emitted under --verbose for every launcher state change", map[string]interface{}{
		"type":       constType("session_debug"),
		"state":      map[string]interface{}{"type": "string", "enum": states},
		"prev_state": map[string]interface{}{"type": "string", "enum": states},
		"port":       prop("integer", "Debug port once allocated"),
		"session_id": prop("string", "Session id once registered"),
		"reason":     prop("string", "reattached, allocation, spawn, timeout or cancelled"),
	}, "state")
}

var probedStatus = map[string]interface{}{
	"type":        "string",
	"enum":        []string{string(domain.StatusConnected), string(domain.StatusDisconnected)},
	"description": "Present with sessions list --probe",
}

func sessionSchema() map[string]interface{} {
	return object("Persisted Session", "A session record from the store", map[string]interface{}{
		"type":      constType("session"),
		"port":      prop("integer", "Debug port"),
		"ip":        prop("string", "Debug host"),
		"workspace": prop("string", "Workspace root"),
		"saved_at":  map[string]interface{}{"type": "string", "format": "date-time"},
		"status":    probedStatus,
	}, "port", "ip", "workspace", "saved_at")
}

func probeSchema() map[string]interface{} {
	return object("Probe Result", "Outcome of dbgl probe", map[string]interface{}{
		"type":      constType("probe"),
		"host":      prop("string", "Probed host"),
		"port":      prop("integer", "Probed port"),
		"reachable": prop("boolean", "True when a connection was accepted"),
		"waited_ms": prop("integer", "Time spent probing"),
	}, "host", "port", "reachable", "waited_ms")
}

func infoSchema() map[string]interface{} {
	return object("Info", "Status message", map[string]interface{}{
		"type":    constType("info"),
		"message": prop("string", "Human-readable status"),
		"port":    prop("integer", "Related debug port"),
		"pid":     prop("integer", "Related process"),
	}, "message")
}

func sessionEndSchema() map[string]interface{} {
	return object("Session End", "A watched session stopped answering", map[string]interface{}{
		"type":       constType("session_end"),
		"port":       prop("integer", "Debug port"),
		"session_id": prop("string", "Session id"),
		"adapter_id": prop("string", "Debug adapter session id given with --adapter-id"),
		"reason":     map[string]interface{}{"type": "string", "enum": []string{endPortClosed, endProcessExited, endForgotten}},
	}, "port", "session_id", "reason")
}

func triggerSchema() map[string]interface{} {
	return object("Trigger", "An --on-exit command ran", map[string]interface{}{
		"type":    map[string]interface{}{"type": "string", "enum": []string{"trigger", "trigger_error"}},
		"trigger": prop("string", "Trigger name"),
		"command": prop("string", "Command passed to sh -c"),
		"error":   prop("string", "Failure, for trigger_error"),
	}, "trigger", "command")
}

func errorSchema() map[string]interface{} {
	return object("Error", "Error message from dbgl", map[string]interface{}{
		"type": constType("error"),
		"code": map[string]interface{}{
			"type":        "string",
			"description": "Error code",
			"enum": []string{
				"PORT_ALLOCATION_FAILED",
				"DUPLICATE_SESSION",
				"SPAWN_FAILED",
				"READINESS_TIMEOUT",
				"CANCELLED",
				"LAUNCH_FAILED",
				"INVALID_FLAGS",
				"INVALID_WORKSPACE",
				"INVALID_WHERE",
				"NO_EXECUTABLE",
				"TMUX_NOT_AVAILABLE",
				"SETUP_FAILED",
				"STOP_FAILED",
				"STORE_UNAVAILABLE",
				"STORE_READ_FAILED",
				"STORE_WRITE_FAILED",
			},
		},
		"message": prop("string", "Human-readable error description"),
		"hint":    prop("string", "Suggested fix"),
	}, "code", "message")
}

func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "dbgl Output Types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  attach        - Attach config of a ready session")
	fmt.Fprintln(globals.Stdout, "  session_debug - Launcher transition (--verbose)")
	fmt.Fprintln(globals.Stdout, "  session       - Persisted session record")
	fmt.Fprintln(globals.Stdout, "  probe         - Probe result")
	fmt.Fprintln(globals.Stdout, "  info          - Status message")
	fmt.Fprintln(globals.Stdout, "  session_end   - Watched session ended")
	fmt.Fprintln(globals.Stdout, "  trigger       - On-exit command result")
	fmt.Fprintln(globals.Stdout, "  error         - Error from dbgl")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --type to filter: dbgl schema --type attach,error")
}

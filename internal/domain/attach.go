package domain

import "fmt"

// DebugOptions control variable filtering in the debuggee's adapter
type DebugOptions struct {
	ShowPrivateMembers  bool `json:"showPrivateMembers" mapstructure:"show_private_members"`
	ShowSpecialMembers  bool `json:"showSpecialMembers" mapstructure:"show_special_members"`
	ShowFunctionMembers bool `json:"showFunctionMembers" mapstructure:"show_function_members"`
	ShowBuiltinMembers  bool `json:"showBuiltinMembers" mapstructure:"show_builtin_members"`
}

// Flags converts the enabled options into adapter flags
func (o DebugOptions) Flags() []string {
	var flags []string
	if o.ShowPrivateMembers {
		flags = append(flags, "ShowPrivateMembers")
	}
	if o.ShowSpecialMembers {
		flags = append(flags, "ShowSpecialMembers")
	}
	if o.ShowFunctionMembers {
		flags = append(flags, "ShowFunctionMembers")
	}
	if o.ShowBuiltinMembers {
		flags = append(flags, "ShowBuiltinMembers")
	}
	return flags
}

// AttachConfig is the configuration handed to a debug-adapter client to
// complete attachment.
type AttachConfig struct {
	Name           string        `json:"name"`
	Type           string        `json:"type"`    // "python"
	Request        string        `json:"request"` // "attach"
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	PathMappings   []PathMapping `json:"pathMappings"`
	JustMyCode     bool          `json:"justMyCode"`
	RedirectOutput bool          `json:"redirectOutput"`
	SubProcess     bool          `json:"subProcess"`
	ExtraFlags     []string      `json:"extraFlags,omitempty"`
}

// NewAttachConfig builds the attach configuration for a session
func NewAttachConfig(s *Session, justMyCode bool, opts DebugOptions) AttachConfig {
	return AttachConfig{
		Name:           fmt.Sprintf("Remote Debug (Port: %d)", s.DebugPort),
		Type:           "python",
		Request:        "attach",
		Host:           s.DebugIP,
		Port:           s.DebugPort,
		PathMappings:   append([]PathMapping(nil), s.PathMappings...),
		JustMyCode:     justMyCode,
		RedirectOutput: true,
		SubProcess:     true,
		ExtraFlags:     opts.Flags(),
	}
}

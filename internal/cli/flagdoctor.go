package cli

import "time"

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals, tmux bool, logDir string, timeout, poll time.Duration) error {
	// quiet + text is confusing; steer to ndjson
	if globals != nil && globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	// tmux panes own the target's output
	if tmux && logDir != "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--log-dir cannot be combined with --tmux", "attach to the tmux session to see output or drop --tmux")
	}
	if timeout > 0 && poll > timeout {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--poll-interval is longer than --timeout", "lower --poll-interval or raise --timeout")
	}
	return nil
}

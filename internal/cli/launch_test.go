package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/store"
)

// fakeDialer accepts connections on open ports. A port opened with a budget
// accepts that many dials and then refuses.
type fakeDialer struct {
	mu   sync.Mutex
	open map[int]int // port -> remaining dials, -1 unlimited
}

func newFakeDialer() *fakeDialer { return &fakeDialer{open: map[int]int{}} }

func (d *fakeDialer) Open(port, budget int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open[port] = budget
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, _ := strconv.Atoi(portStr)

	d.mu.Lock()
	defer d.mu.Unlock()
	remaining, ok := d.open[port]
	if !ok || remaining == 0 {
		return nil, errors.New("connection refused")
	}
	if remaining > 0 {
		d.open[port] = remaining - 1
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

type stubHandle struct {
	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

func newStubHandle() *stubHandle { return &stubHandle{done: make(chan struct{})} }

func (h *stubHandle) PID() int { return 777 }

func (h *stubHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.stopped {
		h.stopped = true
		close(h.done)
	}
	return nil
}

func (h *stubHandle) Done() <-chan struct{} { return h.done }

// stubTarget spawns nothing; it opens the debug port on the fake dialer
type stubTarget struct {
	mu      sync.Mutex
	dialer  *fakeDialer
	budget  int // dials the port accepts, 0 leaves it closed
	exited  bool
	specs   []launcher.SpawnSpec
	handles []*stubHandle
}

func (s *stubTarget) Spawn(ctx context.Context, spec launcher.SpawnSpec) (launcher.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	if spec.Port > 0 && s.budget != 0 {
		s.dialer.Open(spec.Port, s.budget)
	}
	h := newStubHandle()
	if s.exited {
		close(h.done)
		h.stopped = true
	}
	s.handles = append(s.handles, h)
	return h, nil
}

func (s *stubTarget) spawned() []launcher.SpawnSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]launcher.SpawnSpec(nil), s.specs...)
}

func withStubs(globals *Globals, budget int) (*fakeDialer, *stubTarget) {
	d := newFakeDialer()
	target := &stubTarget{dialer: d, budget: budget}
	globals.dialer = d
	globals.spawner = target
	return d, target
}

func launchFlags(ws string, extra ...func(*LaunchFlags)) LaunchFlags {
	f := LaunchFlags{Workspace: ws, IP: "127.0.0.1", Exe: "server.py", Timeout: 2 * time.Second, PollInterval: 10 * time.Millisecond}
	for _, fn := range extra {
		fn(&f)
	}
	return f
}

func storedRecords(t *testing.T, globals *Globals) []domain.PersistedRecord {
	t.Helper()
	st, err := store.New(globals.Config.Store.Path, nil)
	require.NoError(t, err)
	records, err := st.List()
	require.NoError(t, err)
	return records
}

// --- launch ---

func TestLaunchCmd_StartsAndPrintsAttachConfig(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, -1)
	ws := t.TempDir()

	cmd := &LaunchCmd{LaunchFlags: launchFlags(ws, func(f *LaunchFlags) {
		f.PathMapping = []string{"/src=/app"}
		f.Arg = []string{"--reload"}
		f.JustMyCode = true
	})}
	require.NoError(t, cmd.Run(globals))

	specs := target.spawned()
	require.Len(t, specs, 1)
	spec := specs[0]
	assert.Equal(t, filepath.Join(ws, "server.py"), spec.Executable)
	assert.Equal(t, []string{"--reload"}, spec.Args)
	assert.Equal(t, ws, spec.Dir)
	assert.Equal(t, strconv.Itoa(spec.Port), spec.Env[launcher.EnvDebugPort])
	assert.Equal(t, "127.0.0.1", spec.Env[launcher.EnvDebugIP])
	_, subprocess := spec.Env[launcher.EnvSubprocessRun]
	assert.False(t, subprocess, "no liveness command configured")

	attach := linesOfType(decodeLines(t, stdout), "attach")
	require.Len(t, attach, 1)
	assert.Equal(t, false, attach[0]["reattached"])
	assert.EqualValues(t, 777, attach[0]["pid"])
	assert.Equal(t, ws, attach[0]["workspace"])

	cfg := attach[0]["config"].(map[string]interface{})
	assert.EqualValues(t, spec.Port, cfg["port"])
	assert.Equal(t, true, cfg["justMyCode"])
	mappings := cfg["pathMappings"].([]interface{})
	require.Len(t, mappings, 2)
	assert.Equal(t, map[string]interface{}{"localRoot": ws, "remoteRoot": ws}, mappings[0])
	assert.Equal(t, map[string]interface{}{"localRoot": "/src", "remoteRoot": "/app"}, mappings[1])

	records := storedRecords(t, globals)
	require.Len(t, records, 1)
	assert.Equal(t, spec.Port, records[0].Port)
	assert.Equal(t, ws, records[0].WorkspacePath)
}

func TestLaunchCmd_ReattachesFromStore(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	dialer, target := withStubs(globals, -1)
	ws := t.TempDir()

	st, err := store.New(globals.Config.Store.Path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Save(domain.PersistedRecord{Port: 6123, IP: "127.0.0.1", WorkspacePath: ws, SavedAt: time.Now().UnixMilli()}))
	dialer.Open(6123, -1)

	require.NoError(t, (&LaunchCmd{LaunchFlags: launchFlags(ws)}).Run(globals))

	assert.Empty(t, target.spawned())
	attach := linesOfType(decodeLines(t, stdout), "attach")
	require.Len(t, attach, 1)
	assert.Equal(t, true, attach[0]["reattached"])
	assert.Equal(t, string(domain.RestoredSessionID), attach[0]["session_id"])
	_, hasPID := attach[0]["pid"]
	assert.False(t, hasPID)
}

func TestLaunchCmd_NewSkipsReattach(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	dialer, target := withStubs(globals, -1)
	ws := t.TempDir()

	st, err := store.New(globals.Config.Store.Path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Save(domain.PersistedRecord{Port: 6124, IP: "127.0.0.1", WorkspacePath: ws, SavedAt: time.Now().UnixMilli()}))
	dialer.Open(6124, -1)

	require.NoError(t, (&LaunchCmd{LaunchFlags: launchFlags(ws, func(f *LaunchFlags) { f.New = true })}).Run(globals))

	assert.Len(t, target.spawned(), 1)
	attach := linesOfType(decodeLines(t, stdout), "attach")
	require.Len(t, attach, 1)
	assert.Equal(t, false, attach[0]["reattached"])
}

func TestLaunchCmd_ReadinessTimeout(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 0)

	cmd := &LaunchCmd{LaunchFlags: launchFlags(t.TempDir(), func(f *LaunchFlags) {
		f.Timeout = 50 * time.Millisecond
	})}
	require.Error(t, cmd.Run(globals))

	errs := linesOfType(decodeLines(t, stdout), "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "READINESS_TIMEOUT", errs[0]["code"])
	assert.Empty(t, storedRecords(t, globals))

	target.mu.Lock()
	defer target.mu.Unlock()
	require.Len(t, target.handles, 1)
	assert.False(t, target.handles[0].stopped, "timed out target is left running")
}

func TestLaunchCmd_VerboseEmitsTransitions(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	globals.Verbose = true
	withStubs(globals, -1)

	require.NoError(t, (&LaunchCmd{LaunchFlags: launchFlags(t.TempDir())}).Run(globals))

	var states []string
	for _, l := range linesOfType(decodeLines(t, stdout), "session_debug") {
		states = append(states, l["state"].(string))
	}
	assert.Equal(t, []string{"reattach_check", "allocating", "spawning", "probing", "ready"}, states)
}

func TestLaunchCmd_FlagErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags func(*LaunchFlags)
		code  string
	}{
		{"bad path mapping", func(f *LaunchFlags) { f.PathMapping = []string{"/src"} }, "INVALID_FLAGS"},
		{"no executable", func(f *LaunchFlags) { f.Exe = "" }, "NO_EXECUTABLE"},
		{"tmux with log dir", func(f *LaunchFlags) { f.Tmux, f.LogDir = true, "/tmp/logs" }, "INVALID_FLAGS"},
		{"poll longer than timeout", func(f *LaunchFlags) { f.PollInterval = 5 * time.Second }, "INVALID_FLAGS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globals, stdout, _ := testGlobals(t, "ndjson")
			_, target := withStubs(globals, -1)

			require.Error(t, (&LaunchCmd{LaunchFlags: launchFlags(t.TempDir(), tt.flags)}).Run(globals))
			errs := linesOfType(decodeLines(t, stdout), "error")
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, errs[0]["code"])
			assert.Empty(t, target.spawned())
		})
	}
}

func TestLaunchFlagsFallBackToConfig(t *testing.T) {
	globals, _, _ := testGlobals(t, "ndjson")
	cfg := globals.Config
	cfg.Debug.IP = "10.0.0.5"
	cfg.Debug.Port = 6000
	cfg.Debug.JustMyCode = true
	cfg.Debug.PathMappings = []domain.PathMapping{{LocalRoot: "/a", RemoteRoot: "/b"}}
	cfg.Launch.Executable = "/opt/app/server"
	cfg.Launch.Args = []string{"serve"}
	cfg.Launch.Timeout = 30 * time.Second

	f := LaunchFlags{Workspace: t.TempDir(), PathMapping: []string{"/c=/d"}}
	req, err := f.request(globals)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", req.IP)
	assert.Equal(t, 6000, req.PreferredPort)
	assert.True(t, req.JustMyCode)
	assert.Equal(t, "/opt/app/server", req.Executable)
	assert.Equal(t, []string{"serve"}, req.Args)
	assert.Equal(t, 30*time.Second, req.Timeout)
	assert.Equal(t, cfg.Launch.PollInterval, req.PollInterval)
	assert.Equal(t, []domain.PathMapping{{LocalRoot: "/a", RemoteRoot: "/b"}, {LocalRoot: "/c", RemoteRoot: "/d"}}, req.PathMappings)

	f = LaunchFlags{Workspace: f.Workspace, IP: "127.0.0.1", Port: 7000, Exe: "/usr/bin/app", Arg: []string{"x"}}
	req, err = f.request(globals)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", req.IP)
	assert.Equal(t, 7000, req.PreferredPort)
	assert.Equal(t, "/usr/bin/app", req.Executable)
	assert.Equal(t, []string{"x"}, req.Args)
}

func TestParsePathMapping(t *testing.T) {
	m, err := parsePathMapping("/src=/app")
	require.NoError(t, err)
	assert.Equal(t, domain.PathMapping{LocalRoot: "/src", RemoteRoot: "/app"}, m)

	for _, bad := range []string{"", "/src", "=/app", "/src="} {
		_, err := parsePathMapping(bad)
		assert.Error(t, err, bad)
	}
}

// --- watch ---

// runWatch runs cmd on a mock clock, advancing it until the command returns
func runWatch(t *testing.T, globals *Globals, cmd *WatchCmd) error {
	t.Helper()
	mock := clock.NewMock()
	globals.clock = mock

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.run(ctx, cancel, globals) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			return err
		case <-deadline:
			t.Fatal("watch did not finish")
		default:
			mock.Add(50 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWatchCmd_PortClosed(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	// one dial for readiness, two healthy ticks, then refused
	withStubs(globals, 3)
	marker := filepath.Join(t.TempDir(), "ended")

	cmd := &WatchCmd{
		LaunchFlags: launchFlags(t.TempDir()),
		Interval:    100 * time.Millisecond,
		OnExit:      `printf '%s %s' "$DBGL_PORT" "$DBGL_REASON" > ` + marker,
	}
	require.NoError(t, runWatch(t, globals, cmd))

	lines := decodeLines(t, stdout)
	attach := linesOfType(lines, "attach")
	require.Len(t, attach, 1)
	port := int(attach[0]["config"].(map[string]interface{})["port"].(float64))

	ends := linesOfType(lines, "session_end")
	require.Len(t, ends, 1)
	assert.Equal(t, endPortClosed, ends[0]["reason"])
	assert.EqualValues(t, port, ends[0]["port"])

	triggers := linesOfType(lines, "trigger")
	require.Len(t, triggers, 1)
	assert.Equal(t, "exit", triggers[0]["trigger"])

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(port)+" "+endPortClosed, string(data))

	assert.Empty(t, storedRecords(t, globals), "ended session is dropped from the store")
}

func TestWatchCmd_ProcessExited(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 1)
	target.exited = true

	cmd := &WatchCmd{LaunchFlags: launchFlags(t.TempDir()), Interval: time.Hour}
	require.NoError(t, runWatch(t, globals, cmd))

	ends := linesOfType(decodeLines(t, stdout), "session_end")
	require.Len(t, ends, 1)
	assert.Equal(t, endProcessExited, ends[0]["reason"])
}

func TestWatchCmd_AdapterIDEndsThroughAdapter(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 1)
	target.exited = true
	marker := filepath.Join(t.TempDir(), "adapter")

	cmd := &WatchCmd{
		LaunchFlags: launchFlags(t.TempDir()),
		Interval:    time.Hour,
		AdapterID:   "vscode-1",
		OnExit:      `printf '%s' "$DBGL_ADAPTER_ID" > ` + marker,
	}
	require.NoError(t, runWatch(t, globals, cmd))

	ends := linesOfType(decodeLines(t, stdout), "session_end")
	require.Len(t, ends, 1)
	assert.Equal(t, "vscode-1", ends[0]["adapter_id"])
	assert.Equal(t, endProcessExited, ends[0]["reason"])
	assert.Empty(t, storedRecords(t, globals), "adapter termination drops the persisted record")

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "vscode-1", string(data))
}

func TestWatchCmd_TriggerFailure(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 1)
	target.exited = true

	cmd := &WatchCmd{LaunchFlags: launchFlags(t.TempDir()), Interval: time.Hour, OnExit: "exit 3"}
	require.NoError(t, runWatch(t, globals, cmd))

	errs := linesOfType(decodeLines(t, stdout), "trigger_error")
	require.Len(t, errs, 1)
	assert.Equal(t, "exit 3", errs[0]["command"])
	assert.Contains(t, errs[0]["error"], "exit status 3")
}

func TestWatchCmd_ForgottenWhenRemovedFromStore(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	withStubs(globals, -1)

	st, err := store.New(globals.Config.Store.Path, nil)
	require.NoError(t, err)
	go func() {
		for i := 0; i < 200; i++ {
			records, _ := st.List()
			if len(records) > 0 {
				// let the watch subscribe before removing
				time.Sleep(300 * time.Millisecond)
				_ = st.RemoveByPort(records[0].Port)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	cmd := &WatchCmd{LaunchFlags: launchFlags(t.TempDir()), Interval: time.Hour}
	require.NoError(t, runWatch(t, globals, cmd))

	ends := linesOfType(decodeLines(t, stdout), "session_end")
	require.Len(t, ends, 1)
	assert.Equal(t, endForgotten, ends[0]["reason"])
}

func TestWatchCmd_InvalidInterval(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	withStubs(globals, -1)

	err := (&WatchCmd{LaunchFlags: launchFlags(t.TempDir())}).run(context.Background(), func() {}, globals)
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "INVALID_FLAGS")
}

// --- run ---

func TestRunCmd(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 0)
	target.exited = true
	ws := t.TempDir()

	require.NoError(t, (&RunCmd{Workspace: ws, Exe: "server.py", Wait: true}).run(context.Background(), globals))

	specs := target.spawned()
	require.Len(t, specs, 1)
	assert.Zero(t, specs[0].Port)
	assert.Empty(t, specs[0].Env)

	infos := linesOfType(decodeLines(t, stdout), "info")
	require.Len(t, infos, 2)
	assert.Equal(t, "target started", infos[0]["message"])
	assert.EqualValues(t, 777, infos[0]["pid"])
	assert.Equal(t, "target exited", infos[1]["message"])
}

func TestRunCmd_StopsOnCancel(t *testing.T) {
	globals, _, _ := testGlobals(t, "ndjson")
	_, target := withStubs(globals, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(target.spawned()) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	require.NoError(t, (&RunCmd{Workspace: t.TempDir(), Exe: "server.py", Wait: true}).run(ctx, globals))

	target.mu.Lock()
	defer target.mu.Unlock()
	assert.True(t, target.handles[0].stopped)
}

// --- probe ---

func TestProbeCmd(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	dialer, _ := withStubs(globals, 0)
	dialer.Open(5678, -1)

	require.NoError(t, (&ProbeCmd{Host: "127.0.0.1", Port: 5678}).run(context.Background(), globals))
	require.Error(t, (&ProbeCmd{Host: "127.0.0.1", Port: 5679}).run(context.Background(), globals))

	probes := linesOfType(decodeLines(t, stdout), "probe")
	require.Len(t, probes, 2)
	assert.Equal(t, true, probes[0]["reachable"])
	assert.Equal(t, false, probes[1]["reachable"])
	assert.EqualValues(t, 5679, probes[1]["port"])
}

func TestProbeCmd_WaitTimesOut(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	withStubs(globals, 0)

	err := (&ProbeCmd{Port: 5678, Wait: true, Timeout: 30 * time.Millisecond, Interval: 5 * time.Millisecond}).run(context.Background(), globals)
	require.Error(t, err)

	probes := linesOfType(decodeLines(t, stdout), "probe")
	require.Len(t, probes, 1)
	assert.Equal(t, "localhost", probes[0]["host"], "host falls back to debug.ip")
	assert.GreaterOrEqual(t, probes[0]["waited_ms"].(float64), float64(30))
}

func TestProbeCmd_InvalidPort(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	require.Error(t, (&ProbeCmd{Port: 70000}).run(context.Background(), globals))
	assert.Contains(t, stdout.String(), "INVALID_FLAGS")
}

// --- sessions ---

func seedStore(t *testing.T, globals *Globals) {
	t.Helper()
	st, err := store.New(globals.Config.Store.Path, nil)
	require.NoError(t, err)
	require.NoError(t, st.Save(domain.PersistedRecord{Port: 5678, IP: "localhost", WorkspacePath: "/ws/api", SavedAt: 1000}))
	require.NoError(t, st.Save(domain.PersistedRecord{Port: 6001, IP: "localhost", WorkspacePath: "/ws/web", SavedAt: 2000}))
	require.NoError(t, st.Save(domain.PersistedRecord{Port: 51000, IP: "127.0.0.1", WorkspacePath: "/ws/api-v2", SavedAt: 3000}))
}

func TestSessionsListCmd(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	seedStore(t, globals)

	require.NoError(t, (&SessionsListCmd{}).Run(globals))
	lines := decodeLines(t, stdout)
	require.Len(t, lines, 3)
	assert.EqualValues(t, 51000, lines[0]["port"], "newest first")

	stdout.Reset()
	require.NoError(t, (&SessionsListCmd{Where: []string{"workspace~api", "port>=6000"}}).Run(globals))
	lines = decodeLines(t, stdout)
	require.Len(t, lines, 1)
	assert.Equal(t, "/ws/api-v2", lines[0]["workspace"])

	stdout.Reset()
	require.Error(t, (&SessionsListCmd{Where: []string{"nonsense"}}).Run(globals))
	assert.Contains(t, stdout.String(), "INVALID_WHERE")
}

func TestSessionsListCmd_ProbeReportsStatus(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	seedStore(t, globals)
	d, _ := withStubs(globals, 0)
	d.Open(6001, -1)

	require.NoError(t, (&SessionsListCmd{Probe: true}).Run(globals))
	lines := decodeLines(t, stdout)
	require.Len(t, lines, 3)
	status := map[float64]interface{}{}
	for _, l := range lines {
		status[l["port"].(float64)] = l["status"]
	}
	assert.Equal(t, "connected", status[6001])
	assert.Equal(t, "disconnected", status[5678])
	assert.Equal(t, "disconnected", status[51000])

	stdout.Reset()
	require.NoError(t, (&SessionsListCmd{Probe: true, Where: []string{"status=connected"}}).Run(globals))
	lines = decodeLines(t, stdout)
	require.Len(t, lines, 1)
	assert.Equal(t, "/ws/web", lines[0]["workspace"])

	stdout.Reset()
	require.Error(t, (&SessionsListCmd{Where: []string{"status=connected"}}).Run(globals))
	assert.Contains(t, stdout.String(), "add --probe")

	stdout.Reset()
	require.Error(t, (&SessionsListCmd{Probe: true, Where: []string{"status=alive"}}).Run(globals))
	assert.Contains(t, stdout.String(), "INVALID_WHERE")
}

func TestSessionsListCmd_ProbeText(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	seedStore(t, globals)
	d, _ := withStubs(globals, 0)
	d.Open(5678, -1)

	require.NoError(t, (&SessionsListCmd{Probe: true}).Run(globals))
	assert.Contains(t, strings.ToUpper(stdout.String()), "STATUS")
	assert.Contains(t, stdout.String(), "connected")
	assert.Contains(t, stdout.String(), "disconnected")
}

func TestSessionsListCmd_Text(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "text")
	require.NoError(t, (&SessionsListCmd{}).Run(globals))
	assert.Contains(t, stdout.String(), "No persisted debug sessions")

	seedStore(t, globals)
	stdout.Reset()
	require.NoError(t, (&SessionsListCmd{}).Run(globals))
	assert.Contains(t, stdout.String(), "/ws/web")
	assert.Contains(t, stdout.String(), "51000")
}

func TestSessionsRmAndClear(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "ndjson")
	seedStore(t, globals)

	require.NoError(t, (&SessionsRmCmd{Port: 6001}).Run(globals))
	ports := []int{}
	for _, r := range storedRecords(t, globals) {
		ports = append(ports, r.Port)
	}
	assert.ElementsMatch(t, []int{5678, 51000}, ports)

	require.NoError(t, (&SessionsClearCmd{}).Run(globals))
	assert.Empty(t, storedRecords(t, globals))

	infos := linesOfType(decodeLines(t, stdout), "info")
	require.Len(t, infos, 2)
	assert.True(t, strings.Contains(infos[0]["message"].(string), "6001"))
	assert.EqualValues(t, 6001, infos[0]["port"])
}

package launcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/reattach"
)

// Defaults used when a Request leaves a field empty
const (
	DefaultIP           = "localhost"
	DefaultPort         = 56788
	DefaultTimeout      = 60 * time.Second
	DefaultPollInterval = 500 * time.Millisecond

	// MaxAllocationAttempts bounds reallocation when a freshly claimed port
	// is taken by another process before the target is spawned.
	MaxAllocationAttempts = 3
)

// Environment handed to the spawned target
const (
	EnvDebugIP       = "MCDEV_PTVSD_IP"
	EnvDebugPort     = "MCDEV_PTVSD_PORT"
	EnvPluginMode    = "MCDEV_IS_PLUGIN_ENV"
	EnvOutputMode    = "MCDEV_OUTPUT_MODE"
	EnvSubprocessRun = "MCDEV_IS_SUBPROCESS_MODE"
)

// State is a launcher state
type State string

const (
	StateIdle          State = "idle"
	StateReattachCheck State = "reattach_check"
	StateAttached      State = "attached"
	StateAllocating    State = "allocating"
	StateSpawning      State = "spawning"
	StateProbing       State = "probing"
	StateReady         State = "ready"
	StateTimedOut      State = "timed_out"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transition can follow s
func (s State) Terminal() bool {
	switch s {
	case StateAttached, StateReady, StateTimedOut, StateCancelled, StateFailed:
		return true
	}
	return false
}

// Transition is delivered to the Observer on every state change
type Transition struct {
	From      State
	To        State
	Port      int
	SessionID domain.SessionID
	Reason    string
	At        time.Time
}

// Debug converts the transition into its verbose output event
func (t Transition) Debug() domain.SessionDebug {
	return domain.SessionDebug{
		Type:          "session_debug",
		SchemaVersion: 1,
		State:         string(t.To),
		PrevState:     string(t.From),
		Port:          t.Port,
		SessionID:     string(t.SessionID),
		Reason:        t.Reason,
	}
}

// Observer receives launcher transitions synchronously
type Observer func(Transition)

// Allocator hands out debug ports
type Allocator interface {
	Allocate(preferred int) (int, bool, error)
	StillFree(port int) bool
}

// Registry tracks live sessions
type Registry interface {
	Create(workspacePath string, port int, ip string, mappings []domain.PathMapping) (*domain.Session, error)
	Get(port int) (*domain.Session, bool)
	FindByExternalID(externalID string) (*domain.Session, bool)
	UpdateStatus(port int, status domain.Status, externalID string) bool
	Remove(port int) bool
	Clear()
}

// Store persists connected sessions
type Store interface {
	Save(r domain.PersistedRecord) error
	RemoveByPort(port int) error
}

// Prober waits for the debug port
type Prober interface {
	PollUntilReady(ctx context.Context, ip string, port int, totalTimeout, pollInterval time.Duration) bool
}

// Reattacher looks for a reusable session
type Reattacher interface {
	TryReattach(ctx context.Context, workspace string, alive reattach.Liveness) *domain.Session
}

// Deps are the collaborators a Launcher drives
type Deps struct {
	Ports    Allocator
	Registry Registry
	Store    Store
	Prober   Prober
	Reattach Reattacher
	Spawner  Spawner
}

// Option configures a Launcher
type Option func(*Launcher)

// WithLiveness sets the predicate telling whether the target already runs
func WithLiveness(l reattach.Liveness) Option {
	return func(ln *Launcher) { ln.liveness = l }
}

// WithObserver registers a transition observer
func WithObserver(o Observer) Option {
	return func(ln *Launcher) { ln.observer = o }
}

// WithClock overrides the clock used to timestamp transitions
func WithClock(c clock.Clock) Option {
	return func(ln *Launcher) { ln.clock = c }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(ln *Launcher) {
		if l != nil {
			ln.logger = l
		}
	}
}

// Launcher runs the reattach-or-launch state machine
type Launcher struct {
	deps     Deps
	liveness reattach.Liveness
	observer Observer
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates a launcher over deps
func New(deps Deps, opts ...Option) *Launcher {
	l := &Launcher{
		deps:   deps,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Request describes one debug launch
type Request struct {
	Workspace     string
	ForceNew      bool
	IP            string
	PreferredPort int
	JustMyCode    bool
	PathMappings  []domain.PathMapping
	DebugOptions  domain.DebugOptions
	Timeout       time.Duration
	PollInterval  time.Duration
	Executable    string
	Args          []string
}

func (r Request) withDefaults() Request {
	if r.IP == "" {
		r.IP = DefaultIP
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	return r
}

// Result is the outcome of a successful launch
type Result struct {
	Session    *domain.Session
	Attach     domain.AttachConfig
	Reattached bool
	State      State
	// Handle is nil when an existing session was reattached
	Handle Handle
}

// attempt tracks the state of a single Launch call
type attempt struct {
	l     *Launcher
	state State
	port  int
	id    domain.SessionID
	log   *zap.Logger
}

func (a *attempt) to(next State, reason string) {
	t := Transition{
		From:      a.state,
		To:        next,
		Port:      a.port,
		SessionID: a.id,
		Reason:    reason,
		At:        a.l.clock.Now(),
	}
	a.state = next
	a.log.Debug("launcher transition",
		zap.String("from", string(t.From)),
		zap.String("state", string(t.To)),
		zap.String("reason", reason))
	if a.l.observer != nil {
		a.l.observer(t)
	}
}

// Launch reattaches to a reachable debuggee or starts a new one and waits
// until its debug port accepts connections.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Result, error) {
	req = req.withDefaults()
	a := &attempt{l: l, state: StateIdle, log: l.logger.With(zap.String("workspace", req.Workspace))}

	running := false
	var alive reattach.Liveness
	if l.liveness != nil {
		running = l.liveness.IsRunning(ctx)
		alive = reattach.LivenessFunc(func(context.Context) bool { return running })
	}

	if !req.ForceNew {
		a.to(StateReattachCheck, "")
		if s := l.deps.Reattach.TryReattach(ctx, req.Workspace, alive); s != nil {
			a.port, a.id = s.DebugPort, s.ID
			a.to(StateAttached, "reattached")
			return &Result{
				Session:    s,
				Attach:     domain.NewAttachConfig(s, req.JustMyCode, req.DebugOptions),
				Reattached: true,
				State:      a.state,
			}, nil
		}
		if ctx.Err() != nil {
			a.to(StateCancelled, "cancelled")
			return nil, domain.ErrCancelled
		}
	}

	a.to(StateAllocating, "")
	sess, err := l.allocate(req, a.log)
	if err != nil {
		a.to(StateFailed, "allocation")
		return nil, err
	}
	a.port, a.id = sess.DebugPort, sess.ID
	a.log = a.log.With(zap.Int("port", sess.DebugPort))

	a.to(StateSpawning, "")
	handle, err := l.deps.Spawner.Spawn(ctx, SpawnSpec{
		Executable: req.Executable,
		Args:       req.Args,
		Dir:        req.Workspace,
		Port:       sess.DebugPort,
		Env:        debugEnv(sess, running),
	})
	if err != nil {
		l.deps.Registry.Remove(sess.DebugPort)
		if ctx.Err() != nil {
			a.to(StateCancelled, "cancelled")
			return nil, domain.ErrCancelled
		}
		a.to(StateFailed, "spawn")
		return nil, &domain.SpawnError{Executable: req.Executable, Cause: err}
	}

	a.to(StateProbing, "")
	if l.deps.Prober.PollUntilReady(ctx, sess.DebugIP, sess.DebugPort, req.Timeout, req.PollInterval) {
		return l.ready(a, sess, req, handle), nil
	}

	l.deps.Registry.Remove(sess.DebugPort)
	if ctx.Err() != nil {
		if err := handle.Stop(); err != nil {
			a.log.Warn("failed to stop target", zap.Error(err))
		}
		a.to(StateCancelled, "cancelled")
		return nil, domain.ErrCancelled
	}

	a.log.Warn("debug port never became ready, target left running", zap.Duration("timeout", req.Timeout))
	a.to(StateTimedOut, "timeout")
	return nil, fmt.Errorf("port %d after %s: %w", sess.DebugPort, req.Timeout, domain.ErrReadinessTimeout)
}

func (l *Launcher) ready(a *attempt, sess *domain.Session, req Request, handle Handle) *Result {
	l.deps.Registry.UpdateStatus(sess.DebugPort, domain.StatusConnected, "")
	if s, ok := l.deps.Registry.Get(sess.DebugPort); ok {
		sess = s
	} else {
		sess.Status = domain.StatusConnected
	}

	if err := l.deps.Store.Save(sess.Record(l.clock.Now())); err != nil {
		a.log.Warn("failed to persist session", zap.Error(err))
	}

	a.to(StateReady, "")
	a.log.Info("debug port ready")
	return &Result{
		Session: sess,
		Attach:  domain.NewAttachConfig(sess, req.JustMyCode, req.DebugOptions),
		State:   a.state,
		Handle:  handle,
	}
}

// allocate claims a port and registers a pending session on it. A port that
// is grabbed by another process before spawning is given back and replaced.
func (l *Launcher) allocate(req Request, log *zap.Logger) (*domain.Session, error) {
	preferred := req.PreferredPort
	for i := 0; i < MaxAllocationAttempts; i++ {
		port, usedPreferred, err := l.deps.Ports.Allocate(preferred)
		if err != nil {
			return nil, err
		}
		if preferred > 0 && !usedPreferred {
			log.Info("preferred debug port unavailable", zap.Int("preferred", preferred), zap.Int("port", port))
		}

		sess, err := l.deps.Registry.Create(req.Workspace, port, req.IP, req.PathMappings)
		if err != nil {
			return nil, err
		}
		if l.deps.Ports.StillFree(port) {
			return sess, nil
		}

		log.Warn("debug port taken before spawn, reallocating", zap.Int("port", port))
		l.deps.Registry.Remove(port)
		preferred = 0
	}
	return nil, &domain.PortAllocationError{
		Cause: fmt.Errorf("ports kept being taken by other processes after %d attempts", MaxAllocationAttempts),
	}
}

func debugEnv(s *domain.Session, subprocess bool) map[string]string {
	env := map[string]string{
		EnvDebugIP:    s.DebugIP,
		EnvDebugPort:  strconv.Itoa(s.DebugPort),
		EnvPluginMode: "1",
		EnvOutputMode: "1",
	}
	if subprocess {
		env[EnvSubprocessRun] = "1"
	}
	return env
}

// RunRequest describes a launch without debugging
type RunRequest struct {
	Workspace  string
	Executable string
	Args       []string
}

// Run starts the target without a debug port or session
func (l *Launcher) Run(ctx context.Context, req RunRequest) (Handle, error) {
	h, err := l.deps.Spawner.Spawn(ctx, SpawnSpec{
		Executable: req.Executable,
		Args:       req.Args,
		Dir:        req.Workspace,
	})
	if err != nil {
		return nil, &domain.SpawnError{Executable: req.Executable, Cause: err}
	}
	l.logger.Info("target started without debugging", zap.String("executable", req.Executable), zap.Int("pid", h.PID()))
	return h, nil
}

// MarkAttached records that a debug adapter session attached to port
func (l *Launcher) MarkAttached(port int, externalID string) bool {
	return l.deps.Registry.UpdateStatus(port, domain.StatusConnected, externalID)
}

// AdapterTerminated ends the session the adapter session externalID belonged to
func (l *Launcher) AdapterTerminated(externalID string) bool {
	s, ok := l.deps.Registry.FindByExternalID(externalID)
	if !ok {
		return false
	}
	return l.SessionEnded(s.DebugPort)
}

// SessionEnded drops the live session on port and its persisted record
func (l *Launcher) SessionEnded(port int) bool {
	removed := l.deps.Registry.Remove(port)
	if err := l.deps.Store.RemoveByPort(port); err != nil {
		l.logger.Warn("failed to remove persisted session", zap.Int("port", port), zap.Error(err))
	}
	if removed {
		l.logger.Info("debug session ended", zap.Int("port", port))
	}
	return removed
}

// Shutdown forgets every live session and releases their ports. Spawned
// targets keep running so a later launch can reattach.
func (l *Launcher) Shutdown() {
	l.deps.Registry.Clear()
}

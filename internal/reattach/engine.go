package reattach

import (
	"context"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/dbgl/internal/domain"
)

// Liveness reports whether any instance of the target program is running
type Liveness interface {
	IsRunning(ctx context.Context) bool
}

// LivenessFunc adapts a function to Liveness
type LivenessFunc func(ctx context.Context) bool

// IsRunning calls f
func (f LivenessFunc) IsRunning(ctx context.Context) bool { return f(ctx) }

// Registry is the subset of the session registry the engine needs
type Registry interface {
	List() []*domain.Session
	Remove(port int) bool
}

// Store is the subset of the session store the engine needs
type Store interface {
	LoadMostRecent(workspace string) (*domain.PersistedRecord, error)
	ClearAll() error
}

// Prober performs single connect probes
type Prober interface {
	ProbeOnce(ctx context.Context, ip string, port int, connectTimeout time.Duration) bool
}

// Engine decides whether an already running debuggee can be reused
type Engine struct {
	registry     Registry
	store        Store
	prober       Prober
	probeTimeout time.Duration
	logger       *zap.Logger
}

// NewEngine wires an engine over the live registry and the durable store
func NewEngine(registry Registry, store Store, prober Prober, probeTimeout time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if probeTimeout <= 0 {
		probeTimeout = time.Second
	}
	return &Engine{
		registry:     registry,
		store:        store,
		prober:       prober,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// TryReattach returns a session whose debug port is still reachable, or nil
// when a new one has to be launched. Live registry sessions are checked
// before the persisted record; anything unreachable is discarded.
func (e *Engine) TryReattach(ctx context.Context, workspace string, alive Liveness) *domain.Session {
	if alive != nil && !alive.IsRunning(ctx) {
		e.logger.Debug("target not running, clearing persisted sessions")
		e.clearStore()
		return nil
	}

	if s := e.reattachLive(ctx, workspace); s != nil {
		return s
	}
	if ctx.Err() != nil {
		return nil
	}

	record, err := e.store.LoadMostRecent(workspace)
	if err != nil {
		e.logger.Warn("failed to load persisted session", zap.Error(err))
		return nil
	}
	if record == nil {
		return nil
	}

	if e.prober.ProbeOnce(ctx, record.IP, record.Port, e.probeTimeout) {
		e.logger.Info("reattaching to persisted debug session",
			zap.Int("port", record.Port),
			zap.String("workspace", record.WorkspacePath))
		return domain.RestoredSession(*record)
	}

	e.logger.Debug("persisted debug session unreachable", zap.Int("port", record.Port))
	e.clearStore()
	return nil
}

// reattachLive probes the workspace's registry sessions concurrently, drops
// the dead ones and returns the oldest reachable one. An empty workspace
// matches every session.
func (e *Engine) reattachLive(ctx context.Context, workspace string) *domain.Session {
	sessions := lo.Filter(e.registry.List(), func(s *domain.Session, _ int) bool {
		return workspace == "" || s.WorkspacePath == workspace
	})
	if len(sessions) == 0 {
		return nil
	}

	reachable := make([]bool, len(sessions))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sessions {
		g.Go(func() error {
			reachable[i] = e.prober.ProbeOnce(gctx, s.DebugIP, s.DebugPort, e.probeTimeout)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil
	}

	var found *domain.Session
	for i, s := range sessions {
		if reachable[i] {
			if found == nil {
				found = s
			}
			continue
		}
		e.logger.Debug("removing stale session", zap.Int("port", s.DebugPort))
		e.registry.Remove(s.DebugPort)
	}

	if found != nil {
		e.logger.Info("reattaching to active debug session", zap.Int("port", found.DebugPort))
	}
	return found
}

func (e *Engine) clearStore() {
	if err := e.store.ClearAll(); err != nil {
		e.logger.Warn("failed to clear persisted sessions", zap.Error(err))
	}
}

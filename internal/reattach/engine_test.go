package reattach

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/ports"
	"github.com/vburojevic/dbgl/internal/session"
	"github.com/vburojevic/dbgl/internal/store"
)

// fakeProber reports ports in reachable as connectable
type fakeProber struct {
	mu        sync.Mutex
	reachable map[int]bool
	probed    []int
}

func (p *fakeProber) ProbeOnce(ctx context.Context, ip string, port int, _ time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, port)
	return p.reachable[port]
}

type fixture struct {
	alloc    *ports.Allocator
	registry *session.Registry
	store    *store.Store
	prober   *fakeProber
	engine   *Engine
}

func newFixture(t *testing.T, reachable ...int) *fixture {
	t.Helper()
	alloc := ports.NewAllocator()
	reg := session.NewRegistry(alloc, nil)
	st, err := store.New(filepath.Join(t.TempDir(), "sessions.json"), nil)
	require.NoError(t, err)

	prober := &fakeProber{reachable: make(map[int]bool)}
	for _, p := range reachable {
		prober.reachable[p] = true
	}
	return &fixture{
		alloc:    alloc,
		registry: reg,
		store:    st,
		prober:   prober,
		engine:   NewEngine(reg, st, prober, time.Second, nil),
	}
}

func alive(v bool) Liveness {
	return LivenessFunc(func(context.Context) bool { return v })
}

func (f *fixture) track(t *testing.T) *domain.Session {
	t.Helper()
	return f.trackIn(t, "/ws")
}

func (f *fixture) trackIn(t *testing.T, workspace string) *domain.Session {
	t.Helper()
	port, _, err := f.alloc.Allocate(0)
	require.NoError(t, err)
	s, err := f.registry.Create(workspace, port, "127.0.0.1", nil)
	require.NoError(t, err)
	return s
}

func TestTryReattach_ReachableRegistrySession(t *testing.T) {
	f := newFixture(t)
	s := f.track(t)
	f.prober.reachable[s.DebugPort] = true
	claimedBefore := f.alloc.Claimed()

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	require.NotNil(t, got)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, claimedBefore, f.alloc.Claimed(), "reattach must not allocate")
	assert.Equal(t, 1, f.registry.Len())
}

func TestTryReattach_UnreachableRegistrySessionIsRemoved(t *testing.T) {
	f := newFixture(t)
	s := f.track(t)

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	assert.Nil(t, got)
	assert.Zero(t, f.registry.Len())
	assert.False(t, f.alloc.IsClaimed(s.DebugPort), "stale session must release its port")
}

func TestTryReattach_RemovesAllDeadSessionsReturnsOldestLive(t *testing.T) {
	f := newFixture(t)
	dead := f.track(t)
	first := f.track(t)
	second := f.track(t)
	f.prober.reachable[first.DebugPort] = true
	f.prober.reachable[second.DebugPort] = true

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	_, ok := f.registry.Get(dead.DebugPort)
	assert.False(t, ok)
	assert.Equal(t, 2, f.registry.Len())
}

func TestTryReattach_RegistryScopedToWorkspace(t *testing.T) {
	f := newFixture(t)
	other := f.trackIn(t, "/other")
	deadOther := f.trackIn(t, "/other")
	mine := f.track(t)
	f.prober.reachable[other.DebugPort] = true
	f.prober.reachable[mine.DebugPort] = true

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	require.NotNil(t, got)
	assert.Equal(t, mine.ID, got.ID)
	_, ok := f.registry.Get(deadOther.DebugPort)
	assert.True(t, ok, "sessions of other workspaces are left alone")
	assert.NotContains(t, f.prober.probed, other.DebugPort)

	f.prober.reachable[mine.DebugPort] = false
	assert.Nil(t, f.engine.TryReattach(context.Background(), "/ws", alive(true)))
	assert.Equal(t, 2, f.registry.Len())
}

func TestTryReattach_RecoversFromStore(t *testing.T) {
	f := newFixture(t, 5678)
	saved := time.Date(2025, 12, 14, 22, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Save(domain.PersistedRecord{Port: 5678, IP: "127.0.0.1", WorkspacePath: "/ws", SavedAt: saved.UnixMilli()}))

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	require.NotNil(t, got)
	assert.Equal(t, domain.RestoredSessionID, got.ID)
	assert.Equal(t, domain.StatusConnected, got.Status)
	assert.Equal(t, 5678, got.DebugPort)
	assert.Equal(t, []domain.PathMapping{{LocalRoot: "/ws", RemoteRoot: "/ws"}}, got.PathMappings)
	assert.Zero(t, f.registry.Len(), "restored sessions are transient")
}

func TestTryReattach_UnreachableStoreRecordClearsStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(domain.PersistedRecord{Port: 5678, IP: "127.0.0.1", WorkspacePath: "/ws", SavedAt: 1}))
	require.NoError(t, f.store.Save(domain.PersistedRecord{Port: 5679, IP: "127.0.0.1", WorkspacePath: "/other", SavedAt: 2}))

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	assert.Nil(t, got)
	records, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTryReattach_StoreScopedToWorkspace(t *testing.T) {
	f := newFixture(t, 5679)
	require.NoError(t, f.store.Save(domain.PersistedRecord{Port: 5679, IP: "127.0.0.1", WorkspacePath: "/other", SavedAt: 2}))

	got := f.engine.TryReattach(context.Background(), "/ws", alive(true))

	assert.Nil(t, got)
	assert.NotContains(t, f.prober.probed, 5679)
}

func TestTryReattach_LivenessGate(t *testing.T) {
	f := newFixture(t)
	s := f.track(t)
	f.prober.reachable[s.DebugPort] = true
	f.prober.reachable[5678] = true
	require.NoError(t, f.store.Save(domain.PersistedRecord{Port: 5678, IP: "127.0.0.1", WorkspacePath: "/ws", SavedAt: 1}))

	got := f.engine.TryReattach(context.Background(), "/ws", alive(false))

	assert.Nil(t, got)
	assert.Empty(t, f.prober.probed, "nothing is probed once the target is gone")
	records, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTryReattach_NothingToReattach(t *testing.T) {
	f := newFixture(t)

	assert.Nil(t, f.engine.TryReattach(context.Background(), "/ws", nil))
	assert.Empty(t, f.prober.probed)
}

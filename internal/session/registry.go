package session

import (
	"sort"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
)

// PortReleaser gives ports back when their session goes away
type PortReleaser interface {
	Release(port int)
}

// Registry is the in-memory source of truth for live debug sessions. Sessions
// are keyed by debug port; the id index is secondary and is only ever changed
// together with the primary map.
type Registry struct {
	mu       sync.RWMutex
	byPort   map[int]*domain.Session
	idToPort map[domain.SessionID]int
	ports    PortReleaser
	logger   *zap.Logger
}

// NewRegistry creates an empty registry that releases ports through ports
func NewRegistry(ports PortReleaser, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byPort:   make(map[int]*domain.Session),
		idToPort: make(map[domain.SessionID]int),
		ports:    ports,
		logger:   logger,
	}
}

// Create registers a pending session on port
func (r *Registry) Create(workspacePath string, port int, ip string, mappings []domain.PathMapping) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPort[port]; exists {
		return nil, &domain.DuplicateSessionError{Port: port}
	}

	s := domain.NewSession(workspacePath, ip, port, mappings)
	r.byPort[port] = s
	r.idToPort[s.ID] = port

	r.logger.Debug("session created",
		zap.Int("port", port),
		zap.String("session_id", string(s.ID)),
		zap.String("workspace", workspacePath))
	return s.Clone(), nil
}

// Get returns a copy of the session on port
func (r *Registry) Get(port int) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byPort[port]
	return s.Clone(), ok
}

// GetByID returns a copy of the session with the given id
func (r *Registry) GetByID(id domain.SessionID) (*domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	port, ok := r.idToPort[id]
	if !ok {
		return nil, false
	}
	s, ok := r.byPort[port]
	return s.Clone(), ok
}

// FindByExternalID returns the session bound to a debug adapter session id
func (r *Registry) FindByExternalID(externalID string) (*domain.Session, bool) {
	if externalID == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := lo.Find(lo.Values(r.byPort), func(s *domain.Session) bool {
		return s.ExternalSessionID == externalID
	})
	return s.Clone(), ok
}

// UpdateStatus sets the status of the session on port. A non-empty externalID
// is recorded as the adapter's session id.
func (r *Registry) UpdateStatus(port int, status domain.Status, externalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byPort[port]
	if !ok {
		return false
	}
	s.Status = status
	if externalID != "" {
		s.ExternalSessionID = externalID
	}
	r.logger.Debug("session status updated",
		zap.Int("port", port),
		zap.String("status", string(status)))
	return true
}

// Remove deletes the session on port and releases the port
func (r *Registry) Remove(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byPort[port]
	if !ok {
		return false
	}

	if r.ports != nil {
		r.ports.Release(s.DebugPort)
	}
	delete(r.idToPort, s.ID)
	delete(r.byPort, port)

	r.logger.Debug("session removed", zap.Int("port", port), zap.String("session_id", string(s.ID)))
	return true
}

// List returns copies of all sessions, oldest first
func (r *Registry) List() []*domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := lo.Map(lo.Values(r.byPort), func(s *domain.Session, _ int) *domain.Session {
		return s.Clone()
	})
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].DebugPort < sessions[j].DebugPort
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPort)
}

// Clear removes every session and releases its port
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ports != nil {
		for port := range r.byPort {
			r.ports.Release(port)
		}
	}
	r.byPort = make(map[int]*domain.Session)
	r.idToPort = make(map[domain.SessionID]int)
}

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
)

// Store is the durable shadow of the session registry. It keeps at most one
// record per port and is only consulted for recovery after a restart.
type Store struct {
	path   string // full path to sessions.json
	mu     sync.Mutex
	logger *zap.Logger
}

// DefaultPath returns ~/.dbgl/sessions.json
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".dbgl", "sessions.json"), nil
}

// New returns a Store backed by the file at path, using DefaultPath when empty
func New(path string, logger *zap.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the backing file
func (s *Store) Path() string { return s.path }

// Save replaces any record on the same port with r
func (s *Store) Save(r domain.PersistedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records = lo.Filter(records, func(existing domain.PersistedRecord, _ int) bool {
		return existing.Port != r.Port
	})
	records = append(records, r)

	s.logger.Debug("persisting session record",
		zap.Int("port", r.Port),
		zap.String("workspace", r.WorkspacePath))
	return s.write(records)
}

// LoadMostRecent returns the newest record, or nil when there is none. A
// non-empty workspace restricts the search to records of that workspace.
func (s *Store) LoadMostRecent(workspace string) (*domain.PersistedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		records = lo.Filter(records, func(r domain.PersistedRecord, _ int) bool {
			return sameWorkspace(r.WorkspacePath, workspace)
		})
	}
	if len(records) == 0 {
		return nil, nil
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SavedAt > records[j].SavedAt
	})
	latest := records[0]
	return &latest, nil
}

// List returns all records, newest first
func (s *Store) List() ([]domain.PersistedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SavedAt > records[j].SavedAt
	})
	return records, nil
}

// RemoveByPort drops the record for port, if any
func (s *Store) RemoveByPort(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	kept := lo.Reject(records, func(r domain.PersistedRecord, _ int) bool {
		return r.Port == port
	})
	if len(kept) == len(records) {
		return nil
	}
	return s.write(kept)
}

// ClearAll removes every record
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("clearing session store", zap.String("path", s.path))
	return s.write([]domain.PersistedRecord{})
}

// read loads the record list. A missing file is an empty list, unknown fields
// are ignored and records that cannot be probed are dropped.
func (s *Store) read() ([]domain.PersistedRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse session store: %w", err)
	}

	records := make([]domain.PersistedRecord, 0, len(raw))
	for _, item := range raw {
		var r domain.PersistedRecord
		if err := json.Unmarshal(item, &r); err != nil || !r.Valid() {
			s.logger.Debug("skipping unusable session record", zap.ByteString("record", item))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// write stores records atomically via a temp file + os.Rename.
func (s *Store) write(records []domain.PersistedRecord) (err error) {
	if records == nil {
		records = []domain.PersistedRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist session store: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "sessions-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session store: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session store: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session store: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to persist session store: %w", err)
	}
	return nil
}

func sameWorkspace(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

package store

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Changes reports writes to the store file made by any process, including
// this one. The directory is watched because writes replace the file by
// rename. The channel coalesces bursts and is closed when ctx ends.
func (s *Store) Changes(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	name := filepath.Base(s.path)
	go func() {
		defer close(out)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Debug("store watch error", zap.Error(err))
			}
		}
	}()
	return out, nil
}

// Has reports whether a record for port is persisted
func (s *Store) Has(port int) (bool, error) {
	records, err := s.List()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.Port == port {
			return true, nil
		}
	}
	return false, nil
}

package launcher

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// rotation hands out one output file per spawned target and closes the
// files as their processes exit.
type rotation struct {
	pathBuilder func(SpawnSpec) (string, error)

	mu   sync.Mutex
	open map[*os.File]string
}

func newRotation(pb func(SpawnSpec) (string, error)) *rotation {
	return &rotation{pathBuilder: pb, open: make(map[*os.File]string)}
}

// Open truncates and opens the log file for spec
func (r *rotation) Open(spec SpawnSpec) (file *os.File, path string, err error) {
	path, err = r.pathBuilder(spec)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build log path: %w", err)
	}

	file, err = os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create log file: %w", err)
	}

	r.mu.Lock()
	r.open[file] = path
	r.mu.Unlock()
	return file, path, nil
}

// Release closes a file returned by Open
func (r *rotation) Release(w io.Writer) {
	f, ok := w.(*os.File)
	if !ok {
		return
	}
	r.mu.Lock()
	_, tracked := r.open[f]
	delete(r.open, f)
	r.mu.Unlock()
	if tracked {
		f.Close()
	}
}

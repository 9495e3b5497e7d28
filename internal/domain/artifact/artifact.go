// Package artifact manages merged output files: creation under a
// single output directory, safe name resolution for downloads, and
// deferred deletion once a response has been served.
package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voiceweave-server-go/internal/platform/errors"
	"voiceweave-server-go/internal/platform/logging"
)

// Handle names one stored artifact. Callers pass handles around
// instead of raw paths.
type Handle struct {
	Name string
	path string
}

// Path returns the absolute location of the artifact on disk.
func (h Handle) Path() string {
	return h.path
}

// Store owns the output directory.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates the output directory if needed.
func NewStore(dir string, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "artifact.new", "failed to create output directory", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Create writes data under a fresh random name with the given
// extension, e.g. "wav".
func (s *Store) Create(data []byte, ext string) (Handle, error) {
	name := uuid.NewString() + "." + strings.TrimPrefix(ext, ".")
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Handle{}, errors.Wrap(errors.KindStorage, "artifact.create", "failed to write artifact", err)
	}
	return Handle{Name: name, path: path}, nil
}

// Resolve maps a client-supplied file name back to a handle. Path
// separators are stripped so names cannot escape the output directory.
func (s *Store) Resolve(name string) (Handle, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return Handle{}, errors.New(errors.KindStorage, "artifact.resolve", "invalid artifact name")
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return Handle{}, errors.Wrap(errors.KindStorage, "artifact.resolve", "artifact not found", err)
	}
	return Handle{Name: name, path: path}, nil
}

// ScheduleDelete removes the artifact after delay. Deletion is best
// effort: a client that downloads slowly loses the file once the
// timer fires, matching the transient nature of merged output.
func (s *Store) ScheduleDelete(h Handle, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := os.Remove(h.path); err != nil {
			if !os.IsNotExist(err) {
				s.logger.WarnTag("CLEANUP", "failed to remove artifact %s: %v", h.Name, err)
			}
			return
		}
		s.logger.DebugTag("CLEANUP", "removed artifact %s", h.Name)
	})
}

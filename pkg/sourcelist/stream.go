package sourcelist

import (
	"os"

	"github.com/gofrs/flock"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
)

// Stream is a persisted document with optimistic concurrency. Read returns
// the content and an opaque version; Write succeeds only if the stored
// version still equals the one passed in, and returns the new version.
// An absent document reads as empty with version "".
type Stream interface {
	Name() string
	Read() (data []byte, version string, err error)
	Write(data []byte, version string) (string, error)
	Remove() error
}

// FileStream stores a document in a file. Versions are content hashes and
// the check-and-write runs under an advisory file lock, so writers in other
// processes are detected.
type FileStream struct {
	path string
	lock *flock.Flock
}

var _ Stream = (*FileStream)(nil)

// NewFileStream returns a stream backed by path.
func NewFileStream(path string) *FileStream {
	return &FileStream{path: path, lock: flock.New(path + ".lock")}
}

// Name returns the file path.
func (s *FileStream) Name() string {
	return s.path
}

// Read implements Stream.
func (s *FileStream) Read() ([]byte, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", errors.Wrapf(err, "failed to read %s", s.path)
	}
	return data, fsutil.HashBytes(data), nil
}

// Write implements Stream.
func (s *FileStream) Write(data []byte, version string) (string, error) {
	if err := fsutil.EnsureFileDir(s.path); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for %s", s.path)
	}
	if err := s.lock.Lock(); err != nil {
		return "", errors.Wrapf(err, "failed to lock %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	_, current, err := s.Read()
	if err != nil {
		return "", err
	}
	if current != version {
		return "", errors.Wrapf(errors.ErrConcurrentModification, "%s", s.path)
	}

	if err := fsutil.WriteFileAtomic(s.path, data, fsutil.FileModeSecure); err != nil {
		return "", err
	}
	return fsutil.HashBytes(data), nil
}

// Remove deletes the document. Removing an absent document is not an error.
func (s *FileStream) Remove() error {
	if err := fsutil.EnsureFileDir(s.path); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return errors.Wrapf(err, "failed to lock %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", s.path)
	}
	return nil
}

package source

import (
	"sync"

	"github.com/glorpus-work/repokit/pkg/errors"
)

// Ref is a non-owning handle from versions back to the source that produced
// them. Sources invalidate it on Close.
type Ref struct {
	mu  sync.RWMutex
	src Source
}

// NewRef returns a handle to s.
func NewRef(s Source) *Ref {
	return &Ref{src: s}
}

// Get returns the source or ErrNotValidState once it has been invalidated.
func (r *Ref) Get() (Source, error) {
	if r == nil {
		return nil, errors.ErrNotValidState
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.src == nil {
		return nil, errors.ErrNotValidState
	}
	return r.src, nil
}

// Invalidate detaches the handle from its source.
func (r *Ref) Invalidate() {
	r.mu.Lock()
	r.src = nil
	r.mu.Unlock()
}

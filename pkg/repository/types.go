package repository

import (
	"time"

	"github.com/glorpus-work/repokit/pkg/source"
	"github.com/glorpus-work/repokit/pkg/source/composite"
)

// DefaultRetryBackOff is the pause before the single retry of a failed add or update.
const DefaultRetryBackOff = 2 * time.Second

// Event phases.
const (
	PhaseAdding   = "adding"
	PhaseUpdating = "updating"
	PhaseOpening  = "opening"
	PhaseRemoving = "removing"
	PhaseRetrying = "retrying"
	PhaseFailed   = "failed"
	PhaseDone     = "done"
)

// Event represents a simple progress notification.
type Event struct {
	Phase  string
	Source string
	Msg    string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// Options control the manager.
type Options struct {
	// AutoUpdateInterval is how old a source may get before it is updated
	// ahead of being opened. Zero disables automatic updates.
	AutoUpdateInterval time.Duration
	// RetryBackOff is the pause before retrying a failed add or update.
	// Negative means retry immediately; zero means DefaultRetryBackOff.
	RetryBackOff time.Duration
	// Composite configures composites built by OpenSource and CreateCompositeSource.
	Composite composite.Options
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// OpenResult is the outcome of OpenSource. Source is nil when there was
// nothing to open.
type OpenResult struct {
	Source                   source.Source
	SourcesWithUpdateFailure []source.Details
}

// PredefinedSource names a source that exists without configuration.
type PredefinedSource int

const (
	PredefinedInstalled PredefinedSource = iota
)

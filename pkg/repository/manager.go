// Package repository is the entry point for working with sources. It opens
// configured sources, composing them when more than one is configured, keeps
// them up to date and adds, updates and removes them subject to policy.
package repository

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/policy"
	"github.com/glorpus-work/repokit/pkg/source"
	"github.com/glorpus-work/repokit/pkg/source/composite"
	"github.com/glorpus-work/repokit/pkg/source/installed"
	"github.com/glorpus-work/repokit/pkg/sourcelist"
)

// Manager ties the source list, the factories and the policy together.
type Manager struct {
	list      *sourcelist.SourceList
	factories *source.FactoryRegistry
	policy    policy.Provider
	opts      Options
	Hooks     Hooks // Hooks for progress and event notifications
}

// NewManager returns a manager. A nil provider means no policy is configured.
func NewManager(list *sourcelist.SourceList, factories *source.FactoryRegistry, provider policy.Provider, opts Options) *Manager {
	if provider == nil {
		provider = policy.NotConfiguredProvider()
	}
	if opts.RetryBackOff == 0 {
		opts.RetryBackOff = DefaultRetryBackOff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{list: list, factories: factories, policy: provider, opts: opts}
}

func emit(h Hooks, e Event) {
	if h.OnEvent != nil {
		h.OnEvent(e)
	}
}

// GetCurrentSources returns the details of every visible source.
func (m *Manager) GetCurrentSources() []source.Details {
	refs := m.list.GetCurrentSourceRefs()
	out := make([]source.Details, 0, len(refs))
	for _, d := range refs {
		out = append(out, d.Details)
	}
	return out
}

// GetSource returns the details of the visible source called name.
func (m *Manager) GetSource(name string) (source.Details, bool) {
	d, ok := m.list.GetCurrentSource(name)
	if !ok {
		return source.Details{}, false
	}
	return d.Details, true
}

// ShouldUpdateBeforeOpen reports whether details is older than the
// auto-update interval.
func (m *Manager) ShouldUpdateBeforeOpen(details source.Details) bool {
	if m.opts.AutoUpdateInterval <= 0 || strings.EqualFold(details.Type, source.TypeInstalled) {
		return false
	}
	return m.opts.Now().Sub(details.LastUpdateTime) > m.opts.AutoUpdateInterval
}

// OpenSource opens the source called name, or every visible source when name
// is empty. Several sources are wrapped in a composite. Sources due for an
// update are updated first; update failures do not fail the open but are
// listed in the result, as are members of a composite that fail to open.
// Nothing to open is not an error: the result's Source is nil.
func (m *Manager) OpenSource(ctx context.Context, name string) (OpenResult, error) {
	var targets []source.Details
	if name == "" {
		targets = m.GetCurrentSources()
	} else if d, ok := m.GetSource(name); ok {
		targets = []source.Details{d}
	}
	if len(targets) == 0 {
		logger.Debug("No source to open", logger.Fields{"source": name})
		return OpenResult{}, nil
	}

	result := OpenResult{SourcesWithUpdateFailure: m.updateDue(ctx, targets)}
	if err := ctx.Err(); err != nil {
		return OpenResult{}, err
	}

	if len(targets) == 1 {
		src, err := m.create(ctx, m.refresh(targets[0]))
		if err != nil {
			return OpenResult{}, err
		}
		result.Source = src
		return result, nil
	}

	var (
		members  []source.Source
		firstErr error
	)
	for _, d := range targets {
		d = m.refresh(d)
		src, err := m.create(ctx, d)
		if err != nil {
			logger.Warn("Skipping source that failed to open", logger.Fields{"source": d.Name, "error": err})
			if firstErr == nil {
				firstErr = err
			}
			result.SourcesWithUpdateFailure = appendDetails(result.SourcesWithUpdateFailure, d)
			continue
		}
		members = append(members, src)
	}
	if len(members) == 0 {
		return OpenResult{}, firstErr
	}

	opts := m.opts.Composite
	opts.Behavior = composite.SearchAvailablePackages
	result.Source = composite.New(nil, members, opts)
	emit(m.Hooks, Event{Phase: PhaseDone, Msg: "opened composite source"})
	return result, nil
}

// updateDue updates every target that is due, concurrently, and returns the
// ones that failed in target order.
func (m *Manager) updateDue(ctx context.Context, targets []source.Details) []source.Details {
	failed := make([]bool, len(targets))
	var g errgroup.Group
	for i, d := range targets {
		if !m.ShouldUpdateBeforeOpen(d) {
			continue
		}
		g.Go(func() error {
			if err := m.update(ctx, d, false); err != nil {
				logger.Warn("Background update failed", logger.Fields{"source": d.Name, "error": err})
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []source.Details
	for i, d := range targets {
		if failed[i] {
			out = append(out, d)
		}
	}
	return out
}

// refresh returns the latest recorded details of d.
func (m *Manager) refresh(d source.Details) source.Details {
	if current, ok := m.GetSource(d.Name); ok {
		return current
	}
	return d
}

func appendDetails(list []source.Details, d source.Details) []source.Details {
	for _, existing := range list {
		if strings.EqualFold(existing.Name, d.Name) {
			return list
		}
	}
	return append(list, d)
}

func (m *Manager) create(ctx context.Context, details source.Details) (source.Source, error) {
	f, err := m.factories.Get(details.Type)
	if err != nil {
		return nil, err
	}
	emit(m.Hooks, Event{Phase: PhaseOpening, Source: details.Name})
	src, err := f.Create(ctx, details)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open source %s", details.Name)
	}
	return src, nil
}

// AddSource validates details, checks policy, runs the type's add step
// (retried once) and persists the new source. The stored details are returned.
func (m *Manager) AddSource(ctx context.Context, details source.Details) (source.Details, error) {
	details.Name = strings.TrimSpace(details.Name)
	if details.Name == "" {
		return source.Details{}, errors.Wrap(errors.ErrInvalidArgument, "source name is required")
	}
	if strings.TrimSpace(details.Arg) == "" {
		return source.Details{}, errors.Wrap(errors.ErrInvalidArgument, "source argument is required")
	}
	if _, ok := m.list.GetCurrentSource(details.Name); ok {
		return source.Details{}, errors.ErrSourceNameAlreadyExistsWithName(details.Name)
	}

	probe := details
	if probe.Type == "" {
		probe.Type = source.DefaultType
	}
	for _, existing := range m.list.GetCurrentSourceRefs() {
		if existing.SameTypeAndArg(probe) {
			return source.Details{}, errors.Wrapf(errors.ErrSourceArgAlreadyExists, "source %s", existing.Name)
		}
	}

	if p := policy.GetPolicyBlockingUserSource(m.policy, details.Name, details.Type, details.Arg, false); p != policy.None {
		logger.Warn("Source blocked by policy", logger.Fields{"source": details.Name, "policy": string(p)})
		return source.Details{}, errors.NewPolicyError(string(p))
	}

	f, err := m.factories.Get(details.Type)
	if err != nil {
		return source.Details{}, err
	}

	emit(m.Hooks, Event{Phase: PhaseAdding, Source: details.Name, Msg: details.Arg})
	details.Origin = source.OriginUser
	if _, err := m.retry(ctx, details.Name, func() (bool, error) { return f.Add(ctx, &details) }); err != nil {
		emit(m.Hooks, Event{Phase: PhaseFailed, Source: details.Name, Msg: err.Error()})
		return source.Details{}, err
	}

	details.LastUpdateTime = m.opts.Now()
	if err := m.list.AddSource(ctx, details); err != nil {
		if _, rerr := f.Remove(ctx, &details); rerr != nil {
			logger.Warn("Cleanup after failed add failed", logger.Fields{"source": details.Name, "error": rerr})
		}
		return source.Details{}, err
	}

	emit(m.Hooks, Event{Phase: PhaseDone, Source: details.Name, Msg: "added"})
	return details, nil
}

// UpdateSource runs the type's update step for the named source, retried
// once, and records the update time.
func (m *Manager) UpdateSource(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "source name is required")
	}
	d, ok := m.GetSource(name)
	if !ok {
		return errors.ErrSourceNotFoundWithName(name)
	}
	return m.update(ctx, d, true)
}

func (m *Manager) update(ctx context.Context, details source.Details, retry bool) error {
	f, err := m.factories.Get(details.Type)
	if err != nil {
		return err
	}

	emit(m.Hooks, Event{Phase: PhaseUpdating, Source: details.Name})
	op := func() (bool, error) { return f.Update(ctx, &details) }
	if retry {
		_, err = m.retry(ctx, details.Name, op)
	} else {
		_, err = op()
	}
	if err != nil {
		emit(m.Hooks, Event{Phase: PhaseFailed, Source: details.Name, Msg: err.Error()})
		return err
	}

	meta := sourcelist.DetailsInternal{Details: details}
	if current, ok := m.list.GetSource(details.Name, true); ok {
		meta.AcceptedAgreementsIdentifier = current.AcceptedAgreementsIdentifier
		meta.AcceptedAgreementFields = current.AcceptedAgreementFields
	}
	meta.LastUpdateTime = m.opts.Now()
	if err := m.list.SaveMetadata(ctx, meta); err != nil {
		return err
	}
	emit(m.Hooks, Event{Phase: PhaseDone, Source: details.Name, Msg: "updated"})
	return nil
}

// retry runs op and, if it fails with an error that may be transient, runs it
// once more after the configured back-off.
func (m *Manager) retry(ctx context.Context, name string, op func() (bool, error)) (bool, error) {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if m.opts.RetryBackOff > 0 {
		b = backoff.NewConstantBackOff(m.opts.RetryBackOff)
	}
	return backoff.Retry(ctx, func() (bool, error) {
		changed, err := op()
		if err != nil && !isTransient(err) {
			return false, backoff.Permanent(err)
		}
		return changed, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(2),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Source operation failed, retrying", logger.Fields{"source": name, "error": err, "delay": next.String()})
			emit(m.Hooks, Event{Phase: PhaseRetrying, Source: name, Msg: err.Error()})
		}),
	)
}

// isTransient is false for errors a second attempt cannot fix.
func isTransient(err error) bool {
	for _, permanent := range []error{
		context.Canceled,
		context.DeadlineExceeded,
		errors.ErrInvalidArgument,
		errors.ErrInvalidOperation,
		errors.ErrInvalidSourceType,
		errors.ErrSourceNotRemote,
		errors.ErrSourceNotSecure,
		errors.ErrBlockedByPolicy,
	} {
		if stderrors.Is(err, permanent) {
			return false
		}
	}
	return true
}

// RemoveSource runs the type's cleanup for the named source and removes it
// from the list. Built-in sources are tombstoned.
func (m *Manager) RemoveSource(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.Wrap(errors.ErrInvalidArgument, "source name is required")
	}
	d, ok := m.GetSource(name)
	if !ok {
		return errors.ErrSourceNotFoundWithName(name)
	}
	if err := m.EnsureSourceIsRemovable(d); err != nil {
		return err
	}

	f, err := m.factories.Get(d.Type)
	if err != nil {
		return err
	}
	emit(m.Hooks, Event{Phase: PhaseRemoving, Source: d.Name})
	cleanup := d
	if _, err := f.Remove(ctx, &cleanup); err != nil {
		logger.Warn("Source cleanup failed", logger.Fields{"source": d.Name, "error": err})
	}
	if err := m.list.RemoveSource(ctx, d); err != nil {
		return err
	}
	emit(m.Hooks, Event{Phase: PhaseDone, Source: d.Name, Msg: "removed"})
	return nil
}

// DropSource removes the named source from the list without touching its
// backend data. An empty name drops all persisted source settings.
func (m *Manager) DropSource(ctx context.Context, name string) error {
	if name == "" {
		return m.list.RemoveSettingsStreams()
	}
	d, ok := m.GetSource(name)
	if !ok {
		return errors.ErrSourceNotFoundWithName(name)
	}
	if err := m.EnsureSourceIsRemovable(d); err != nil {
		return err
	}
	return m.list.RemoveSource(ctx, d)
}

// EnsureSourceIsRemovable rejects removing policy sources and built-in
// sources that policy makes mandatory.
func (m *Manager) EnsureSourceIsRemovable(details source.Details) error {
	switch details.Origin {
	case source.OriginGroupPolicy:
		return errors.NewPolicyError(string(policy.AdditionalSources))
	case source.OriginDefault:
		if p := policy.GetPolicyBlockingUserSource(m.policy, details.Name, details.Type, details.Arg, true); p != policy.None {
			return errors.NewPolicyError(string(p))
		}
	case source.OriginPredefined:
		return errors.Wrapf(errors.ErrInvalidOperation, "source %s is predefined", details.Name)
	}
	return nil
}

// EnsureSourceAgreements checks the agreements of src, or of every member
// when src is a composite, against the ones recorded as accepted. With
// accept, agreements not yet accepted are recorded instead. Otherwise the
// error wraps ErrSourceAgreementsNotAccepted and names the sources. A source
// whose agreements cannot be read is skipped; its searches fail on their own.
func (m *Manager) EnsureSourceAgreements(ctx context.Context, src source.Source, accept bool) error {
	members := []source.Source{src}
	if c, ok := src.(*composite.Source); ok {
		members = c.AvailableSources()
	}

	var pending []string
	for _, member := range members {
		as, ok := member.(source.AgreementSource)
		if !ok {
			continue
		}
		name := member.Details().Name
		agreements, err := as.SourceAgreements(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Could not read source agreements", logger.Fields{"source": name, "error": err})
			continue
		}
		if agreements.IsEmpty() || m.list.CheckSourceAgreements(name, agreements.Identifier, agreements.Fields) {
			continue
		}
		if !accept {
			pending = append(pending, name)
			continue
		}
		if err := m.list.SaveAcceptedSourceAgreements(ctx, name, agreements.Identifier, agreements.Fields); err != nil {
			return errors.Wrapf(err, "failed to record agreements of %s", name)
		}
		logger.Info("Accepted source agreements", logger.Fields{"source": name, "agreements": agreements.Identifier})
	}
	if len(pending) > 0 {
		return errors.Wrapf(errors.ErrSourceAgreementsNotAccepted, "%s", strings.Join(pending, ", "))
	}
	return nil
}

// OpenPredefinedSource opens a source that needs no configuration.
func (m *Manager) OpenPredefinedSource(ctx context.Context, kind PredefinedSource) (source.Source, error) {
	switch kind {
	case PredefinedInstalled:
		return m.create(ctx, installed.Details())
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "unknown predefined source %d", kind)
	}
}

// CreateCompositeSource combines installed with available. When available is
// itself a composite its members are taken over, so only the returned source
// should be closed.
func (m *Manager) CreateCompositeSource(installedSource, available source.Source, behavior composite.SearchBehavior) *composite.Source {
	var members []source.Source
	switch a := available.(type) {
	case nil:
	case *composite.Source:
		members = a.AvailableSources()
	default:
		members = []source.Source{a}
	}
	opts := m.opts.Composite
	opts.Behavior = behavior
	return composite.New(installedSource, members, opts)
}

// Package sourcelist maintains the merged list of configured sources. It
// layers policy-mandated, user-added and built-in sources by name, keeps
// tombstones for removed built-in sources and persists user sources and
// per-source metadata in two independent streams.
package sourcelist

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v5"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/policy"
	"github.com/glorpus-work/repokit/pkg/source"
)

// DefaultMaxWriteAttempts bounds the persistence retry loop.
const DefaultMaxWriteAttempts = 10

// DetailsInternal is a source record with bookkeeping that is never shown
// to callers of the source API.
type DetailsInternal struct {
	source.Details

	IsTombstone                  bool
	AcceptedAgreementsIdentifier string
	AcceptedAgreementFields      int
	IsVisible                    bool
}

// Options configures a SourceList.
type Options struct {
	UserSources Stream
	Metadata    Stream
	Policy      policy.Provider

	// MaxWriteAttempts bounds write attempts per mutation. Zero means DefaultMaxWriteAttempts.
	MaxWriteAttempts int
	// RetryBackOff paces attempts after a conflict. Nil means retry immediately.
	RetryBackOff backoff.BackOff
}

// SourceList is the merged, persisted list of sources.
type SourceList struct {
	opts Options

	mu              sync.Mutex
	sources         []*DetailsInternal
	userVersion     string
	metadataVersion string
}

// New loads both streams and merges them with the built-in and policy sources.
func New(opts Options) (*SourceList, error) {
	if opts.UserSources == nil || opts.Metadata == nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument, "source list streams are required")
	}
	if opts.Policy == nil {
		opts.Policy = policy.NotConfiguredProvider()
	}
	if opts.MaxWriteAttempts <= 0 {
		opts.MaxWriteAttempts = DefaultMaxWriteAttempts
	}

	l := &SourceList{opts: opts}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// GetCurrentSourceRefs returns every visible, non-tombstoned source after the
// merge. Changes made through the returned records are persisted only by
// SaveMetadata.
func (l *SourceList) GetCurrentSourceRefs() []*DetailsInternal {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*DetailsInternal
	for _, d := range l.sources {
		if isCurrent(d) {
			out = append(out, d)
		}
	}
	return out
}

// GetCurrentSource returns the visible, non-tombstoned source called name.
func (l *SourceList) GetCurrentSource(name string) (*DetailsInternal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d := l.find(name)
	if d == nil || !isCurrent(d) {
		return nil, false
	}
	return d, true
}

// GetSource looks a source up by name. With includeHidden, tombstones and
// invisible sources are returned as well.
func (l *SourceList) GetSource(name string, includeHidden bool) (*DetailsInternal, bool) {
	if !includeHidden {
		return l.GetCurrentSource(name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	d := l.find(name)
	return d, d != nil
}

// AddSource appends a user source, replacing any tombstone or metadata-only
// record of the same name, and persists it. Once the source itself is
// written, a failure to write its metadata is logged and not returned.
func (l *SourceList) AddSource(ctx context.Context, details source.Details) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	details.Origin = source.OriginUser
	added := &DetailsInternal{Details: details, IsVisible: true}

	err := l.persistUserSources(ctx, func() (bool, error) {
		stale := l.findAll(details.Name)
		for _, existing := range stale {
			if !existing.IsTombstone && existing.Origin != source.OriginMetadata {
				return false, errors.ErrSourceNameAlreadyExistsWithName(details.Name)
			}
		}
		for _, existing := range stale {
			l.erase(existing)
		}
		l.sources = append(l.sources, added)
		return true, nil
	})
	if err != nil {
		l.erase(added)
		return err
	}

	logger.Info("Source added to list", logger.Fields{"source": details.Name, "type": details.Type})
	err = l.persistMetadata(ctx, details.Name, func(d *DetailsInternal) {
		d.LastUpdateTime = details.LastUpdateTime
	})
	if err != nil {
		logger.Warn("Failed to save metadata of added source", logger.Fields{"source": details.Name, "error": err})
	}
	return nil
}

// RemoveSource removes a source. Built-in sources are replaced by a user
// tombstone, user sources are erased and policy sources cannot be removed.
func (l *SourceList) RemoveSource(ctx context.Context, details source.Details) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch details.Origin {
	case source.OriginDefault, source.OriginUser:
	case source.OriginGroupPolicy:
		return errors.Wrapf(errors.ErrInvalidOperation, "source %s is managed by policy", details.Name)
	default:
		return errors.Wrapf(errors.ErrInvalidOperation, "cannot remove source %s with origin %s", details.Name, details.Origin)
	}

	err := l.persistUserSources(ctx, func() (bool, error) {
		existing := l.find(details.Name)
		switch details.Origin {
		case source.OriginDefault:
			if existing != nil && existing.Origin != source.OriginDefault {
				return false, nil
			}
			if existing != nil {
				l.erase(existing)
			}
			l.sources = append(l.sources, &DetailsInternal{
				Details:     source.Details{Name: details.Name, Origin: source.OriginUser},
				IsTombstone: true,
			})
			return true, nil
		default:
			if existing == nil || existing.Origin != source.OriginUser || existing.IsTombstone {
				return false, nil
			}
			l.erase(existing)
			return true, nil
		}
	})
	if err != nil {
		if rerr := l.reload(); rerr != nil {
			logger.Warn("Failed to reload source list", logger.Fields{"error": rerr})
		}
		return err
	}

	logger.Info("Source removed from list", logger.Fields{"source": details.Name, "origin": details.Origin.String()})
	return l.persistMetadata(ctx, details.Name, nil)
}

// SaveMetadata persists the metadata fields of details: last update time
// and accepted agreements.
func (l *SourceList) SaveMetadata(ctx context.Context, details DetailsInternal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.persistMetadata(ctx, details.Name, func(d *DetailsInternal) {
		d.LastUpdateTime = details.LastUpdateTime
		d.AcceptedAgreementsIdentifier = details.AcceptedAgreementsIdentifier
		d.AcceptedAgreementFields = details.AcceptedAgreementFields
	})
}

// SaveAcceptedSourceAgreements records that the agreements of the named
// source were accepted.
func (l *SourceList) SaveAcceptedSourceAgreements(ctx context.Context, name, identifier string, fields int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.persistMetadata(ctx, name, func(d *DetailsInternal) {
		d.AcceptedAgreementsIdentifier = identifier
		d.AcceptedAgreementFields = fields
	})
}

// CheckSourceAgreements reports whether the named source has accepted
// exactly the requested agreements. No agreements are always satisfied.
func (l *SourceList) CheckSourceAgreements(name, identifier string, fields int) bool {
	if identifier == "" && fields == 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	d := l.find(name)
	if d == nil {
		return false
	}
	return d.AcceptedAgreementsIdentifier == identifier && d.AcceptedAgreementFields == fields
}

// RemoveSettingsStreams deletes both persisted streams and reloads, leaving
// only built-in and policy sources.
func (l *SourceList) RemoveSettingsStreams() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.opts.UserSources.Remove(); err != nil {
		return err
	}
	if err := l.opts.Metadata.Remove(); err != nil {
		return err
	}
	logger.Warn("Removed all persisted source settings")
	return l.reload()
}

func isCurrent(d *DetailsInternal) bool {
	return !d.IsTombstone && d.IsVisible && d.Origin != source.OriginMetadata
}

func (l *SourceList) find(name string) *DetailsInternal {
	for _, d := range l.sources {
		if strings.EqualFold(d.Name, name) {
			return d
		}
	}
	return nil
}

func (l *SourceList) findAll(name string) []*DetailsInternal {
	var out []*DetailsInternal
	for _, d := range l.sources {
		if strings.EqualFold(d.Name, name) {
			out = append(out, d)
		}
	}
	return out
}

func (l *SourceList) erase(target *DetailsInternal) {
	for i, d := range l.sources {
		if d == target {
			l.sources = append(l.sources[:i], l.sources[i+1:]...)
			return
		}
	}
}

// persistUserSources applies mutate and writes the user stream. On a
// concurrent modification everything is reloaded and mutate runs again on
// the fresh list, up to MaxWriteAttempts.
func (l *SourceList) persistUserSources(ctx context.Context, mutate func() (bool, error)) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		changed, err := mutate()
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !changed {
			return struct{}{}, nil
		}

		data, err := serializeUserSources(l.sources)
		if err != nil {
			return struct{}{}, backoff.Permanent(errors.Wrap(err, "failed to encode user sources"))
		}
		version, err := l.opts.UserSources.Write(data, l.userVersion)
		if err == nil {
			l.userVersion = version
			return struct{}{}, nil
		}
		if !stderrors.Is(err, errors.ErrConcurrentModification) {
			return struct{}{}, backoff.Permanent(err)
		}

		logger.Warn("User sources changed concurrently, reloading", logger.Fields{"attempt": attempt})
		if rerr := l.reload(); rerr != nil {
			return struct{}{}, backoff.Permanent(rerr)
		}
		return struct{}{}, err
	}, l.retryOptions()...)

	return l.exhausted(err)
}

// persistMetadata applies set to the named record and writes the metadata
// stream. A nil set drops a metadata-only record of that name instead. On a
// conflict only metadata is reloaded and set is applied again, so structural
// changes written by others are preserved.
func (l *SourceList) persistMetadata(ctx context.Context, name string, set func(*DetailsInternal)) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		d := l.find(name)
		switch {
		case set == nil:
			if d != nil && d.Origin == source.OriginMetadata {
				l.erase(d)
			}
		case d == nil:
			d = &DetailsInternal{Details: source.Details{Name: name, Origin: source.OriginMetadata}}
			l.sources = append(l.sources, d)
			set(d)
		default:
			set(d)
		}

		data, err := serializeMetadata(l.sources)
		if err != nil {
			return struct{}{}, backoff.Permanent(errors.Wrap(err, "failed to encode source metadata"))
		}
		version, err := l.opts.Metadata.Write(data, l.metadataVersion)
		if err == nil {
			l.metadataVersion = version
			return struct{}{}, nil
		}
		if !stderrors.Is(err, errors.ErrConcurrentModification) {
			return struct{}{}, backoff.Permanent(err)
		}

		logger.Warn("Source metadata changed concurrently, reloading", logger.Fields{"attempt": attempt, "source": name})
		if rerr := l.reloadMetadata(); rerr != nil {
			return struct{}{}, backoff.Permanent(rerr)
		}
		return struct{}{}, err
	}, l.retryOptions()...)

	return l.exhausted(err)
}

func (l *SourceList) retryOptions() []backoff.RetryOption {
	b := l.opts.RetryBackOff
	if b == nil {
		b = &backoff.ZeroBackOff{}
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(l.opts.MaxWriteAttempts)),
	}
}

func (l *SourceList) exhausted(err error) error {
	if err != nil && stderrors.Is(err, errors.ErrConcurrentModification) {
		logger.Error("Giving up writing source list", logger.Fields{"attempts": l.opts.MaxWriteAttempts})
		return errors.Wrap(errors.ErrPersistenceRetriesExhausted, err.Error())
	}
	return err
}

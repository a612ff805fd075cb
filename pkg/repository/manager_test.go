package repository

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/repokit/pkg/download"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/index"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/policy"
	"github.com/glorpus-work/repokit/pkg/source"
	"github.com/glorpus-work/repokit/pkg/source/composite"
	"github.com/glorpus-work/repokit/pkg/source/installed"
	"github.com/glorpus-work/repokit/pkg/source/mocks"
	"github.com/glorpus-work/repokit/pkg/source/preindexed"
	"github.com/glorpus-work/repokit/pkg/sourcelist"
)

const corpType = "Corp.Catalog"

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// noDefaults keeps the built-in sources out of the way.
func noDefaults() *policy.Settings {
	return &policy.Settings{States: map[policy.Policy]policy.State{
		policy.DefaultSource: policy.Disabled,
		policy.MSStoreSource: policy.Disabled,
	}}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	dir   string
	list  *sourcelist.SourceList
	clock *clock
	m     *Manager
}

func newList(t *testing.T, dir string, p policy.Provider) *sourcelist.SourceList {
	t.Helper()
	l, err := sourcelist.New(sourcelist.Options{
		UserSources: sourcelist.NewFileStream(filepath.Join(dir, "user_sources.yaml")),
		Metadata:    sourcelist.NewFileStream(filepath.Join(dir, "sources_metadata.yaml")),
		Policy:      p,
	})
	require.NoError(t, err)
	return l
}

func newEnv(t *testing.T, p policy.Provider, opts Options, factories ...source.Factory) *env {
	t.Helper()
	dir := t.TempDir()
	c := &clock{now: start}
	if opts.RetryBackOff == 0 {
		opts.RetryBackOff = -1
	}
	opts.Now = c.Now
	list := newList(t, dir, p)
	return &env{
		dir:   dir,
		list:  list,
		clock: c,
		m:     NewManager(list, source.NewFactoryRegistry(factories...), p, opts),
	}
}

func newMockFactory(ctrl *gomock.Controller, typ string) *mocks.MockFactory {
	f := mocks.NewMockFactory(ctrl)
	f.EXPECT().Type().Return(typ).AnyTimes()
	return f
}

type stubSource struct {
	details source.Details
}

func (s *stubSource) Details() source.Details { return s.details }
func (s *stubSource) Identifier() string      { return s.details.Identifier }
func (s *stubSource) Close() error            { return nil }
func (s *stubSource) Search(context.Context, source.SearchRequest) (*source.SearchResult, error) {
	return &source.SearchResult{}, nil
}

func createStub(_ context.Context, d source.Details) (source.Source, error) {
	return &stubSource{details: d}, nil
}

func corp(name string) source.Details {
	return source.Details{Name: name, Type: corpType, Arg: "https://" + name + ".example/api"}
}

func TestOpenWithNothingConfigured(t *testing.T) {
	e := newEnv(t, noDefaults(), Options{})

	res, err := e.m.OpenSource(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, res.Source)
	assert.Empty(t, res.SourcesWithUpdateFailure)

	res, err = e.m.OpenSource(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, res.Source)
}

func TestAddSourcePersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *source.Details) (bool, error) {
		d.Identifier = "corp-id"
		return true, nil
	})

	e := newEnv(t, noDefaults(), Options{}, f)
	var events []Event
	e.m.Hooks.OnEvent = func(ev Event) { events = append(events, ev) }

	added, err := e.m.AddSource(context.Background(), source.Details{Name: " corp ", Type: corpType, Arg: "https://corp.example/api"})
	require.NoError(t, err)
	assert.Equal(t, "corp", added.Name)
	assert.Equal(t, "corp-id", added.Identifier)
	assert.Equal(t, source.OriginUser, added.Origin)
	assert.True(t, added.LastUpdateTime.Equal(start))

	reloaded := newList(t, e.dir, noDefaults())
	got, ok := reloaded.GetCurrentSource("corp")
	require.True(t, ok)
	assert.Equal(t, "corp-id", got.Identifier)
	assert.Equal(t, corpType, got.Type)
	assert.Equal(t, source.OriginUser, got.Origin)
	assert.True(t, got.LastUpdateTime.Equal(start))

	require.NotEmpty(t, events)
	assert.Equal(t, PhaseAdding, events[0].Phase)
	assert.Equal(t, PhaseDone, events[len(events)-1].Phase)
}

func TestAddSourceValidation(t *testing.T) {
	blockAll := noDefaults()
	blockAll.States[policy.AllowedSources] = policy.Disabled

	tests := []struct {
		name     string
		provider *policy.Settings
		details  source.Details
		wantErr  error
		policy   string
	}{
		{name: "empty name", details: source.Details{Name: "  ", Type: corpType, Arg: "https://x.example"}, wantErr: errors.ErrInvalidArgument},
		{name: "empty arg", details: source.Details{Name: "x", Type: corpType}, wantErr: errors.ErrInvalidArgument},
		{name: "duplicate name", details: source.Details{Name: "EXISTING", Type: corpType, Arg: "https://other.example"}, wantErr: errors.ErrSourceNameAlreadyExists},
		{name: "same type and arg", details: source.Details{Name: "other", Type: corpType, Arg: "https://existing.example/api"}, wantErr: errors.ErrSourceArgAlreadyExists},
		{name: "same arg with default type", details: source.Details{Name: "other", Arg: "https://index.example"}, wantErr: errors.ErrSourceArgAlreadyExists},
		{name: "unknown type", details: source.Details{Name: "other", Type: "Bogus", Arg: "https://x.example"}, wantErr: errors.ErrInvalidSourceType},
		{name: "blocked by policy", provider: blockAll, details: corp("blocked"), wantErr: errors.ErrBlockedByPolicy, policy: string(policy.AllowedSources)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			f := newMockFactory(ctrl, corpType)
			p := tt.provider
			if p == nil {
				p = noDefaults()
			}
			e := newEnv(t, p, Options{}, f)
			require.NoError(t, e.list.AddSource(context.Background(), corp("existing")))
			require.NoError(t, e.list.AddSource(context.Background(), source.Details{
				Name: "index", Type: source.TypePreIndexed, Arg: "https://index.example",
			}))

			_, err := e.m.AddSource(context.Background(), tt.details)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.wantErr), "got %v", err)
			if tt.policy != "" {
				got, ok := errors.BlockingPolicy(err)
				require.True(t, ok)
				assert.Equal(t, tt.policy, got)
			}
		})
	}
}

func TestAddSourceRetriesOnce(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newMockFactory(ctrl, corpType)
		gomock.InOrder(
			f.EXPECT().Add(gomock.Any(), gomock.Any()).Return(false, stderrors.New("connection reset")),
			f.EXPECT().Add(gomock.Any(), gomock.Any()).Return(true, nil),
		)
		e := newEnv(t, noDefaults(), Options{}, f)
		var phases []string
		e.m.Hooks.OnEvent = func(ev Event) { phases = append(phases, ev.Phase) }

		_, err := e.m.AddSource(context.Background(), corp("corp"))
		require.NoError(t, err)
		assert.Contains(t, phases, PhaseRetrying)
		_, ok := e.m.GetSource("corp")
		assert.True(t, ok)
	})

	t.Run("both attempts fail", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newMockFactory(ctrl, corpType)
		f.EXPECT().Add(gomock.Any(), gomock.Any()).Return(false, stderrors.New("connection reset")).Times(2)
		e := newEnv(t, noDefaults(), Options{}, f)

		_, err := e.m.AddSource(context.Background(), corp("corp"))
		require.Error(t, err)
		_, ok := e.m.GetSource("corp")
		assert.False(t, ok, "nothing is persisted")
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		f := newMockFactory(ctrl, corpType)
		f.EXPECT().Add(gomock.Any(), gomock.Any()).Return(false, errors.ErrSourceNotSecure).Times(1)
		e := newEnv(t, noDefaults(), Options{}, f)

		_, err := e.m.AddSource(context.Background(), corp("corp"))
		assert.ErrorIs(t, err, errors.ErrSourceNotSecure)
	})
}

func TestUpdateSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	gomock.InOrder(
		f.EXPECT().Update(gomock.Any(), gomock.Any()).Return(false, stderrors.New("timeout")),
		f.EXPECT().Update(gomock.Any(), gomock.Any()).Return(true, nil),
	)
	e := newEnv(t, noDefaults(), Options{}, f)
	require.NoError(t, e.list.AddSource(context.Background(), corp("corp")))
	require.NoError(t, e.list.SaveAcceptedSourceAgreements(context.Background(), "corp", "terms", 1))

	e.clock.Advance(time.Hour)
	require.NoError(t, e.m.UpdateSource(context.Background(), "corp"))

	got, ok := e.m.GetSource("corp")
	require.True(t, ok)
	assert.True(t, got.LastUpdateTime.Equal(start.Add(time.Hour)))
	assert.True(t, e.list.CheckSourceAgreements("corp", "terms", 1), "agreements survive an update")

	assert.ErrorIs(t, e.m.UpdateSource(context.Background(), "missing"), errors.ErrSourceNotFound)
	assert.ErrorIs(t, e.m.UpdateSource(context.Background(), ""), errors.ErrInvalidArgument)
}

func TestOpenUpdatesStaleSources(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d *source.Details) (bool, error) {
		if d.Name == "beta" {
			return false, stderrors.New("network down")
		}
		return false, nil
	}).Times(2)
	f.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(createStub).Times(2)

	e := newEnv(t, noDefaults(), Options{AutoUpdateInterval: time.Hour}, f)
	for _, name := range []string{"alpha", "beta"} {
		d := corp(name)
		d.LastUpdateTime = start
		require.NoError(t, e.list.AddSource(context.Background(), d))
	}

	alpha, _ := e.m.GetSource("alpha")
	assert.False(t, e.m.ShouldUpdateBeforeOpen(alpha))
	e.clock.Advance(2 * time.Hour)
	assert.True(t, e.m.ShouldUpdateBeforeOpen(alpha))

	res, err := e.m.OpenSource(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, res.SourcesWithUpdateFailure, 1)
	assert.Equal(t, "beta", res.SourcesWithUpdateFailure[0].Name)

	c, ok := res.Source.(*composite.Source)
	require.True(t, ok, "several sources open as a composite")
	assert.Len(t, c.AvailableSources(), 2)
	assert.Nil(t, c.InstalledSource())
	assert.Equal(t, composite.SearchAvailablePackages, c.Behavior())

	alpha, _ = e.m.GetSource("alpha")
	assert.True(t, alpha.LastUpdateTime.Equal(start.Add(2*time.Hour)))
	beta, _ := e.m.GetSource("beta")
	assert.True(t, beta.LastUpdateTime.Equal(start), "failed update keeps the old time")
}

func TestOpenSkipsMembersThatFailToOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, d source.Details) (source.Source, error) {
		if d.Name == "broken" {
			return nil, errors.ErrSourceDataMissing
		}
		return createStub(ctx, d)
	}).AnyTimes()

	e := newEnv(t, noDefaults(), Options{}, f)
	require.NoError(t, e.list.AddSource(context.Background(), corp("broken")))
	require.NoError(t, e.list.AddSource(context.Background(), corp("good")))

	res, err := e.m.OpenSource(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, res.SourcesWithUpdateFailure, 1)
	assert.Equal(t, "broken", res.SourcesWithUpdateFailure[0].Name)
	c := res.Source.(*composite.Source)
	require.Len(t, c.AvailableSources(), 1)
	assert.Equal(t, "good", c.AvailableSources()[0].Details().Name)

	_, err = e.m.OpenSource(context.Background(), "broken")
	assert.ErrorIs(t, err, errors.ErrSourceDataMissing, "a single source reports its own error")
}

func TestRemoveSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Remove(gomock.Any(), gomock.Any()).Return(false, stderrors.New("data locked"))

	e := newEnv(t, noDefaults(), Options{}, f)
	require.NoError(t, e.list.AddSource(context.Background(), corp("corp")))

	require.NoError(t, e.m.RemoveSource(context.Background(), "corp"), "cleanup failures do not block removal")
	_, ok := e.m.GetSource("corp")
	assert.False(t, ok)

	assert.ErrorIs(t, e.m.RemoveSource(context.Background(), "corp"), errors.ErrSourceNotFound)
}

func TestRemovePolicySources(t *testing.T) {
	p := &policy.Settings{
		States: map[policy.Policy]policy.State{
			policy.DefaultSource:     policy.Enabled,
			policy.MSStoreSource:     policy.Disabled,
			policy.AdditionalSources: policy.Enabled,
		},
		AdditionalSources: []policy.SourceFromPolicy{{Name: "corp", Type: corpType, Arg: "https://corp.example/api"}},
	}
	e := newEnv(t, p, Options{})

	tests := []struct {
		name   string
		source string
		policy policy.Policy
	}{
		{name: "policy source", source: "corp", policy: policy.AdditionalSources},
		{name: "required default source", source: source.WinGetName, policy: policy.DefaultSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, remove := range []func(context.Context, string) error{e.m.RemoveSource, e.m.DropSource} {
				err := remove(context.Background(), tt.source)
				got, ok := errors.BlockingPolicy(err)
				require.True(t, ok, "got %v", err)
				assert.Equal(t, string(tt.policy), got)
			}
			_, ok := e.m.GetSource(tt.source)
			assert.True(t, ok)
		})
	}
}

func TestDropSource(t *testing.T) {
	e := newEnv(t, nil, Options{})

	require.NoError(t, e.m.DropSource(context.Background(), source.WinGetName))
	_, ok := e.m.GetSource(source.WinGetName)
	assert.False(t, ok, "default source is tombstoned")

	require.NoError(t, e.m.DropSource(context.Background(), ""))
	_, ok = e.m.GetSource(source.WinGetName)
	assert.True(t, ok, "resetting restores defaults")
}

func TestEnsureSourceIsRemovable(t *testing.T) {
	e := newEnv(t, noDefaults(), Options{})
	assert.ErrorIs(t, e.m.EnsureSourceIsRemovable(installed.Details()), errors.ErrInvalidOperation)
	assert.NoError(t, e.m.EnsureSourceIsRemovable(source.Details{Name: "corp", Origin: source.OriginUser}))
}

func TestPredefinedAndComposite(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(createStub).AnyTimes()

	dir := t.TempDir()
	e := newEnv(t, noDefaults(), Options{}, f, installed.NewFactory(filepath.Join(dir, "installed.json")))
	require.NoError(t, e.list.AddSource(context.Background(), corp("alpha")))
	require.NoError(t, e.list.AddSource(context.Background(), corp("beta")))

	inst, err := e.m.OpenPredefinedSource(context.Background(), PredefinedInstalled)
	require.NoError(t, err)
	assert.Equal(t, installed.Identifier, inst.Identifier())

	res, err := e.m.OpenSource(context.Background(), "")
	require.NoError(t, err)

	c := e.m.CreateCompositeSource(inst, res.Source, composite.SearchAllPackages)
	assert.Len(t, c.AvailableSources(), 2, "members of an available composite are taken over")
	assert.Equal(t, inst, c.InstalledSource())
	assert.Equal(t, composite.SearchAllPackages, c.Behavior())

	single, err := e.m.OpenSource(context.Background(), "alpha")
	require.NoError(t, err)
	c = e.m.CreateCompositeSource(inst, single.Source, composite.SearchInstalled)
	assert.Len(t, c.AvailableSources(), 1)

	_, err = e.m.OpenPredefinedSource(context.Background(), PredefinedSource(42))
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
}

type brokenStream struct {
	sourcelist.Stream
}

func (brokenStream) Write([]byte, string) (string, error) {
	return "", stderrors.New("disk full")
}

func TestAddSourceSurvivesMetadataWriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Add(gomock.Any(), gomock.Any()).Return(true, nil)

	dir := t.TempDir()
	list, err := sourcelist.New(sourcelist.Options{
		UserSources: sourcelist.NewFileStream(filepath.Join(dir, "user_sources.yaml")),
		Metadata:    brokenStream{Stream: sourcelist.NewFileStream(filepath.Join(dir, "sources_metadata.yaml"))},
		Policy:      noDefaults(),
	})
	require.NoError(t, err)
	m := NewManager(list, source.NewFactoryRegistry(f), noDefaults(), Options{RetryBackOff: -1})

	_, err = m.AddSource(context.Background(), corp("corp"))
	require.NoError(t, err, "the factory data is kept, so no Remove is expected")

	_, ok := newList(t, dir, noDefaults()).GetCurrentSource("corp")
	assert.True(t, ok)
}

type agreementSource struct {
	stubSource
	agreements source.Agreements
	err        error
}

func (s *agreementSource) SourceAgreements(context.Context) (source.Agreements, error) {
	return s.agreements, s.err
}

func TestEnsureSourceAgreements(t *testing.T) {
	terms := source.Agreements{
		Identifier: "terms-v1",
		Fields:     3,
		Entries:    []source.Agreement{{Label: "Terms", Text: "Be nice"}},
	}

	ctrl := gomock.NewController(t)
	f := newMockFactory(ctrl, corpType)
	f.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, d source.Details) (source.Source, error) {
		switch d.Name {
		case "terms":
			return &agreementSource{stubSource: stubSource{details: d}, agreements: terms}, nil
		case "offline":
			return &agreementSource{stubSource: stubSource{details: d}, err: stderrors.New("unreachable")}, nil
		default:
			return createStub(context.Background(), d)
		}
	}).AnyTimes()
	f.EXPECT().Update(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()

	e := newEnv(t, noDefaults(), Options{}, f)
	ctx := context.Background()
	for _, name := range []string{"plain", "terms", "offline"} {
		require.NoError(t, e.list.AddSource(ctx, corp(name)))
	}

	res, err := e.m.OpenSource(ctx, "")
	require.NoError(t, err)

	err = e.m.EnsureSourceAgreements(ctx, res.Source, false)
	require.ErrorIs(t, err, errors.ErrSourceAgreementsNotAccepted)
	assert.Contains(t, err.Error(), "terms")
	assert.NotContains(t, err.Error(), "plain")

	require.NoError(t, e.m.EnsureSourceAgreements(ctx, res.Source, true))
	assert.True(t, newList(t, e.dir, noDefaults()).CheckSourceAgreements("terms", "terms-v1", 3), "acceptance is persisted")

	single, err := e.m.OpenSource(ctx, "terms")
	require.NoError(t, err)
	assert.NoError(t, e.m.EnsureSourceAgreements(ctx, single.Source, false))

	require.NoError(t, e.m.UpdateSource(ctx, "terms"))
	assert.NoError(t, e.m.EnsureSourceAgreements(ctx, single.Source, false), "updates keep accepted agreements")

	terms.Fields = 7
	changed, err := e.m.OpenSource(ctx, "terms")
	require.NoError(t, err)
	changed.Source.(*agreementSource).agreements = terms
	assert.ErrorIs(t, e.m.EnsureSourceAgreements(ctx, changed.Source, false), errors.ErrSourceAgreementsNotAccepted,
		"agreements with new fields need accepting again")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	offline, err := e.m.OpenSource(ctx, "offline")
	require.NoError(t, err)
	offline.Source.(*agreementSource).err = canceled.Err()
	assert.ErrorIs(t, e.m.EnsureSourceAgreements(canceled, offline.Source, false), context.Canceled)
}

func TestPreIndexedEndToEnd(t *testing.T) {
	manifestDir := t.TempDir()
	m := manifest.Manifest{
		PackageIdentifier: "Foo.Bar",
		PackageVersion:    "1.0",
		PackageName:       "Foo Bar",
		Publisher:         "Foo",
	}
	data, err := m.Marshal()
	require.NoError(t, err)
	path := filepath.Join(manifestDir, m.PackageIdentifier, m.PackageVersion+".yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))

	siteDir := t.TempDir()
	_, err = index.NewGenerator(manifestDir, siteDir).Generate(context.Background())
	require.NoError(t, err)
	srv := httptest.NewTLSServer(http.FileServer(http.Dir(siteDir)))
	defer srv.Close()

	factory := preindexed.NewFactory(t.TempDir(), download.NewManagerWithClient(srv.Client(), ""))
	e := newEnv(t, noDefaults(), Options{}, factory)
	ctx := context.Background()

	added, err := e.m.AddSource(ctx, source.Details{Name: "test", Arg: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, source.TypePreIndexed, added.Type)

	res, err := e.m.OpenSource(ctx, "test")
	require.NoError(t, err)
	require.NotNil(t, res.Source)
	defer res.Source.Close()

	found, err := res.Source.Search(ctx, source.SearchRequest{
		Query: &source.RequestMatch{Type: source.MatchExact, Value: "Foo.Bar"},
	})
	require.NoError(t, err)
	require.Len(t, found.Matches, 1)
	assert.Equal(t, source.FieldID, found.Matches[0].Criteria.Field)
	assert.Equal(t, source.MatchExact, found.Matches[0].Criteria.Type)

	none, err := res.Source.Search(ctx, source.SearchRequest{
		Query: &source.RequestMatch{Type: source.MatchExact, Value: "nonexistent"},
	})
	require.NoError(t, err)
	assert.Empty(t, none.Matches)

	require.NoError(t, e.m.RemoveSource(ctx, "test"))
}

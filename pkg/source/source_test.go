package source

import (
	"context"
	"testing"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopSource struct{ details Details }

func (s *nopSource) Details() Details { return s.details }
func (s *nopSource) Identifier() string { return s.details.Identifier }
func (s *nopSource) Close() error { return nil }
func (s *nopSource) Search(context.Context, SearchRequest) (*SearchResult, error) {
	return &SearchResult{}, nil
}

type nopFactory struct{ typ string }

func (f nopFactory) Type() string { return f.typ }
func (f nopFactory) Create(_ context.Context, d Details) (Source, error) {
	if err := CheckType(f.typ, d); err != nil {
		return nil, err
	}
	return &nopSource{details: d}, nil
}
func (f nopFactory) Add(context.Context, *Details) (bool, error) { return false, nil }
func (f nopFactory) Update(context.Context, *Details) (bool, error) { return false, nil }
func (f nopFactory) Remove(context.Context, *Details) (bool, error) { return false, nil }

func TestFactoryRegistry(t *testing.T) {
	reg := NewFactoryRegistry(nopFactory{typ: TypePreIndexed}, nopFactory{typ: TypeRest})

	f, err := reg.Get("")
	require.NoError(t, err)
	assert.Equal(t, TypePreIndexed, f.Type(), "empty type resolves to the default")

	f, err = reg.Get("microsoft.rest")
	require.NoError(t, err)
	assert.Equal(t, TypeRest, f.Type())

	_, err = reg.Get("Bogus")
	assert.ErrorIs(t, err, errors.ErrInvalidSourceType)

	assert.Equal(t, []string{TypePreIndexed, TypeRest}, reg.Types())

	_, err = f.Create(context.Background(), Details{Type: TypePreIndexed})
	assert.ErrorIs(t, err, errors.ErrInvalidSourceType)
}

func TestRef(t *testing.T) {
	src := &nopSource{details: Details{Name: "test"}}
	ref := NewRef(src)

	got, err := ref.Get()
	require.NoError(t, err)
	assert.Same(t, Source(src), got)

	ref.Invalidate()
	_, err = ref.Get()
	assert.ErrorIs(t, err, errors.ErrNotValidState)

	var nilRef *Ref
	_, err = nilRef.Get()
	assert.ErrorIs(t, err, errors.ErrNotValidState)
}

func TestPackageIdentity(t *testing.T) {
	a := PackageIdentity{SourceIdentifier: "Winget", PackageID: "Foo.Bar"}
	assert.True(t, a.IsSame(PackageIdentity{SourceIdentifier: "winget", PackageID: "foo.bar"}))
	assert.False(t, a.IsSame(PackageIdentity{SourceIdentifier: "msstore", PackageID: "Foo.Bar"}))
	assert.Equal(t, a.Key(), PackageIdentity{SourceIdentifier: "WINGET", PackageID: "FOO.BAR"}.Key())
}

func TestTrustLevel(t *testing.T) {
	d, visible := WellKnownDetails(WellKnownMSStore)
	assert.True(t, visible)
	assert.True(t, d.TrustLevel.Has(TrustStoreOrigin))
	assert.Equal(t, "Trusted|StoreOrigin", d.TrustLevel.String())
	assert.Equal(t, "None", TrustNone.String())

	_, visible = WellKnownDetails(WellKnownDesktopFrameworks)
	assert.False(t, visible)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "7zip", NormalizeName("7-Zip 23.01 (x64)"))
	assert.Equal(t, "notepad", NormalizeName("Notepad++ v8.6.2"))
	assert.Equal(t, "microsoft", NormalizePublisher("Microsoft Corporation"))
	assert.Equal(t, "foo", NormalizePublisher("Foo, Inc."))
	assert.Equal(t, "inc", NormalizePublisher("Inc"))
	assert.Equal(t, "7zip|igorpavlov", NormalizeNameAndPublisher("7-Zip 23.01 (x64 edition)", "Igor Pavlov"))
}

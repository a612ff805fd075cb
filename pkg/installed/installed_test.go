package installed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/repokit/pkg/errors"
)

func TestDatabase(t *testing.T) {
	t.Run("NewDatabase", func(t *testing.T) {
		db := NewDatabase()
		assert.Equal(t, FormatVersion, db.FormatVersion)
		assert.WithinDuration(t, time.Now(), db.LastUpdate, time.Second)
		assert.Empty(t, db.Programs())
	})

	t.Run("AddFindRemove", func(t *testing.T) {
		db := NewDatabase()
		db.Add(&Program{ID: "Foo.Bar", Name: "Foo Bar", Version: "1.0"})

		found := db.Find("foo.bar")
		require.NotNil(t, found)
		assert.Equal(t, "1.0", found.Version)
		assert.False(t, found.InstalledAt.IsZero())
		assert.Nil(t, db.Find("missing"))

		db.Add(&Program{ID: "FOO.BAR", Name: "Foo Bar", Version: "2.0"})
		require.Len(t, db.Programs(), 1)
		assert.Equal(t, "2.0", db.Find("Foo.Bar").Version)

		assert.True(t, db.Remove("foo.bar"))
		assert.False(t, db.Remove("foo.bar"))
		assert.Empty(t, db.Programs())
	})

	t.Run("Filtered", func(t *testing.T) {
		db := NewDatabase()
		db.Add(&Program{ID: "a", Name: "Alpha Tool"})
		db.Add(&Program{ID: "b", Name: "Beta Tool"})
		db.Add(&Program{ID: "c", Name: "Gamma"})

		assert.Len(t, db.Filtered(""), 3)
		assert.Len(t, db.Filtered("tool"), 2)
		assert.Empty(t, db.Filtered("delta"))
	})
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "installed.json")

	db, err := LoadDatabase(path)
	require.NoError(t, err, "a missing database is empty, not an error")
	assert.Empty(t, db.Programs())

	installedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db.Add(&Program{
		ID:           "Foo.Bar",
		Name:         "Foo Bar",
		Version:      "1.0",
		Scope:        ScopeMachine,
		InstalledAt:  installedAt,
		ProductCodes: []string{"{FOO}"},
	})
	require.NoError(t, db.Save(path))

	loaded, err := LoadDatabase(path)
	require.NoError(t, err)
	p := loaded.Find("Foo.Bar")
	require.NotNil(t, p)
	assert.Equal(t, ScopeMachine, p.Scope)
	assert.True(t, installedAt.Equal(p.InstalledAt))
	assert.Equal(t, []string{"{FOO}"}, p.ProductCodes)
}

func TestLoadErrors(t *testing.T) {
	_, err := LoadDatabase("relative/installed.json")
	assert.ErrorIs(t, err, errors.ErrInvalidPath)

	path := filepath.Join(t.TempDir(), "installed.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadDatabase(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"format_version":"9","programs":[]}`), 0o644))
	_, err = LoadDatabase(path)
	assert.Error(t, err)
}

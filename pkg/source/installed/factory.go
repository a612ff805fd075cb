package installed

import (
	"context"

	"github.com/glorpus-work/repokit/pkg/errors"
	installeddb "github.com/glorpus-work/repokit/pkg/installed"
	"github.com/glorpus-work/repokit/pkg/source"
)

// Factory opens the installed source over the database at a fixed path.
type Factory struct {
	databasePath string
}

var _ source.Factory = (*Factory)(nil)

// NewFactory returns a factory reading the installed database at path.
func NewFactory(databasePath string) *Factory {
	return &Factory{databasePath: databasePath}
}

func (f *Factory) Type() string { return source.TypeInstalled }

// Create loads the database. A missing database yields an empty source.
func (f *Factory) Create(_ context.Context, details source.Details) (source.Source, error) {
	if err := source.CheckType(source.TypeInstalled, details); err != nil {
		return nil, err
	}
	db, err := installeddb.LoadDatabase(f.databasePath)
	if err != nil {
		return nil, err
	}
	return NewSource(details, db.Programs()), nil
}

// Add is not supported; the installed source is predefined.
func (f *Factory) Add(context.Context, *source.Details) (bool, error) {
	return false, errors.Wrap(errors.ErrInvalidOperation, "the installed source cannot be added")
}

// Update is not supported; the database is read on every Create.
func (f *Factory) Update(context.Context, *source.Details) (bool, error) {
	return false, errors.Wrap(errors.ErrInvalidOperation, "the installed source cannot be updated")
}

// Remove is not supported; the installed source is predefined.
func (f *Factory) Remove(context.Context, *source.Details) (bool, error) {
	return false, errors.Wrap(errors.ErrInvalidOperation, "the installed source cannot be removed")
}

// Package index is the SQLite store behind pre-indexed sources, together with
// the generator that builds a distributable index package from manifests.
package index

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/fsutil"
	"github.com/glorpus-work/repokit/pkg/manifest"
	"github.com/glorpus-work/repokit/pkg/source"
)

const (
	// FileName is the name of the extracted index in a source data directory.
	FileName = "index.db"
	// PackageFileName is the compressed package served at the root of a source.
	PackageFileName = "source.tar.gz"
	// PackageEntry is the path of the index inside the package.
	PackageEntry = "Public/index.db"
)

// Index is an open SQLite index. Only one connection is used, so writes are
// serialized.
type Index struct {
	db *sql.DB
}

// PackageRow is one package of the index, described by its latest version.
type PackageRow struct {
	RowID         int64
	ID            string
	Name          string
	Moniker       string
	Publisher     string
	LatestVersion string
}

// VersionRow is one indexed manifest.
type VersionRow struct {
	Version      string
	Channel      string
	Name         string
	Publisher    string
	Moniker      string
	RelativePath string
	Hash         string
}

// Create makes a new, empty index at path. The file must not exist yet.
func Create(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrIndexOutputExists, path)
	}
	if err := fsutil.EnsureFileDir(path); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Index{db: db}, nil
}

// Open opens an existing index and checks that its schema is current.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errors.ErrSourceDataMissing, path)
		}
		return nil, fmt.Errorf("stat index: %w", err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrIndexInvalid, err)
	}

	have, err := schemaVersion(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", errors.ErrIndexInvalid, err)
	}
	want, err := latestSchema()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if have != want {
		_ = db.Close()
		return nil, fmt.Errorf("%w: schema version %d, expected %d", errors.ErrIndexInvalid, have, want)
	}
	return &Index{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set foreign_keys: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// AddManifest records one manifest version. relPath is where the manifest is
// served relative to the source root and hash is its sha256.
func (ix *Index) AddManifest(ctx context.Context, m *manifest.Manifest, relPath, hash string) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rowID, err := upsertPackage(ctx, tx, m)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (package, version, channel, name, publisher, moniker, pathpart, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rowID, m.PackageVersion, m.Channel, m.PackageName, m.Publisher, m.Moniker, relPath, hash)
	if err != nil {
		return fmt.Errorf("insert version %s %s: %w", m.PackageIdentifier, m.PackageVersion, err)
	}

	for field, values := range searchValues(m) {
		for _, v := range values {
			if v == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO package_values (package, field, value) VALUES (?, ?, ?)`,
				rowID, field.String(), v); err != nil {
				return fmt.Errorf("insert %s value: %w", field, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// upsertPackage inserts the package or, when m is at least as new as the
// recorded latest version, refreshes its display fields.
func upsertPackage(ctx context.Context, tx *sql.Tx, m *manifest.Manifest) (int64, error) {
	var rowID int64
	var latest string
	err := tx.QueryRowContext(ctx, `SELECT rowid, latest_version FROM packages WHERE id = ?`, m.PackageIdentifier).
		Scan(&rowID, &latest)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, `
			INSERT INTO packages (id, name, moniker, publisher, latest_version)
			VALUES (?, ?, ?, ?, ?)`,
			m.PackageIdentifier, m.PackageName, m.Moniker, m.Publisher, m.PackageVersion)
		if err != nil {
			return 0, fmt.Errorf("insert package %s: %w", m.PackageIdentifier, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("query package %s: %w", m.PackageIdentifier, err)
	}

	if source.CompareVersions(m.PackageVersion, latest) >= 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE packages SET name = ?, moniker = ?, publisher = ?, latest_version = ? WHERE rowid = ?`,
			m.PackageName, m.Moniker, m.Publisher, m.PackageVersion, rowID); err != nil {
			return 0, fmt.Errorf("update package %s: %w", m.PackageIdentifier, err)
		}
	}
	return rowID, nil
}

func searchValues(m *manifest.Manifest) map[source.MatchField][]string {
	return map[source.MatchField][]string{
		source.FieldID:                         {m.PackageIdentifier},
		source.FieldName:                       {m.PackageName},
		source.FieldMoniker:                    {m.Moniker},
		source.FieldCommand:                    m.Commands,
		source.FieldTag:                        m.Tags,
		source.FieldPackageFamilyName:          m.PackageFamilyNames(),
		source.FieldProductCode:                m.ProductCodes(),
		source.FieldNormalizedNameAndPublisher: {source.NormalizeNameAndPublisher(m.PackageName, m.Publisher)},
	}
}

// Package looks a package up by identifier, case-insensitively.
func (ix *Index) Package(ctx context.Context, id string) (PackageRow, error) {
	row := ix.db.QueryRowContext(ctx, `
		SELECT rowid, id, name, moniker, publisher, latest_version FROM packages WHERE id = ?`, id)
	p, err := scanPackage(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return PackageRow{}, fmt.Errorf("%w: %s", errors.ErrPackageNotFound, id)
	}
	return p, err
}

// Versions returns every indexed version of a package.
func (ix *Index) Versions(ctx context.Context, packageRowID int64) ([]VersionRow, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT version, channel, name, publisher, moniker, pathpart, hash
		FROM versions WHERE package = ? ORDER BY rowid`, packageRowID)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []VersionRow
	for rows.Next() {
		var v VersionRow
		if err := rows.Scan(&v.Version, &v.Channel, &v.Name, &v.Publisher, &v.Moniker, &v.RelativePath, &v.Hash); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Counts returns the number of packages and versions.
func (ix *Index) Counts(ctx context.Context) (packages, versions int, err error) {
	err = ix.db.QueryRowContext(ctx, `
		SELECT (SELECT count(*) FROM packages), (SELECT count(*) FROM versions)`).Scan(&packages, &versions)
	if err != nil {
		return 0, 0, fmt.Errorf("count: %w", err)
	}
	return packages, versions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(s scanner) (PackageRow, error) {
	var p PackageRow
	err := s.Scan(&p.RowID, &p.ID, &p.Name, &p.Moniker, &p.Publisher, &p.LatestVersion)
	return p, err
}

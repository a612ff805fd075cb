package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/source"
)

const packageColumns = `p.rowid, p.id, p.name, p.moniker, p.publisher, p.latest_version`

// Result is one matched package and the criterion that selected it.
type Result struct {
	Package  PackageRow
	Criteria source.PackageMatchFilter
}

// Search runs req against the index. Query matches come first in field
// order, then inclusion matches, each group ordered by package identifier.
// The second return value reports whether MaximumResults cut the list.
func (ix *Index) Search(ctx context.Context, req source.SearchRequest) ([]Result, bool, error) {
	var allowed map[int64]bool
	for _, f := range req.Filters {
		rows, err := ix.match(ctx, f.Field, f.Type, f.Value)
		if err != nil {
			return nil, false, err
		}
		next := make(map[int64]bool, len(rows))
		for _, r := range rows {
			if allowed == nil || allowed[r.RowID] {
				next[r.RowID] = true
			}
		}
		allowed = next
	}

	var results []Result
	seen := map[int64]bool{}
	add := func(rows []PackageRow, criteria source.PackageMatchFilter) {
		for _, r := range rows {
			if seen[r.RowID] || (allowed != nil && !allowed[r.RowID]) {
				continue
			}
			seen[r.RowID] = true
			results = append(results, Result{Package: r, Criteria: criteria})
		}
	}

	if q := req.Query; q != nil {
		for _, field := range source.QueryFields {
			rows, err := ix.match(ctx, field, q.Type, q.Value)
			if err != nil {
				return nil, false, err
			}
			add(rows, source.PackageMatchFilter{Field: field, Type: q.Type, Value: q.Value})
		}
	}
	for _, inc := range req.Inclusions {
		rows, err := ix.match(ctx, inc.Field, inc.Type, inc.Value)
		if err != nil {
			return nil, false, err
		}
		add(rows, inc)
	}
	if req.Query == nil && len(req.Inclusions) == 0 {
		rows, err := ix.all(ctx)
		if err != nil {
			return nil, false, err
		}
		var criteria source.PackageMatchFilter
		if len(req.Filters) > 0 {
			criteria = req.Filters[0]
		}
		add(rows, criteria)
	}

	if req.MaximumResults > 0 && len(results) > req.MaximumResults {
		return results[:req.MaximumResults], true, nil
	}
	return results, false, nil
}

// match returns the packages having a value of field that matches. Prefix
// and substring matches run in SQL; the remaining types are evaluated in
// memory over the field's values.
func (ix *Index) match(ctx context.Context, field source.MatchField, t source.MatchType, value string) ([]PackageRow, error) {
	var cond string
	var arg string
	switch t {
	case source.MatchExact:
		cond, arg = "v.value = ?", value
	case source.MatchCaseInsensitive:
		cond, arg = "v.value = ? COLLATE NOCASE", value
	case source.MatchStartsWith:
		cond, arg = `v.value LIKE ? ESCAPE '\'`, escapeLike(value)+"%"
	case source.MatchSubstring:
		cond, arg = `v.value LIKE ? ESCAPE '\'`, "%"+escapeLike(value)+"%"
	case source.MatchWildcard, source.MatchFuzzy, source.MatchFuzzySubstring:
		return ix.matchInMemory(ctx, field, t, value)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "unknown match type %d", t)
	}

	query := `SELECT DISTINCT ` + packageColumns + `
		FROM packages p JOIN package_values v ON v.package = p.rowid
		WHERE v.field = ? AND ` + cond + `
		ORDER BY p.id COLLATE NOCASE`
	return ix.queryPackages(ctx, query, field.String(), arg)
}

func (ix *Index) matchInMemory(ctx context.Context, field source.MatchField, t source.MatchType, value string) ([]PackageRow, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT `+packageColumns+`, v.value
		FROM packages p JOIN package_values v ON v.package = p.rowid
		WHERE v.field = ?
		ORDER BY p.id COLLATE NOCASE`, field.String())
	if err != nil {
		return nil, fmt.Errorf("query %s values: %w", field, err)
	}
	defer rows.Close()

	var out []PackageRow
	var last int64 = -1
	for rows.Next() {
		var p PackageRow
		var candidate string
		if err := rows.Scan(&p.RowID, &p.ID, &p.Name, &p.Moniker, &p.Publisher, &p.LatestVersion, &candidate); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		if p.RowID == last || !source.MatchValue(t, candidate, value) {
			continue
		}
		last = p.RowID
		out = append(out, p)
	}
	return out, rows.Err()
}

func (ix *Index) all(ctx context.Context) ([]PackageRow, error) {
	return ix.queryPackages(ctx, `SELECT `+packageColumns+` FROM packages p ORDER BY p.id COLLATE NOCASE`)
}

func (ix *Index) queryPackages(ctx context.Context, query string, args ...any) ([]PackageRow, error) {
	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	var out []PackageRow
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

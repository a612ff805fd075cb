package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/repository"
	"github.com/glorpus-work/repokit/pkg/source"
	"github.com/glorpus-work/repokit/pkg/source/composite"
)

type searchOptions struct {
	id       string
	name     string
	moniker  string
	tag      string
	command  string
	source   string
	behavior string
	match    string
	include  []string
	exact    bool
	count    int
	accept   bool
}

// request turns the query and flags into a search request. The query is
// tried against every query field, field flags become filters and --include
// values become inclusions.
func (o searchOptions) request(query string) (source.SearchRequest, error) {
	matchType := source.MatchSubstring
	if o.match != "" {
		t, ok := source.ParseMatchType(o.match)
		if !ok {
			return source.SearchRequest{}, fmt.Errorf("%w: unknown match type %q", errors.ErrInvalidArgument, o.match)
		}
		matchType = t
	}
	if o.exact {
		matchType = source.MatchExact
	}

	req := source.SearchRequest{MaximumResults: o.count}
	if query != "" {
		req.Query = &source.RequestMatch{Type: matchType, Value: query}
	}
	for _, f := range []struct {
		field source.MatchField
		value string
	}{
		{source.FieldID, o.id},
		{source.FieldName, o.name},
		{source.FieldMoniker, o.moniker},
		{source.FieldTag, o.tag},
		{source.FieldCommand, o.command},
	} {
		if f.value != "" {
			req.Filters = append(req.Filters, source.PackageMatchFilter{Field: f.field, Type: matchType, Value: f.value})
		}
	}
	for _, inc := range o.include {
		name, value, ok := strings.Cut(inc, "=")
		field, known := source.ParseMatchField(strings.TrimSpace(name))
		if !ok || !known || value == "" {
			return source.SearchRequest{}, fmt.Errorf("%w: --include expects FIELD=VALUE with a known field, got %q", errors.ErrInvalidArgument, inc)
		}
		req.Inclusions = append(req.Inclusions, source.PackageMatchFilter{Field: field, Type: matchType, Value: value})
	}
	return req, nil
}

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search for packages",
		Long: `Search for packages across all configured sources.

The query is matched against package id, name, moniker, command and tags.
Installed packages are correlated with their available counterparts, so an
installed package with a newer version available shows both versions.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "filter by package id")
	cmd.Flags().StringVar(&opts.name, "name", "", "filter by package name")
	cmd.Flags().StringVar(&opts.moniker, "moniker", "", "filter by moniker")
	cmd.Flags().StringVar(&opts.tag, "tag", "", "filter by tag")
	cmd.Flags().StringVar(&opts.command, "command", "", "filter by command")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "search only the named source")
	cmd.Flags().StringVar(&opts.behavior, "behavior", "", "packages to search: all, installed or available (default from config)")
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "match type: exact, caseinsensitive, startswith, substring, wildcard, fuzzy or fuzzysubstring")
	cmd.Flags().StringArrayVar(&opts.include, "include", nil, "also return packages whose FIELD matches VALUE (FIELD=VALUE, repeatable)")
	cmd.Flags().BoolVarP(&opts.exact, "exact", "e", false, "match exactly, case-sensitive (same as --match exact)")
	cmd.Flags().BoolVar(&opts.accept, "accept-source-agreements", false, "accept the agreements of the sources searched")
	cmd.Flags().IntVarP(&opts.count, "count", "n", DefaultSearchLimit, "maximum number of results (0 for no limit)")

	return cmd
}

type searchRow struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	Version   string `json:"version"`
	Available string `json:"available,omitempty"`
	Source    string `json:"source,omitempty"`
	Match     string `json:"match"`
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	manager, err := loadManager(cfg)
	if err != nil {
		return err
	}

	behaviorName := cfg.Settings.SearchBehavior
	if opts.behavior != "" {
		behaviorName = opts.behavior
	}
	behavior, ok := composite.ParseSearchBehavior(behaviorName)
	if !ok {
		return fmt.Errorf("%w: unknown search behavior %q", errors.ErrInvalidArgument, behaviorName)
	}
	req, err := opts.request(query)
	if err != nil {
		return err
	}
	if opts.source != "" {
		if _, ok := manager.GetSource(opts.source); !ok {
			return errors.ErrSourceNotFoundWithName(opts.source)
		}
	}

	ctx := cmd.Context()
	opened, err := manager.OpenSource(ctx, opts.source)
	if err != nil {
		return err
	}
	for _, d := range opened.SourcesWithUpdateFailure {
		logger.Warn("Source could not be updated, results may be stale", logger.Fields{"source": d.Name})
	}
	if opened.Source != nil {
		if err := manager.EnsureSourceAgreements(ctx, opened.Source, opts.accept); err != nil {
			_ = opened.Source.Close()
			return agreementsError(err)
		}
	}

	target := opened.Source
	if behavior != composite.SearchAvailablePackages {
		inst, err := manager.OpenPredefinedSource(ctx, repository.PredefinedInstalled)
		if err != nil {
			if target != nil {
				_ = target.Close()
			}
			return err
		}
		target = manager.CreateCompositeSource(inst, opened.Source, behavior)
	}
	if target == nil {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sources configured")
		return nil
	}
	defer func() { _ = target.Close() }()

	result, err := target.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	for _, f := range result.Failures {
		logger.Warn("Source failed during search", logger.Fields{"source": f.SourceName, "error": f.Err})
	}

	rows := make([]searchRow, 0, len(result.Matches))
	for _, m := range result.Matches {
		rows = append(rows, toSearchRow(m))
	}

	out := cmd.OutOrStdout()
	if isJSONOutput() {
		return writeJSON(out, rows)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "No packages found matching input criteria")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tID\tVERSION\tAVAILABLE\tSOURCE\tMATCH")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", truncate(r.Name, MaxNameLength), r.ID, r.Version, r.Available, r.Source, r.Match)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if result.Truncated {
		_, _ = fmt.Fprintf(out, "\nShowing the first %d results, use --count to see more\n", len(rows))
	}
	return nil
}

func toSearchRow(m source.Match) searchRow {
	pkg := m.Package
	row := searchRow{
		Name:  pkg.Property(source.PackagePropertyName),
		ID:    pkg.Property(source.PackagePropertyID),
		Match: fmt.Sprintf("%s: %s", m.Criteria.Field, m.Criteria.Value),
	}

	latest := pkg.LatestAvailableVersion()
	if latest != nil {
		row.Version = latest.Property(source.VersionPropertyVersion)
		row.Source = latest.Property(source.VersionPropertySourceName)
	}
	if installedVersion := pkg.InstalledVersion(); installedVersion != nil {
		row.Version = installedVersion.Property(source.VersionPropertyVersion)
		if pkg.IsUpdateAvailable() {
			row.Available = latest.Property(source.VersionPropertyVersion)
		}
	}
	if m.Criteria.Value == "" {
		row.Match = ""
	}
	return row
}

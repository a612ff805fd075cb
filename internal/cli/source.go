package cli

import (
	stderrors "errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/errors"
	"github.com/glorpus-work/repokit/pkg/repository"
	"github.com/glorpus-work/repokit/pkg/source"
)

// NewSourceCmd creates the source command with subcommands.
func NewSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage sources",
		Long:  "Add, list, update, remove and reset package sources",
	}

	cmd.AddCommand(
		newSourceAddCmd(),
		newSourceListCmd(),
		newSourceUpdateCmd(),
		newSourceRemoveCmd(),
		newSourceResetCmd(),
	)

	return cmd
}

// Number of arguments expected by the add command.
const addCommandArgs = 2

func newSourceAddCmd() *cobra.Command {
	var (
		sourceType string
		accept     bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME ARG",
		Short: "Add a source",
		Long: `Add a new source. ARG is the location of the source: the base URL of a
pre-indexed source or the API root of a REST catalog.`,
		Args: cobra.ExactArgs(addCommandArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := loadManager(cfg)
			if err != nil {
				return err
			}

			added, err := manager.AddSource(cmd.Context(), source.Details{Name: args[0], Type: sourceType, Arg: args[1]})
			if err != nil {
				if p, ok := errors.BlockingPolicy(err); ok {
					return fmt.Errorf("source %s is blocked by the %s policy: %w", args[0], p, err)
				}
				return err
			}
			if err := checkAddedSourceAgreements(cmd, manager, added.Name, accept); err != nil {
				if rerr := manager.RemoveSource(cmd.Context(), added.Name); rerr != nil {
					logger.Warn("Failed to roll back added source", logger.Fields{"source": added.Name, "error": rerr})
				}
				return err
			}
			logger.Success("Source added", logger.Fields{"source": added.Name, "type": added.Type, "identifier": added.Identifier})
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "source type (default: "+source.DefaultType+")")
	cmd.Flags().BoolVar(&accept, "accept-source-agreements", false, "accept the agreements of the new source")
	cmd.Example = `  repokit source add team https://packages.example.com/cache
  repokit source add corp https://catalog.example.com/api --type ` + source.TypeRest

	return cmd
}

// checkAddedSourceAgreements opens the new source and checks or accepts its agreements.
func checkAddedSourceAgreements(cmd *cobra.Command, manager *repository.Manager, name string, accept bool) error {
	opened, err := manager.OpenSource(cmd.Context(), name)
	if err != nil {
		return err
	}
	if opened.Source == nil {
		return errors.ErrSourceNotFoundWithName(name)
	}
	defer func() { _ = opened.Source.Close() }()
	return agreementsError(manager.EnsureSourceAgreements(cmd.Context(), opened.Source, accept))
}

// agreementsError points at the flag that accepts agreements.
func agreementsError(err error) error {
	if stderrors.Is(err, errors.ErrSourceAgreementsNotAccepted) {
		return fmt.Errorf("%w (rerun with --accept-source-agreements to accept them)", err)
	}
	return err
}

type sourceRow struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Arg        string    `json:"arg"`
	Identifier string    `json:"identifier,omitempty"`
	Origin     string    `json:"origin"`
	Trust      string    `json:"trust"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [NAME]",
		Short: "List sources",
		Long:  "List all configured sources, or show one source in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := loadManager(cfg)
			if err != nil {
				return err
			}

			sources := manager.GetCurrentSources()
			if len(args) == 1 {
				d, ok := manager.GetSource(args[0])
				if !ok {
					return errors.ErrSourceNotFoundWithName(args[0])
				}
				sources = []source.Details{d}
			}

			rows := make([]sourceRow, 0, len(sources))
			for _, d := range sources {
				rows = append(rows, sourceRow{
					Name:       d.Name,
					Type:       d.Type,
					Arg:        d.Arg,
					Identifier: d.Identifier,
					Origin:     d.Origin.String(),
					Trust:      d.TrustLevel.String(),
					LastUpdate: d.LastUpdateTime,
				})
			}

			out := cmd.OutOrStdout()
			if isJSONOutput() {
				return writeJSON(out, rows)
			}
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "No sources configured")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, TabWidth, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tARG\tORIGIN\tLAST UPDATE")
			for _, r := range rows {
				updated := "never"
				if !r.LastUpdate.IsZero() {
					updated = r.LastUpdate.Local().Format(time.DateTime)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Type, truncate(r.Arg, MaxArgLength), r.Origin, updated)
			}
			return tw.Flush()
		},
	}
}

func newSourceUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [NAME...]",
		Short: "Update sources",
		Long:  "Refresh the data of the named sources, or of every source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := loadManager(cfg)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				for _, d := range manager.GetCurrentSources() {
					names = append(names, d.Name)
				}
			}

			var errs []error
			for _, name := range names {
				if err := manager.UpdateSource(cmd.Context(), name); err != nil {
					logger.Error("Source update failed", logger.Fields{"source": name, "error": err})
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}
				logger.Success("Source updated", logger.Fields{"source": name})
			}
			return stderrors.Join(errs...)
		},
	}
}

func newSourceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a source",
		Long:  "Remove a source and delete its local data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := loadManager(cfg)
			if err != nil {
				return err
			}

			if err := manager.RemoveSource(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to remove source '%s': %w", args[0], err)
			}
			logger.Success("Source removed", logger.Fields{"source": args[0]})
			return nil
		},
	}
}

func newSourceResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset [NAME]",
		Short: "Reset sources",
		Long: `Drop a source from the list without touching its data, or with --force and
no name, forget every user source and restore the default sources.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" && !force {
				return fmt.Errorf("resetting all sources requires --force: %w", errors.ErrInvalidArgument)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager, err := loadManager(cfg)
			if err != nil {
				return err
			}

			if err := manager.DropSource(cmd.Context(), name); err != nil {
				return err
			}
			if name == "" {
				logger.Success("All sources reset")
			} else {
				logger.Success("Source reset", logger.Fields{"source": name})
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reset every source")

	return cmd
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/repokit/internal/logger"
	"github.com/glorpus-work/repokit/pkg/index"
)

// NewIndexCmd creates the index command.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage pre-indexed sources",
		Long:  `Commands for building pre-indexed sources.`,
	}

	cmd.AddCommand(newIndexBuildCmd())

	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build <manifest-dir> <output-dir>",
		Short: "Build a pre-indexed source from manifests",
		Long: `Build a pre-indexed source from a directory of YAML manifests.

The output directory becomes the source root: serve it over HTTPS (or use the
directory path directly) and add it with 'repokit source add'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestDir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid manifest directory: %w", err)
			}
			outputDir, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid output directory: %w", err)
			}

			gen := index.NewGenerator(manifestDir, outputDir)
			gen.ForceOverwrite = force

			res, err := gen.Generate(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build index: %w", err)
			}

			logger.Debug("Index package written", logger.Fields{"path": res.PackagePath, "hash": res.Hash})
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d packages (%d versions) into %s\n",
				res.Packages, res.Versions, outputDir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing index package")

	cmd.Example = `  # Build a source
  repokit index build ./manifests ./site

  # Rebuild in place
  repokit index build --force ./manifests ./site`

	return cmd
}

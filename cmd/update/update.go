package update

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/cmdutil"
)

const dryRunFlag = "dry-run"

func NewUpdateCommand() *cobra.Command {
	flags := cmdutil.NewFlags()
	var dryRun bool

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Apply pending change sets to the database",
		Long: `Apply every pending change set of the changelog in order.

Each change set runs in its own transaction and is recorded in the tracking
table. With --dry-run the statements are printed instead of executed.

Examples:
  changekit update --changelog db/changelog.xml --url postgres://localhost/app
  changekit update --config changekit.yaml --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cmdutil.Open(cmd.Context(), cmd, flags, dryRun)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Executor.Update(cmd.Context()); err != nil {
				return fmt.Errorf("error updating database: %w", err)
			}
			if !s.Config.DryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			}
			return nil
		},
	}

	cobraflags.RegisterMap(updateCmd, flags)
	updateCmd.Flags().BoolVar(&dryRun, dryRunFlag, false, "Print the statements instead of executing them")
	return updateCmd
}

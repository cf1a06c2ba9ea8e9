package rollback

import (
	"fmt"
	"strconv"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/cmdutil"
)

const dryRunFlag = "dry-run"

func NewRollbackCommand() *cobra.Command {
	flags := cmdutil.NewFlags()
	var dryRun bool

	rollbackCmd := &cobra.Command{
		Use:   "rollback <count>",
		Short: "Roll back the most recently applied change sets",
		Long: `Roll back the last <count> applied change sets, most recent first.

A change set is undone with its explicit rollback block or, without one, with
the inverse of each of its changes. Change sets whose changes cannot be undone
stop the rollback.

Examples:
  changekit rollback 1 --changelog db/changelog.xml --url sqlite:///var/lib/app.db
  changekit rollback 3 --config changekit.yaml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil || count < 1 {
				return fmt.Errorf("count must be a positive number, got %q", args[0])
			}

			s, err := cmdutil.Open(cmd.Context(), cmd, flags, dryRun)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Executor.Rollback(cmd.Context(), count); err != nil {
				return fmt.Errorf("error rolling back: %w", err)
			}
			if !s.Config.DryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d change set(s)\n", count)
			}
			return nil
		},
	}

	cobraflags.RegisterMap(rollbackCmd, flags)
	rollbackCmd.Flags().BoolVar(&dryRun, dryRunFlag, false, "Print the statements instead of executing them")
	return rollbackCmd
}

package status

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/cmdutil"
	"github.com/stokaro/changekit/migration/executor"
)

func NewStatusCommand() *cobra.Command {
	flags := cmdutil.NewFlags()

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which change sets have been applied",
		Long: `Compare the changelog with the tracking table and list every change set
with its state: ran, pending, changed (edited after it ran) or skipped (meant for
another database). The database is not modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cmdutil.Open(cmd.Context(), cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.Close()

			status, err := s.Executor.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("error reading status: %w", err)
			}
			printStatus(cmd, s.ChangeLog.PhysicalPath, s.Executor.History().Table(), status)
			return nil
		},
	}

	cobraflags.RegisterMap(statusCmd, flags)
	return statusCmd
}

func printStatus(cmd *cobra.Command, changeLog, table string, status *executor.Status) {
	out := cmd.OutOrStdout()
	pending := status.Pending()

	fmt.Fprintf(out, "Changelog: %s\n", changeLog)
	fmt.Fprintf(out, "%d change set(s), %d to apply\n", len(status.ChangeSets), len(pending))
	fmt.Fprintln(out)

	for _, cs := range status.ChangeSets {
		line := fmt.Sprintf("  %-8s %s", cs.State, cs.ChangeSet.Key())
		if cs.WillRun && cs.State != executor.StatePending {
			line += " (runs again)"
		}
		if cs.State == executor.StateChanged && !cs.WillRun {
			line += " (checksum mismatch)"
		}
		fmt.Fprintln(out, line)
	}

	if len(status.Unknown) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Applied change sets missing from the changelog (%s):\n", table)
		for _, r := range status.Unknown {
			fmt.Fprintf(out, "  %s\n", r.Key())
		}
	}

	fmt.Fprintln(out)
	if status.HasPendingChanges {
		fmt.Fprintln(out, "Database needs an update")
	} else {
		fmt.Fprintln(out, "Database is up to date")
	}
}

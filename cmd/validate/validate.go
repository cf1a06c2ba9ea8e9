package validate

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/cmdutil"
)

func NewValidateCommand() *cobra.Command {
	flags := cmdutil.NewFlags()

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the changelog for errors",
		Long: `Validate every change set of the changelog against the target database and
report change sets that were edited after they were applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := cmdutil.Open(cmd.Context(), cmd, flags, false)
			if err != nil {
				return err
			}
			defer s.Close()

			errs, err := s.Executor.Validate(cmd.Context())
			if err != nil {
				return fmt.Errorf("error validating changelog: %w", err)
			}

			out := cmd.OutOrStdout()
			if !errs.HasErrors() {
				fmt.Fprintln(out, "No validation errors found")
				return nil
			}
			for _, msg := range errs.Errors() {
				fmt.Fprintf(out, "  - %s\n", msg)
			}
			return fmt.Errorf("changelog %s has %d validation error(s)", s.ChangeLog.PhysicalPath, len(errs.Errors()))
		},
	}

	cobraflags.RegisterMap(validateCmd, flags)
	return validateCmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/checksum"
	"github.com/stokaro/changekit/cmd/rollback"
	"github.com/stokaro/changekit/cmd/status"
	"github.com/stokaro/changekit/cmd/update"
	"github.com/stokaro/changekit/cmd/validate"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "changekit",
		Short: "Apply versioned database changes from a changelog",
		Long: `changekit applies the change sets of an XML or YAML changelog to a database,
tracks them in a table and rolls them back on request.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(update.NewUpdateCommand())
	rootCmd.AddCommand(rollback.NewRollbackCommand())
	rootCmd.AddCommand(status.NewStatusCommand())
	rootCmd.AddCommand(validate.NewValidateCommand())
	rootCmd.AddCommand(checksum.NewChecksumCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

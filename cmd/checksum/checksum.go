package checksum

import (
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/cmd/cmdutil"
)

func NewChecksumCommand() *cobra.Command {
	flags := cmdutil.NewFlags()

	checksumCmd := &cobra.Command{
		Use:   "checksum [file::id::author]",
		Short: "Print the checksums of change sets",
		Long: `Print the checksum of every change set of the changelog, or of the change set
with the given identifier. No database connection is needed.

Examples:
  changekit checksum --changelog db/changelog.xml
  changekit checksum changelog.xml::1::dev --changelog db/changelog.xml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdutil.LoadConfig(flags)
			if err != nil {
				return err
			}
			logger, err := cmdutil.NewLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}
			cl, err := cmdutil.LoadChangeLog(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			found := false
			for _, cs := range cl.ChangeSets {
				if len(args) == 1 && cs.Key() != args[0] {
					continue
				}
				found = true
				fmt.Fprintf(out, "%s %s\n", cs.CheckSum(), cs.Key())
			}
			if len(args) == 1 && !found {
				return fmt.Errorf("change set %s not found in %s", args[0], cl.PhysicalPath)
			}
			return nil
		},
	}

	cobraflags.RegisterMap(checksumCmd, flags)
	return checksumCmd
}

package fastcert

import (
	"context"
	"fmt"

	"github.com/fastcertdev/fastcert/ui"
	"github.com/spf13/cobra"
)

var CmdRoot = NewCmd[ShowHelp](nil, "fastcert", func(cmd *cobra.Command) {
	cfg := ConfigFromCmd(cmd)

	cmd.PersistentFlags().StringVar(&cfg.CARoot, "caroot", Defaults.CARoot, "Directory holding the root certificate and key.")
	cmd.PersistentFlags().BoolVarP(&cfg.Quiet, "quiet", "q", Defaults.Quiet, "Suppress step output.")
})

var CmdVersion = NewCmd[ShowVersion](CmdRoot, "version", func(cmd *cobra.Command) {})

type ShowVersion struct{}

func (ShowVersion) Run(ctx context.Context, drv *ui.Driver, args []string) error {
	fmt.Fprintln(drv.Out, "fastcert "+VersionString())
	return nil
}

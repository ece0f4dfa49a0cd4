package ca

import (
	"context"
	"fmt"

	"github.com/fastcertdev/fastcert"
	"github.com/fastcertdev/fastcert/ui"
	"github.com/spf13/cobra"
)

var CmdCARoot = fastcert.NewCmd[ShowRoot](fastcert.CmdRoot, "root", func(cmd *cobra.Command) {
	cmd.Args = cobra.NoArgs
})

// ShowRoot prints the resolved CA root directory.
type ShowRoot struct{}

func (ShowRoot) Run(ctx context.Context, drv *ui.Driver, args []string) error {
	cfg := fastcert.ConfigFromContext(ctx)

	root := cfg.CARoot
	if root == "" {
		root = DefaultRoot()
	}
	if root == "" {
		return fmt.Errorf("no default CA root directory, set CAROOT")
	}

	drv.Printf("%s\n", root)
	return nil
}

/*
Package trust synchronizes the local root CA with the trust stores on
this machine: the operating system store, NSS certificate databases,
and Java keystores.
*/
package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastcertdev/fastcert"
	"github.com/fastcertdev/fastcert/ca"
	"github.com/fastcertdev/fastcert/truststore"
	"github.com/fastcertdev/fastcert/ui"
	"github.com/spf13/cobra"
)

var CmdInstall = fastcert.NewCmd[Install](fastcert.CmdRoot, "install", func(cmd *cobra.Command) {
	cfg := fastcert.ConfigFromCmd(cmd)

	cmd.Args = cobra.NoArgs

	cmd.Flags().BoolVar(&cfg.Trust.NoSudo, "no-sudo", fastcert.Defaults.Trust.NoSudo, "Disable sudo prompts.")
	cmd.Flags().StringSliceVar(&cfg.Trust.Stores, "trust-stores", fastcert.Defaults.Trust.Stores, "Trust stores to synchronize.")
})

var CmdUninstall = fastcert.NewCmd[Uninstall](fastcert.CmdRoot, "uninstall", func(cmd *cobra.Command) {
	cfg := fastcert.ConfigFromCmd(cmd)

	cmd.Args = cobra.NoArgs

	cmd.Flags().BoolVar(&cfg.Trust.NoSudo, "no-sudo", fastcert.Defaults.Trust.NoSudo, "Disable sudo prompts.")
	cmd.Flags().StringSliceVar(&cfg.Trust.Stores, "trust-stores", fastcert.Defaults.Trust.Stores, "Trust stores to synchronize.")
})

type Install struct{}

func (Install) Run(ctx context.Context, drv *ui.Driver, args []string) error {
	cfg := fastcert.ConfigFromContext(ctx)

	root, err := resolveRoot(cfg)
	if err != nil {
		return err
	}

	authority, err := ca.LoadOrCreate(root)
	if err != nil {
		return fmt.Errorf("failed to load or create the local CA: %w", err)
	}

	drv.Headerf("Install the local root CA")
	drv.Hintf("using the root CA in %s", root)

	stores, err := Stores(cfg)
	if err != nil {
		return err
	}

	report := InstallCA(ctx, authority.Handle(), stores)
	renderReport(drv, report)

	if !report.OK() {
		return errors.New("failed to install the local root CA in one or more trust stores")
	}
	return nil
}

type Uninstall struct{}

func (Uninstall) Run(ctx context.Context, drv *ui.Driver, args []string) error {
	cfg := fastcert.ConfigFromContext(ctx)

	root, err := resolveRoot(cfg)
	if err != nil {
		return err
	}

	authority, err := ca.Load(root)
	if errors.Is(err, ca.ErrRootNotFound) {
		drv.Printf("no local root CA found in %s, nothing to uninstall\n", root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load the local CA: %w", err)
	}

	drv.Headerf("Uninstall the local root CA")
	drv.Hintf("using the root CA in %s", root)

	stores, err := Stores(cfg)
	if err != nil {
		return err
	}

	report := UninstallCA(ctx, authority.Handle(), stores)
	renderReport(drv, report)

	if !report.OK() {
		return errors.New("failed to uninstall the local root CA from one or more trust stores")
	}
	return nil
}

func resolveRoot(cfg *fastcert.Config) (string, error) {
	root := cfg.CARoot
	if root == "" {
		root = ca.DefaultRoot()
	}
	if root == "" {
		return "", errors.New("no default CA root directory, set CAROOT")
	}
	return root, nil
}

func renderReport(drv *ui.Driver, report *Report) {
	for _, res := range report.Results {
		desc := res.Store.Description()

		switch res.Status {
		case StatusFailed:
			drv.Alertf("%s: %s: %v", desc, res.Status, res.Err)
		case StatusSkipped:
			if res.Err != nil {
				drv.Hintf("%s: %s: %v", desc, res.Status, res.Err)
				renderInstallHelp(drv, res.Err)
			} else {
				drv.Hintf("%s: %s", desc, res.Status)
			}
		default:
			drv.Donef("%s: %s", desc, res.Status)
		}
	}
}

func renderInstallHelp(drv *ui.Driver, err error) {
	var nerr truststore.NSSError
	if errors.As(err, &nerr) && nerr.CertutilInstallHelp != "" {
		drv.Hintf("install certutil with %s and try again", ui.Emphasize(nerr.CertutilInstallHelp))
	}
}

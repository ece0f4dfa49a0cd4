package cert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fastcertdev/fastcert"
	"github.com/fastcertdev/fastcert/ca"
	"github.com/fastcertdev/fastcert/ui"
	"github.com/spf13/cobra"
)

var CmdIssue = fastcert.NewCmd[Issue](fastcert.CmdRoot, "issue", func(cmd *cobra.Command) {
	cfg := fastcert.ConfigFromCmd(cmd)

	cmd.Args = cobra.MinimumNArgs(1)

	cmd.Flags().BoolVar(&cfg.Issue.ECDSA, "ecdsa", fastcert.Defaults.Issue.ECDSA, "Generate an ECDSA P-256 key instead of RSA-2048.")
	cmd.Flags().BoolVar(&cfg.Issue.Client, "client", fastcert.Defaults.Issue.Client, "Add client authentication to the extended key usages.")
	cmd.Flags().BoolVar(&cfg.Issue.PKCS12, "pkcs12", fastcert.Defaults.Issue.PKCS12, "Also write a PKCS#12 bundle.")

	cmd.Flags().StringVar(&cfg.Issue.CertFile, "cert-file", fastcert.Defaults.Issue.CertFile, "Certificate output path.")
	cmd.Flags().StringVar(&cfg.Issue.KeyFile, "key-file", fastcert.Defaults.Issue.KeyFile, "Private key output path.")
	cmd.Flags().StringVar(&cfg.Issue.P12File, "p12-file", fastcert.Defaults.Issue.P12File, "PKCS#12 output path.")
})

type Issue struct{}

func (Issue) Run(ctx context.Context, drv *ui.Driver, args []string) error {
	cfg := fastcert.ConfigFromContext(ctx)

	root := cfg.CARoot
	if root == "" {
		root = ca.DefaultRoot()
	}
	if root == "" {
		return errors.New("no default CA root directory, set CAROOT")
	}

	authority, err := ca.LoadOrCreate(root)
	if err != nil {
		return fmt.Errorf("failed to load or create the local CA: %w", err)
	}

	iss := &Issuer{CA: authority}

	leaf, err := iss.Issue(Request{
		Hosts: args,

		ECDSA:  cfg.Issue.ECDSA,
		Client: cfg.Issue.Client,
		PKCS12: cfg.Issue.PKCS12,
	})
	if err != nil {
		return err
	}

	certFile, keyFile, p12File := leaf.Files(".", cfg.Issue.Client)
	if cfg.Issue.CertFile != "" {
		certFile = cfg.Issue.CertFile
	}
	if cfg.Issue.KeyFile != "" {
		keyFile = cfg.Issue.KeyFile
	}
	if cfg.Issue.P12File != "" {
		p12File = cfg.Issue.P12File
	}

	if err := leaf.WriteFiles(certFile, keyFile, p12File); err != nil {
		return err
	}

	drv.Headerf("Issue a certificate")
	drv.Hintf("for %s", ui.Emphasize(strings.Join(args, ", ")))
	drv.Donef("certificate %s", certFile)
	drv.Donef("private key %s", keyFile)
	if leaf.PKCS12 != nil {
		drv.Donef("PKCS#12 bundle %s", p12File)
	}
	drv.Hintf("valid until %s", leaf.Certificate.NotAfter.Format("2 January 2006"))

	return nil
}

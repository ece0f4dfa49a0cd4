package fastcert

import (
	"context"
	"errors"
	"sync"

	"github.com/MakeNowJust/heredoc"
	"github.com/fastcertdev/fastcert/ui"
	"github.com/spf13/cobra"
)

type CmdDef struct {
	Name string

	Use   string
	Short string
	Long  string

	SubDefs []CmdDef
}

var rootDef = CmdDef{
	Name: "fastcert",

	Use:   "fastcert <command> [flags]",
	Short: "fastcert - locally-trusted development certificates",
	Long: heredoc.Doc(`
		fastcert maintains a local certificate authority and issues certificates for
		development use.

		The root CA can be synchronized with the system trust store, NSS browser
		certificate databases, and Java keystores so that issued certificates are
		trusted without warnings.
	`),

	SubDefs: []CmdDef{
		{
			Name: "install",

			Use:   "install [flags]",
			Short: "Install the local root CA into trust stores",
			Long: heredoc.Doc(`
				Create the local root CA if needed and install it into every trust store
				discovered on this system.

				Trust stores that are already up to date are left untouched. Stores whose
				external tooling is unavailable are skipped with a warning.
			`),
		},
		{
			Name: "uninstall",

			Use:   "uninstall [flags]",
			Short: "Remove the local root CA from trust stores",
			Long: heredoc.Doc(`
				Remove the local root CA from every trust store discovered on this system.

				The CA files themselves are left in place; delete the CA root directory to
				destroy the CA.
			`),
		},
		{
			Name: "issue",

			Use:   "issue <host> ... [flags]",
			Short: "Issue a certificate for the given hosts",
			Long: heredoc.Doc(`
				Issue a certificate signed by the local root CA.

				Hosts may be domain names, wildcards like "*.example.test", IP addresses,
				email addresses, or URIs. The certificate and key are written as PEM files
				named after the first host.
			`),
		},
		{
			Name: "root",

			Use:   "root",
			Short: "Print the CA root directory",
		},
		{
			Name: "version",

			Use:   "version",
			Short: "Show version info",
		},
	},
}

var cmdDefByCommands = map[*cobra.Command]*CmdDef{}

// Runner is the command surface: args are the positional arguments left
// after flag parsing.
type Runner interface {
	Run(ctx context.Context, drv *ui.Driver, args []string) error
}

// ErrShowHelp signals that a command has no behavior of its own and the
// help text should be shown instead.
var ErrShowHelp = errors.New("show help")

type ShowHelp struct{}

func (ShowHelp) Run(ctx context.Context, drv *ui.Driver, args []string) error { return ErrShowHelp }

var (
	cmdInitOnce sync.Once
	cmdConfig   *Config
	cmdContext  context.Context
)

// every command shares one Config and one context, so the flags bound
// during registration and the values read inside RunE agree.
func cmdInit() {
	cfg, err := LoadConfig()
	if err != nil {
		panic(err)
	}

	cmdConfig = cfg
	cmdContext = ContextWithConfig(context.Background(), cfg)
}

func NewCmd[T Runner](parent *cobra.Command, name string, fn func(*cobra.Command)) *cobra.Command {
	cmdInitOnce.Do(cmdInit)

	var def, parentDef *CmdDef
	if parent != nil {
		var ok bool
		if parentDef, ok = cmdDefByCommands[parent]; !ok {
			panic("unregistered parent command")
		}
		for _, sub := range parentDef.SubDefs {
			if sub.Name == name {
				def = &sub
				break
			}
		}
		if def == nil {
			panic("missing subcommand definition")
		}
	} else {
		def = &rootDef
	}

	cmd := &cobra.Command{
		Use:   def.Use,
		Short: def.Short,
		Long:  def.Long,

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	if parent != nil {
		parent.AddCommand(cmd)
	}

	cmd.SetContext(cmdContext)

	fn(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := ConfigFromCmd(cmd)
		if cfg.Test.SkipRunE {
			return nil
		}

		drv := ui.NewDriver(cfg.Quiet)

		var t T
		if err := t.Run(cmd.Context(), drv, args); err != nil {
			if errors.Is(err, ErrShowHelp) {
				return cmd.Help()
			}
			return err
		}
		return nil
	}

	cmdDefByCommands[cmd] = def
	return cmd
}

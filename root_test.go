package fastcert_test

import (
	"slices"
	"testing"

	"github.com/fastcertdev/fastcert"

	_ "github.com/fastcertdev/fastcert/ca"
	_ "github.com/fastcertdev/fastcert/cert"
	_ "github.com/fastcertdev/fastcert/trust"
)

func TestCommandTree(t *testing.T) {
	var names []string
	for _, cmd := range fastcert.CmdRoot.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"install", "uninstall", "issue", "root", "version"} {
		if !slices.Contains(names, want) {
			t.Errorf("want %q in command tree, got %v", want, names)
		}
	}
}

func TestExecuteSharesConfig(t *testing.T) {
	cfg := fastcert.ConfigFromCmd(fastcert.CmdRoot)
	cfg.Test.SkipRunE = true

	fastcert.CmdRoot.SetArgs([]string{"version"})
	if err := fastcert.Execute(); err != nil {
		t.Fatal(err)
	}

	for _, cmd := range fastcert.CmdRoot.Commands() {
		if got := fastcert.ConfigFromCmd(cmd); got != cfg {
			t.Errorf("%q: want every command to share one Config", cmd.Name())
		}
	}
}

func TestVersionString(t *testing.T) {
	if got := fastcert.VersionString(); got == "" {
		t.Error("want a non-empty version string")
	}
}

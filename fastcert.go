// Package fastcert is the shared core of the fastcert CLI: configuration,
// command scaffolding, and version information.
package fastcert

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var Version = struct {
	Version, Commit, Date string

	Os, Arch string
}{
	Version: "dev",
	Commit:  "none",
	Date:    "unknown",
	Os:      runtime.GOOS,
	Arch:    runtime.GOARCH,
}

func VersionString() string {
	return fmt.Sprintf("%s (%s/%s) Commit: %s BuildDate: %s", Version.Version, Version.Os, Version.Arch, Version.Commit, Version.Date)
}

type ContextKey string

func ConfigFromContext(ctx context.Context) *Config {
	return ctx.Value(ContextKey("Config")).(*Config)
}

func ConfigFromCmd(cmd *cobra.Command) *Config {
	return ConfigFromContext(cmd.Context())
}

func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ContextKey("Config"), cfg)
}

// Execute runs the root command with the context every command was
// registered under, so ConfigFromCmd resolves the same Config the
// flags were bound to.
func Execute() error {
	return CmdRoot.Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI is the root command structure.
type CLI struct {
	Config   string `help:"Path to the user config file" type:"path"`
	Profile  string `help:"Approval profile to run under"`
	LogLevel string `default:"warn" help:"Log level (debug, info, warn, error)"`

	Tools   ToolsCmd   `cmd:"" help:"Inspect the tools a profile exposes"`
	Exec    ExecCmd    `cmd:"" help:"Execute a single tool call through the approval pipeline"`
	Fork    ForkCmd    `cmd:"" help:"Fork a stored conversation at a message or tool call"`
	Migrate MigrateCmd `cmd:"" help:"Database migrations"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("steward"),
		kong.Description("Approval-gated tool execution for coding agents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

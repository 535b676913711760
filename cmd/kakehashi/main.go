package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// cliOptions are the flags shared by every non-serve command.
type cliOptions struct {
	server     string
	jsonOutput bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{
		server: defaultServer(),
	}

	root := &cobra.Command{
		Use:           "kakehashi",
		Short:         "MCP gateway aggregating tools from multiple backend servers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", opts.server,
		"admin API base URL of a running gateway (env KAKEHASHI_SERVER)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newServeCmd(),
		newInfoCmd(&opts),
		newBackendCmd(&opts),
		newToolsCmd(&opts),
		newMetricsCmd(&opts),
	)

	return root
}

func defaultServer() string {
	if v := os.Getenv("KAKEHASHI_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8913"
}

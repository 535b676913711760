package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kakehashi/internal/adminclient"
	"github.com/ashita-ai/kakehashi/internal/model"
)

func newBackendCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Manage backend MCP servers",
	}
	cmd.AddCommand(
		newBackendListCmd(opts),
		newBackendAddCmd(opts),
		newBackendRemoveCmd(opts),
		newBackendEnableCmd(opts),
		newBackendDisableCmd(opts),
		newBackendRefreshCmd(opts),
	)
	return cmd
}

func newBackendListCmd(opts *cliOptions) *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			backends, err := client.ListBackends(cmd.Context(), enabledOnly)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(backends)
			}

			table(func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "NAME\tURL\tENABLED\tCONNECTED\tPREFIX\tMOUNT")
				for _, b := range backends {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
						b.Name, b.URL, yn(b.Enabled), yn(b.Connected),
						b.EffectivePrefix(), yn(b.MountEnabled))
				}
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only enabled backends")
	return cmd
}

func newBackendAddCmd(opts *cliOptions) *cobra.Command {
	var (
		url          string
		prefix       string
		timeout      float64
		disabled     bool
		mountEnabled bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a backend and fetch its tool catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}

			req := model.CreateBackendRequest{
				Name:         args[0],
				URL:          url,
				Prefix:       prefix,
				MountEnabled: &mountEnabled,
			}
			if disabled {
				enabled := false
				req.Enabled = &enabled
			}
			if timeout > 0 {
				req.Timeout = &timeout
			}

			status, err := client.CreateBackend(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(status)
			}

			fmt.Printf("backend %s added (connected: %s)\n", status.Name, yn(status.Connected))
			if status.Enabled && !status.Connected {
				fmt.Println("warning: backend is enabled but unreachable; run 'backend refresh' once it is up")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "backend MCP endpoint URL (required)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "tool name prefix (defaults to the backend name)")
	cmd.Flags().Float64Var(&timeout, "timeout", 0, "per-call upstream timeout in seconds")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register without connecting")
	cmd.Flags().BoolVar(&mountEnabled, "mount", true, "expose a per-backend mount endpoint")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func newBackendRemoveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Disconnect and delete a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			if err := client.DeleteBackend(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("backend %s removed\n", args[0])
			return nil
		},
	}
}

func newBackendEnableCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a backend and attempt to connect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			status, err := client.EnableBackend(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(status)
			}
			fmt.Printf("backend %s enabled (connected: %s)\n", status.Name, yn(status.Connected))
			return nil
		},
	}
}

func newBackendDisableCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disconnect and disable a backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			status, err := client.DisableBackend(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(status)
			}
			fmt.Printf("backend %s disabled\n", status.Name)
			return nil
		},
	}
}

func newBackendRefreshCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <name>",
		Short: "Re-fetch a backend's tool catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			resp, err := client.RefreshBackend(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(resp)
			}
			fmt.Printf("backend %s: %d tools\n", resp.BackendName, resp.ToolsCount)
			for _, name := range resp.Tools {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}
}

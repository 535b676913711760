package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kakehashi/internal/adminclient"
)

func newInfoCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show gateway identity and object counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			info, err := client.Info(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(info)
			}

			fmt.Printf("%s %s\n", info.Name, info.Version)
			fmt.Printf("backends:  %d (%d connected)\n", info.Backends, info.BackendsConnected)
			fmt.Printf("tools:     %d\n", info.Tools)
			fmt.Printf("calls:     %d\n", info.Calls)
			return nil
		},
	}
}

func newToolsCmd(opts *cliOptions) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the aggregated tool catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}
			tools, err := client.ListTools(cmd.Context(), backend)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(tools)
			}

			table(func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "PREFIXED NAME\tBACKEND\tDESCRIPTION")
				for _, t := range tools {
					fmt.Fprintf(w, "%s\t%s\t%s\n", t.PrefixedName, t.BackendName, truncateStr(t.Description, 60))
				}
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "only tools from this backend")
	return cmd
}

func newMetricsCmd(opts *cliOptions) *cobra.Command {
	var (
		backend string
		tool    string
		period  string
		byTool  bool
		sortBy  string
		order   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show call metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := adminclient.New(opts.server)
			if err != nil {
				return err
			}

			if byTool {
				resp, err := client.ToolMetrics(cmd.Context(), sortBy, order, limit, period)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(resp)
				}

				table(func(w *tabwriter.Writer) {
					fmt.Fprintln(w, "BACKEND\tTOOL\tCALLS\tERRORS\tSUCCESS\tAVG\tP95\tLAST CALLED")
					for _, t := range resp.Tools {
						fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%.0fms\t%s\t%s\n",
							t.BackendName, t.ToolName, t.TotalCalls, t.ErrorCount,
							t.SuccessRate*100, t.AvgLatencyMs, fmtLatency(t.P95LatencyMs),
							t.LastCalledAt.Format("2006-01-02 15:04:05"))
					}
				})
				return nil
			}

			resp, err := client.Metrics(cmd.Context(), backend, tool, period)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(resp)
			}

			fmt.Printf("period:       %s\n", resp.Period)
			fmt.Printf("total calls:  %d\n", resp.TotalCalls)
			fmt.Printf("success:      %d (%.1f%%)\n", resp.SuccessCount, resp.SuccessRate*100)
			fmt.Printf("errors:       %d\n", resp.ErrorCount)
			fmt.Printf("latency:      avg %.0fms  min %dms  max %dms\n",
				resp.AvgLatencyMs, resp.MinLatencyMs, resp.MaxLatencyMs)
			fmt.Printf("percentiles:  p50 %s  p95 %s  p99 %s\n",
				fmtLatency(resp.P50LatencyMs), fmtLatency(resp.P95LatencyMs), fmtLatency(resp.P99LatencyMs))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "filter by backend name")
	cmd.Flags().StringVar(&tool, "tool", "", "filter by bare tool name")
	cmd.Flags().StringVar(&period, "period", "", "time window: Nm, Nh, Nd, or all")
	cmd.Flags().BoolVar(&byTool, "tools", false, "per-tool breakdown")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "breakdown sort key (total_calls, error_count, avg_latency_ms, p95_latency_ms, last_called_at)")
	cmd.Flags().StringVar(&order, "order", "", "breakdown sort order (asc, desc)")
	cmd.Flags().IntVar(&limit, "limit", 0, "breakdown row limit")
	return cmd
}

func truncateStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

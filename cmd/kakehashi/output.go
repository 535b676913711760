package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
)

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table runs fn against a tabwriter flushed to stdout.
func table(fn func(w *tabwriter.Writer)) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fn(w)
	_ = w.Flush()
}

// yn renders a boolean as yes/no for table output.
func yn(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// fmtLatency renders an optional latency value.
func fmtLatency(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *ms)
}

// Package main is the entry point of the gift draw load generator. It has
// two scenarios:
//
//   - draw:   fire concurrent POST /api/draw requests with generated groups
//   - reveal: draw, redeem every giver's reveal code on the reveal server,
//     and measure how long assignments take to arrive
//
// Usage:
//
//	drawload <command> [options]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootOptions holds flags shared by all commands.
type rootOptions struct {
	DrawURL string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "drawload",
		Short: "Load generator for the gift draw services",
	}

	cmd.PersistentFlags().StringVar(&opts.DrawURL, "url", "http://localhost:5000/api/draw", "draw endpoint URL")

	cmd.AddCommand(newDrawCommand(opts))
	cmd.AddCommand(newRevealCommand(opts))

	return cmd
}

// Command forge is the engine's entrypoint: a single cobra-based `serve`
// subcommand that wires config, a model loader, the session registry and
// the HTTP surface together (spec §6, SPEC_FULL.md §6).
//
// Grounded on the teacher's cmd/cmd.go (root command construction,
// cobra.EnableCommandSorting = false, SilenceUsage/SilenceErrors) and
// cmd/cmd_serve.go (RunServer's listen-then-serve shape), trimmed to the
// one subcommand this engine exposes — the rest of the teacher's CLI
// (create/show/run/pull/push/list/ps/copy/signin/signout) has no
// counterpart in a library with no model registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:           "forge",
		Short:         "Causal transformer inference engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	return root
}

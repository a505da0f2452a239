package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portmux/portmux/internal/errx"
	"github.com/portmux/portmux/pkg/shadow"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <workspace> [...]",
	Short: "Print the shadow loopback address for workspace names",
	Long: `Print the shadow loopback address each workspace name maps to.

The mapping is a pure function of the name; this command computes it the
same way the shim and the proxy do, with no registry lookup.`,
	Example: `  portmux resolve workspace-1
  portmux resolve frontend backend`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	for _, name := range args {
		addr, err := shadow.Addr(name)
		if err != nil {
			return errx.With(ErrResolveWorkspace, " %q: %w", name, err)
		}
		fmt.Printf("%s\t%s\n", name, addr)
	}
	return nil
}

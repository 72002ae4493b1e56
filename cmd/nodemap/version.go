package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/nodemap/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nodemap version",
		Args:  cobra.NoArgs,
		// No config or logging needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nodemap %s\n", version.Version)
		},
	}
}

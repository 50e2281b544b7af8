package main

import (
	"fmt"

	"github.com/clickpkg/go-clicksandbox/landlock"
	"github.com/spf13/cobra"
)

func newABIVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abi-version",
		Short: "Print the Landlock ABI version of the running kernel",
		Long: `Print the Landlock ABI version of the running kernel.

0 means Landlock is unavailable; "run --landlock" then enforces nothing
beyond the system call sandbox.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			// ABIVersion reports 0 alongside any error.
			v, _ := landlock.ABIVersion()
			fmt.Fprintln(cmd.OutOrStdout(), v)
		},
	}
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type checkCmd struct {
	cobra.Command
	baseDir string
}

func newCheckCmd(lookupEnv func(string) (string, bool)) *checkCmd {
	cmd := checkCmd{
		Command: cobra.Command{
			Use:   "check --base-dir DIR PATH...",
			Short: "Report whether paths are inside the sandbox root",
			Long: `Report for every PATH whether a write to it would be permitted inside
the sandbox rooted at DIR. Relative paths are taken relative to the
current directory. The exit status is 1 if any path is outside.`,
			Args: cobra.MinimumNArgs(1),
		},
	}

	base, _ := lookupEnv(interpose.EnvBaseDir)
	cmd.Flags().StringVar(&cmd.baseDir, "base-dir", base, "sandbox root (defaults to $"+interpose.EnvBaseDir+")")
	cmd.RunE = cmd.run

	return &cmd
}

func (c *checkCmd) run(cmd *cobra.Command, args []string) error {
	if c.baseDir == "" {
		return fmt.Errorf("no sandbox root: set --base-dir or %s", interpose.EnvBaseDir)
	}
	base, err := filepath.Abs(c.baseDir)
	if err != nil {
		return err
	}

	outside := 0
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		verdict := color.GreenString("inside")
		if !interpose.Contains(base, path) {
			verdict = color.RedString("outside")
			outside++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", verdict, path)
	}
	if outside > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// Command click-sandbox runs a package unpacking tool so that it can
// only write beneath a sandbox root.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/clickpkg/go-clicksandbox/trace"
	"github.com/spf13/cobra"
)

var version = "dev"

// exitError carries an exit status out of a command without a message.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	// The binary is re-executed as the sandbox worker.
	trace.MaybeWorkerInit()
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "click-sandbox",
		Short:         "Confine a package unpacking tool to a sandbox root",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		&newRunCmd(os.LookupEnv).Command,
		&newCheckCmd(os.LookupEnv).Command,
		newABIVersionCmd(),
	)
	return root
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return 0
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(stderr, "click-sandbox: %v\n", err)
	return 1
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"smartcheck/internal/core/domain/ports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code. Exposed
// for testing.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ports.ErrAuthExpired):
		fmt.Fprintln(stderr, "session expired, run `smartcheck login`")
		return 3
	case errors.Is(err, errNotLoggedIn):
		fmt.Fprintln(stderr, "not logged in, run `smartcheck login`")
		return 3
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

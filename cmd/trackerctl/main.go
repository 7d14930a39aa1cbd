// Command trackerctl reads and updates tickets from the command line.
//
//	trackerctl issue get PROJ-123
//	trackerctl issue search --project PROJ --status "In Progress"
//	trackerctl issue comment PROJ-123 "Deployed to **staging**."
//	trackerctl profile login work
//
// Connection settings come from the profiles in ~/.config/trackerkit/
// config.yaml and .trackerkit.yaml at the git root. Tokens are read from
// TRACKERKIT_TOKEN or the system keyring.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	err := a.rootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	code := exitCode(err)
	stop()
	os.Exit(code)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	}
	return 1
}

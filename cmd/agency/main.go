package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newRootCommand returns the top-level CLI command with its three
// subcommands: a single-query ask, a background serve loop and a clear
// that removes the session file.
func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "agency",
		Usage: "Autonomous agent orchestrator",
		Commands: []*cli.Command{
			newAskCommand(),
			newServeCommand(),
			newClearCommand(),
		},
	}
}

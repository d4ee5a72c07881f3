package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ProdByBuddha/agency/internal/orch"
	"github.com/ProdByBuddha/agency/internal/reactloop"
)

// newAskCommand returns the ask subcommand: a single in-process round
// trip through the Supervisor.
func newAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a query to the agent orchestrator and print the response",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dangerously-accept-all",
				Aliases: []string{"y"},
				Usage:   "Auto-approve all permissioned tool calls (no confirmation prompts)",
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if query == "" {
		return fmt.Errorf("usage: agency ask <query>")
	}

	var confirm reactloop.PermissionFunc = stdinConfirm
	if cmd.Bool("dangerously-accept-all") {
		confirm = reactloop.AutoApprove
	}

	a, err := buildApp(ctx, confirm)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.supervisor.Handle(ctx, query)
	if err != nil {
		return fmt.Errorf("handle query: %w", err)
	}

	fmt.Println(result.Answer)
	if !result.Success {
		os.Exit(1)
	}
	return nil
}

// stdinConfirm prompts on stderr and reads a y/N answer from stdin.
func stdinConfirm(_ context.Context, call orch.ToolCall) bool {
	fmt.Fprintf(os.Stderr, "\nallow tool call %q? [y/N] ", call.Name)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "y" || answer == "yes"
}

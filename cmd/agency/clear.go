package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ProdByBuddha/agency/internal/config"
	"github.com/ProdByBuddha/agency/internal/sessions"
)

// newClearCommand returns the clear subcommand: it removes the persisted
// session file so the next ask starts with an empty turn history.
func newClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Clear the persisted conversation history",
		Action: func(ctx context.Context, _ *cli.Command) error {
			cfg := config.Load()
			if err := sessions.NewManager(cfg.SessionFilePath).Clear(); err != nil {
				return fmt.Errorf("clear session: %w", err)
			}
			fmt.Println("History cleared.")
			return nil
		},
	}
}

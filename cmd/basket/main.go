package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "basket",
		Usage: "build, margin-check, deploy and track multi-leg order baskets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to the YAML configuration",
				EnvVars: []string{"BASKET_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "override the configured mode (LIVE or DRY_RUN)",
			},
		},
		Before: func(c *cli.Context) error {
			return initializeSystem()
		},
		Commands: []*cli.Command{
			{
				Name:      "margin",
				Usage:     "check the margin required by a basket file",
				ArgsUsage: "<basket.yaml>",
				Action:    marginAction,
			},
			{
				Name:      "deploy",
				Usage:     "deploy a basket file",
				ArgsUsage: "<basket.yaml>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "track the placed orders until settled or interrupted"},
					&cli.BoolFlag{Name: "skip-margin", Usage: "deploy without checking margin first"},
					&cli.BoolFlag{Name: "force", Usage: "deploy even when margin is insufficient"},
				},
				Action: deployAction,
			},
			{
				Name:      "status",
				Usage:     "show the status of orders (default: open orders in the journal)",
				ArgsUsage: "[order-id...]",
				Action:    statusAction,
			},
			{
				Name:      "watch",
				Usage:     "poll order statuses until settled or interrupted",
				ArgsUsage: "[order-id...]",
				Action:    watchAction,
			},
			{
				Name:  "history",
				Usage: "list recent deployments from the journal",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "n", Value: 5, Usage: "number of deployments"},
				},
				Action: historyAction,
			},
		},
	}
}

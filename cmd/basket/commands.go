package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"basket-console/internal/basket"
	"basket-console/internal/monitor"
	"basket-console/internal/session"
	"basket-console/internal/store"

	"github.com/urfave/cli/v2"
)

// withRuntime loads config and dependencies for one command.
func withRuntime(c *cli.Context, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := c.Context
	cfg, err := loadConfig(ctx, c.String("config"), c.String("mode"))
	if err != nil {
		return err
	}
	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close(context.WithoutCancel(ctx))
	return fn(ctx, rt)
}

// loadBasket adds every order and strategy group from the file.
func loadBasket(cfg *store.Config, m *basket.Manager, path string) error {
	if path == "" {
		return errors.New("a basket file is required")
	}
	f, err := store.LoadBasketFile(path)
	if err != nil {
		return err
	}
	for _, spec := range f.Orders {
		o, err := spec.Order(cfg)
		if err != nil {
			return err
		}
		if err := m.Add(o); err != nil {
			return fmt.Errorf("%s: %w", spec.Symbol, err)
		}
	}
	for _, spec := range f.Strategies {
		legs, err := spec.Orders(cfg)
		if err != nil {
			return err
		}
		if _, err := m.AddGroup(legs...); err != nil {
			return fmt.Errorf("%s: %w", spec.Type, err)
		}
	}
	return nil
}

func marginAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		s := rt.newSession(ctx, false, nil)
		defer s.Close()

		if err := loadBasket(rt.cfg, s.Manager(), c.Args().First()); err != nil {
			return err
		}
		printBasket(os.Stdout, s.Manager().Orders())

		report, err := s.Manager().CheckMargin(ctx)
		if err != nil {
			return err
		}
		printMargin(os.Stdout, report)
		if !report.Sufficient {
			return cli.Exit("", 2)
		}
		return nil
	})
}

func deployAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		watch := c.Bool("watch")
		s := rt.newSession(ctx, watch, printRefresh)
		defer s.Close()

		m := s.Manager()
		if err := loadBasket(rt.cfg, m, c.Args().First()); err != nil {
			return err
		}
		printBasket(os.Stdout, m.Orders())

		if !c.Bool("skip-margin") {
			report, err := m.CheckMargin(ctx)
			if err != nil {
				return err
			}
			printMargin(os.Stdout, report)
			if !report.Sufficient && !c.Bool("force") {
				return cli.Exit("not deploying: insufficient margin (use --force to override)", 2)
			}
		}

		summary, err := s.Deploy(ctx)
		if err != nil {
			return err
		}
		printSummary(os.Stdout, summary)

		if !watch {
			return nil
		}
		rt.serveMetrics(ctx)
		rt.startOrderFeed(ctx, m, nil)
		return waitTracking(ctx, s)
	})
}

func statusAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		ids, err := orderIDs(ctx, c, rt)
		if err != nil || len(ids) == 0 {
			return err
		}
		s := rt.newSession(ctx, false, nil)
		defer s.Close()

		statuses, err := s.Manager().RefreshStatus(ctx, ids...)
		if err != nil {
			return err
		}
		printStatuses(os.Stdout, statuses)
		return nil
	})
}

func watchAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		ids, err := orderIDs(ctx, c, rt)
		if err != nil || len(ids) == 0 {
			return err
		}
		s := rt.newSession(ctx, false, printRefresh)
		defer s.Close()

		if err := s.Manager().Resume(ids...); err != nil {
			return err
		}
		rt.serveMetrics(ctx)
		rt.startOrderFeed(ctx, s.Manager(), nil)
		if err := s.Track(); err != nil {
			return err
		}
		return waitTracking(ctx, s)
	})
}

func historyAction(c *cli.Context) error {
	return withRuntime(c, func(ctx context.Context, rt *runtime) error {
		if rt.journal == nil {
			return errors.New("no journal configured (journal.path)")
		}
		recent, err := rt.journal.Recent(ctx, c.Int("n"))
		if err != nil {
			return err
		}
		for _, summary := range recent {
			printSummary(os.Stdout, summary)
		}
		return nil
	})
}

// orderIDs returns the ids given as arguments, else the journal's open orders.
func orderIDs(ctx context.Context, c *cli.Context, rt *runtime) ([]string, error) {
	if c.Args().Present() {
		return c.Args().Slice(), nil
	}
	if rt.journal == nil {
		return nil, errors.New("no order ids given and no journal configured")
	}
	ids, err := rt.journal.OpenOrderIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		fmt.Println("No open orders.")
	}
	return ids, nil
}

// waitTracking blocks until polling ends or the command is interrupted.
func waitTracking(ctx context.Context, s *session.Session) error {
	if !s.Tracking() {
		fmt.Println("Nothing to track.")
		return nil
	}
	select {
	case <-s.Done():
	case <-ctx.Done():
		fmt.Println("Interrupted, tracking stopped.")
	}
	if summary, ok := s.Manager().Summary(); ok {
		printSummary(os.Stdout, summary)
	}
	return nil
}

func printRefresh(r monitor.Result) {
	if r.Err != nil {
		fmt.Fprintf(os.Stderr, "%s refresh failed: %v\n", r.At.Format("15:04:05"), r.Err)
		return
	}
	fmt.Printf("-- %s\n", r.At.Format("15:04:05"))
	printStatuses(os.Stdout, r.Statuses)
}

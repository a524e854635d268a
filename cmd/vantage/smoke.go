package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/ternarybob/vantage/internal/interfaces"
	"github.com/ternarybob/vantage/internal/runner"
	"github.com/ternarybob/vantage/internal/services/wait"
)

func runSmoke(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("smoke", flag.ContinueOnError)
	url := fs.String("url", config.Test.BaseURL, "Page to load")
	workerID := fs.String("worker", "smoke", "Worker id to register the session under")
	if err := fs.Parse(args); err != nil {
		return err
	}

	harness, err := runner.New(config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := harness.Close(); err != nil {
			logger.Warn().Err(err).Msg("Harness close reported errors")
		}
	}()

	session, err := harness.SetUp(ctx, *workerID, "")
	if err != nil {
		return err
	}
	defer harness.TearDown(*workerID)

	logger.Info().
		Str("session_id", session.ID).
		Str("family", string(session.Config.Family)).
		Str("executable", session.Executable.Path).
		Str("source", string(session.Executable.Source)).
		Msg("Session ready")

	if err := session.Navigate(ctx, *url); err != nil {
		return err
	}

	waiter, err := harness.Waiter(*workerID)
	if err != nil {
		return err
	}
	if err := waiter.Until(ctx, session, wait.PageReady()); err != nil {
		return err
	}

	title, err := wait.For(ctx, waiter, session, wait.Func("non-empty title", func(ctx context.Context, page interfaces.PageInspector) (string, bool, error) {
		t, err := page.Title(ctx)
		if err != nil {
			return "", false, err
		}
		return t, t != "", nil
	}))
	if err != nil {
		return err
	}

	fmt.Printf("%s loaded: %q\n", *url, title)
	return nil
}

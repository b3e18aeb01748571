package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/entrhq/mailwright/pkg/browser"
	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/logging"
)

func runSnapshot(ctx context.Context, log *logging.Logger, args []string) error {
	var flags runFlags
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	flags.register(fs)
	out := fs.String("out", "snapshot.html", "Output file")
	wait := fs.Duration("wait", 0, "Wait this long after loading instead of waiting for Enter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	manager, err := config.NewDefaultManager(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	settings := flags.apply(fs, config.BrowserOf(manager).Snapshot())

	bm := browser.NewManager(log.With("browser"))
	if err := bm.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := bm.Shutdown(); err != nil {
			log.Warnf("browser shutdown: %v", err)
		}
	}()

	session, err := bm.Launch(browser.SessionOptions{
		Headless:    settings.Headless,
		UserDataDir: settings.UserDataDir,
	})
	if err != nil {
		return err
	}
	if err := session.Navigate(settings.StartURL, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		return err
	}

	if *wait > 0 {
		select {
		case <-time.After(*wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		fmt.Fprintln(os.Stdout, mutedStyle.Render("open the conversation to capture, then press Enter"))
		if err := waitForEnter(ctx); err != nil {
			return err
		}
	}

	page, err := session.Page()
	if err != nil {
		return err
	}
	html, err := browser.Snapshot(page)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, []byte(html), 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	fmt.Fprintf(os.Stdout, "%s %s %s\n", successStyle.Render("saved"), *out, mutedStyle.Render(browser.SnapshotTitle(html)))
	return nil
}

func waitForEnter(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		var b [1]byte
		_, _ = os.Stdin.Read(b[:])
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/generate"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/server"
)

const defaultAddr = "127.0.0.1:8787"

func runServe(ctx context.Context, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", defaultAddr, "Listen address")
	configPath := fs.String("config", "", "Settings file (default ~/.mailwright/config.json)")
	var overrides config.Overrides
	registerOverrides(fs, &overrides)
	if err := fs.Parse(args); err != nil {
		return err
	}

	manager, err := config.NewDefaultManager(*configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	live := config.NewLive(manager)
	live.SetOverrides(overrides)
	service := generate.NewService(live, generate.WithLogger(log.With("generate")))

	srv := server.New(*addr, server.NewRouter(service, live, log.With("http")), log)
	fmt.Fprintln(os.Stdout, headerStyle.Render("mailwright service")+" "+mutedStyle.Render("listening on http://"+*addr))
	return srv.Run(ctx)
}

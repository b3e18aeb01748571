// Package main provides the mailwright command. It drives a Chromium session
// against a webmail host, injects the reply control into compose editors and
// generates replies through the background service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/mailwright/pkg/logging"
)

const version = "0.1.0" // Version of mailwright

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, log *logging.Logger, args []string) error
}

var commands = []command{
	{name: "run", summary: "Launch the browser and assist with replies", run: runBrowser},
	{name: "serve", summary: "Run the background generation service over HTTP", run: runServe},
	{name: "extract", summary: "Extract the conversation from a saved page snapshot", run: runExtract},
	{name: "snapshot", summary: "Save an annotated snapshot of a live page", run: runSnapshot},
	{name: "settings", summary: "Show or change the assistant settings", run: runSettings},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	name := os.Args[1]
	switch name {
	case "-h", "-help", "--help", "help":
		usage()
		return
	case "-version", "--version", "version":
		fmt.Printf("mailwright v%s\n", version)
		return
	}

	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage()
		os.Exit(2)
	}

	logger := logging.MustLogger("mailwright")
	defer logger.Close()

	// Create context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cancel()
	}()

	if err := cmd.run(ctx, logger.With(cmd.name), os.Args[2:]); err != nil {
		cancel()
		logger.Errorf("%s failed: %v", cmd.name, err)
		log.Fatalf("Error: %v", err)
	}
	cancel()
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage() {
	fmt.Fprintf(os.Stderr, "mailwright - AI reply assistant for webmail\n\n")
	fmt.Fprintf(os.Stderr, "Usage: mailwright <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  MAILWRIGHT_API_KEY   API key of the generation provider\n")
	fmt.Fprintf(os.Stderr, "  MAILWRIGHT_BASE_URL  OpenAI-compatible base URL\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  mailwright settings -api-key <key> -test\n")
	fmt.Fprintf(os.Stderr, "  mailwright run\n")
	fmt.Fprintf(os.Stderr, "  mailwright run -service http://127.0.0.1:8787\n")
	fmt.Fprintf(os.Stderr, "  mailwright serve -addr 127.0.0.1:8787\n")
	fmt.Fprintf(os.Stderr, "  mailwright snapshot -out thread.html\n")
	fmt.Fprintf(os.Stderr, "  mailwright extract -copy thread.html\n")
	fmt.Fprintf(os.Stderr, "\nRun 'mailwright <command> -h' for the options of a command.\n")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/generate"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/types"
)

func runSettings(ctx context.Context, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	configPath := fs.String("config", "", "Settings file (default ~/.mailwright/config.json)")
	apiKey := fs.String("api-key", "", "API key of the generation provider")
	provider := fs.String("provider", "", "Provider: openai or bedrock")
	model := fs.String("model", "", "Model name")
	baseURL := fs.String("base-url", "", "OpenAI-compatible base URL")
	region := fs.String("region", "", "AWS region for bedrock")
	analyze := fs.Bool("analyze-attachments", false, "Mention attachment names in the prompt")
	reset := fs.Bool("reset", false, "Restore the default settings before applying other flags")
	test := fs.Bool("test", false, "Send a test prompt with the saved settings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	updates := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-key":
			updates["api_key"] = *apiKey
		case "provider":
			updates["provider"] = *provider
		case "model":
			updates["model"] = *model
		case "base-url":
			updates["base_url"] = *baseURL
		case "region":
			updates["region"] = *region
		case "analyze-attachments":
			updates["analyze_attachments"] = *analyze
		}
	})

	manager, err := config.NewDefaultManager(*configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	live := config.NewLive(manager)

	if *reset {
		if err := live.Reset(); err != nil {
			return fmt.Errorf("failed to reset settings: %w", err)
		}
		fmt.Fprintln(os.Stdout, successStyle.Render("settings reset"))
	}
	if len(updates) > 0 {
		if _, err := live.UpdateAssistant(updates); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Fprintln(os.Stdout, successStyle.Render("settings saved"))
	}

	current, err := live.Assistant()
	if err != nil {
		return err
	}
	printSettings(os.Stdout, current)
	fmt.Fprintf(os.Stdout, "  %s %s\n", labelStyle.Render("file:"), live.Path())

	if *test {
		service := generate.NewService(live, generate.WithLogger(log.With("generate")))
		reply, err := service.TestConnection(ctx, "")
		if err != nil {
			fmt.Fprintln(os.Stdout, errorStyle.Render(types.UserMessage(err)))
			return fmt.Errorf("connection test failed: %w", err)
		}
		fmt.Fprintln(os.Stdout, successStyle.Render("connection ok: ")+reply)
	}
	return nil
}

func printSettings(w io.Writer, s config.AssistantSettings) {
	key := s.MaskedKey()
	if key == "" {
		key = mutedStyle.Render("(not set)")
	}
	model := s.Model
	if model == "" {
		model = mutedStyle.Render("(default)")
	}
	fmt.Fprintln(w, headerStyle.Render("Assistant settings"))
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("provider:"), s.Provider)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("model:"), model)
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("api key:"), key)
	if s.BaseURL != "" {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("base url:"), s.BaseURL)
	}
	if s.Provider == config.ProviderBedrock {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("region:"), s.Region)
	}
	fmt.Fprintf(w, "  %s %t\n", labelStyle.Render("analyze attachments:"), s.AnalyzeAttachments)
}

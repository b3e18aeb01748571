package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/mailwright/pkg/assistant"
	"github.com/entrhq/mailwright/pkg/bridge"
	"github.com/entrhq/mailwright/pkg/browser"
	"github.com/entrhq/mailwright/pkg/config"
	"github.com/entrhq/mailwright/pkg/control"
	"github.com/entrhq/mailwright/pkg/dom/pwdom"
	"github.com/entrhq/mailwright/pkg/generate"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/profile"
)

// runFlags are the command-line overrides of the browser section.
type runFlags struct {
	configPath   string
	service      string
	startURL     string
	userDataDir  string
	profilesFile string
	headless     bool
	overrides    config.Overrides
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Settings file (default ~/.mailwright/config.json)")
	fs.StringVar(&f.service, "service", "", "URL of a running `mailwright serve` (default: in-process worker)")
	fs.StringVar(&f.startURL, "url", "", "Page to open (default: browser.start_url)")
	fs.StringVar(&f.userDataDir, "profile-dir", "", "Chromium profile directory (default ~/.mailwright/chromium)")
	fs.StringVar(&f.profilesFile, "profiles", "", "YAML file overlaying the built-in host profiles")
	fs.BoolVar(&f.headless, "headless", false, "Run Chromium without a window")
	registerOverrides(fs, &f.overrides)
}

// registerOverrides binds the flags that win over the assistant settings.
func registerOverrides(fs *flag.FlagSet, o *config.Overrides) {
	fs.StringVar(&o.APIKey, "api-key", "", "API key (or set MAILWRIGHT_API_KEY env var)")
	fs.StringVar(&o.BaseURL, "base-url", "", "OpenAI-compatible base URL (or set MAILWRIGHT_BASE_URL env var)")
	fs.StringVar(&o.Model, "model", "", "Model to use")
	fs.StringVar(&o.Provider, "provider", "", "Provider: openai or bedrock")
}

// apply resolves the browser settings with flags over the config file.
func (f *runFlags) apply(fs *flag.FlagSet, s config.BrowserSettings) config.BrowserSettings {
	if f.service != "" {
		s.ServiceURL = f.service
	}
	if f.startURL != "" {
		s.StartURL = f.startURL
	}
	if f.userDataDir != "" {
		s.UserDataDir = f.userDataDir
	}
	if f.profilesFile != "" {
		s.ProfilesFile = f.profilesFile
	}
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == "headless" {
			s.Headless = f.headless
		}
	})
	return s
}

func runBrowser(ctx context.Context, log *logging.Logger, args []string) error {
	var flags runFlags
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.Initialize(flags.configPath); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}
	settings := flags.apply(fs, config.GetBrowser().Snapshot())

	profiles, err := loadProfiles(settings.ProfilesFile)
	if err != nil {
		return err
	}

	sender, closeSender := newSender(config.Global(), flags.overrides, settings.ServiceURL, log)
	defer closeSender()

	manager := browser.NewManager(log.With("browser"))
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warnf("browser shutdown: %v", err)
		}
	}()

	session, err := manager.Launch(browser.SessionOptions{
		Headless:    settings.Headless,
		UserDataDir: settings.UserDataDir,
	})
	if err != nil {
		return err
	}

	status := newStatusPrinter(os.Stdout)
	session.Serve(browser.BinderFunc(func(page playwright.Page, url string) browser.PageHandler {
		p, ok := profiles.Match(url)
		if !ok {
			log.Debugf("no profile for %s", url)
			return nil
		}
		a := assistant.New(assistant.Config{
			Doc:     pwdom.New(page, log.With("dom")),
			Profile: p,
			Sender:  sender,
			Log:     log.With(p.Name),
			Emit:    status.event,
		})
		a.Start()
		return a
	}))

	status.info("opening %s", settings.StartURL)
	if err := session.Navigate(settings.StartURL, browser.NavigateOptions{WaitUntil: "domcontentloaded"}); err != nil {
		return err
	}
	status.info("ready. close the browser or press Ctrl+C to quit")

	select {
	case <-ctx.Done():
	case <-session.Done():
	}
	session.Close()
	return nil
}

// loadProfiles returns the built-in host profiles, overlaid by path when set.
func loadProfiles(path string) (*profile.Set, error) {
	if path == "" {
		return profile.Builtin()
	}
	return profile.Load(path)
}

// newSender returns the bridge to the HTTP service at serviceURL, or to an
// in-process worker when serviceURL is empty.
func newSender(manager *config.Manager, overrides config.Overrides, serviceURL string, log *logging.Logger) (control.Sender, func()) {
	if serviceURL != "" {
		log.Infof("using generation service at %s", serviceURL)
		return bridge.New(bridge.NewHTTPTransport(serviceURL, nil), bridge.WithLogger(log.With("bridge"))), func() {}
	}
	live := config.NewLive(manager)
	live.SetOverrides(overrides)
	service := generate.NewService(live, generate.WithLogger(log.With("generate")))
	worker := bridge.NewWorker(service, log.With("worker"))
	return bridge.New(worker, bridge.WithLogger(log.With("bridge"))), worker.Close
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/entrhq/mailwright/pkg/browser"
	"github.com/entrhq/mailwright/pkg/dom/htmldom"
	"github.com/entrhq/mailwright/pkg/extract"
	"github.com/entrhq/mailwright/pkg/logging"
	"github.com/entrhq/mailwright/pkg/profile"
)

func runExtract(_ context.Context, log *logging.Logger, args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	host := fs.String("profile", "", "Host profile to use (default: matched from the snapshot URL)")
	profilesFile := fs.String("profiles", "", "YAML file overlaying the built-in host profiles")
	copyText := fs.Bool("copy", false, "Copy the transcript to the clipboard")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mailwright extract [options] <snapshot.html>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one snapshot file")
	}

	raw, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	cleaned, err := browser.CleanSnapshot(string(raw))
	if err != nil {
		return err
	}
	doc, err := htmldom.ParseString(cleaned)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	profiles, err := loadProfiles(*profilesFile)
	if err != nil {
		return err
	}
	p, err := pickProfile(profiles, *host, doc.URL())
	if err != nil {
		return err
	}

	ex := extract.New(p, log.With("extract"))
	transcript := ex.Extract(doc)
	attachments := ex.Attachments(doc)
	printTranscript(os.Stdout, p.Name, browser.SnapshotTitle(cleaned), transcript, attachments)

	if *copyText {
		if err := clipboard.WriteAll(transcript.Text); err != nil {
			return fmt.Errorf("failed to copy transcript: %w", err)
		}
		fmt.Fprintln(os.Stdout, successStyle.Render("transcript copied to clipboard"))
	}
	return nil
}

// pickProfile returns the named profile, or the one matching url.
func pickProfile(set *profile.Set, name, url string) (*profile.Profile, error) {
	if name != "" {
		p, ok := set.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(set.Names(), ", "))
		}
		return p, nil
	}
	if url == "" {
		return nil, fmt.Errorf("snapshot has no URL, pass -profile")
	}
	p, ok := set.Match(url)
	if !ok {
		return nil, fmt.Errorf("no profile matches %s, pass -profile", url)
	}
	return p, nil
}

func printTranscript(w io.Writer, host, title string, t extract.Transcript, attachments []string) {
	header := headerStyle.Render(host)
	if title != "" {
		header += " " + mutedStyle.Render(title)
	}
	fmt.Fprintln(w, header)

	switch {
	case t.Empty:
		fmt.Fprintln(w, errorStyle.Render(t.Text))
		return
	case t.Fallback:
		fmt.Fprintln(w, mutedStyle.Render("no message elements found, showing the page scrape"))
	default:
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d messages", len(t.Records))))
	}
	fmt.Fprintln(w, transcriptStyle.Render(t.Text))

	if len(attachments) > 0 {
		fmt.Fprintln(w, labelStyle.Render("Attachments:")+" "+strings.Join(attachments, ", "))
	}
}

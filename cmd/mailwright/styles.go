package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/mailwright/pkg/types"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	mutedGray  = lipgloss.Color("#6B7280")
	coralPink  = lipgloss.Color("#FFCCCB")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedGray).
			Padding(0, 1)
)

// statusPrinter renders lifecycle events as one terminal line each. Events
// of several pages may arrive concurrently.
type statusPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out}
}

func (p *statusPrinter) event(e *types.Event) {
	line := fmt.Sprintf("%s %s", mutedStyle.Render(e.Time.Format("15:04:05")), labelStyle.Render(e.Host))
	switch {
	case e.IsError():
		msg := string(e.Type)
		if e.Error != nil {
			msg += ": " + types.UserMessage(e.Error)
		}
		line += " " + errorStyle.Render(msg)
	case e.Type == types.EventTypeGenerationComplete:
		line += " " + successStyle.Render(string(e.Type))
	case e.Type == types.EventTypeControlAttached:
		line += fmt.Sprintf(" %s %s", e.Type, mutedStyle.Render("("+e.Placement+")"))
	case e.Type == types.EventTypeGenerationStart:
		line += fmt.Sprintf(" %s %s", e.Type, mutedStyle.Render("("+string(e.Tone)+")"))
	default:
		line += " " + string(e.Type)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *statusPrinter) info(format string, v ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, mutedStyle.Render(fmt.Sprintf(format, v...)))
}

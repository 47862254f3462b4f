package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/ashwch/syntaxpilot/internal/resolver"
	"github.com/ashwch/syntaxpilot/internal/shell"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	stdinIsInteractive  = func() bool { return IsTerminal(os.Stdin) }
	stdoutIsInteractive = func() bool { return IsTerminal(os.Stdout) }
	highRisk            = shell.HighRisk
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("87"))

	// Commands are shown verbatim, tabs included.
	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			TabWidth(lipgloss.NoTabConversion)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("109"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203"))
)

// RenderCandidate draws the candidate card used by the terminal prompts.
func RenderCandidate(candidate resolver.Candidate) string {
	lines := []string{
		titleStyle.Render("Suggested command"),
		"",
		commandStyle.Render(candidate.Command),
	}
	if candidate.Source != "" {
		lines = append(lines, "", hintStyle.Render(fmt.Sprintf("%s · confidence %.2f", candidate.Source, candidate.Confidence)))
	}
	if highRisk(candidate.Command) {
		lines = append(lines, warnStyle.Render("warning: this command looks destructive"))
	}
	return cardStyle.Render(strings.Join(lines, "\n")) + "\n"
}

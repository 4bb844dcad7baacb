package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/otley-syrup/syrup/internal/session"
)

var (
	statusLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderStatus colorizes a single-line run summary, the CLI's analog of an
// interactive monitor's colorized output line, reused for one status line
// per invocation instead of a scrollback buffer.
func renderStatus(mode string, sess session.ID, outcome string, recordCount int) string {
	return fmt.Sprintf("%s %s %s %s",
		statusLabel.Render(mode),
		statusDim.Render(sess.String()),
		statusGood.Render(outcome),
		statusDim.Render(fmt.Sprintf("(%d records)", recordCount)))
}

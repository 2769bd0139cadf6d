// Package ui renders the static per-host execution summary. Live output
// streaming is deliberately out of scope; this package only formats results
// after a run finishes.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/drockwell/flotilla/internal/fleet"
)

// Semantic colors for status indication, ANSI codes for compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorMuted   lipgloss.Color = "8" // Gray (bright black)
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolSkipped = "⊘"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	failStyle    = lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Summary writes one line per host in original host order, then a totals
// line. Output already captured per host is not replayed here.
type Summary struct {
	w io.Writer
}

// NewSummary creates a Summary writing to w.
func NewSummary(w io.Writer) *Summary {
	return &Summary{w: w}
}

// Render prints the per-host outcome lines and the totals for rs.
func (s *Summary) Render(rs *fleet.ResultSet) {
	var passed, failed int

	for _, host := range rs.Hosts() {
		if err := rs.Failure(host); err != nil {
			failed++
			fmt.Fprintf(s.w, "%s %s  %s\n",
				failStyle.Render(SymbolFail), host, failLabel(rs, host, err))
			continue
		}
		passed++
		elapsed := ""
		if res := rs.Result(host); res != nil {
			elapsed = mutedStyle.Render(formatElapsed(res.Elapsed))
		}
		fmt.Fprintf(s.w, "%s %s  %s\n",
			successStyle.Render(SymbolSuccess), host, elapsed)
	}

	totals := fmt.Sprintf("%d passed, %d failed", passed, failed)
	if failed == 0 {
		fmt.Fprintln(s.w, successStyle.Render(totals))
	} else {
		fmt.Fprintln(s.w, failStyle.Render(totals))
	}
}

func failLabel(rs *fleet.ResultSet, host string, err error) string {
	switch e := err.(type) {
	case *fleet.CommandFailure:
		label := fmt.Sprintf("exit %d", e.ExitStatus)
		if res := rs.Result(host); res != nil {
			if line := firstLine(res.Stderr); line != "" {
				label += ": " + line
			}
		}
		return label
	case *fleet.ConnectFailure:
		return "connect failed"
	case *fleet.CancelledFailure:
		return SymbolSkipped + " cancelled"
	default:
		return firstLine([]byte(err.Error()))
	}
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

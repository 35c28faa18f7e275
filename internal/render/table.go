package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/report"
)

const (
	maxResourceWidth = 60
	maxAgentWidth    = 40
	maxRejectWidth   = 120
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	statusStyles = map[string]lipgloss.Style{
		"2xx": lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		"3xx": lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		"4xx": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"5xx": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

var tableHeader = []string{"LINE", "IP", "DATE", "METHOD", "STATUS", "SIZE", "RESOURCE", "AGENT"}

func writeTable(w io.Writer, res *clf.Result, opts Options) error {
	rows := make([][]string, 0, len(res.Entries)+1)
	rows = append(rows, tableHeader)
	for _, e := range res.Entries {
		rows = append(rows, []string{
			fmt.Sprint(e.Line),
			e.IP,
			e.Date,
			e.Method,
			e.Status,
			e.Size,
			clip(e.Resource, maxResourceWidth),
			clip(e.Agent, maxAgentWidth),
		})
	}

	// widths are measured before styling so escape codes don't skew alignment
	widths := make([]int, len(tableHeader))
	for _, row := range rows {
		for i, cell := range row {
			if n := lipgloss.Width(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		for i, cell := range row {
			padded := cell
			if i < len(row)-1 {
				padded = padRight(cell, widths[i]) + "  "
			}
			if opts.Color {
				switch {
				case r == 0:
					padded = headerStyle.Render(padded)
				case i == 4:
					if st, ok := statusStyles[res.Entries[r-1].StatusClass()]; ok {
						padded = st.Render(cell) + strings.Repeat(" ", len(padded)-len(cell))
					}
				}
			}
			b.WriteString(padded)
		}
		b.WriteByte('\n')
	}

	if opts.ShowRejects && len(res.Rejects) > 0 {
		title := fmt.Sprintf("\nREJECTS (%d)\n", len(res.Rejects))
		if opts.Color {
			title = "\n" + headerStyle.Render(strings.TrimSpace(title)) + "\n"
		}
		b.WriteString(title)
		for _, rj := range res.Rejects {
			fmt.Fprintf(&b, "%6d  %s\n", rj.Line, clip(rj.Text, maxRejectWidth))
		}
	}

	footer := footerLine(res, opts.Title)
	if opts.Color {
		footer = faintStyle.Render(footer)
	}
	b.WriteString("\n" + footer + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func footerLine(res *clf.Result, title string) string {
	parts := []string{
		report.FormatCount(len(res.Entries)) + " entries",
		report.FormatCount(len(res.Rejects)) + " rejects",
	}
	if res.Blank > 0 {
		parts = append(parts, report.FormatCount(res.Blank)+" blank")
	}
	if n := res.InvalidDates(); n > 0 {
		parts = append(parts, report.FormatCount(n)+" invalid dates")
	}
	s := strings.Join(parts, ", ")
	if title != "" {
		s = title + ": " + s
	}
	return s
}

func padRight(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return s + strings.Repeat(" ", w-n)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

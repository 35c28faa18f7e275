// Package tui is an interactive terminal browser over a classification result.
package tui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/logsieve/internal/clf"
	"github.com/ppiankov/logsieve/internal/render"
	"github.com/ppiankov/logsieve/internal/report"
)

// Model is the bubbletea model for the result browser.
type Model struct {
	res   *clf.Result
	title string

	// entries is a sorted copy; res.Entries keeps line order
	entries     []clf.Entry
	sortIdx     int
	desc        bool
	showRejects bool

	scrollOff int

	// search
	searching   bool
	searchInput string
	searchRegex *regexp.Regexp
	searchErr   string
	searchIdx   int
	matches     []int

	// gg detection
	lastGPress time.Time

	width  int
	height int

	quitting bool
}

// New creates a browser over res. title is shown in the header.
func New(res *clf.Result, title string) Model {
	m := Model{
		res:    res,
		title:  title,
		width:  80,
		height: 24,
	}
	m.entries = append([]clf.Entry(nil), res.Entries...)
	return m
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(res *clf.Result, title string) error {
	p := tea.NewProgram(New(res, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scrollOff = clamp(m.scrollOff, 0, m.maxScroll())
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.scrollOff = clamp(m.scrollOff+1, 0, m.maxScroll())

	case "k", "up":
		m.scrollOff = clamp(m.scrollOff-1, 0, m.maxScroll())

	case "d", "pgdown":
		m.scrollOff = clamp(m.scrollOff+m.paneHeight()/2, 0, m.maxScroll())

	case "u", "pgup":
		m.scrollOff = clamp(m.scrollOff-m.paneHeight()/2, 0, m.maxScroll())

	case "G", "end":
		m.scrollOff = m.maxScroll()

	case "g":
		now := time.Now()
		if now.Sub(m.lastGPress) < 500*time.Millisecond {
			m.scrollOff = 0
			m.lastGPress = time.Time{}
		} else {
			m.lastGPress = now
		}

	case "/":
		m.searching = true
		m.searchInput = ""
		m.searchErr = ""

	case "n":
		m.nextMatch(1)

	case "N":
		m.nextMatch(-1)

	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(render.SortFields)
		m.resort()

	case "S":
		m.desc = !m.desc
		m.resort()

	case "r":
		m.showRejects = !m.showRejects
		m.scrollOff = 0
		m.updateSearchMatches()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		re, err := regexp.Compile(m.searchInput)
		if err != nil {
			m.searchErr = err.Error()
			return m, nil
		}
		m.searchRegex = re
		m.updateSearchMatches()
		m.searchIdx = 0
		if len(m.matches) > 0 {
			m.scrollTo(m.matches[0])
		}

	case "esc":
		m.searching = false
		m.searchInput = ""
		m.searchRegex = nil
		m.matches = nil

	case "backspace":
		if len(m.searchInput) > 0 {
			r := []rune(m.searchInput)
			m.searchInput = string(r[:len(r)-1])
		}

	default:
		switch msg.Type {
		case tea.KeyRunes:
			m.searchInput += string(msg.Runes)
		case tea.KeySpace:
			m.searchInput += " "
		}
	}
	return m, nil
}

// resort reapplies the current sort and keeps search matches in step.
func (m *Model) resort() {
	_ = render.Sort(m.entries, render.SortFields[m.sortIdx], m.desc)
	m.updateSearchMatches()
}

func (m *Model) updateSearchMatches() {
	m.matches = nil
	m.searchIdx = 0
	if m.searchRegex == nil {
		return
	}
	for i := 0; i < m.rowCount(); i++ {
		if m.searchRegex.MatchString(m.haystack(i)) {
			m.matches = append(m.matches, i)
		}
	}
}

// haystack is the text a search runs over: the raw captured fields for
// entries and the verbatim text for rejects.
func (m Model) haystack(i int) string {
	if m.showRejects {
		return m.res.Rejects[i].Text
	}
	e := m.entries[i]
	return strings.Join([]string{e.IP, e.RawDate, e.Method, e.Resource, e.Status, e.Size, e.Referer, e.Agent}, " ")
}

func (m *Model) nextMatch(dir int) {
	if len(m.matches) == 0 {
		return
	}
	m.searchIdx = (m.searchIdx + dir + len(m.matches)) % len(m.matches)
	m.scrollTo(m.matches[m.searchIdx])
}

func (m *Model) scrollTo(row int) {
	m.scrollOff = clamp(row-m.paneHeight()/2, 0, m.maxScroll())
}

func (m Model) rowCount() int {
	if m.showRejects {
		return len(m.res.Rejects)
	}
	return len(m.entries)
}

func (m Model) paneHeight() int {
	// header(1) + blank(1) + column header(1) + separator(1) + status(1)
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) maxScroll() int {
	max := m.rowCount() - m.paneHeight()
	if max < 0 {
		return 0
	}
	return max
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := m.title
	if title == "" {
		title = "-"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("logsieve | %s | %s entries | %s rejects | %s blank",
		title, report.FormatCount(len(m.res.Entries)), report.FormatCount(len(m.res.Rejects)),
		report.FormatCount(m.res.Blank))))
	b.WriteString("\n\n")

	if m.showRejects {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%6s  %s", "LINE", "TEXT")))
	} else {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%6s  %-15s  %-19s  %-6s  %3s  %8s  %s", "LINE", "IP", "DATE", "METHOD", "ST", "SIZE", "RESOURCE")))
	}
	b.WriteString("\n")
	b.WriteString(sepStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	paneH := m.paneHeight()
	start := m.scrollOff
	end := start + paneH
	if end > m.rowCount() {
		end = m.rowCount()
	}

	matchSet := make(map[int]bool, len(m.matches))
	for _, idx := range m.matches {
		matchSet[idx] = true
	}

	for i := start; i < end; i++ {
		line := m.formatRow(i)
		if r := []rune(line); len(r) > m.width {
			line = string(r[:m.width])
		}
		switch {
		case matchSet[i]:
			b.WriteString(matchStyle.Render(line))
		case !m.showRejects:
			b.WriteString(rowStyle(m.entries[i].StatusClass()).Render(line))
		default:
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	for i := end - start; i < paneH; i++ {
		b.WriteString("\n")
	}

	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) formatRow(i int) string {
	if m.showRejects {
		r := m.res.Rejects[i]
		return fmt.Sprintf("%6d  %s", r.Line, r.Text)
	}
	e := m.entries[i]
	return fmt.Sprintf("%6d  %-15s  %-19s  %-6s  %3s  %8s  %s", e.Line, e.IP, e.Date, e.Method, e.Status, e.Size, e.Resource)
}

func (m Model) statusBar() string {
	var status strings.Builder
	add := func(s string) {
		if status.Len() > 0 {
			status.WriteString(" ")
		}
		status.WriteString(s)
	}

	switch {
	case m.searching:
		add(searchBadge.Render("/" + m.searchInput))
	case m.searchErr != "":
		add(errorBadge.Render("bad pattern: " + m.searchErr))
	case m.searchRegex != nil:
		pos := 0
		if len(m.matches) > 0 {
			pos = m.searchIdx + 1
		}
		add(searchBadge.Render(fmt.Sprintf("[%d/%d] /%s", pos, len(m.matches), m.searchRegex.String())))
	}

	if m.showRejects {
		add(rejectBadge.Render("REJECTS"))
	} else {
		dir := "asc"
		if m.desc {
			dir = "desc"
		}
		add(sortBadge.Render(fmt.Sprintf("sort: %s %s", render.SortFields[m.sortIdx], dir)))
	}

	return padLeft(status.String(), m.width)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	sepStyle    = lipgloss.NewStyle().Faint(true)
	matchStyle  = lipgloss.NewStyle().Background(lipgloss.Color("226")).Foreground(lipgloss.Color("0"))
	searchBadge = lipgloss.NewStyle().Background(lipgloss.Color("226")).Foreground(lipgloss.Color("0")).Padding(0, 1)
	errorBadge  = lipgloss.NewStyle().Background(lipgloss.Color("196")).Foreground(lipgloss.Color("15")).Padding(0, 1)
	sortBadge   = lipgloss.NewStyle().Background(lipgloss.Color("33")).Foreground(lipgloss.Color("15")).Padding(0, 1)
	rejectBadge = lipgloss.NewStyle().Background(lipgloss.Color("208")).Foreground(lipgloss.Color("0")).Padding(0, 1)

	classStyles = map[string]lipgloss.Style{
		"4xx": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		"5xx": lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

func rowStyle(class string) lipgloss.Style {
	if st, ok := classStyles[class]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func padLeft(s string, w int) string {
	n := lipgloss.Width(s)
	if n >= w {
		return s
	}
	return strings.Repeat(" ", w-n) + s
}

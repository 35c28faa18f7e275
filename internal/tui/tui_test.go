package tui

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/logsieve/internal/clf"
)

func newTestModel(t *testing.T, n int) Model {
	t.Helper()
	lines := make([]string, 0, n+2)
	for i := 0; i < n; i++ {
		status := 200
		if i%10 == 9 {
			status = 503
		}
		lines = append(lines, fmt.Sprintf(`10.0.%d.%d - - [10/Oct/2000:13:%02d:00 -0700] "GET /page/%d HTTP/1.1" %d %d "-" "agent"`,
			i/256, i%256, 59-i%60, i, status, i))
	}
	lines = append(lines, "garbage one", "garbage two")
	res, err := clf.Classify(lines)
	if err != nil {
		t.Fatal(err)
	}
	m := New(res, "access.log")
	m.width = 120
	m.height = 30
	return m
}

func sendKey(m Model, key string) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return updated.(Model)
}

func sendSpecialKey(m Model, key tea.KeyType) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model)
}

func search(m Model, pattern string) Model {
	m = sendKey(m, "/")
	for _, r := range pattern {
		m = sendKey(m, string(r))
	}
	return sendSpecialKey(m, tea.KeyEnter)
}

func TestInitialState(t *testing.T) {
	m := newTestModel(t, 50)
	if m.searching || m.quitting || m.showRejects {
		t.Error("unexpected initial flags")
	}
	if m.scrollOff != 0 {
		t.Errorf("scrollOff = %d, want 0", m.scrollOff)
	}
	if len(m.entries) != 50 {
		t.Errorf("entries = %d, want 50", len(m.entries))
	}
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, 5)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !updated.(Model).quitting {
		t.Error("expected quitting after 'q'")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
	if updated.(Model).View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestCtrlCQuit(t *testing.T) {
	m := sendSpecialKey(newTestModel(t, 5), tea.KeyCtrlC)
	if !m.quitting {
		t.Error("expected quitting after ctrl+c")
	}
}

func TestScroll(t *testing.T) {
	m := newTestModel(t, 100)
	m = sendKey(m, "j")
	m = sendKey(m, "j")
	if m.scrollOff != 2 {
		t.Errorf("scrollOff = %d, want 2", m.scrollOff)
	}
	m = sendKey(m, "k")
	if m.scrollOff != 1 {
		t.Errorf("scrollOff = %d, want 1", m.scrollOff)
	}
	m = sendKey(m, "k")
	m = sendKey(m, "k")
	if m.scrollOff != 0 {
		t.Errorf("scrollOff = %d, want 0 (clamped)", m.scrollOff)
	}
}

func TestHalfPage(t *testing.T) {
	m := newTestModel(t, 100)
	half := m.paneHeight() / 2
	m = sendKey(m, "d")
	if m.scrollOff != half {
		t.Errorf("scrollOff = %d, want %d", m.scrollOff, half)
	}
	m = sendKey(m, "u")
	if m.scrollOff != 0 {
		t.Errorf("scrollOff = %d, want 0", m.scrollOff)
	}
}

func TestJumpTopBottom(t *testing.T) {
	m := newTestModel(t, 100)
	m = sendKey(m, "G")
	if m.scrollOff != m.maxScroll() {
		t.Errorf("scrollOff = %d, want %d", m.scrollOff, m.maxScroll())
	}
	m = sendKey(m, "g")
	if m.scrollOff == 0 {
		t.Error("single g should not jump")
	}
	m = sendKey(m, "g")
	if m.scrollOff != 0 {
		t.Errorf("gg: scrollOff = %d, want 0", m.scrollOff)
	}
}

func TestScrollShortList(t *testing.T) {
	m := newTestModel(t, 3)
	m = sendKey(m, "G")
	m = sendKey(m, "j")
	if m.scrollOff != 0 {
		t.Errorf("scrollOff = %d, want 0 when everything fits", m.scrollOff)
	}
}

func TestSearch(t *testing.T) {
	m := newTestModel(t, 100)
	m = search(m, "503")
	if m.searching {
		t.Error("search should end on enter")
	}
	if len(m.matches) != 10 {
		t.Fatalf("matches = %d, want 10", len(m.matches))
	}
	if m.matches[0] != 9 {
		t.Errorf("first match = %d, want 9", m.matches[0])
	}

	m = sendKey(m, "n")
	if m.searchIdx != 1 {
		t.Errorf("searchIdx = %d, want 1", m.searchIdx)
	}
	m = sendKey(m, "N")
	m = sendKey(m, "N")
	if m.searchIdx != 9 {
		t.Errorf("searchIdx = %d, want 9 (wrapped)", m.searchIdx)
	}
	if !strings.Contains(m.View(), "[10/10] /503") {
		t.Error("status bar should show match position")
	}
}

func TestSearchRawDate(t *testing.T) {
	m := newTestModel(t, 5)
	m = search(m, `10/Oct/2000:13:59`)
	if len(m.matches) != 1 {
		t.Errorf("matches = %d, want 1", len(m.matches))
	}
}

func TestSearchEscape(t *testing.T) {
	m := newTestModel(t, 20)
	m = search(m, "page")
	m = sendKey(m, "/")
	m = sendSpecialKey(m, tea.KeyEsc)
	if m.searchRegex != nil || m.matches != nil {
		t.Error("esc should clear the search")
	}
}

func TestSearchBadPattern(t *testing.T) {
	m := newTestModel(t, 5)
	m = search(m, "(")
	if m.searchRegex != nil {
		t.Error("invalid pattern should not be applied")
	}
	if !strings.Contains(m.View(), "bad pattern") {
		t.Error("view should report the bad pattern")
	}
}

func TestSearchBackspace(t *testing.T) {
	m := newTestModel(t, 5)
	m = sendKey(m, "/")
	m = sendKey(m, "a")
	m = sendKey(m, "b")
	m = sendSpecialKey(m, tea.KeyBackspace)
	if m.searchInput != "a" {
		t.Errorf("searchInput = %q, want %q", m.searchInput, "a")
	}
}

func TestSortCycle(t *testing.T) {
	m := newTestModel(t, 20)
	m = sendKey(m, "s") // ip
	m = sendKey(m, "s") // date
	if m.entries[0].Line != 20 {
		t.Errorf("earliest entry line = %d, want 20", m.entries[0].Line)
	}
	m = sendKey(m, "S")
	if m.entries[0].Line != 1 {
		t.Errorf("latest entry line = %d, want 1", m.entries[0].Line)
	}
	if !strings.Contains(m.View(), "sort: date desc") {
		t.Error("status bar should show the sort")
	}
	if m.res.Entries[0].Line != 1 || m.res.Entries[19].Line != 20 {
		t.Error("sorting must not reorder the result")
	}
}

func TestSortKeepsSearchInStep(t *testing.T) {
	m := newTestModel(t, 20)
	m = search(m, "/page/19 ")
	if len(m.matches) != 1 || m.matches[0] != 19 {
		t.Fatalf("matches = %v", m.matches)
	}
	m = sendKey(m, "S")
	if len(m.matches) != 1 || m.matches[0] != 0 {
		t.Errorf("matches after reverse = %v, want [0]", m.matches)
	}
}

func TestToggleRejects(t *testing.T) {
	m := newTestModel(t, 10)
	m = sendKey(m, "r")
	if !m.showRejects || m.rowCount() != 2 {
		t.Fatalf("showRejects=%v rows=%d", m.showRejects, m.rowCount())
	}
	view := m.View()
	if !strings.Contains(view, "garbage one") || !strings.Contains(view, "REJECTS") {
		t.Error("rejects view should list reject text")
	}
	m = search(m, "two")
	if len(m.matches) != 1 || m.matches[0] != 1 {
		t.Errorf("matches = %v", m.matches)
	}
	m = sendKey(m, "r")
	if m.showRejects {
		t.Error("r should toggle back")
	}
}

func TestWindowResize(t *testing.T) {
	m := newTestModel(t, 100)
	m = sendKey(m, "G")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 200})
	m = updated.(Model)
	if m.scrollOff != 0 {
		t.Errorf("scrollOff = %d, want 0 after growing past the list", m.scrollOff)
	}
}

func TestViewHeader(t *testing.T) {
	m := newTestModel(t, 5)
	view := m.View()
	for _, want := range []string{"logsieve | access.log | 5 entries | 2 rejects", "RESOURCE", "/page/0 HTTP/1.1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

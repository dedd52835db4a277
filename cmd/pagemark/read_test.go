package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/pagemark/internal/content"
	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/library"
)

const testBook = `# Test Book

Intro one.

Intro two.

Intro three.

## Next

Second chapter start.

Second chapter end.
`

func newTestModel(t *testing.T) model {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "book.md")
	if err := os.WriteFile(path, []byte(testBook), 0644); err != nil {
		t.Fatal(err)
	}

	lib, err := library.New(library.Options{
		DataDir: filepath.Join(root, "data"),
		Dirs: content.Dirs{
			Extracted: filepath.Join(root, "saved_books"),
			Edited:    filepath.Join(root, "edited_books"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.Close() })

	book, err := lib.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	m, err := newModel(lib, book, domain.RenderingParameters{LinesPerPage: 2, FontSize: 12}, true)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func press(m model, key string) model {
	var msg tea.KeyMsg
	switch key {
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(model)
}

func TestNavigation(t *testing.T) {
	m := newTestModel(t)

	// Chapter 0 paginates as [Test Book + Intro one] [Intro two + Intro three].
	steps := []struct {
		key     string
		chapter int
		page    int
	}{
		{"right", 0, 1},
		{"right", 1, 0},
		{"right", 1, 1},
		{"right", 1, 1}, // end of book
		{"left", 1, 0},
		{"left", 0, 1},
		{"left", 0, 0},
		{"left", 0, 0}, // start of book
	}
	for i, s := range steps {
		m = press(m, s.key)
		if m.err != nil {
			t.Fatalf("step %d: %v", i, m.err)
		}
		if m.chapter != s.chapter || m.page != s.page {
			t.Errorf("step %d (%s): at (%d, %d), want (%d, %d)", i, s.key, m.chapter, m.page, s.chapter, s.page)
		}
	}
}

func TestFontSizeKeepsText(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "right")
	want := "Intro two."
	if !strings.Contains(m.pages[m.page], want) {
		t.Fatalf("page = %q", m.pages[m.page])
	}

	m = press(m, "+")
	m = press(m, "+")
	m = press(m, "+")
	m = press(m, "+")
	m = press(m, "+")
	m = press(m, "+")
	if m.params.FontSize != 24 {
		t.Fatalf("font size = %v, want 24", m.params.FontSize)
	}
	if m.params.LinesPerPage != 1 {
		t.Errorf("lines per page = %d, want 1", m.params.LinesPerPage)
	}
	if m.pages[m.page] != want {
		t.Errorf("page after font change = %q, want %q", m.pages[m.page], want)
	}
}

func TestFontSizeBounds(t *testing.T) {
	m := newTestModel(t)
	m.params = m.params.WithFontSize(minFontSize)
	m = press(m, "-")
	if m.params.FontSize != minFontSize {
		t.Errorf("font size = %v, want %v", m.params.FontSize, float64(minFontSize))
	}
}

func TestAddNote(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "n")
	if !m.noting {
		t.Fatal("expected note input")
	}
	m.input.SetValue("worth rereading")
	m = press(m, "enter")
	if m.noting {
		t.Error("note input still open")
	}
	if len(m.notes) != 1 || m.notes[0].Text != "worth rereading" {
		t.Fatalf("notes = %+v", m.notes)
	}

	m = press(m, "right")
	if len(m.notes) != 0 {
		t.Errorf("notes on page 2 = %+v", m.notes)
	}

	// Esc discards.
	m = press(m, "n")
	m.input.SetValue("discarded")
	m = press(m, "esc")
	if len(m.notes) != 0 {
		t.Errorf("notes after esc = %+v", m.notes)
	}
}

func TestQuitSavesPosition(t *testing.T) {
	m := newTestModel(t)
	m = press(m, "right")
	m = press(m, "right")
	m = press(m, "q")
	if !m.quitting || m.err != nil {
		t.Fatalf("quitting = %v, err = %v", m.quitting, m.err)
	}

	chapter, page, err := m.lib.LoadPosition(m.book.ID, m.params)
	if err != nil {
		t.Fatal(err)
	}
	if chapter != 1 || page != 0 {
		t.Errorf("saved position = (%d, %d), want (1, 0)", chapter, page)
	}
}

func TestFreshStartIgnoresSavedPosition(t *testing.T) {
	m := newTestModel(t)
	if err := m.lib.SavePosition(m.book.ID, 1, 1, m.params); err != nil {
		t.Fatal(err)
	}

	resumed, err := newModel(m.lib, m.book, m.params, true)
	if err != nil {
		t.Fatal(err)
	}
	if resumed.chapter != 1 || resumed.page != 1 {
		t.Errorf("resumed at (%d, %d), want (1, 1)", resumed.chapter, resumed.page)
	}

	fresh, err := newModel(m.lib, m.book, m.params, false)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.chapter != 0 || fresh.page != 0 {
		t.Errorf("fresh start at (%d, %d), want (0, 0)", fresh.chapter, fresh.page)
	}
}

func TestView(t *testing.T) {
	m := newTestModel(t)
	view := m.View()
	for _, want := range []string{"Test Book", "Chapter 1/2", "Page 1/2", "1/4"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestViewUsesStoredCounts(t *testing.T) {
	m := newTestModel(t)
	if len(m.counts) != 2 || m.counts[0] != 2 || m.counts[1] != 2 {
		t.Fatalf("counts = %v, want [2 2]", m.counts)
	}

	// Rendering must not reach the library.
	m.lib = nil
	m.chapter, m.page = 1, 1
	if status := m.status(); !strings.Contains(status, "| 4/4") {
		t.Errorf("status = %q, want book page 4/4", status)
	}
}

func TestFontSizeRecounts(t *testing.T) {
	m := newTestModel(t)
	for range 6 {
		m = press(m, "+")
	}
	if m.err != nil {
		t.Fatal(m.err)
	}
	if len(m.counts) != 2 {
		t.Fatalf("counts = %v", m.counts)
	}
	if m.counts[m.chapter] != len(m.pages) {
		t.Errorf("counts[%d] = %d, chapter has %d pages", m.chapter, m.counts[m.chapter], len(m.pages))
	}
	if m.counts[0] != 4 {
		t.Errorf("counts[0] = %d, want 4 at one line per page", m.counts[0])
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 0, false},
		{"12", 11, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseIndex(tt.in, "chapter")
		if (err != nil) != tt.wantErr {
			t.Errorf("parseIndex(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseIndex(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := excerpt("short\nsecond line", 10); got != "short" {
		t.Errorf("excerpt = %q", got)
	}
	if got := excerpt("abcdefghij", 5); got != "abcd…" {
		t.Errorf("excerpt = %q", got)
	}
}

func TestWriteOutput(t *testing.T) {
	data := positionExport{Chapter: 2, Page: 5}

	var yamlOut strings.Builder
	if err := writeOutput(&yamlOut, "yaml", data); err != nil {
		t.Fatal(err)
	}
	if got := yamlOut.String(); got != "chapter: 2\npage: 5\n" {
		t.Errorf("yaml = %q", got)
	}

	var jsonOut strings.Builder
	if err := writeOutput(&jsonOut, "json", data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(jsonOut.String(), `"page": 5`) {
		t.Errorf("json = %q", jsonOut.String())
	}

	if err := writeOutput(&jsonOut, "xml", data); err == nil {
		t.Error("expected error for unknown format")
	}
}

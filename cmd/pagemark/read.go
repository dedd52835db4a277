package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/library"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	pageStyle = lipgloss.NewStyle().
			Padding(1, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Padding(0, 2)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

const (
	minFontSize  = 6
	maxFontSize  = 48
	fontSizeStep = 2
)

type model struct {
	lib  *library.Library
	book domain.BookMetadata
	// base is the configured parameters; font changes scale from it so
	// rounding does not accumulate.
	base   domain.RenderingParameters
	params domain.RenderingParameters

	chapter int
	page    int
	pages   []string
	notes   []domain.ResolvedNote
	// counts holds the page count of every chapter under params.
	counts []int

	input  textinput.Model
	noting bool

	err      error
	quitting bool
	width    int
	height   int
}

// newModel opens book at its saved position, or at the start when resume is false.
func newModel(lib *library.Library, book domain.BookMetadata, params domain.RenderingParameters, resume bool) (model, error) {
	ti := textinput.New()
	ti.Placeholder = "Write a note..."
	ti.CharLimit = 500
	ti.Width = 60

	m := model{
		lib:    lib,
		book:   book,
		base:   params,
		params: params,
		input:  ti,
		width:  80,
		height: 24,
	}

	var chapter, page int
	if resume {
		var err error
		if chapter, page, err = lib.LoadPosition(book.ID, params); err != nil {
			return m, err
		}
	}
	if err := m.load(chapter); err != nil {
		return m, err
	}
	m.page = min(page, len(m.pages)-1)
	m.count()
	m.refresh()
	return m, nil
}

// count recomputes the per-chapter page counts. It runs only when params
// change; a failure leaves the book-wide page number off the status line.
func (m *model) count() {
	counts, err := m.lib.ChapterCounts(m.book.ID, m.params)
	if err != nil {
		m.counts = nil
		m.err = err
		return
	}
	m.counts = counts
}

// position returns the book-wide page number and page total, or ok=false
// when the counts are unknown.
func (m model) position() (page, total int, ok bool) {
	if m.chapter >= len(m.counts) {
		return 0, 0, false
	}
	for i, n := range m.counts {
		if i < m.chapter {
			page += n
		}
		total += n
	}
	return page + m.page, total, true
}

// load paginates chapter and moves to its first page.
func (m *model) load(chapter int) error {
	pages, err := m.lib.Pages(m.book.ID, chapter, m.params)
	if err != nil {
		return err
	}
	m.chapter = chapter
	m.pages = pages
	m.page = 0
	return nil
}

// refresh reloads the notes of the current page.
func (m *model) refresh() {
	notes, err := m.lib.Notes().ForPage(m.book.ID, m.chapter, m.page, m.params)
	if err != nil {
		m.err = err
		return
	}
	m.notes = notes
}

func (m *model) next() {
	if m.page+1 < len(m.pages) {
		m.page++
		return
	}
	if m.chapter+1 < m.book.Chapters {
		m.err = m.load(m.chapter + 1)
	}
}

func (m *model) prev() {
	if m.page > 0 {
		m.page--
		return
	}
	if m.chapter > 0 {
		if m.err = m.load(m.chapter - 1); m.err == nil {
			m.page = len(m.pages) - 1
		}
	}
}

// setFontSize repaginates under a new font size and keeps the reader on
// the page holding the text they were looking at.
func (m *model) setFontSize(fontSize float64) {
	if fontSize < minFontSize || fontSize > maxFontSize {
		return
	}
	if m.err = m.lib.SavePosition(m.book.ID, m.chapter, m.page, m.params); m.err != nil {
		return
	}
	m.params = m.base.WithFontSize(fontSize)
	chapter, page, err := m.lib.LoadPosition(m.book.ID, m.params)
	if err != nil {
		m.err = err
		return
	}
	if m.err = m.load(chapter); m.err == nil {
		m.page = min(page, len(m.pages)-1)
		m.count()
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.noting {
		return m.updateNote(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		switch msg.String() {
		case "right", "l", " ", "pgdown":
			m.next()
			m.refresh()
			return m, nil

		case "left", "h", "pgup":
			m.prev()
			m.refresh()
			return m, nil

		case "+", "=":
			m.setFontSize(m.params.FontSize + fontSizeStep)
			m.refresh()
			return m, nil

		case "-":
			m.setFontSize(m.params.FontSize - fontSizeStep)
			m.refresh()
			return m, nil

		case "n":
			m.noting = true
			m.input.SetValue("")
			return m, m.input.Focus()

		case "q", "Q", "ctrl+c":
			m.err = m.lib.SavePosition(m.book.ID, m.chapter, m.page, m.params)
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}

	return m, nil
}

func (m model) updateNote(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			if text := strings.TrimSpace(m.input.Value()); text != "" {
				_, m.err = m.lib.Notes().Add(m.book.ID, m.chapter, m.pages[m.page], text)
			}
			m.noting = false
			m.input.Blur()
			m.refresh()
			return m, nil
		case "esc":
			m.noting = false
			m.input.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.book.Title))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(m.status()))
	sb.WriteString("\n")

	width := max(m.width-4, 20)
	sb.WriteString(pageStyle.Width(width).Render(m.pages[m.page]))
	sb.WriteString("\n")

	for _, n := range m.notes {
		sb.WriteString(noteStyle.Render("✎ " + n.Text))
		sb.WriteString("\n")
	}

	if m.err != nil {
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		sb.WriteString("\n")
	}

	if m.noting {
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(controlsStyle.Render("ENTER: save note  ESC: cancel"))
	} else {
		sb.WriteString(controlsStyle.Render("←/→: page  +/-: font size  N: note  Q: quit"))
	}
	return sb.String()
}

func (m model) status() string {
	s := fmt.Sprintf("Chapter %d/%d | Page %d/%d | Font %.0f",
		m.chapter+1, m.book.Chapters, m.page+1, len(m.pages), m.params.FontSize)
	if n, total, ok := m.position(); ok {
		s += fmt.Sprintf(" | %d/%d", n+1, total)
	}
	return s
}

var freshStart bool

var readCmd = &cobra.Command{
	Use:   "read <book>",
	Short: "Read a book, resuming at the saved position",
	Long: `Read a book in the terminal.

Controls:
  ←/→, h/l   Previous/next page
  +/-        Increase/decrease font size
  N          Add a note to the current page
  Q          Save position and quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, book, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		if book.Chapters == 0 {
			return fmt.Errorf("%s has no chapters", args[0])
		}

		m, err := newModel(s.lib, book, s.params(), !freshStart)
		if err != nil {
			return err
		}
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		final, err := p.Run()
		if err != nil {
			return err
		}
		if fm, ok := final.(model); ok && fm.err != nil {
			return fm.err
		}
		return nil
	},
}

func init() {
	readCmd.Flags().BoolVar(&freshStart, "fresh", false, "ignore the saved reading position")
	rootCmd.AddCommand(readCmd)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/metcalfc/pagemark/internal/domain"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Note management commands",
	Long: `Notes are anchored to the text of the page they were written on and
are placed on whichever page holds that text under the current settings.

Examples:
  pagemark notes list book.epub
  pagemark notes add book.epub 3 2 "Remember this"
  pagemark notes rm book.epub 1`,
}

// resolvedNotes lists a book's notes in display order. Note numbers used by
// the edit and rm commands index into this list.
func resolvedNotes(s *session, bookID string) ([]domain.ResolvedNote, error) {
	return s.lib.Notes().ResolveAll(bookID, s.params())
}

func pickNote(s *session, bookID, arg string) (domain.ResolvedNote, error) {
	i, err := parseIndex(arg, "note number")
	if err != nil {
		return domain.ResolvedNote{}, err
	}
	notes, err := resolvedNotes(s, bookID)
	if err != nil {
		return domain.ResolvedNote{}, err
	}
	if i >= len(notes) {
		return domain.ResolvedNote{}, fmt.Errorf("note %s does not exist (%d notes)", arg, len(notes))
	}
	return notes[i], nil
}

var notesListCmd = &cobra.Command{
	Use:   "list <book>",
	Short: "List notes with their current pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		notes, err := resolvedNotes(s, m.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, n := range notes {
			fmt.Fprintf(out, "%d. chapter %d, page %d: %s\n   > %s\n",
				i+1, n.Chapter+1, n.Page+1, n.Text, excerpt(n.Anchor, 60))
		}
		return nil
	},
}

var notesAddCmd = &cobra.Command{
	Use:   "add <book> <chapter> <page> <text>",
	Short: "Add a note to a page",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter, err := parseIndex(args[1], "chapter")
		if err != nil {
			return err
		}
		page, err := parseIndex(args[2], "page")
		if err != nil {
			return err
		}
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		pages, err := s.lib.Pages(m.ID, chapter, s.params())
		if err != nil {
			return err
		}
		if page >= len(pages) {
			return fmt.Errorf("chapter %d has %d pages", chapter+1, len(pages))
		}
		_, err = s.lib.Notes().Add(m.ID, chapter, pages[page], args[3])
		return err
	},
}

var notesEditCmd = &cobra.Command{
	Use:   "edit <book> <note> <text>",
	Short: "Change the text of a note",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := pickNote(s, m.ID, args[1])
		if err != nil {
			return err
		}
		return s.lib.Notes().Edit(m.ID, n.Chapter, n.Anchor, args[2])
	},
}

var notesRmCmd = &cobra.Command{
	Use:   "rm <book> <note>...",
	Short: "Delete notes by number",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		notes, err := resolvedNotes(s, m.ID)
		if err != nil {
			return err
		}
		byChapter := map[int][]string{}
		for _, arg := range args[1:] {
			i, err := parseIndex(arg, "note number")
			if err != nil {
				return err
			}
			if i >= len(notes) {
				return fmt.Errorf("note %s does not exist (%d notes)", arg, len(notes))
			}
			byChapter[notes[i].Chapter] = append(byChapter[notes[i].Chapter], notes[i].Anchor)
		}
		for chapter, anchors := range byChapter {
			if len(anchors) == 1 {
				err = s.lib.Notes().Delete(m.ID, chapter, anchors[0])
			} else {
				err = s.lib.Notes().DeleteMany(m.ID, chapter, anchors)
			}
			if err != nil {
				return err
			}
		}
		return nil
	},
}

var notesClearCmd = &cobra.Command{
	Use:   "clear <book>",
	Short: "Delete every note of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return s.lib.Notes().DeleteAll(m.ID)
	},
}

// excerpt returns the first line of s, cut to at most n runes.
func excerpt(s string, n int) string {
	line, _, _ := strings.Cut(s, "\n")
	r := []rune(line)
	if len(r) <= n {
		return line
	}
	return string(r[:n-1]) + "…"
}

func init() {
	notesCmd.AddCommand(notesListCmd, notesAddCmd, notesEditCmd, notesRmCmd, notesClearCmd)
	rootCmd.AddCommand(notesCmd)
}

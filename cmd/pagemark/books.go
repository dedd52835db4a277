package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:     "info <book>",
	Aliases: []string{"open"},
	Short:   "Register a book and show its metadata",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		params := s.params()
		total, err := s.lib.TotalPages(m.ID, params)
		if err != nil {
			return err
		}
		chapter, page, err := s.lib.LoadPosition(m.ID, params)
		if err != nil {
			return err
		}
		progress, err := s.lib.Progress(m.ID, params)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Title:    %s\n", m.Title)
		if m.Author != "" {
			fmt.Fprintf(out, "Author:   %s\n", m.Author)
		}
		if m.Lang != "" {
			fmt.Fprintf(out, "Language: %s\n", m.Lang)
		}
		fmt.Fprintf(out, "Chapters: %d\n", m.Chapters)
		fmt.Fprintf(out, "Pages:    %d (%d lines per page)\n", total, params.LinesPerPage)
		fmt.Fprintf(out, "Position: chapter %d, page %d\n", chapter+1, page+1)
		fmt.Fprintf(out, "Progress: %.0f%%\n", progress)
		if m.Favorite {
			fmt.Fprintln(out, "Favorite: yes")
		}
		if len(m.EditedChapters) > 0 {
			fmt.Fprintf(out, "Edited:   %s\n", chapterList(m.EditedChapters))
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered books",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		books, err := s.lib.Books()
		if err != nil {
			return err
		}
		for _, m := range books {
			mark := " "
			if m.Favorite {
				mark = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n    %s\n", mark, m.Title, m.ID)
		}
		return nil
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages <book> <chapter>",
	Short: "Print the pages of a chapter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter, err := parseIndex(args[1], "chapter")
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
		out := cmd.OutOrStdout()
		for i, p := range pages {
			fmt.Fprintf(out, "--- page %d/%d ---\n%s\n", i+1, len(pages), p)
		}
		return nil
	},
}

var tocCmd = &cobra.Command{
	Use:   "toc <book>",
	Short: "Print the table of contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		toc, err := s.lib.TOC(m.ID)
		if err != nil {
			return err
		}
		if len(toc) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No table of contents.")
			return nil
		}
		for _, e := range toc {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s (chapter %d)\n", strings.Repeat("  ", e.Level), e.Title, e.Chapter+1)
		}
		return nil
	},
}

var favoriteOff bool

var favoriteCmd = &cobra.Command{
	Use:   "favorite <book>",
	Short: "Mark a book as favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return s.lib.SetFavorite(m.ID, !favoriteOff)
	},
}

var editText string

var editCmd = &cobra.Command{
	Use:   "edit <book> <chapter> <page>",
	Short: "Replace the text of a page",
	Long: `Replace the text of one page of a chapter. The new text is read from
--text, or from stdin when --text is not given. Separate paragraphs with a
blank line.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter, err := parseIndex(args[1], "chapter")
		if err != nil {
			return err
		}
		page, err := parseIndex(args[2], "page")
		if err != nil {
			return err
		}

		text := editText
		if !cmd.Flags().Changed("text") {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = strings.TrimSpace(string(data))
		}

		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		pages, err := s.lib.EditPage(m.ID, chapter, page, s.params(), text)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Chapter %d now has %d pages.\n", chapter+1, len(pages))
		return nil
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <book> <chapter>",
	Short: "Discard the edits of a chapter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter, err := parseIndex(args[1], "chapter")
		if err != nil {
			return err
		}
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return s.lib.RevertChapter(m.ID, chapter, s.params())
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <book>",
	Short: "Delete the saved position, notes and caches of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, m, err := openBook(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return s.lib.Forget(m.ID)
	},
}

func chapterList(chapters []int) string {
	parts := make([]string, len(chapters))
	for i, c := range chapters {
		parts[i] = fmt.Sprint(c + 1)
	}
	return strings.Join(parts, ", ")
}

func init() {
	favoriteCmd.Flags().BoolVar(&favoriteOff, "off", false, "remove the favorite mark")
	editCmd.Flags().StringVar(&editText, "text", "", "replacement page text")

	rootCmd.AddCommand(openCmd, listCmd, pagesCmd, tocCmd, favoriteCmd, editCmd, revertCmd, forgetCmd)
}

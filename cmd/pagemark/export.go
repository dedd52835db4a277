package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// bookExport is the structured dump of everything pagemark knows about a book.
type bookExport struct {
	ID       string         `json:"id" yaml:"id"`
	Title    string         `json:"title" yaml:"title"`
	Author   string         `json:"author,omitempty" yaml:"author,omitempty"`
	Chapters int            `json:"chapters" yaml:"chapters"`
	Pages    int            `json:"pages" yaml:"pages"`
	Progress float64        `json:"progress" yaml:"progress"`
	Favorite bool           `json:"favorite" yaml:"favorite"`
	Edited   []int          `json:"edited_chapters,omitempty" yaml:"edited_chapters,omitempty"`
	Position positionExport `json:"position" yaml:"position"`
	Notes    []noteExport   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type positionExport struct {
	Chapter int `json:"chapter" yaml:"chapter"`
	Page    int `json:"page" yaml:"page"`
}

type noteExport struct {
	Chapter int    `json:"chapter" yaml:"chapter"`
	Page    int    `json:"page" yaml:"page"`
	Anchor  string `json:"anchor" yaml:"anchor"`
	Text    string `json:"text" yaml:"text"`
}

// writeOutput encodes data as yaml or json.
func writeOutput(w io.Writer, format string, data any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export <book>",
	Short: "Dump metadata, position and notes of a book",
	Long: `Dump what pagemark stores about a book. Chapter and page numbers are
1-based and computed under the current rendering settings.`,
	Args: cobra.ExactArgs(1),
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
		notes, err := s.lib.Notes().ResolveAll(m.ID, params)
		if err != nil {
			return err
		}

		out := bookExport{
			ID:       m.ID,
			Title:    m.Title,
			Author:   m.Author,
			Chapters: m.Chapters,
			Pages:    total,
			Progress: math.Round(progress*10) / 10,
			Favorite: m.Favorite,
			Position: positionExport{Chapter: chapter + 1, Page: page + 1},
		}
		for _, c := range m.EditedChapters {
			out.Edited = append(out.Edited, c+1)
		}
		for _, n := range notes {
			out.Notes = append(out.Notes, noteExport{
				Chapter: n.Chapter + 1,
				Page:    n.Page + 1,
				Anchor:  n.Anchor,
				Text:    n.Text,
			})
		}
		return writeOutput(cmd.OutOrStdout(), exportFormat, out)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "output", "o", "yaml", "output format: yaml or json")
	rootCmd.AddCommand(exportCmd)
}

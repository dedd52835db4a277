package reader

import (
	"html"
	"os"
	"strings"
)

// TextFormat implements Format for plain text files. The whole file is one chapter.
type TextFormat struct{}

func init() {
	Register(&TextFormat{})
}

func (f *TextFormat) Name() string         { return "Text" }
func (f *TextFormat) Extensions() []string { return []string{".txt", ".text"} }

func (f *TextFormat) Open(filename string) (Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return &textDocument{title: fileStem(filename), text: string(data)}, nil
}

type textDocument struct {
	title string
	text  string
}

func (d *textDocument) Metadata() Metadata { return Metadata{Title: d.title} }
func (d *textDocument) ChapterCount() int  { return 1 }
func (d *textDocument) Close() error       { return nil }

// Chapter wraps each blank-line separated paragraph in a <p> element.
func (d *textDocument) Chapter(i int) (string, error) {
	if err := checkChapter(i, 1); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range strings.Split(strings.ReplaceAll(d.text, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(html.EscapeString(p))
		sb.WriteString("</p>\n")
	}
	return sb.String(), nil
}

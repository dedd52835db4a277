package reader

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// MarkdownFormat implements Format for Markdown files.
type MarkdownFormat struct{}

func init() {
	Register(&MarkdownFormat{})
}

func (f *MarkdownFormat) Name() string         { return "Markdown" }
func (f *MarkdownFormat) Extensions() []string { return []string{".md", ".markdown"} }

func (f *MarkdownFormat) Open(filename string) (Document, error) {
	return OpenMarkdown(filename)
}

// headerRegex matches markdown headers (# to ######)
var headerRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// chapterLevel is the deepest header level that starts a new chapter.
const chapterLevel = 2

// MarkdownDocument splits a Markdown file into chapters at level 1 and 2 headers.
type MarkdownDocument struct {
	chapters []string
	toc      []TOCEntry
	title    string
}

// OpenMarkdown reads and splits a Markdown file. Text before the first
// chapter header becomes its own chapter when it is not blank.
func OpenMarkdown(filename string) (*MarkdownDocument, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	doc := &MarkdownDocument{}
	var current strings.Builder

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			doc.chapters = append(doc.chapters, current.String())
		}
		current.Reset()
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if match := headerRegex.FindStringSubmatch(line); match != nil {
			level := len(match[1])
			title := strings.TrimSpace(match[2])
			if level <= chapterLevel {
				flush()
			}
			if level == 1 && doc.title == "" {
				doc.title = title
			}
			doc.toc = append(doc.toc, TOCEntry{
				Title:   title,
				Chapter: len(doc.chapters),
				Level:   level - 1,
			})
		}

		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if doc.title == "" {
		doc.title = fileStem(filename)
	}
	return doc, nil
}

func (d *MarkdownDocument) Metadata() Metadata {
	return Metadata{Title: d.title}
}

func (d *MarkdownDocument) ChapterCount() int { return len(d.chapters) }

// Chapter renders chapter i to HTML.
func (d *MarkdownDocument) Chapter(i int) (string, error) {
	if err := checkChapter(i, len(d.chapters)); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(d.chapters[i]), &buf); err != nil {
		return "", fmt.Errorf("render chapter %d: %w", i, err)
	}
	return buf.String(), nil
}

// TOC returns every header with the chapter that contains it.
func (d *MarkdownDocument) TOC() ([]TOCEntry, error) {
	return d.toc, nil
}

func (d *MarkdownDocument) Close() error { return nil }

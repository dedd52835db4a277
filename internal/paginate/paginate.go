// Package paginate splits chapter text into pages.
//
// Pages are groups of paragraphs, a line-count proxy rather than pixel-accurate
// layout. The partition is a pure function of (text, linesPerPage).
package paginate

import (
	"fmt"
	"strings"

	"github.com/metcalfc/pagemark/internal/domain"
)

// ParagraphDelimiter separates paragraphs in chapter text.
const ParagraphDelimiter = "\n\n"

// Paginate splits text on blank lines and groups paragraph i into page i/linesPerPage.
// Empty text yields a single empty page.
func Paginate(text string, linesPerPage int) ([]string, error) {
	if linesPerPage <= 0 {
		return nil, fmt.Errorf("lines per page %d: %w", linesPerPage, domain.ErrInvalidParameter)
	}

	paragraphs := strings.Split(text, ParagraphDelimiter)
	pages := make([]string, 0, (len(paragraphs)+linesPerPage-1)/linesPerPage)

	var sb strings.Builder
	for i, p := range paragraphs {
		if i%linesPerPage == 0 {
			if i > 0 {
				pages = append(pages, sb.String())
				sb.Reset()
			}
		} else {
			sb.WriteString(ParagraphDelimiter)
		}
		sb.WriteString(p)
	}
	pages = append(pages, sb.String())

	return pages, nil
}

// Join reassembles pages into chapter text. Join(Paginate(t, n)) == t.
func Join(pages []string) string {
	return strings.Join(pages, ParagraphDelimiter)
}

// Count returns the number of pages text paginates into.
func Count(text string, linesPerPage int) (int, error) {
	pages, err := Paginate(text, linesPerPage)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

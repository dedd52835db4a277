// Package notes stores annotations anchored to page text rather than page
// indices, and maps them onto the current pagination on demand.
package notes

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/paginate"
	"github.com/metcalfc/pagemark/internal/similarity"
	"github.com/metcalfc/pagemark/internal/state"
)

// ErrNoteNotFound is returned when no note matches a chapter and anchor.
var ErrNoteNotFound = errors.New("note not found")

// AnchorLimit is the page length, in characters, above which anchors are truncated.
const AnchorLimit = 200

// Records reads and updates persisted notes.
type Records interface {
	Notes(bookID string) ([]state.ChapterNotes, error)
	UpdateNotes(bookID string, fn func(*[]state.ChapterNotes) error) error
}

// ChapterSource resolves chapter text.
type ChapterSource interface {
	Resolve(bookID string, chapter int) (string, error)
}

// Store manages notes for every book.
type Store struct {
	records Records
	source  ChapterSource
	logger  *slog.Logger
}

func NewStore(records Records, source ChapterSource, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{records: records, source: source, logger: logger}
}

// Anchor derives the anchor snippet for a page: the whole text when it has at
// most AnchorLimit characters, else its first third.
func Anchor(pageText string) string {
	runes := []rune(pageText)
	if len(runes) <= AnchorLimit {
		return pageText
	}
	return string(runes[:len(runes)/3])
}

// Add stores a note on the page whose text is pageText and returns its anchor.
func (s *Store) Add(bookID string, chapter int, pageText, text string) (string, error) {
	anchor := Anchor(pageText)
	err := s.records.UpdateNotes(bookID, func(groups *[]state.ChapterNotes) error {
		entry := state.NoteEntry{Start: anchor, Note: text}
		for i := range *groups {
			if (*groups)[i].Chapter == chapter {
				(*groups)[i].Notes = append((*groups)[i].Notes, entry)
				return nil
			}
		}
		*groups = append(*groups, state.ChapterNotes{Chapter: chapter, Notes: []state.NoteEntry{entry}})
		return nil
	})
	if err != nil {
		return "", err
	}
	return anchor, nil
}

// ResolveAll maps every note of a book onto the pagination under params,
// ordered by chapter then page. Each chapter is paginated once. Notes whose
// chapter cannot be resolved, or whose anchor matches no page, are left out.
func (s *Store) ResolveAll(bookID string, params domain.RenderingParameters) ([]domain.ResolvedNote, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	groups, err := s.records.Notes(bookID)
	if err != nil {
		return nil, err
	}

	var resolved []domain.ResolvedNote
	for _, g := range groups {
		if len(g.Notes) == 0 {
			continue
		}
		pages, err := s.pages(bookID, g.Chapter, params)
		if err != nil {
			s.logger.Warn("skipping notes of unresolvable chapter",
				"book", bookID, "chapter", g.Chapter, "notes", len(g.Notes), "error", err)
			continue
		}
		for _, n := range g.Notes {
			match, ok := locate(pages, n.Start)
			if !ok {
				s.logger.Warn("note anchor matches no page", "book", bookID, "chapter", g.Chapter)
				continue
			}
			resolved = append(resolved, domain.ResolvedNote{
				Note: domain.Note{Chapter: g.Chapter, Anchor: n.Start, Text: n.Note},
				Page: match.Index,
			})
		}
	}

	slices.SortStableFunc(resolved, func(a, b domain.ResolvedNote) int {
		if a.Chapter != b.Chapter {
			return a.Chapter - b.Chapter
		}
		return a.Page - b.Page
	})
	return resolved, nil
}

// ForPage returns the notes that currently resolve to one page.
func (s *Store) ForPage(bookID string, chapter, page int, params domain.RenderingParameters) ([]domain.ResolvedNote, error) {
	all, err := s.ResolveAll(bookID, params)
	if err != nil {
		return nil, err
	}
	var out []domain.ResolvedNote
	for _, n := range all {
		if n.Chapter == chapter && n.Page == page {
			out = append(out, n)
		}
	}
	return out, nil
}

// locate finds the page an anchor belongs to. A blank anchor was taken from a
// blank page, so it goes to the first blank page, else page 0.
func locate(pages []string, anchor string) (similarity.Match, bool) {
	if similarity.Normalize(anchor) != "" {
		return similarity.BestMatch(pages, anchor)
	}
	for i, p := range pages {
		if similarity.Normalize(p) == "" {
			return similarity.Match{Index: i, Score: 1}, true
		}
	}
	return similarity.Match{}, len(pages) > 0
}

func (s *Store) pages(bookID string, chapter int, params domain.RenderingParameters) ([]string, error) {
	text, err := s.source.Resolve(bookID, chapter)
	if err != nil {
		return nil, err
	}
	return paginate.Paginate(text, params.LinesPerPage)
}

// Edit replaces the text of the note with an exact (chapter, anchor) match.
func (s *Store) Edit(bookID string, chapter int, anchor, text string) error {
	return s.records.UpdateNotes(bookID, func(groups *[]state.ChapterNotes) error {
		for gi := range *groups {
			g := &(*groups)[gi]
			if g.Chapter != chapter {
				continue
			}
			for i := len(g.Notes) - 1; i >= 0; i-- {
				if g.Notes[i].Start == anchor {
					g.Notes[i].Note = text
					return nil
				}
			}
		}
		return fmt.Errorf("%w: chapter %d", ErrNoteNotFound, chapter)
	})
}

// Delete removes the note with an exact (chapter, anchor) match. When several
// notes share the anchor the most recently added one goes. Deleting a missing
// note is not an error.
func (s *Store) Delete(bookID string, chapter int, anchor string) error {
	return s.records.UpdateNotes(bookID, func(groups *[]state.ChapterNotes) error {
		for gi := range *groups {
			g := &(*groups)[gi]
			if g.Chapter != chapter {
				continue
			}
			for i := len(g.Notes) - 1; i >= 0; i-- {
				if g.Notes[i].Start == anchor {
					g.Notes = slices.Delete(g.Notes, i, i+1)
					break
				}
			}
		}
		*groups = compact(*groups)
		return nil
	})
}

// DeleteMany removes every note of a chapter whose anchor is in anchors.
func (s *Store) DeleteMany(bookID string, chapter int, anchors []string) error {
	return s.records.UpdateNotes(bookID, func(groups *[]state.ChapterNotes) error {
		for gi := range *groups {
			g := &(*groups)[gi]
			if g.Chapter != chapter {
				continue
			}
			g.Notes = slices.DeleteFunc(g.Notes, func(n state.NoteEntry) bool {
				return slices.Contains(anchors, n.Start)
			})
		}
		*groups = compact(*groups)
		return nil
	})
}

// DeleteAll removes every note of a book.
func (s *Store) DeleteAll(bookID string) error {
	return s.records.UpdateNotes(bookID, func(groups *[]state.ChapterNotes) error {
		*groups = []state.ChapterNotes{}
		return nil
	})
}

// compact drops chapter groups left without notes.
func compact(groups []state.ChapterNotes) []state.ChapterNotes {
	return slices.DeleteFunc(groups, func(g state.ChapterNotes) bool {
		return len(g.Notes) == 0
	})
}

// Package position maps saved reading positions onto the current pagination.
package position

import (
	"fmt"
	"log/slog"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/paginate"
	"github.com/metcalfc/pagemark/internal/similarity"
)

// ChapterSource resolves chapter text.
type ChapterSource interface {
	Resolve(bookID string, chapter int) (string, error)
}

// BookIndex reports book metadata, used for the chapter count.
type BookIndex interface {
	Metadata(bookID string) (domain.BookMetadata, bool, error)
}

// Reconciler decides whether a saved page index is still valid and relocates
// it by content when it is not.
type Reconciler struct {
	source ChapterSource
	books  BookIndex
	logger *slog.Logger
}

func NewReconciler(source ChapterSource, books BookIndex, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{source: source, books: books, logger: logger}
}

// Reconcile returns saved's chapter and page unchanged when it was recorded
// under current parameters. Otherwise the page is relocated by content.
func (r *Reconciler) Reconcile(bookID string, saved domain.ReadingPosition, current domain.RenderingParameters) (chapter, page int, err error) {
	if saved.Params == current {
		return saved.Chapter, saved.Page, nil
	}
	return r.Relocate(bookID, saved, current)
}

// Relocate paginates the saved chapter under current and returns the page
// that best matches the saved snippet. It fails with domain.ErrPositionLost
// when the chapter no longer exists or no page matches at all.
func (r *Reconciler) Relocate(bookID string, saved domain.ReadingPosition, current domain.RenderingParameters) (chapter, page int, err error) {
	if err := current.Validate(); err != nil {
		return 0, 0, err
	}

	m, ok, err := r.books.Metadata(bookID)
	if err != nil {
		return 0, 0, err
	}
	if !ok || saved.Chapter < 0 || saved.Chapter >= m.Chapters {
		return 0, 0, fmt.Errorf("%w: chapter %d of %s", domain.ErrPositionLost, saved.Chapter, bookID)
	}

	text, err := r.source.Resolve(bookID, saved.Chapter)
	if err != nil {
		return 0, 0, err
	}
	pages, err := paginate.Paginate(text, current.LinesPerPage)
	if err != nil {
		return 0, 0, err
	}

	match, ok := similarity.BestMatch(pages, saved.Snippet)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no page of chapter %d matches", domain.ErrPositionLost, saved.Chapter)
	}

	r.logger.Debug("position relocated",
		"book", bookID, "chapter", saved.Chapter,
		"from", saved.Page, "to", match.Index, "score", match.Score)
	return saved.Chapter, match.Index, nil
}

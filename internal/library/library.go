// Package library ties the content, pagination, position and note components
// together into the operations a reader performs on an open book.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/metcalfc/pagemark/internal/content"
	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/notes"
	"github.com/metcalfc/pagemark/internal/pagecount"
	"github.com/metcalfc/pagemark/internal/paginate"
	"github.com/metcalfc/pagemark/internal/position"
	"github.com/metcalfc/pagemark/internal/reader"
	"github.com/metcalfc/pagemark/internal/state"
)

// Options configures a Library.
type Options struct {
	// DataDir holds the state database.
	DataDir string
	Dirs    content.Dirs
	// Workers bounds the page count pool. Zero means pagecount.DefaultWorkers.
	Workers int
	// Opener overrides how source documents are opened.
	Opener content.Opener
	Logger *slog.Logger
}

// Library is the entry point for every book operation.
type Library struct {
	store      *state.Store
	resolver   *content.Resolver
	counter    *pagecount.Aggregator
	reconciler *position.Reconciler
	notes      *notes.Store
	logger     *slog.Logger
}

// New opens the state store and wires the components.
func New(opts Options) (*Library, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := state.Open(opts.DataDir)
	if err != nil {
		return nil, err
	}

	resolver := content.NewResolver(opts.Dirs, opts.Opener, logger)
	return &Library{
		store:      store,
		resolver:   resolver,
		counter:    pagecount.New(resolver, store, opts.Workers, logger),
		reconciler: position.NewReconciler(resolver, store, logger),
		notes:      notes.NewStore(store, resolver, logger),
		logger:     logger,
	}, nil
}

func (l *Library) Close() error {
	return l.store.Close()
}

// Notes returns the note store.
func (l *Library) Notes() *notes.Store {
	return l.notes
}

// BookID returns the canonical identifier of the book at path.
func BookID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Open registers the book at path, creating its metadata from the source
// document on first access.
func (l *Library) Open(path string) (domain.BookMetadata, error) {
	id, err := BookID(path)
	if err != nil {
		return domain.BookMetadata{}, err
	}

	m, ok, err := l.store.Metadata(id)
	if err != nil {
		return domain.BookMetadata{}, err
	}
	if ok {
		return m, nil
	}

	doc, err := l.resolver.Document(id)
	if err != nil {
		return domain.BookMetadata{}, err
	}
	defer doc.Close()

	meta := doc.Metadata()
	err = l.store.UpdateMetadata(id, func(m *domain.BookMetadata) error {
		m.Title = meta.Title
		m.Author = meta.Author
		m.Lang = meta.Lang
		m.Description = meta.Description
		m.Chapters = doc.ChapterCount()
		m.Favorite = false
		return nil
	})
	if err != nil {
		return domain.BookMetadata{}, err
	}

	l.logger.Info("book registered", "book", id, "title", meta.Title, "chapters", doc.ChapterCount())
	m, _, err = l.store.Metadata(id)
	return m, err
}

// Books returns the metadata of every registered book.
func (l *Library) Books() ([]domain.BookMetadata, error) {
	ids, err := l.store.Books()
	if err != nil {
		return nil, err
	}
	books := make([]domain.BookMetadata, 0, len(ids))
	for _, id := range ids {
		m, ok, err := l.store.Metadata(id)
		if err != nil {
			return nil, err
		}
		if ok {
			books = append(books, m)
		}
	}
	return books, nil
}

// Metadata returns the metadata of a registered book.
func (l *Library) Metadata(bookID string) (domain.BookMetadata, error) {
	m, ok, err := l.store.Metadata(bookID)
	if err != nil {
		return domain.BookMetadata{}, err
	}
	if !ok {
		return domain.BookMetadata{}, fmt.Errorf("%w: book %s is not registered", domain.ErrContentUnavailable, bookID)
	}
	return m, nil
}

// Pages returns the pagination of a chapter.
func (l *Library) Pages(bookID string, chapter int, params domain.RenderingParameters) ([]string, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	text, err := l.resolver.Resolve(bookID, chapter)
	if err != nil {
		return nil, err
	}
	return paginate.Paginate(text, params.LinesPerPage)
}

func (l *Library) page(bookID string, chapter, page int, params domain.RenderingParameters) ([]string, error) {
	pages, err := l.Pages(bookID, chapter, params)
	if err != nil {
		return nil, err
	}
	if page < 0 || page >= len(pages) {
		return nil, fmt.Errorf("%w: page %d of %d in chapter %d", domain.ErrInvalidParameter, page, len(pages), chapter)
	}
	return pages, nil
}

// SavePosition records the reading position with the current page text as
// its snippet.
func (l *Library) SavePosition(bookID string, chapter, page int, params domain.RenderingParameters) error {
	pages, err := l.page(bookID, chapter, page, params)
	if err != nil {
		return err
	}
	pos := domain.ReadingPosition{Chapter: chapter, Page: page, Params: params, Snippet: pages[page]}
	return l.store.UpdateReadingState(bookID, func(rs *state.ReadingState) error {
		rs.SetPosition(pos)
		rs.EditedChapters = domain.RemoveChapter(rs.EditedChapters, chapter)
		return nil
	})
}

// LoadPosition returns where to resume reading under params. A book without
// a saved position opens at (0, 0). A position that cannot be relocated
// falls back to the start of its chapter.
func (l *Library) LoadPosition(bookID string, params domain.RenderingParameters) (chapter, page int, err error) {
	rs, ok, err := l.store.ReadingState(bookID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, nil
	}

	saved := rs.Position()
	edited := domain.BookMetadata{EditedChapters: rs.EditedChapters}
	if edited.IsEdited(saved.Chapter) {
		chapter, page, err = l.reconciler.Relocate(bookID, saved, params)
	} else {
		chapter, page, err = l.reconciler.Reconcile(bookID, saved, params)
	}
	if err == nil {
		return chapter, page, nil
	}
	if !errors.Is(err, domain.ErrPositionLost) {
		return 0, 0, err
	}

	chapter = saved.Chapter
	if m, ok, _ := l.store.Metadata(bookID); ok && m.Chapters > 0 {
		chapter = min(max(chapter, 0), m.Chapters-1)
	} else {
		chapter = max(chapter, 0)
	}
	l.logger.Warn("reading position lost, falling back to chapter start",
		"book", bookID, "chapter", chapter, "error", err)
	return chapter, 0, nil
}

// EditPage replaces one page of a chapter with text and returns the new
// pagination. The total page count is recomputed when the chapter's page
// count changed.
func (l *Library) EditPage(bookID string, chapter, page int, params domain.RenderingParameters, text string) ([]string, error) {
	pages, err := l.page(bookID, chapter, page, params)
	if err != nil {
		return nil, err
	}
	before := len(pages)
	pages[page] = text
	joined := paginate.Join(pages)

	// Edited text on disk is always marked in metadata.
	var wasEdited bool
	err = l.store.UpdateMetadata(bookID, func(m *domain.BookMetadata) error {
		wasEdited = m.IsEdited(chapter)
		m.MarkEdited(chapter)
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := content.EditPayload{Chapter: chapter, Page: page, Text: text}
	if err := l.resolver.Edit(bookID, chapter, joined, payload); err != nil {
		if !wasEdited {
			l.undoEdit(bookID, chapter)
		}
		return nil, err
	}
	if err := l.markChanged(bookID, chapter); err != nil {
		return nil, err
	}

	updated, err := paginate.Paginate(joined, params.LinesPerPage)
	if err != nil {
		return nil, err
	}
	if len(updated) != before {
		l.recount(bookID, params)
	}
	return updated, nil
}

// undoEdit rolls back a failed first edit of a chapter.
func (l *Library) undoEdit(bookID string, chapter int) {
	if err := l.resolver.Revert(bookID, chapter); err != nil {
		l.logger.Warn("partial edit not removed", "book", bookID, "chapter", chapter, "error", err)
	}
	err := l.store.UpdateMetadata(bookID, func(m *domain.BookMetadata) error {
		m.UnmarkEdited(chapter)
		return nil
	})
	if err != nil {
		l.logger.Warn("edit marker not cleared", "book", bookID, "chapter", chapter, "error", err)
	}
}

// RevertChapter drops the user edit of a chapter.
func (l *Library) RevertChapter(bookID string, chapter int, params domain.RenderingParameters) error {
	if err := l.resolver.Revert(bookID, chapter); err != nil {
		return err
	}
	err := l.store.UpdateMetadata(bookID, func(m *domain.BookMetadata) error {
		m.UnmarkEdited(chapter)
		return nil
	})
	if err != nil {
		return err
	}
	if err := l.markChanged(bookID, chapter); err != nil {
		return err
	}
	l.recount(bookID, params)
	return nil
}

// markChanged flags a chapter whose text changed after the saved position
// was recorded, so the next load relocates by content.
func (l *Library) markChanged(bookID string, chapter int) error {
	_, ok, err := l.store.ReadingState(bookID)
	if err != nil || !ok {
		return err
	}
	return l.store.UpdateReadingState(bookID, func(rs *state.ReadingState) error {
		rs.EditedChapters = domain.AddChapter(rs.EditedChapters, chapter)
		return nil
	})
}

func (l *Library) recount(bookID string, params domain.RenderingParameters) {
	if _, err := l.counter.Compute(bookID, params); err != nil {
		l.logger.Warn("total page count not updated", "book", bookID, "error", err)
	}
}

// SetFavorite sets the favorite flag of a book.
func (l *Library) SetFavorite(bookID string, favorite bool) error {
	m, err := l.Metadata(bookID)
	if err != nil {
		return err
	}
	if m.Favorite == favorite {
		return nil
	}
	return l.store.UpdateMetadata(bookID, func(m *domain.BookMetadata) error {
		m.Favorite = favorite
		return nil
	})
}

// TotalPages returns the page count of the whole book under params.
func (l *Library) TotalPages(bookID string, params domain.RenderingParameters) (int, error) {
	return l.counter.TotalPages(bookID, params)
}

// ChapterCounts returns the page count of every chapter under params. The
// counts are computed in parallel, so callers hold on to them until params
// change.
func (l *Library) ChapterCounts(bookID string, params domain.RenderingParameters) ([]int, error) {
	m, err := l.Metadata(bookID)
	if err != nil {
		return nil, err
	}
	return l.counter.ChapterCounts(bookID, m.Chapters, params)
}

// CumulativePage returns the book-wide page number of a chapter page: the
// pages of every earlier chapter plus page.
func (l *Library) CumulativePage(bookID string, chapter, page int, params domain.RenderingParameters) (int, error) {
	m, err := l.Metadata(bookID)
	if err != nil {
		return 0, err
	}
	if chapter < 0 || chapter >= m.Chapters {
		return 0, fmt.Errorf("%w: chapter %d of %d", domain.ErrInvalidParameter, chapter, m.Chapters)
	}
	counts, err := l.counter.ChapterCounts(bookID, chapter, params)
	if err != nil {
		return 0, err
	}
	total := page
	for _, n := range counts {
		total += n
	}
	return total, nil
}

// Progress returns the share of the book read at the saved position, as a
// percentage: the pages before the current one over the book total.
func (l *Library) Progress(bookID string, params domain.RenderingParameters) (float64, error) {
	chapter, page, err := l.LoadPosition(bookID, params)
	if err != nil {
		return 0, err
	}
	total, err := l.TotalPages(bookID, params)
	if err != nil || total == 0 {
		return 0, err
	}
	read, err := l.CumulativePage(bookID, chapter, page, params)
	if err != nil {
		return 0, err
	}
	return float64(read) / float64(total) * 100, nil
}

// TOC returns the table of contents of a book, or nil if it has none.
func (l *Library) TOC(bookID string) ([]reader.TOCEntry, error) {
	doc, err := l.resolver.Document(bookID)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return reader.TOC(doc)
}

// Forget deletes every persisted record and cached chapter of a book.
func (l *Library) Forget(bookID string) error {
	if err := l.store.DeleteBook(bookID); err != nil {
		return err
	}
	if err := l.resolver.Forget(bookID); err != nil {
		return fmt.Errorf("remove chapter caches: %w", err)
	}
	l.logger.Info("book forgotten", "book", bookID)
	return nil
}

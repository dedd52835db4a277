// Package pagecount computes and memoizes the total page count of a book.
package pagecount

import (
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/paginate"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// ChapterSource resolves chapter text.
type ChapterSource interface {
	Resolve(bookID string, chapter int) (string, error)
}

// MetadataStore reads and updates book metadata.
type MetadataStore interface {
	Metadata(bookID string) (domain.BookMetadata, bool, error)
	UpdateMetadata(bookID string, fn func(*domain.BookMetadata) error) error
}

// Aggregator paginates every chapter of a book on a bounded worker pool.
type Aggregator struct {
	source  ChapterSource
	store   MetadataStore
	workers int
	logger  *slog.Logger
}

func New(source ChapterSource, store MetadataStore, workers int, logger *slog.Logger) *Aggregator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{source: source, store: store, workers: workers, logger: logger}
}

type chapterResult struct {
	chapter int
	pages   int
	err     error
}

// ChapterCounts paginates chapters [0, chapters) in parallel and returns the
// page count of each. It waits for every task; if any failed it returns an
// *domain.AggregationError for the lowest failing chapter and no counts.
func (a *Aggregator) ChapterCounts(bookID string, chapters int, params domain.RenderingParameters) ([]int, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("lines per page %d: %w", params.LinesPerPage, err)
	}

	results := make(chan chapterResult, chapters)
	p := pool.New().WithMaxGoroutines(a.workers)
	for i := 0; i < chapters; i++ {
		p.Go(func() {
			r := chapterResult{chapter: i}
			text, err := a.source.Resolve(bookID, i)
			if err == nil {
				r.pages, err = paginate.Count(text, params.LinesPerPage)
			}
			r.err = err
			results <- r
		})
	}

	counts := make([]int, chapters)
	var failed *domain.AggregationError
	for range chapters {
		r := <-results
		if r.err != nil {
			if failed == nil || r.chapter < failed.Chapter {
				failed = &domain.AggregationError{Chapter: r.chapter, Err: r.err}
			}
			continue
		}
		counts[r.chapter] = r.pages
	}
	p.Wait()

	if failed != nil {
		return nil, failed
	}
	return counts, nil
}

// Compute recomputes the total page count and memoizes it in the book's
// metadata. Nothing is written when any chapter fails.
func (a *Aggregator) Compute(bookID string, params domain.RenderingParameters) (int, error) {
	m, ok, err := a.store.Metadata(bookID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: book %s is not registered", domain.ErrContentUnavailable, bookID)
	}

	counts, err := a.ChapterCounts(bookID, m.Chapters, params)
	if err != nil {
		a.logger.Warn("page count failed", "book", bookID, "error", err)
		return 0, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	err = a.store.UpdateMetadata(bookID, func(m *domain.BookMetadata) error {
		m.TotalPages = &total
		m.PagesLines = params.LinesPerPage
		return nil
	})
	if err != nil {
		return 0, err
	}

	a.logger.Info("page count computed", "book", bookID, "chapters", m.Chapters, "pages", total)
	return total, nil
}

// TotalPages returns the memoized total when it was computed under the same
// lines per page, and computes it otherwise.
func (a *Aggregator) TotalPages(bookID string, params domain.RenderingParameters) (int, error) {
	m, ok, err := a.store.Metadata(bookID)
	if err != nil {
		return 0, err
	}
	if ok && m.TotalPages != nil && m.PagesLines == params.LinesPerPage {
		return *m.TotalPages, nil
	}
	return a.Compute(bookID, params)
}

package pagecount

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/state"
)

const book = "/books/test.epub"

// chapterText builds text with n paragraphs.
func chapterText(n int) string {
	paras := make([]string, n)
	for i := range paras {
		paras[i] = "paragraph"
	}
	return strings.Join(paras, "\n\n")
}

type fakeSource struct {
	chapters []string
	fail     map[int]bool
	calls    atomic.Int32

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *fakeSource) Resolve(_ string, chapter int) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.active++
	s.maxSeen = max(s.maxSeen, s.active)
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if s.fail[chapter] {
		return "", domain.ErrContentUnavailable
	}
	return s.chapters[chapter], nil
}

func setup(t *testing.T, src *fakeSource) (*Aggregator, *state.Store) {
	t.Helper()
	store, err := state.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.UpdateMetadata(book, func(m *domain.BookMetadata) error {
		m.Chapters = len(src.chapters)
		return nil
	}))
	return New(src, store, 4, nil), store
}

var params = domain.RenderingParameters{LinesPerPage: 2, FontSize: 12}

func TestComputeSumsChapters(t *testing.T) {
	// 8, 6 and 10 paragraphs at two per page give 4, 3 and 5 pages.
	src := &fakeSource{chapters: []string{chapterText(8), chapterText(6), chapterText(10)}}
	agg, store := setup(t, src)

	counts, err := agg.ChapterCounts(book, 3, params)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 5}, counts)

	total, err := agg.Compute(book, params)
	require.NoError(t, err)
	assert.Equal(t, 12, total)

	m, _, err := store.Metadata(book)
	require.NoError(t, err)
	require.NotNil(t, m.TotalPages)
	assert.Equal(t, 12, *m.TotalPages)
	assert.Equal(t, 2, m.PagesLines)
}

func TestTotalPagesMemoized(t *testing.T) {
	src := &fakeSource{chapters: []string{chapterText(3), chapterText(1)}}
	agg, _ := setup(t, src)

	total, err := agg.TotalPages(book, params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	calls := src.calls.Load()

	total, err = agg.TotalPages(book, params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, calls, src.calls.Load(), "memoized total should not resolve chapters again")

	// A different lines per page is a different pagination.
	total, err = agg.TotalPages(book, domain.RenderingParameters{LinesPerPage: 1, FontSize: 12})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestComputeBoundedWorkers(t *testing.T) {
	chapters := make([]string, 20)
	for i := range chapters {
		chapters[i] = chapterText(i + 1)
	}
	src := &fakeSource{chapters: chapters}
	agg, _ := setup(t, src)

	_, err := agg.Compute(book, params)
	require.NoError(t, err)
	assert.LessOrEqual(t, src.maxSeen, 4)
	assert.EqualValues(t, 20, src.calls.Load())
}

func TestComputeFailureDiscardsTotal(t *testing.T) {
	src := &fakeSource{
		chapters: []string{chapterText(2), chapterText(2), chapterText(2), chapterText(2)},
		fail:     map[int]bool{1: true, 3: true},
	}
	agg, store := setup(t, src)

	_, err := agg.Compute(book, params)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAggregationFailed)
	assert.ErrorIs(t, err, domain.ErrContentUnavailable)

	var aggErr *domain.AggregationError
	require.True(t, errors.As(err, &aggErr))
	assert.Equal(t, 1, aggErr.Chapter)

	m, _, err := store.Metadata(book)
	require.NoError(t, err)
	assert.Nil(t, m.TotalPages, "failed aggregation must not persist a total")
}

func TestComputeInvalidParameter(t *testing.T) {
	agg, _ := setup(t, &fakeSource{chapters: []string{"x"}})
	_, err := agg.Compute(book, domain.RenderingParameters{LinesPerPage: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestComputeUnknownBook(t *testing.T) {
	agg, _ := setup(t, &fakeSource{})
	_, err := agg.Compute("/nowhere.epub", params)
	assert.ErrorIs(t, err, domain.ErrContentUnavailable)
}

package content

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/pagemark/internal/domain"
	"github.com/metcalfc/pagemark/internal/reader"
)

type fakeDoc struct {
	chapters []string
}

func (d *fakeDoc) Metadata() reader.Metadata { return reader.Metadata{Title: "Fake"} }
func (d *fakeDoc) ChapterCount() int         { return len(d.chapters) }
func (d *fakeDoc) Close() error              { return nil }
func (d *fakeDoc) Chapter(i int) (string, error) {
	if i < 0 || i >= len(d.chapters) {
		return "", errors.New("no such chapter")
	}
	return d.chapters[i], nil
}

type fixture struct {
	resolver *Resolver
	dirs     Dirs
	opens    *atomic.Int32
}

func newFixture(t *testing.T, chapters ...string) fixture {
	t.Helper()
	root := t.TempDir()
	dirs := Dirs{
		Extracted: filepath.Join(root, "saved_books"),
		Edited:    filepath.Join(root, "edited_books"),
	}
	opens := &atomic.Int32{}
	open := func(bookID string) (reader.Document, error) {
		opens.Add(1)
		if bookID != "book.epub" {
			return nil, os.ErrNotExist
		}
		return &fakeDoc{chapters: chapters}, nil
	}
	return fixture{resolver: NewResolver(dirs, open, nil), dirs: dirs, opens: opens}
}

func (f fixture) extractedPath(chapter int) string {
	return NewExtractedTier(f.dirs.Extracted).path(Key{BookID: "book.epub", Chapter: chapter})
}

func TestResolveFromSourceWritesBack(t *testing.T) {
	f := newFixture(t, "<p>One</p><p>Two</p>")

	text, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, "One\n\nTwo", text)
	assert.EqualValues(t, 1, f.opens.Load())

	markup, err := os.ReadFile(f.extractedPath(0))
	require.NoError(t, err, "source hit should populate the extracted tier")
	assert.Equal(t, "<p>One</p><p>Two</p>", string(markup))

	// Memory tier answers now; the source is not opened again.
	text, err = f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, "One\n\nTwo", text)
	assert.EqualValues(t, 1, f.opens.Load())
}

func TestResolveFromExtractedTier(t *testing.T) {
	f := newFixture(t, "<p>from source</p>")
	require.NoError(t, writeFile(f.extractedPath(0), []byte("<p>from cache</p>")))

	text, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, "from cache", text)
	assert.EqualValues(t, 0, f.opens.Load())
}

func TestEditedTierWins(t *testing.T) {
	f := newFixture(t, "<p>original</p>")

	_, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)

	edited := "edited text\n\nkept verbatim  "
	require.NoError(t, f.resolver.Edit("book.epub", 0, edited, EditPayload{Chapter: 0, Text: edited}))

	text, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, edited, text)

	// A fresh resolver over the same directories sees the edit on disk.
	again := NewResolver(f.dirs, func(string) (reader.Document, error) {
		return nil, os.ErrNotExist
	}, nil)
	text, err = again.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, edited, text)

	payload := filepath.Join(f.dirs.Edited, BookDir("book.epub"), "0.json")
	assert.FileExists(t, payload)
}

func TestRevert(t *testing.T) {
	f := newFixture(t, "<p>original</p>")
	require.NoError(t, f.resolver.Edit("book.epub", 0, "changed", EditPayload{}))

	require.NoError(t, f.resolver.Revert("book.epub", 0))

	text, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", text)

	// Reverting twice is harmless.
	require.NoError(t, f.resolver.Revert("book.epub", 0))
}

func TestResolveContentUnavailable(t *testing.T) {
	f := newFixture(t, "<p>only</p>")

	_, err := f.resolver.Resolve("book.epub", 5)
	assert.ErrorIs(t, err, domain.ErrContentUnavailable)

	_, err = f.resolver.Resolve("missing.epub", 0)
	assert.ErrorIs(t, err, domain.ErrContentUnavailable)
}

func TestForget(t *testing.T) {
	f := newFixture(t, "<p>original</p>")
	_, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	require.NoError(t, f.resolver.Edit("book.epub", 0, "changed", EditPayload{}))

	require.NoError(t, f.resolver.Forget("book.epub"))

	assert.NoDirExists(t, filepath.Join(f.dirs.Extracted, BookDir("book.epub")))
	assert.NoDirExists(t, filepath.Join(f.dirs.Edited, BookDir("book.epub")))

	text, err := f.resolver.Resolve("book.epub", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", text)
}

func TestBookDir(t *testing.T) {
	a := BookDir("/books/Moby Dick.epub")
	b := BookDir("/other/Moby Dick.epub")
	assert.NotEqual(t, a, b, "same stem in different folders must not collide")
	assert.Contains(t, a, "Moby Dick-")
	assert.Equal(t, a, BookDir("/books/Moby Dick.epub"))
	assert.NotContains(t, BookDir(`C:\x:y.epub`), ":")
}

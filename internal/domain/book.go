// Package domain holds the types shared by the pagination, position and note packages.
package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// RenderingParameters identify a pagination. Two sets are equal only if every field matches.
// Only LinesPerPage affects fragment boundaries; the rest take part in staleness detection.
type RenderingParameters struct {
	LinesPerPage   int
	FontSize       float64
	ViewportWidth  float64
	ViewportHeight float64
}

// referenceFontSize is the font size at which WithFontSize keeps LinesPerPage unchanged.
const referenceFontSize = 12.0

// Validate reports ErrInvalidParameter for parameters that cannot paginate.
func (p RenderingParameters) Validate() error {
	if p.LinesPerPage <= 0 {
		return ErrInvalidParameter
	}
	return nil
}

// WithFontSize returns a copy using fontSize, with lines per page scaled
// inversely from the reference size so larger text gets shorter pages.
func (p RenderingParameters) WithFontSize(fontSize float64) RenderingParameters {
	if fontSize <= 0 {
		return p
	}
	base := float64(p.LinesPerPage) * p.FontSize / referenceFontSize
	if p.FontSize <= 0 {
		base = float64(p.LinesPerPage)
	}
	p.LinesPerPage = max(1, int(math.Round(base*referenceFontSize/fontSize)))
	p.FontSize = fontSize
	return p
}

// ReadingPosition is a saved place in a book.
type ReadingPosition struct {
	Chapter int
	Page    int
	Params  RenderingParameters
	Snippet string
}

// Note is a free-text annotation anchored to a snippet of page text.
type Note struct {
	Chapter int
	Anchor  string
	Text    string
}

// ResolvedNote is a Note mapped to a page of the current pagination.
type ResolvedNote struct {
	Note
	Page int
}

// BookMetadata describes a book known to the library.
type BookMetadata struct {
	ID          string
	Title       string
	Author      string
	Lang        string
	Description string
	Chapters    int
	// TotalPages is nil until a page count has been computed.
	TotalPages *int
	// PagesLines is the lines-per-page TotalPages was computed under.
	PagesLines     int
	Favorite       bool
	EditedChapters []int
}

// IsEdited reports whether chapter has user-edited text.
func (m *BookMetadata) IsEdited(chapter int) bool {
	return slices.Contains(m.EditedChapters, chapter)
}

// MarkEdited adds chapter to the edited set, keeping it sorted.
func (m *BookMetadata) MarkEdited(chapter int) {
	m.EditedChapters = AddChapter(m.EditedChapters, chapter)
}

// UnmarkEdited removes chapter from the edited set.
func (m *BookMetadata) UnmarkEdited(chapter int) {
	m.EditedChapters = RemoveChapter(m.EditedChapters, chapter)
}

// AddChapter inserts chapter into a sorted set of chapter indices.
func AddChapter(set []int, chapter int) []int {
	i, found := slices.BinarySearch(set, chapter)
	if found {
		return set
	}
	return slices.Insert(set, i, chapter)
}

// RemoveChapter deletes chapter from a sorted set of chapter indices.
func RemoveChapter(set []int, chapter int) []int {
	i, found := slices.BinarySearch(set, chapter)
	if !found {
		return set
	}
	return slices.Delete(set, i, i+1)
}

// Metadata record keys. Values are strings by convention.
const (
	keyTitle      = "title"
	keyAuthor     = "author"
	keyLang       = "lang"
	keyDesc       = "desc"
	keyFavorite   = "favorite"
	keyChapters   = "chapters"
	keyTotalPages = "total_pages"
	keyPagesLines = "pages_lines"
	keyEdited     = "edited_chapters"
)

// ToRecord converts metadata to its persisted string map.
func (m *BookMetadata) ToRecord() map[string]string {
	rec := map[string]string{
		keyTitle:    m.Title,
		keyAuthor:   m.Author,
		keyLang:     m.Lang,
		keyDesc:     m.Description,
		keyFavorite: strconv.FormatBool(m.Favorite),
		keyChapters: strconv.Itoa(m.Chapters),
	}
	if m.TotalPages != nil {
		rec[keyTotalPages] = strconv.Itoa(*m.TotalPages)
		rec[keyPagesLines] = strconv.Itoa(m.PagesLines)
	}
	if len(m.EditedChapters) > 0 {
		parts := make([]string, len(m.EditedChapters))
		for i, c := range m.EditedChapters {
			parts[i] = strconv.Itoa(c)
		}
		rec[keyEdited] = strings.Join(parts, ",")
	}
	return rec
}

// MetadataFromRecord parses a persisted string map. Missing or invalid values
// fall back to zero values instead of failing.
func MetadataFromRecord(id string, rec map[string]string) BookMetadata {
	m := BookMetadata{
		ID:          id,
		Title:       rec[keyTitle],
		Author:      rec[keyAuthor],
		Lang:        rec[keyLang],
		Description: rec[keyDesc],
		Favorite:    rec[keyFavorite] == "true",
		Chapters:    parseNonNegative(rec[keyChapters]),
	}
	if v, ok := rec[keyTotalPages]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			m.TotalPages = &n
			m.PagesLines = parseNonNegative(rec[keyPagesLines])
		}
	}
	for _, part := range strings.Split(rec[keyEdited], ",") {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			m.MarkEdited(n)
		}
	}
	return m
}

func parseNonNegative(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

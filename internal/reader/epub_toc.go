package reader

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const ncxMediaType = "application/x-dtbncx+xml"

// toc.ncx layout. Only labels, targets and nesting matter here.
type ncxDoc struct {
	Points []ncxPoint `xml:"navMap>navPoint"`
}

type ncxPoint struct {
	Label    string     `xml:"navLabel>text"`
	Src      ncxSrc     `xml:"content"`
	Children []ncxPoint `xml:"navPoint"`
}

type ncxSrc struct {
	Path string `xml:"src,attr"`
}

var errNoNCX = errors.New("epub has no NCX table of contents")

// TOC reads the NCX table of contents. Entries whose target is not in the
// spine point at chapter 0.
func (d *EPUBDocument) TOC() ([]TOCEntry, error) {
	r, err := d.openNCX()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var doc ncxDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	var entries []TOCEntry
	appendPoints(&entries, doc.Points, d.chapterIndex(), 0)
	return entries, nil
}

// openNCX opens the manifest item holding the NCX, matched by media type
// first and then by extension.
func (d *EPUBDocument) openNCX() (io.ReadCloser, error) {
	matches := []func(href, mediaType string) bool{
		func(_, mediaType string) bool { return mediaType == ncxMediaType },
		func(href, _ string) bool { return strings.HasSuffix(strings.ToLower(href), ".ncx") },
	}
	for _, match := range matches {
		for _, item := range d.book.Manifest.Items {
			if !match(item.HREF, item.MediaType) {
				continue
			}
			r, err := item.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", item.HREF, err)
			}
			return r, nil
		}
	}
	return nil, errNoNCX
}

// baseHref strips the fragment and directory from an href.
func baseHref(href string) string {
	href, _, _ = strings.Cut(href, "#")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		href = href[i+1:]
	}
	return href
}

func appendPoints(entries *[]TOCEntry, points []ncxPoint, chapters map[string]int, level int) {
	for _, p := range points {
		target, _, _ := strings.Cut(p.Src.Path, "#")
		chapter, ok := chapters[target]
		if !ok {
			chapter = chapters[baseHref(target)]
		}
		*entries = append(*entries, TOCEntry{
			Title:   strings.TrimSpace(p.Label),
			Chapter: chapter,
			Level:   level,
		})
		appendPoints(entries, p.Children, chapters, level+1)
	}
}

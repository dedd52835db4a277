package reader

import (
	"fmt"
	"io"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

func (f *EPUBFormat) Open(filename string) (Document, error) {
	return OpenEPUB(filename)
}

// EPUBDocument is an EPUB whose spine items are its chapters.
type EPUBDocument struct {
	rc    *epub.ReadCloser
	book  *epub.Rootfile
	items []*epub.Item
	stem  string
}

// OpenEPUB opens an EPUB file. Spine entries without a manifest item are skipped.
func OpenEPUB(filename string) (*EPUBDocument, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}

	if len(rc.Rootfiles) == 0 {
		rc.Close()
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	book := rc.Rootfiles[0]
	doc := &EPUBDocument{rc: rc, book: book, stem: fileStem(filename)}
	for _, ref := range book.Spine.Itemrefs {
		if ref.Item == nil {
			continue
		}
		doc.items = append(doc.items, ref.Item)
	}
	return doc, nil
}

func (d *EPUBDocument) Metadata() Metadata {
	md := d.book.Metadata
	m := Metadata{
		Title:       strings.TrimSpace(md.Title),
		Author:      strings.TrimSpace(md.Creator),
		Lang:        strings.TrimSpace(md.Language),
		Description: strings.TrimSpace(md.Description),
	}
	if m.Title == "" {
		m.Title = d.stem
	}
	return m
}

func (d *EPUBDocument) ChapterCount() int { return len(d.items) }

func (d *EPUBDocument) Chapter(i int) (string, error) {
	if err := checkChapter(i, len(d.items)); err != nil {
		return "", err
	}
	r, err := d.items[i].Open()
	if err != nil {
		return "", fmt.Errorf("open chapter %d: %w", i, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read chapter %d: %w", i, err)
	}
	return string(data), nil
}

// chapterIndex maps spine hrefs, and their base names, to chapter indices.
func (d *EPUBDocument) chapterIndex() map[string]int {
	m := make(map[string]int)
	for i, item := range d.items {
		if item.HREF == "" {
			continue
		}
		if _, ok := m[item.HREF]; !ok {
			m[item.HREF] = i
		}
		if base := baseHref(item.HREF); base != item.HREF {
			if _, ok := m[base]; !ok {
				m[base] = i
			}
		}
	}
	return m
}

func (d *EPUBDocument) Close() error {
	d.rc.Close()
	return nil
}

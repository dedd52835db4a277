package reader

// TOCEntry is a table of contents entry pointing at a chapter.
type TOCEntry struct {
	Title   string
	Chapter int
	Level   int
}

// TOCProvider is an optional interface for documents that carry a table of contents
type TOCProvider interface {
	TOC() ([]TOCEntry, error)
}

// TOC returns the table of contents of doc, or nil if its format has none.
func TOC(doc Document) ([]TOCEntry, error) {
	p, ok := doc.(TOCProvider)
	if !ok {
		return nil, nil
	}
	return p.TOC()
}

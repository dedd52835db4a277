// Package reader opens source documents and yields raw per-chapter markup.
//
// Every format renders its chapters as HTML so downstream text conversion
// has a single input shape.
package reader

// Document is an opened source document.
type Document interface {
	Metadata() Metadata
	// ChapterCount returns the number of addressable chapters.
	ChapterCount() int
	// Chapter returns the HTML markup of chapter i.
	Chapter(i int) (string, error)
	Close() error
}

// Metadata holds descriptive fields reported by the container.
type Metadata struct {
	Title       string
	Author      string
	Lang        string
	Description string
}

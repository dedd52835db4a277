package reader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/metcalfc/pagemark/internal/domain"
)

// Format defines a file format reader that opens documents.
type Format interface {
	Name() string
	Extensions() []string
	Open(filename string) (Document, error)
}

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// Lookup returns the registered format for filename's extension.
func Lookup(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", filename, domain.ErrUnsupportedFormat)
}

// Open opens filename with the format registered for its extension.
func Open(filename string) (Document, error) {
	f, err := Lookup(filename)
	if err != nil {
		return nil, err
	}
	return f.Open(filename)
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

func checkChapter(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("chapter %d out of range [0,%d)", i, n)
	}
	return nil
}

func fileStem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
